package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gasable/hub/internal/errkind"
)

// handleListKeys implements GET /api/keys?scope=…: the latest version of
// every secret in a scope, never including ciphertext or plaintext.
func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = "global"
	}
	secrets, err := s.Vault.List(r.Context(), scope)
	if err != nil {
		s.writeError(w, "httpapi.handleListKeys", errkind.New(errkind.Internal, "List", err))
		return
	}
	writeJSON(w, http.StatusOK, secrets)
}

type rotateKeyRequest struct {
	Scope     string `json:"scope"`
	Plaintext string `json:"plaintext"`
}

// handleRotateMCPToken implements POST /api/keys/mcp_token/rotate: writes a
// new version of the "mcp_token" secret, leaving prior versions resolvable
// by any run that pinned them.
func (s *Server) handleRotateMCPToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req rotateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Plaintext == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "plaintext is required"})
		return
	}
	if req.Scope == "" {
		req.Scope = "global"
	}

	version, err := s.Vault.Rotate(r.Context(), req.Scope, "mcp_token", req.Plaintext)
	if err != nil {
		s.writeError(w, "httpapi.handleRotateMCPToken", errkind.New(errkind.Internal, "Rotate", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scope": req.Scope, "key_name": "mcp_token", "version": version})
}
