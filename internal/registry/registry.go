// Package registry implements the tool registry: enumerating tool
// definitions, inferring required credential keys from an auth provider,
// validating calls against an agent's allow-list, and dispatching with
// credentials injected into a per-call context.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gasable/hub/internal/errkind"
	"github.com/gasable/hub/internal/tools/policy"
	"github.com/gasable/hub/pkg/models"
)

// MaxToolNameLength bounds tool name length accepted by Invoke.
const MaxToolNameLength = 256

// MaxArgsSize bounds the JSON argument payload accepted by Invoke (1MB).
const MaxArgsSize = 1 << 20

// Tool is one dispatchable tool implementation.
type Tool interface {
	Name() string
	Spec() models.ToolSpec
	// Invoke executes the tool. creds holds the resolved plaintext values for
	// every key in Spec().RequiredKeys, keyed by name.
	Invoke(ctx context.Context, args json.RawMessage, creds map[string]string) (ToolResult, error)
}

// ToolResult is the JSON-shaped {status, ...} contract every tool returns.
// Tool errors are reported through Status/Error, never as a Go error from
// Invoke unless the failure is in the registry layer itself (not found,
// not allowed, missing credential).
type ToolResult struct {
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// CredentialSource resolves one (scope, key) credential to its plaintext
// value, satisfied by the vault package.
type CredentialSource interface {
	Get(ctx context.Context, scope, keyName string) (string, error)
}

// authProviderKeys maps a tool's auth.provider to the env-style credential
// keys a call against it requires.
var authProviderKeys = map[string][]string{
	"gmail":     {"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REFRESH_TOKEN"},
	"google":    {"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REFRESH_TOKEN"},
	"github":    {"GITHUB_CLIENT_ID", "GITHUB_CLIENT_SECRET", "GITHUB_TOKEN"},
	"openai":    {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
	"slack":     {"SLACK_BOT_TOKEN"},
}

// RequiredKeys returns the credential keys a tool registered under the given
// auth provider needs, merged with any keys the tool spec already declares.
func RequiredKeys(authProvider string, declared []string) []string {
	keys := append([]string{}, declared...)
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		seen[k] = true
	}
	for _, k := range authProviderKeys[authProvider] {
		if !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	return keys
}

// Registry holds every installed tool, keyed by name.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	resolver *policy.Resolver
	creds    CredentialSource
	scope    string // credential scope prefix, e.g. "global" or "agent:<id>"
}

// New builds a Registry backed by the given policy resolver and credential
// source.
func New(resolver *policy.Resolver, creds CredentialSource) *Registry {
	if resolver == nil {
		resolver = policy.NewResolver()
	}
	return &Registry{
		tools:    make(map[string]Tool),
		resolver: resolver,
		creds:    creds,
	}
}

// Register installs a tool, replacing any existing tool of the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[policy.NormalizeTool(t.Name())] = t
}

// List enumerates every registered tool's spec, sorted is not guaranteed;
// callers needing a stable order should sort by Name.
func (r *Registry) List() []models.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Spec())
	}
	return out
}

// Get returns one tool's spec by name.
func (r *Registry) Get(name string) (models.ToolSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[policy.NormalizeTool(name)]
	if !ok {
		return models.ToolSpec{}, false
	}
	return t.Spec(), true
}

// Invoke validates name/args size, checks the allow-list policy, resolves
// required credentials from the configured CredentialSource, and dispatches
// to the tool. Registry-layer failures (not found, denied, missing
// credential) are returned as typed errkind errors; tool-level failures are
// reported inside the returned ToolResult with Status "error".
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage, toolPolicy *policy.Policy, credScope string) (ToolResult, error) {
	if len(name) > MaxToolNameLength {
		return ToolResult{}, errkind.Newf(errkind.BadRequest, "registry.Invoke", "tool name exceeds %d characters", MaxToolNameLength)
	}
	if len(args) > MaxArgsSize {
		return ToolResult{}, errkind.Newf(errkind.BadRequest, "registry.Invoke", "args exceed %d bytes", MaxArgsSize)
	}

	r.mu.RLock()
	tool, ok := r.tools[policy.NormalizeTool(name)]
	r.mu.RUnlock()
	if !ok {
		return ToolResult{}, errkind.Newf(errkind.NotFound, "registry.Invoke", "tool not found: %s", name)
	}

	if decision := r.resolver.Decide(toolPolicy, tool.Name()); !decision.Allowed {
		return ToolResult{}, errkind.Newf(errkind.Forbidden, "registry.Invoke", "tool %s not allowed: %s", name, decision.Reason)
	}

	spec := tool.Spec()
	if err := validateArgs(spec, args); err != nil {
		return ToolResult{}, err
	}

	keys := RequiredKeys(spec.AuthProvider, spec.RequiredKeys)
	creds, err := r.resolveCredentials(ctx, credScope, keys)
	if err != nil {
		return ToolResult{}, err
	}

	result, err := tool.Invoke(ctx, args, creds)
	if err != nil {
		return ToolResult{}, errkind.New(errkind.ToolError, "registry.Invoke", err)
	}
	return result, nil
}

func (r *Registry) resolveCredentials(ctx context.Context, scope string, keys []string) (map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if r.creds == nil {
		return nil, errkind.Newf(errkind.MissingCredential, "registry.resolveCredentials", "no credential source configured")
	}

	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, err := r.creds.Get(ctx, scope, k)
		if err != nil {
			return nil, errkind.New(errkind.MissingCredential, "registry.resolveCredentials", fmt.Errorf("%s: %w", k, err))
		}
		out[k] = v
	}
	augmentGoogleCredentials(ctx, out)
	return out, nil
}
