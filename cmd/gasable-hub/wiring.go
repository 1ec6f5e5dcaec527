package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gasable/hub/internal/answerer"
	"github.com/gasable/hub/internal/audit"
	"github.com/gasable/hub/internal/config"
	"github.com/gasable/hub/internal/httpapi"
	"github.com/gasable/hub/internal/jobs"
	"github.com/gasable/hub/internal/llmclient"
	"github.com/gasable/hub/internal/orchestrator"
	"github.com/gasable/hub/internal/registry"
	"github.com/gasable/hub/internal/retriever"
	"github.com/gasable/hub/internal/status"
	"github.com/gasable/hub/internal/store"
	"github.com/gasable/hub/internal/tools/policy"
	"github.com/gasable/hub/internal/vault"
	"github.com/gasable/hub/internal/workflow"
)

const errorRingCapacity = 200

// deps holds every wired dependency plus a Close to release them all in one
// call at shutdown.
type deps struct {
	Store     *store.Store
	Server    *httpapi.Server
	Scheduler *workflow.Scheduler
	Close     func()
}

// buildDeps wires the full dependency graph from process configuration and
// environment-sourced credentials. embedder/chat construction degrades
// gracefully: a missing OPENAI_API_KEY yields a nil embedder (lexical-only
// retrieval), and chat falls back the same way (deterministic extractive
// answers, no assistant tool-call loop).
func buildDeps(cfg config.Config, runMigrations bool) (*deps, error) {
	st, err := store.New(store.Config{
		DSN:           cfg.DatabaseURL,
		Dimension:     cfg.EmbedDim,
		RunMigrations: runMigrations,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var embedder *llmclient.OpenAIClient
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		embedder, err = llmclient.NewOpenAIClient(llmclient.OpenAIConfig{
			APIKey:     apiKey,
			BaseURL:    os.Getenv("OPENAI_BASE_URL"),
			EmbedModel: cfg.EmbedModel,
			Dimension:  cfg.EmbedDim,
		})
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("build embedder: %w", err)
		}
	}

	chat, err := buildChatClient(embedder)
	if err != nil {
		st.Close()
		return nil, err
	}

	r := &retriever.Retriever{Store: st, ChatModel: cfg.OpenAIModel}
	if embedder != nil {
		r.Embedder = embedder
	}
	if chat != nil {
		r.Chat = chat
	}

	a := &answerer.Answerer{Model: cfg.OpenAIModel}
	if chat != nil {
		a.Chat = chat
	}

	masterKey, err := loadMasterKey()
	if err != nil {
		st.Close()
		return nil, err
	}
	v, err := vault.New(st, masterKey)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build vault: %w", err)
	}
	pinned := vault.NewPinnedReader(v)

	reg := registry.New(policy.NewResolver(), pinned)
	reg.Register(registry.NewEchoTool())
	reg.Register(registry.NewWebFetchTool(&http.Client{Timeout: 10 * time.Second}, 10000))

	orch := &orchestrator.Orchestrator{
		Agents:   st,
		Registry: reg,
		Runs:     st,
	}
	if chat != nil {
		orch.Chat = chat
	}

	runner := &workflow.Runner{
		Registry: reg,
		Agents:   orch,
		Policy:   &policy.Policy{Profile: policy.ProfileFull},
	}

	errRing := audit.NewErrorRing(errorRingCapacity)
	statusRep := &status.Reporter{
		DB:        st.DB(),
		Dimension: cfg.EmbedDim,
		Errors:    errRing,
		StartedAt: time.Now(),
	}
	if embedder != nil {
		statusRep.Embedder = embedder
	}

	server := &httpapi.Server{
		Store:         st,
		Retriever:     r,
		Answerer:      a,
		Registry:      reg,
		Orchestrator:  orch,
		Workflows:     runner,
		Vault:         v,
		StatusRep:     statusRep,
		Errors:        errRing,
		Jobs:          jobs.NewMemoryStore(),
		APITokens:     cfg.APITokens,
		CORSOrigins:   cfg.CORSOrigins,
		SingleShotMS:  cfg.SingleShotBudgetMS,
		StreamMS:      cfg.StreamBudgetMS,
		StrictContext: cfg.StrictContextOnly,
		LastMigration: store.LastMigrationID,
	}

	scheduler := &workflow.Scheduler{Runner: runner, Source: st, Vault: v}

	return &deps{
		Store:     st,
		Server:    server,
		Scheduler: scheduler,
		Close:     func() { _ = st.Close() },
	}, nil
}

// buildChatClient selects a ChatClient by CHAT_PROVIDER ("anthropic" or
// "openai", default "openai"). The embedding role is always served by the
// OpenAI client regardless of this choice, matching llmclient's own
// documented split between Embedder and ChatClient roles.
func buildChatClient(embedder *llmclient.OpenAIClient) (llmclient.ChatClient, error) {
	provider := os.Getenv("CHAT_PROVIDER")
	if provider == "" {
		provider = "openai"
	}

	switch provider {
	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, nil
		}
		return llmclient.NewAnthropicClient(llmclient.AnthropicConfig{
			APIKey:  apiKey,
			BaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
		})
	default:
		if embedder == nil {
			return nil, nil
		}
		return embedder, nil
	}
}

// loadMasterKey reads VAULT_MASTER_KEY (hex-encoded 32 bytes). If unset, an
// ephemeral key is generated: secrets written this run remain readable only
// until the process restarts, which is acceptable for local development but
// must not be relied on in production.
func loadMasterKey() ([]byte, error) {
	if hexKey := os.Getenv("VAULT_MASTER_KEY"); hexKey != "" {
		return vault.DecodeMasterKey(hexKey)
	}
	generated, err := vault.GenerateMasterKey()
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral master key: %w", err)
	}
	return vault.DecodeMasterKey(generated)
}
