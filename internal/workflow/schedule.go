package workflow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/gasable/hub/internal/sseio"
	"github.com/gasable/hub/pkg/models"
)

// WorkflowSource loads the workflows a Scheduler should watch.
type WorkflowSource interface {
	ListScheduledWorkflows(ctx context.Context) ([]models.Workflow, error)
}

// CredentialChecker reports whether a credential is resolvable without
// returning its plaintext, satisfied by *vault.Vault. Used to gate a run on
// required credentials before any node dispatches.
type CredentialChecker interface {
	Get(ctx context.Context, scope, keyName string, version int) (string, error)
}

const credentialScope = "workflow"

// Scheduler triggers workflow runs on their configured cron schedule. Each
// entry runs with a RecordingReporter since no HTTP client is attached to a
// scheduled run; failures are logged, not returned, so one workflow's
// misconfigured schedule never blocks another's.
type Scheduler struct {
	Runner *Runner
	Source WorkflowSource
	Vault  CredentialChecker

	mu   sync.Mutex
	cron *cron.Cron
}

// Start loads every enabled schedule and begins running the cron loop in the
// background. Call Stop to end it.
func (s *Scheduler) Start(ctx context.Context) error {
	workflows, err := s.Source.ListScheduledWorkflows(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron = cron.New()

	for _, wf := range workflows {
		wf := wf
		if wf.Schedule == nil || !wf.Schedule.Enabled || wf.Schedule.CronExpr == "" {
			continue
		}
		if _, err := s.cron.AddFunc(wf.Schedule.CronExpr, func() {
			s.runOnce(wf)
		}); err != nil {
			slog.Error("invalid workflow cron expression, skipping", "workflow_id", wf.ID, "expr", wf.Schedule.CronExpr, "error", err)
			continue
		}
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) runOnce(wf models.Workflow) {
	ctx := context.Background()

	if missing, err := s.missingCredentials(ctx, wf); err != nil {
		slog.Error("scheduled workflow credential check failed", "workflow_id", wf.ID, "error", err)
		return
	} else if len(missing) > 0 {
		slog.Error("scheduled workflow run skipped: missing credentials", "workflow_id", wf.ID, "required_keys", missing)
		return
	}

	reporter := sseio.NewRecordingReporter()
	if err := s.Runner.Run(ctx, wf.Graph, nil, reporter); err != nil {
		slog.Error("scheduled workflow run failed", "workflow_id", wf.ID, "error", err)
		return
	}
	slog.Info("scheduled workflow run completed", "workflow_id", wf.ID)
}

// missingCredentials returns the subset of wf's required credential keys
// that aren't resolvable from the configured Vault, so runOnce can skip
// dispatch entirely rather than fail partway through a stage.
func (s *Scheduler) missingCredentials(ctx context.Context, wf models.Workflow) ([]string, error) {
	keys, err := s.Runner.RequiredCredentials(wf.Graph)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 || s.Vault == nil {
		return nil, nil
	}
	var missing []string
	for _, k := range keys {
		if _, getErr := s.Vault.Get(ctx, credentialScope, k, 0); getErr != nil {
			missing = append(missing, k)
		}
	}
	return missing, nil
}

// Stop ends the cron loop, waiting for any in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
