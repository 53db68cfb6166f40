package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"modelforge/internal/fileutil"
	"modelforge/internal/geometry"
	"modelforge/internal/logging"
	"modelforge/internal/notifications"
	"modelforge/internal/params"
	"modelforge/internal/queue"
	"modelforge/internal/services"
)

// Run processes the queues of projectIDs until ctx is cancelled. Each
// project gets its own lane and sandbox host.
func (m *Manager) Run(ctx context.Context, projectIDs []string) error {
	return m.run(ctx, projectIDs, false)
}

// Drain processes queued items until no project has anything claimable,
// then returns. A claim error in any lane stops the others.
func (m *Manager) Drain(ctx context.Context, projectIDs []string) error {
	return m.run(ctx, projectIDs, true)
}

func (m *Manager) run(ctx context.Context, projectIDs []string, drain bool) error {
	projectIDs = uniqueIDs(projectIDs)
	if len(projectIDs) == 0 {
		return services.Wrap(services.ErrValidation, "workflow", "run", "at least one project id is required", nil)
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	m.running = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	m.logger.Info("workflow lanes starting",
		logging.Int("lanes", len(projectIDs)),
		logging.Bool("drain", drain),
		logging.String(logging.FieldEventType, "workflow_start"),
	)
	started := m.now()
	completedBefore, failedBefore := m.counts()
	g, gctx := errgroup.WithContext(ctx)
	for _, projectID := range projectIDs {
		g.Go(func() error {
			return m.runLane(gctx, projectID, drain)
		})
	}
	err := g.Wait()
	if drain && err == nil && ctx.Err() == nil {
		completed, failed := m.counts()
		m.notify(ctx, m.logger, notifications.EventQueueDrained, notifications.Payload{
			"completed": completed - completedBefore,
			"failed":    failed - failedBefore,
			"duration":  m.now().Sub(started),
		})
	}
	return err
}

// notify publishes an event; delivery failures are logged, never returned.
func (m *Manager) notify(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, notification not sent", logging.String("event", string(event)))
			return
		}
		logger.Warn("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldEventType, "notification_failed"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func (m *Manager) runLane(ctx context.Context, projectID string, drain bool) error {
	logger := logging.WithJob(m.logger, projectID, "")
	evaluator := m.newEvaluator(logger)
	defer evaluator.Close()

	for {
		if ctx.Err() != nil {
			return nil
		}

		claim, err := m.store.ClaimNext(ctx, projectID, 0)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			m.setLastError(err)
			logger.Error("failed to claim next job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_claim_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			if drain {
				return fmt.Errorf("claim next for project %s: %w", projectID, err)
			}
			m.waitForWorkOrShutdown(ctx)
			continue
		}
		if claim == nil {
			if drain {
				return nil
			}
			m.waitForWorkOrShutdown(ctx)
			continue
		}

		m.processClaim(ctx, evaluator, logger, projectID, claim)
	}
}

func (m *Manager) waitForWorkOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}

func (m *Manager) processClaim(ctx context.Context, evaluator Evaluator, base *slog.Logger, projectID string, claim *queue.Claim) {
	jobCtx := services.WithQueueID(services.WithProjectID(ctx, projectID), claim.QueueID)
	jobLogger, closeLog, err := m.jobLogs.Open(base, projectID, claim.QueueID)
	if err != nil {
		base.Warn("job log unavailable", logging.Error(err))
	}
	defer closeLog()
	logger := logging.WithContext(jobCtx, jobLogger)
	logger.Info("job claimed",
		logging.String("prompt", claim.Prompt),
		logging.Int("attempt", claim.Attempts),
		logging.String(logging.FieldEventType, "job_claimed"),
	)

	hbCtx, stopHeartbeat := context.WithCancel(jobCtx)
	var wg sync.WaitGroup
	wg.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &wg, claim.QueueID)

	snap, path, jobErr := m.runJob(jobCtx, evaluator, logger, projectID, claim)
	stopHeartbeat()
	wg.Wait()

	if ctx.Err() != nil {
		logger.Info("shutting down; job left for lease reclaim",
			logging.String(logging.FieldEventType, "job_interrupted"))
		return
	}
	if jobErr != nil {
		m.handleJobFailure(ctx, logger, projectID, claim, jobErr)
		return
	}

	if err := m.store.Complete(ctx, claim.QueueID); err != nil {
		m.setLastError(err)
		logger.Error("failed to complete job",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_complete_failed"),
			logging.String(logging.FieldErrorHint, "the item may have been cleared while running"),
		)
		return
	}
	if _, err := m.store.AppendMessage(ctx, projectID, queue.RoleAssistant, snap.Summary()); err != nil {
		logger.Warn("failed to record assistant message", logging.Error(err))
	}
	logger.Info("job completed",
		logging.String("snapshot", path),
		logging.Int("geometries", snap.Metadata.Count),
		logging.Bool("printable", snap.Printability.Printable),
		logging.String("schema_source", snap.SchemaSource),
		logging.String(logging.FieldEventType, "job_completed"),
	)
	m.recordItem(ctx, claim.QueueID, true)
	m.notify(ctx, logger, notifications.EventJobCompleted, notifications.Payload{
		"projectID":  projectID,
		"queueID":    claim.QueueID,
		"prompt":     claim.Prompt,
		"geometries": snap.Metadata.Count,
		"printable":  snap.Printability.Printable,
	})
}

// runJob generates, evaluates and analyzes one claim and writes its snapshot.
func (m *Manager) runJob(ctx context.Context, evaluator Evaluator, logger *slog.Logger, projectID string, claim *queue.Claim) (Snapshot, string, error) {
	genCtx, cancel := ctx, context.CancelFunc(func() {})
	if m.generatorTimeout > 0 {
		genCtx, cancel = context.WithTimeout(ctx, m.generatorTimeout)
	}
	code, err := m.generator.Generate(genCtx, Request{
		ProjectID: projectID,
		QueueID:   claim.QueueID,
		Prompt:    claim.Prompt,
		Attempt:   claim.Attempts,
	})
	cancel()
	if err != nil {
		return Snapshot{}, "", fmt.Errorf("generate code: %w", err)
	}
	logger.Debug("code generated", logging.Int("bytes", len(code)))

	defaults := params.Values(params.Extract(code))
	outcome := evaluator.Evaluate(ctx, code, defaults)
	if outcome.Error != nil {
		return Snapshot{}, "", outcome.Error
	}
	if outcome.Result == nil {
		return Snapshot{}, "", services.Wrap(services.ErrEvaluation, "workflow", "evaluate", "sandbox returned no result", nil)
	}

	geoms := outcome.Result.Geometries
	measurement := geometry.Measure(geoms)
	schema, source := Schema(code, outcome)
	snap := Snapshot{
		ProjectID:    projectID,
		QueueID:      claim.QueueID,
		Prompt:       claim.Prompt,
		Attempts:     claim.Attempts,
		Code:         code,
		CodeSHA256:   fileutil.SHA256Hex([]byte(code)),
		SchemaSource: source,
		Parameters:   schema,
		Metadata:     outcome.Result.Metadata,
		Measurement:  measurement,
		Printability: geometry.AnalyzePrintability(geoms, measurement.BoundingBox),
		Geometries:   geoms,
		GeneratedAt:  m.now().UTC(),
	}

	path := queue.SnapshotPath(m.cfg.Paths.OutputDir, projectID, claim.QueueID)
	if path == "" {
		return snap, "", nil
	}
	if err := fileutil.WriteJSONAtomic(path, snap); err != nil {
		return Snapshot{}, "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := fileutil.WriteFileAtomic(strings.TrimSuffix(path, ".json")+".js", []byte(code), 0o644); err != nil {
		return Snapshot{}, "", fmt.Errorf("write code: %w", err)
	}
	return snap, path, nil
}
