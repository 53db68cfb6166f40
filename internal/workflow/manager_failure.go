package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"modelforge/internal/logging"
	"modelforge/internal/notifications"
	"modelforge/internal/queue"
	"modelforge/internal/sandbox"
	"modelforge/internal/services"
)

func (m *Manager) handleJobFailure(ctx context.Context, logger *slog.Logger, projectID string, claim *queue.Claim, jobErr error) {
	m.setLastError(jobErr)
	message := FailureMessage(jobErr)
	kind := services.Kind(jobErr)

	attrs := []logging.Attr{
		logging.Error(jobErr),
		logging.String(logging.FieldErrorKind, kind),
		logging.String(logging.FieldEventType, "job_failed"),
	}
	if hint := failureHint(kind); hint != "" {
		attrs = append(attrs, logging.String(logging.FieldErrorHint, hint))
	}
	var info *sandbox.ErrorInfo
	if errors.As(jobErr, &info) && info.Stack != "" {
		attrs = append(attrs, logging.String("stack", info.Stack))
	}
	logger.Error("job failed", logging.Args(attrs...)...)

	if err := m.store.Fail(ctx, claim.QueueID, message); err != nil {
		logger.Error("failed to persist job failure",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_fail_failed"),
		)
		return
	}
	m.recordItem(ctx, claim.QueueID, false)
	m.notify(ctx, logger, notifications.EventJobFailed, notifications.Payload{
		"projectID": projectID,
		"queueID":   claim.QueueID,
		"prompt":    claim.Prompt,
		"error":     message,
	})
}

// FailureMessage is the text recorded on a failed item. Sandbox failures
// keep their taxonomy prefix, e.g. "EvaluationError: boom".
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}
	var info *sandbox.ErrorInfo
	if errors.As(err, &info) {
		return info.Error()
	}
	return strings.TrimSpace(err.Error())
}

func failureHint(kind string) string {
	switch kind {
	case services.KindTimeout:
		return "raise sandbox.timeout_seconds or generator.timeout_seconds"
	case services.KindModuleFetch:
		return "check sandbox.allow_remote and that the module URL is reachable"
	case services.KindCircularModule:
		return "generated code has a require cycle"
	case services.KindValidation:
		return "generated code used an unsupported module specifier or returned nothing"
	case services.KindEvaluation:
		return "generated code threw; the job can be re-enqueued"
	}
	return ""
}
