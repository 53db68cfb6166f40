package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"modelforge/internal/geometry"
	"modelforge/internal/logging"
	"modelforge/internal/services"
)

// DefaultTimeout bounds one evaluation when the host is given none.
const DefaultTimeout = 30 * time.Second

// Outcome is the caller-side view of one evaluation.
type Outcome struct {
	HasParameters        bool
	ParameterDefinitions any
	Result               *Result
	Error                *ErrorInfo
}

// Result is a successful evaluation.
type Result struct {
	Geometries []geometry.Geometry `json:"geometries"`
	Metadata   Metadata            `json:"metadata"`
}

// Host runs evaluations on a Worker and enforces the wall-clock timeout. On
// expiry the worker and its module cache are thrown away and a fresh worker
// takes its place; nothing from the old context is reused.
type Host struct {
	opts    Options
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	worker   *Worker
	ready    bool
	retired  []*Worker
	restarts int
	closed   bool
}

// NewHost starts a worker eagerly so the first evaluation does not pay for
// runtime construction.
func NewHost(opts Options, timeout time.Duration) *Host {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	h := &Host{
		opts:    opts,
		timeout: timeout,
		logger:  logging.NewComponentLogger(opts.Logger, "sandbox-host"),
	}
	h.worker = StartWorker(opts)
	return h
}

// Evaluate sends code to the worker and waits for its answer, the timeout,
// or ctx, whichever comes first.
func (h *Host) Evaluate(ctx context.Context, code string, params map[string]any) Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return Outcome{Error: &ErrorInfo{Kind: services.KindInternal, Message: "sandbox host is closed"}}
	}
	if h.worker == nil {
		h.worker = StartWorker(h.opts)
		h.ready = false
	}

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	w := h.worker
	if !h.ready {
		if info := h.awaitReady(ctx, w, timer.C); info != nil {
			return Outcome{Error: info}
		}
	}
	if !w.Send(Message{Type: TypeEvaluate, Code: code, Parameters: params}) {
		h.replace("worker exited")
		return Outcome{Error: &ErrorInfo{Kind: services.KindInternal, Message: "sandbox worker exited unexpectedly"}}
	}

	var out Outcome
	for {
		select {
		case msg := <-w.Messages():
			switch msg.Type {
			case TypeParameters:
				out.HasParameters = true
				out.ParameterDefinitions = msg.ParameterDefinitions
			case TypeResult:
				out.Result = &Result{Geometries: msg.Geometries}
				if msg.Metadata != nil {
					out.Result.Metadata = *msg.Metadata
				}
				return out
			case TypeError:
				out.Error = msg.Error
				return out
			}
		case <-timer.C:
			h.replace("timeout")
			out.Error = &ErrorInfo{
				Kind:    services.KindTimeout,
				Message: fmt.Sprintf("evaluation exceeded %s", h.timeout),
			}
			return out
		case <-ctx.Done():
			h.replace("canceled")
			out.Error = contextErrorInfo(ctx.Err())
			return out
		case <-w.Done():
			h.replace("worker exited")
			out.Error = &ErrorInfo{Kind: services.KindInternal, Message: "sandbox worker exited unexpectedly"}
			return out
		}
	}
}

func (h *Host) awaitReady(ctx context.Context, w *Worker, expired <-chan time.Time) *ErrorInfo {
	select {
	case msg := <-w.Messages():
		if msg.Type == TypeReady {
			h.ready = true
			return nil
		}
		h.replace("startup failed")
		if msg.Error != nil {
			return msg.Error
		}
		return &ErrorInfo{Kind: services.KindInternal, Message: fmt.Sprintf("unexpected %q frame before ready", msg.Type)}
	case <-expired:
		h.replace("startup timeout")
		return &ErrorInfo{Kind: services.KindTimeout, Message: "sandbox worker did not become ready"}
	case <-ctx.Done():
		h.replace("canceled")
		return contextErrorInfo(ctx.Err())
	}
}

// replace discards the current worker and starts a fresh one. Caller holds mu.
func (h *Host) replace(reason string) {
	old := h.worker
	if old != nil {
		old.Stop()
		h.retired = append(h.retired, old)
	}
	h.restarts++
	h.logger.Warn("sandbox worker replaced",
		logging.String("reason", reason),
		logging.Int("restarts", h.restarts),
		logging.String(logging.FieldEventType, "sandbox_restart"),
	)
	h.pruneRetired()
	h.worker = StartWorker(h.opts)
	h.ready = false
}

func (h *Host) pruneRetired() {
	live := h.retired[:0]
	for _, w := range h.retired {
		select {
		case <-w.Done():
		default:
			live = append(live, w)
		}
	}
	h.retired = live
}

// Restarts reports how many times the worker has been replaced.
func (h *Host) Restarts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.restarts
}

// Close stops every worker and waits for their goroutines to exit.
func (h *Host) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	workers := append([]*Worker(nil), h.retired...)
	if h.worker != nil {
		workers = append(workers, h.worker)
	}
	h.worker = nil
	h.retired = nil
	h.mu.Unlock()

	for _, w := range workers {
		w.Stop()
		<-w.Done()
	}
}

func contextErrorInfo(err error) *ErrorInfo {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ErrorInfo{Kind: services.KindTimeout, Message: "evaluation deadline exceeded"}
	}
	return &ErrorInfo{Kind: services.KindInternal, Message: "evaluation canceled"}
}
