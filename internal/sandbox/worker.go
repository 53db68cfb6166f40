package sandbox

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"modelforge/internal/services"
)

// Worker owns one Context on a dedicated goroutine. It emits a ready frame
// once, then answers each evaluate frame with an optional parameters frame
// followed by exactly one result or error frame.
type Worker struct {
	requests chan Message
	messages chan Message
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc
	current  atomic.Pointer[Context]
}

// StartWorker launches a worker with a fresh Context.
func StartWorker(opts Options) *Worker {
	base, cancel := context.WithCancel(context.Background())
	w := &Worker{
		requests: make(chan Message),
		messages: make(chan Message, 4),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		cancel:   cancel,
	}
	go w.run(base, opts)
	return w
}

func (w *Worker) run(ctx context.Context, opts Options) {
	defer close(w.done)
	defer w.cancel()

	sc, err := NewContext(opts)
	if err != nil {
		w.emit(Message{Type: TypeError, Error: &ErrorInfo{Kind: services.Kind(err), Message: err.Error()}})
		return
	}
	w.current.Store(sc)
	if !w.emit(Message{Type: TypeReady}) {
		return
	}
	for {
		select {
		case <-w.stop:
			return
		case req := <-w.requests:
			for _, frame := range handle(ctx, sc, req) {
				if !w.emit(frame) {
					return
				}
			}
		}
	}
}

func (w *Worker) emit(m Message) bool {
	select {
	case w.messages <- m:
		return true
	case <-w.stop:
		return false
	}
}

// Send delivers a request frame. It fails once the worker has exited.
func (w *Worker) Send(m Message) bool {
	select {
	case w.requests <- m:
		return true
	case <-w.done:
		return false
	}
}

// Messages is the outbound frame stream.
func (w *Worker) Messages() <-chan Message { return w.messages }

// Done is closed when the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Stop interrupts any running script, cancels in-flight fetches and ends
// the worker. It does not wait for the goroutine to exit.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		w.cancel()
		if sc := w.current.Load(); sc != nil {
			sc.Interrupt("sandbox worker stopped")
		}
	})
}

func handle(ctx context.Context, sc *Context, req Message) []Message {
	if req.Type != TypeEvaluate {
		return []Message{{Type: TypeError, Error: &ErrorInfo{
			Kind:    services.KindValidation,
			Message: fmt.Sprintf("unsupported message type %q", req.Type),
		}}}
	}
	return frames(sc.Evaluate(ctx, req.Code, req.Parameters))
}
