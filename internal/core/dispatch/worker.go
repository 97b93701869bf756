package dispatch

import (
	"fmt"

	"github.com/samirrijal/mapcam/internal/core/domain"
	"github.com/samirrijal/mapcam/internal/pkg/evented"
)

// PooledWorker is the main-side handle of one logical worker. Messages the
// body sends back are fired as events of the same type on the handle.
type PooledWorker struct {
	*evented.Emitter

	id    int
	index int
	body  string
	d     *Dispatcher

	terminated bool
}

// ID is the logical id, unique for the lifetime of the dispatcher.
func (w *PooledWorker) ID() int { return w.id }

// ContextIndex is the real context the worker is bound to.
func (w *PooledWorker) ContextIndex() int { return w.index }

// Body is the name of the body the worker runs.
func (w *PooledWorker) Body() string { return w.body }

// Send posts a job message to the worker's body.
func (w *PooledWorker) Send(typ string, data any) error {
	if typ == domain.MessageCreatePooledWorker || typ == domain.MessageTerminatePooledWorker {
		return fmt.Errorf("message type %q is reserved", typ)
	}
	w.d.mu.Lock()
	defer w.d.mu.Unlock()
	if w.terminated {
		return ErrTerminated
	}
	return w.d.post(w.index, domain.Message{PooledWorkerID: w.id, Type: typ, Data: data})
}

// Terminate releases the worker on both sides. Replies still in flight are
// dropped. Calling it again does nothing.
func (w *PooledWorker) Terminate() error {
	w.d.mu.Lock()
	defer w.d.mu.Unlock()
	if w.terminated {
		return nil
	}
	w.terminated = true
	w.d.workers[w.id] = nil
	if w.d.closed {
		return nil
	}
	return w.d.post(w.index, domain.TerminatePooledWorker(w.id))
}
