// Package dispatch multiplexes many logical pooled workers over a small,
// fixed pool of real background contexts.
//
// The main side owns a Dispatcher. Allocate binds a new PooledWorker to one
// of the contexts, round-robin, and asks that context to instantiate the
// named body. Messages travel as domain.Message values tagged with the
// pooled worker id; each context's replies are routed back to the handle
// with the same id. The background side runs a Host per context.
//
// Contexts must deliver messages in the order they were posted. Nothing is
// acknowledged: a job sent right after Allocate is only handled correctly
// because the create message reaches the context first.
package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/samirrijal/mapcam/internal/core/domain"
	"github.com/samirrijal/mapcam/internal/core/ports"
	"github.com/samirrijal/mapcam/internal/pkg/evented"
	"github.com/samirrijal/mapcam/internal/pkg/metrics"
)

var (
	ErrClosed     = errors.New("dispatcher closed")
	ErrTerminated = errors.New("pooled worker terminated")
)

// DefaultSize is the pool size used when none is configured: one context per
// CPU, leaving one CPU for the main side.
func DefaultSize() int {
	return max(runtime.NumCPU()-1, 1)
}

// Dispatcher is safe for concurrent use. Events of every pooled worker bubble
// up to it, tagged with pooledWorkerId, and it fires "error" events of its
// own for messages that arrive for an unknown pooled worker. A listener
// registered here before Allocate sees errors the worker reports before the
// caller had a chance to listen on the handle.
type Dispatcher struct {
	*evented.Emitter

	factory ports.ContextFactory
	size    int

	mu       sync.Mutex
	contexts []ports.WorkerContext
	next     int
	workers  []*PooledWorker
	closed   bool
}

// New returns a dispatcher creating size contexts with factory on the first
// Allocate. A size below 1 selects DefaultSize.
func New(factory ports.ContextFactory, size int) *Dispatcher {
	if size < 1 {
		size = DefaultSize()
	}
	d := &Dispatcher{factory: factory, size: size}
	d.Emitter = evented.New(d)
	return d
}

// Size is the number of real contexts in the pool.
func (d *Dispatcher) Size() int { return d.size }

// Allocated is the number of ids handed out so far, terminated ones included.
func (d *Dispatcher) Allocated() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.workers)
}

// Allocate creates a pooled worker running body with options. It returns as
// soon as the create message is posted; the handle is usable immediately.
func (d *Dispatcher) Allocate(body string, options map[string]any) (*PooledWorker, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}
	if d.contexts == nil {
		if err := d.startPool(); err != nil {
			return nil, err
		}
	}

	index := d.next
	w := &PooledWorker{id: len(d.workers), index: index, body: body, d: d}
	w.Emitter = evented.New(w)
	w.SetEventedParent(d.Emitter, map[string]any{"pooledWorkerId": w.id})
	d.workers = append(d.workers, w)

	// The id and the context slot are only spent once the create message is
	// out; mu keeps anyone else from allocating in between.
	if err := d.post(index, domain.CreatePooledWorker(w.id, body, options)); err != nil {
		d.workers = d.workers[:w.id]
		return nil, fmt.Errorf("create pooled worker %d: %w", w.id, err)
	}
	d.next = (d.next + 1) % d.size
	metrics.PooledWorkersAllocated.WithLabelValues(body).Inc()
	slog.Debug("pooled worker allocated", "id", w.id, "body", body, "context", index)
	return w, nil
}

// Close terminates every context. Pooled workers become unusable.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	for i, c := range d.contexts {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close context %d: %w", i, err))
		}
	}
	d.contexts = nil
	return errors.Join(errs...)
}

func (d *Dispatcher) startPool() error {
	contexts := make([]ports.WorkerContext, 0, d.size)
	for i := 0; i < d.size; i++ {
		c, err := d.factory.NewContext(i)
		if err != nil {
			for _, started := range contexts {
				_ = started.Close()
			}
			return fmt.Errorf("start context %d: %w", i, err)
		}
		c.OnMessage(d.router(i))
		contexts = append(contexts, c)
	}
	d.contexts = contexts
	slog.Info("worker pool started", "size", d.size)
	return nil
}

// post must be called with mu held.
func (d *Dispatcher) post(index int, m domain.Message) error {
	if d.closed {
		return ErrClosed
	}
	if err := d.contexts[index].PostMessage(m); err != nil {
		return err
	}
	metrics.DispatchMessages.WithLabelValues("out").Inc()
	return nil
}

// router returns the handler for replies of context index.
func (d *Dispatcher) router(index int) func(domain.Message) {
	return func(m domain.Message) {
		metrics.DispatchMessages.WithLabelValues("in").Inc()

		d.mu.Lock()
		var w *PooledWorker
		known := m.PooledWorkerID >= 0 && m.PooledWorkerID < len(d.workers)
		if known {
			w = d.workers[m.PooledWorkerID]
		}
		d.mu.Unlock()

		if w != nil {
			w.Fire(m.Type, eventData(m.Data))
			return
		}

		metrics.DispatchDropped.WithLabelValues("main").Inc()
		if known {
			// Replies still in flight when the worker was terminated.
			slog.Debug("message for terminated pooled worker dropped", "id", m.PooledWorkerID, "type", m.Type)
			return
		}
		slog.Warn("message for unknown pooled worker dropped", "id", m.PooledWorkerID, "type", m.Type, "context", index)
		d.Fire(domain.EventError, map[string]any{
			"error":          fmt.Sprintf("unknown pooled worker %d", m.PooledWorkerID),
			"pooledWorkerId": m.PooledWorkerID,
			"messageType":    m.Type,
			"context":        index,
		})
	}
}

// eventData turns message data into event data. Objects are passed through;
// anything else is wrapped under "data".
func eventData(data any) map[string]any {
	if m, ok := data.(map[string]any); ok {
		return m
	}
	if data == nil {
		return nil
	}
	return map[string]any{"data": data}
}
