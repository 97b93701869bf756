package dispatch

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/samirrijal/mapcam/internal/core/domain"
	"github.com/samirrijal/mapcam/internal/core/ports"
	"github.com/samirrijal/mapcam/internal/pkg/codec"
	"github.com/samirrijal/mapcam/internal/pkg/evented"
	"github.com/samirrijal/mapcam/internal/pkg/metrics"
)

// Body is the code a pooled worker runs inside a background context. It is
// called once, when the worker is created, and typically registers listeners
// on w for the job messages it handles.
type Body func(w *HostedWorker, options map[string]any) error

// Bodies maps body names, the bodyURL of the create message, to Body
// implementations. It is safe for concurrent use.
type Bodies struct {
	mu     sync.RWMutex
	bodies map[string]Body
}

func NewBodies() *Bodies {
	return &Bodies{bodies: make(map[string]Body)}
}

// Register adds or replaces a body.
func (b *Bodies) Register(name string, body Body) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bodies[name] = body
}

func (b *Bodies) Lookup(name string) (Body, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	body, ok := b.bodies[name]
	return body, ok
}

// Names lists the registered bodies in order.
func (b *Bodies) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.bodies))
	for n := range b.bodies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// HostedWorker is the background-side mirror of a PooledWorker. Job messages
// addressed to it are fired as events of the same type.
type HostedWorker struct {
	*evented.Emitter

	id   int
	body string
	h    *Host

	onTerminate []func()
}

func (w *HostedWorker) ID() int      { return w.id }
func (w *HostedWorker) Body() string { return w.body }

// Send posts a message back to the main-side handle.
func (w *HostedWorker) Send(typ string, data any) error {
	return w.h.post(domain.Message{PooledWorkerID: w.id, Type: typ, Data: data})
}

// OnTerminate registers fn to run when the main side terminates the worker
// or the host is closed.
func (w *HostedWorker) OnTerminate(fn func()) {
	w.onTerminate = append(w.onTerminate, fn)
}

func (w *HostedWorker) terminate() {
	for _, fn := range w.onTerminate {
		fn()
	}
}

// Host runs inside one background context. It mirrors the main-side registry
// for the pooled workers bound to that context. Messages are handled one at
// a time in arrival order.
type Host struct {
	ep     ports.WorkerContext
	bodies *Bodies

	mu      sync.Mutex
	workers map[int]*HostedWorker
}

// NewHost serves the pooled workers of the context whose background end is
// ep.
func NewHost(ep ports.WorkerContext, bodies *Bodies) *Host {
	h := &Host{ep: ep, bodies: bodies, workers: make(map[int]*HostedWorker)}
	ep.OnMessage(h.handle)
	return h
}

// Len is the number of live workers.
func (h *Host) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.workers)
}

// Close terminates every live worker.
func (h *Host) Close() error {
	h.mu.Lock()
	workers := h.workers
	h.workers = make(map[int]*HostedWorker)
	h.mu.Unlock()

	for _, w := range workers {
		w.terminate()
	}
	return nil
}

func (h *Host) handle(m domain.Message) {
	switch m.Type {
	case domain.MessageCreatePooledWorker:
		if m.PooledWorkerID == domain.NoPooledWorker {
			h.create(m.Data)
			return
		}
	case domain.MessageTerminatePooledWorker:
		if m.PooledWorkerID == domain.NoPooledWorker {
			h.terminate(m.Data)
			return
		}
	}

	h.mu.Lock()
	w := h.workers[m.PooledWorkerID]
	h.mu.Unlock()
	if w == nil {
		metrics.DispatchDropped.WithLabelValues("host").Inc()
		slog.Warn("job for unknown pooled worker", "id", m.PooledWorkerID, "type", m.Type)
		h.replyError(m.PooledWorkerID, fmt.Sprintf("unknown pooled worker %d", m.PooledWorkerID), m.Type)
		return
	}
	w.Fire(m.Type, eventData(m.Data))
}

func (h *Host) create(data any) {
	id, ok := codec.Int(data, "pooledWorkerId")
	if !ok {
		slog.Warn("create message without pooledWorkerId", "data", data)
		return
	}
	name, _ := codec.String(data, "bodyURL")
	body, ok := h.bodies.Lookup(name)
	if !ok {
		h.replyError(id, fmt.Sprintf("unknown body %q", name), domain.MessageCreatePooledWorker)
		return
	}

	var options map[string]any
	if m, ok := data.(map[string]any); ok {
		options, _ = m["options"].(map[string]any)
	}

	w := &HostedWorker{id: id, body: name, h: h}
	w.Emitter = evented.New(w)

	h.mu.Lock()
	h.workers[id] = w
	h.mu.Unlock()

	if err := body(w, options); err != nil {
		h.mu.Lock()
		delete(h.workers, id)
		h.mu.Unlock()
		h.replyError(id, fmt.Sprintf("start body %q: %v", name, err), domain.MessageCreatePooledWorker)
	}
}

func (h *Host) terminate(data any) {
	id, ok := codec.Int(data, "pooledWorkerId")
	if !ok {
		return
	}
	h.mu.Lock()
	w := h.workers[id]
	delete(h.workers, id)
	h.mu.Unlock()
	if w != nil {
		w.terminate()
	}
}

func (h *Host) replyError(id int, msg, cause string) {
	err := h.post(domain.Message{
		PooledWorkerID: id,
		Type:           domain.MessageError,
		Data:           map[string]any{"error": msg, "messageType": cause},
	})
	if err != nil {
		slog.Error("reply error message", "id", id, "error", err)
	}
}

func (h *Host) post(m domain.Message) error {
	if err := h.ep.PostMessage(m); err != nil {
		return err
	}
	metrics.DispatchMessages.WithLabelValues("reply").Inc()
	return nil
}
