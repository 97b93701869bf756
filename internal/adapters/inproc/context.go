// Package inproc provides worker contexts that run in the current process.
// Each context is a goroutine fed by a FIFO mailbox; messages are copied
// through the wire codec so neither side shares memory with the other.
package inproc

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/eapache/queue"

	"github.com/samirrijal/mapcam/internal/core/domain"
	"github.com/samirrijal/mapcam/internal/core/ports"
	"github.com/samirrijal/mapcam/internal/pkg/codec"
)

var ErrClosed = errors.New("context closed")

// endpoint is one end of a context. Messages posted to it are delivered to
// its handler on its own goroutine, in order. Messages arriving before a
// handler is installed wait in the mailbox.
type endpoint struct {
	mu      sync.Mutex
	cond    *sync.Cond
	mailbox *queue.Queue
	handler func(domain.Message)
	closed  bool
	done    chan struct{}

	peer *endpoint
}

func newEndpoint() *endpoint {
	e := &endpoint{mailbox: queue.New(), done: make(chan struct{})}
	e.cond = sync.NewCond(&e.mu)
	go e.run()
	return e
}

func (e *endpoint) run() {
	defer close(e.done)
	for {
		e.mu.Lock()
		for !e.closed && (e.mailbox.Length() == 0 || e.handler == nil) {
			e.cond.Wait()
		}
		if e.closed {
			e.mu.Unlock()
			return
		}
		m := e.mailbox.Remove().(domain.Message)
		fn := e.handler
		e.mu.Unlock()

		e.deliver(fn, m)
	}
}

func (e *endpoint) deliver(fn func(domain.Message), m domain.Message) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("worker message handler panicked", "type", m.Type, "id", m.PooledWorkerID, "panic", r)
		}
	}()
	fn(m)
}

func (e *endpoint) enqueue(m domain.Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.mailbox.Add(m)
	e.cond.Signal()
	return nil
}

// PostMessage sends a copy of m to the other end.
func (e *endpoint) PostMessage(m domain.Message) error {
	c, err := codec.Clone(m)
	if err != nil {
		return fmt.Errorf("post %q: %w", m.Type, err)
	}
	return e.peer.enqueue(c)
}

func (e *endpoint) OnMessage(fn func(domain.Message)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = fn
	e.cond.Signal()
}

// Close shuts down both ends. Undelivered messages are discarded.
func (e *endpoint) Close() error {
	e.shutdown()
	e.peer.shutdown()
	return nil
}

func (e *endpoint) shutdown() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()
}

// Pipe returns the two connected ends of a context: main is used by the
// dispatcher, background by the code serving the context.
func Pipe() (main, background ports.WorkerContext) {
	a, b := newEndpoint(), newEndpoint()
	a.peer, b.peer = b, a
	return a, b
}

// Factory creates in-process contexts and hands the background end of each
// to serve.
type Factory struct {
	serve func(index int, background ports.WorkerContext) error
}

func NewFactory(serve func(index int, background ports.WorkerContext) error) *Factory {
	return &Factory{serve: serve}
}

func (f *Factory) NewContext(index int) (ports.WorkerContext, error) {
	main, background := Pipe()
	if err := f.serve(index, background); err != nil {
		_ = main.Close()
		return nil, err
	}
	return main, nil
}
