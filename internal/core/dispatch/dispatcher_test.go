package dispatch_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/samirrijal/mapcam/internal/core/dispatch"
	"github.com/samirrijal/mapcam/internal/core/domain"
	"github.com/samirrijal/mapcam/internal/core/ports"
	"github.com/samirrijal/mapcam/internal/pkg/evented"
)

// fakeContext records posted messages and lets tests inject replies.
type fakeContext struct {
	mu      sync.Mutex
	posted  []domain.Message
	handler func(domain.Message)
	closed  bool

	postFn func(domain.Message) error
}

func (f *fakeContext) PostMessage(m domain.Message) error {
	if f.postFn != nil {
		if err := f.postFn(m); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, m)
	return nil
}

func (f *fakeContext) OnMessage(fn func(domain.Message)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = fn
}

func (f *fakeContext) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeContext) reply(m domain.Message) {
	f.mu.Lock()
	fn := f.handler
	f.mu.Unlock()
	fn(m)
}

func (f *fakeContext) messages() []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Message(nil), f.posted...)
}

type fakePool struct {
	contexts []*fakeContext
	created  int
	failAt   int
}

func newFakePool(n int) *fakePool {
	p := &fakePool{failAt: -1}
	for i := 0; i < n; i++ {
		p.contexts = append(p.contexts, &fakeContext{})
	}
	return p
}

func (p *fakePool) factory() ports.ContextFactory {
	return ports.ContextFactoryFunc(func(index int) (ports.WorkerContext, error) {
		if index == p.failAt {
			return nil, errors.New("spawn failed")
		}
		p.created++
		return p.contexts[index], nil
	})
}

func TestAllocate_RoundRobin(t *testing.T) {
	pool := newFakePool(3)
	d := dispatch.New(pool.factory(), 3)
	if pool.created != 0 {
		t.Fatal("contexts must be created lazily")
	}

	for i := 0; i < 7; i++ {
		w, err := d.Allocate("echo", map[string]any{"n": i})
		if err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
		if w.ID() != i {
			t.Errorf("id = %d, want %d", w.ID(), i)
		}
		if w.ContextIndex() != i%3 {
			t.Errorf("worker %d bound to context %d, want %d", i, w.ContextIndex(), i%3)
		}
	}
	if pool.created != 3 {
		t.Errorf("created %d contexts, want 3", pool.created)
	}

	first := pool.contexts[0].messages()
	if len(first) != 3 {
		t.Fatalf("context 0 got %d messages, want 3", len(first))
	}
	m := first[1]
	if m.Type != domain.MessageCreatePooledWorker || m.PooledWorkerID != domain.NoPooledWorker {
		t.Fatalf("unexpected message %+v", m)
	}
	data := m.Data.(map[string]any)
	if data["pooledWorkerId"] != 3 || data["bodyURL"] != "echo" {
		t.Errorf("unexpected create data %v", data)
	}
	if opts := data["options"].(map[string]any); opts["n"] != 3 {
		t.Errorf("unexpected options %v", opts)
	}
	if d.Allocated() != 7 {
		t.Errorf("allocated = %d", d.Allocated())
	}
}

func TestAllocate_FactoryErrorClosesStartedContexts(t *testing.T) {
	pool := newFakePool(2)
	pool.failAt = 1
	d := dispatch.New(pool.factory(), 2)

	if _, err := d.Allocate("echo", nil); err == nil {
		t.Fatal("expected an error")
	}
	if !pool.contexts[0].closed {
		t.Error("context 0 should have been closed")
	}
}

func TestAllocate_PostError(t *testing.T) {
	pool := newFakePool(1)
	pool.contexts[0].postFn = func(domain.Message) error { return errors.New("broken pipe") }
	d := dispatch.New(pool.factory(), 1)
	if _, err := d.Allocate("echo", nil); err == nil {
		t.Fatal("expected an error")
	}
}

func TestAllocate_FailedPostKeepsCursorAndID(t *testing.T) {
	pool := newFakePool(2)
	failures := 1
	pool.contexts[0].postFn = func(domain.Message) error {
		if failures > 0 {
			failures--
			return errors.New("broken pipe")
		}
		return nil
	}
	d := dispatch.New(pool.factory(), 2)

	if _, err := d.Allocate("echo", nil); err == nil {
		t.Fatal("expected the first allocate to fail")
	}
	if d.Allocated() != 0 {
		t.Errorf("allocated = %d after a failed post, want 0", d.Allocated())
	}

	for i := 0; i < 3; i++ {
		w, err := d.Allocate("echo", nil)
		if err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
		if w.ID() != i || w.ContextIndex() != i%2 {
			t.Errorf("worker %d: id %d on context %d, want context %d", i, w.ID(), w.ContextIndex(), i%2)
		}
	}
	if n := len(pool.contexts[0].messages()); n != 2 {
		t.Errorf("context 0 got %d messages, want 2", n)
	}
}

func TestSend(t *testing.T) {
	pool := newFakePool(2)
	d := dispatch.New(pool.factory(), 2)
	_, _ = d.Allocate("echo", nil)
	w, _ := d.Allocate("echo", nil)

	if err := w.Send("ping", map[string]any{"n": 1}); err != nil {
		t.Fatalf("send: %v", err)
	}
	msgs := pool.contexts[1].messages()
	last := msgs[len(msgs)-1]
	if last.PooledWorkerID != 1 || last.Type != "ping" {
		t.Errorf("unexpected message %+v", last)
	}

	if err := w.Send(domain.MessageTerminatePooledWorker, nil); err == nil {
		t.Error("expected reserved type to be rejected")
	}
}

func TestRouter_Demultiplexes(t *testing.T) {
	pool := newFakePool(1)
	d := dispatch.New(pool.factory(), 1)
	a, _ := d.Allocate("echo", nil)
	b, _ := d.Allocate("echo", nil)

	var gotA, gotB []evented.Event
	a.On("pong", func(ev evented.Event) { gotA = append(gotA, ev) })
	b.On("pong", func(ev evented.Event) { gotB = append(gotB, ev) })

	pool.contexts[0].reply(domain.Message{PooledWorkerID: b.ID(), Type: "pong", Data: map[string]any{"n": 2.0}})
	pool.contexts[0].reply(domain.Message{PooledWorkerID: a.ID(), Type: "pong", Data: "raw"})

	if len(gotA) != 1 || len(gotB) != 1 {
		t.Fatalf("gotA=%d gotB=%d", len(gotA), len(gotB))
	}
	if gotB[0].Data["n"] != 2.0 || gotB[0].Target != b {
		t.Errorf("unexpected event for b: %+v", gotB[0])
	}
	if gotA[0].Data["data"] != "raw" {
		t.Errorf("non-object data should be wrapped, got %v", gotA[0].Data)
	}
}

func TestRouter_UnknownIDIsObservable(t *testing.T) {
	pool := newFakePool(1)
	d := dispatch.New(pool.factory(), 1)
	_, _ = d.Allocate("echo", nil)

	var got evented.Event
	d.On(domain.EventError, func(ev evented.Event) { got = ev })
	pool.contexts[0].reply(domain.Message{PooledWorkerID: 42, Type: "pong"})

	if got.Type != domain.EventError || got.Data["pooledWorkerId"] != 42 {
		t.Errorf("expected an error event for id 42, got %+v", got)
	}
}

func TestTerminate(t *testing.T) {
	pool := newFakePool(1)
	d := dispatch.New(pool.factory(), 1)
	w, _ := d.Allocate("echo", nil)

	fired := false
	w.On("pong", func(evented.Event) { fired = true })
	errFired := false
	d.On(domain.EventError, func(evented.Event) { errFired = true })

	if err := w.Terminate(); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if err := w.Terminate(); err != nil {
		t.Fatalf("second terminate: %v", err)
	}

	msgs := pool.contexts[0].messages()
	var terminates int
	for _, m := range msgs {
		if m.Type == domain.MessageTerminatePooledWorker {
			terminates++
			if id := m.Data.(map[string]any)["pooledWorkerId"]; id != w.ID() {
				t.Errorf("terminate for id %v", id)
			}
		}
	}
	if terminates != 1 {
		t.Errorf("got %d terminate messages, want 1", terminates)
	}

	if err := w.Send("ping", nil); !errors.Is(err, dispatch.ErrTerminated) {
		t.Errorf("send after terminate err = %v", err)
	}

	pool.contexts[0].reply(domain.Message{PooledWorkerID: w.ID(), Type: "pong"})
	if fired || errFired {
		t.Error("late replies to a terminated worker must be dropped quietly")
	}

	next, _ := d.Allocate("echo", nil)
	if next.ID() == w.ID() {
		t.Error("ids must not be reused")
	}
}

func TestClose(t *testing.T) {
	pool := newFakePool(2)
	d := dispatch.New(pool.factory(), 2)
	w, _ := d.Allocate("echo", nil)

	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	for i, c := range pool.contexts {
		if !c.closed {
			t.Errorf("context %d not closed", i)
		}
	}
	if _, err := d.Allocate("echo", nil); !errors.Is(err, dispatch.ErrClosed) {
		t.Errorf("allocate after close err = %v", err)
	}
	if err := w.Send("ping", nil); !errors.Is(err, dispatch.ErrClosed) {
		t.Errorf("send after close err = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestDefaultSize(t *testing.T) {
	if dispatch.DefaultSize() < 1 {
		t.Errorf("default size %d", dispatch.DefaultSize())
	}
	if d := dispatch.New(newFakePool(1).factory(), 0); d.Size() != dispatch.DefaultSize() {
		t.Errorf("size = %d", d.Size())
	}
}
