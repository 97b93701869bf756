package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samirrijal/mapcam/internal/adapters/inproc"
	"github.com/samirrijal/mapcam/internal/core/dispatch"
	"github.com/samirrijal/mapcam/internal/core/domain"
	"github.com/samirrijal/mapcam/internal/core/ports"
	"github.com/samirrijal/mapcam/internal/jobs"
	"github.com/samirrijal/mapcam/internal/pkg/evented"
)

type mockTileSource struct {
	readFn func(ctx context.Context, z, x, y int) ([]byte, error)
}

func (m *mockTileSource) ReadTile(ctx context.Context, z, x, y int) ([]byte, error) {
	return m.readFn(ctx, z, x, y)
}

func (m *mockTileSource) Close() error { return nil }

func newDispatcher(t *testing.T, source ports.TileSource) *dispatch.Dispatcher {
	t.Helper()
	bodies := dispatch.NewBodies()
	jobs.Register(bodies, source)
	d := dispatch.New(inproc.NewFactory(func(_ int, bg ports.WorkerContext) error {
		dispatch.NewHost(bg, bodies)
		return nil
	}), 2)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func waitEvent(t *testing.T, ch <-chan evented.Event) evented.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a reply")
	}
	return evented.Event{}
}

func TestTileLoader(t *testing.T) {
	source := &mockTileSource{readFn: func(_ context.Context, z, x, y int) ([]byte, error) {
		if z == 3 && x == 1 && y == 2 {
			return make([]byte, 128), nil
		}
		return nil, errors.New("tile does not exist")
	}}
	d := newDispatcher(t, source)

	w, err := d.Allocate(jobs.TileLoaderBody, nil)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	tiles := make(chan evented.Event, 1)
	failures := make(chan evented.Event, 1)
	w.On(jobs.MsgTile, func(ev evented.Event) { tiles <- ev })
	w.On(jobs.MsgTileError, func(ev evented.Event) { failures <- ev })

	if err := w.Send(jobs.MsgLoadTile, domain.TileJob{Z: 3, X: 1, Y: 2}); err != nil {
		t.Fatalf("send: %v", err)
	}
	ev := waitEvent(t, tiles)
	if ev.Data["size"] != 128.0 || ev.Data["z"] != 3.0 {
		t.Errorf("unexpected tile reply %v", ev.Data)
	}

	_ = w.Send(jobs.MsgLoadTile, domain.TileJob{Z: 3, X: 0, Y: 0})
	ev = waitEvent(t, failures)
	if ev.Data["error"] != "tile does not exist" {
		t.Errorf("unexpected failure %v", ev.Data)
	}
}

func TestTileLoader_NoSource(t *testing.T) {
	d := newDispatcher(t, nil)
	errs := make(chan evented.Event, 1)
	d.On(domain.EventError, func(ev evented.Event) { errs <- ev })

	w, err := d.Allocate(jobs.TileLoaderBody, nil)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	ev := waitEvent(t, errs)
	if ev.Data["pooledWorkerId"] != w.ID() || ev.Data["messageType"] != domain.MessageCreatePooledWorker {
		t.Errorf("unexpected error %v", ev.Data)
	}
}

func TestEcho(t *testing.T) {
	d := newDispatcher(t, nil)
	w, _ := d.Allocate(jobs.EchoBody, nil)
	replies := make(chan evented.Event, 1)
	w.On(jobs.MsgEcho, func(ev evented.Event) { replies <- ev })

	_ = w.Send(jobs.MsgEcho, map[string]any{"hello": "world"})
	if ev := waitEvent(t, replies); ev.Data["hello"] != "world" {
		t.Errorf("unexpected echo %v", ev.Data)
	}
}
