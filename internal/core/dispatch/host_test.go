package dispatch_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/samirrijal/mapcam/internal/core/dispatch"
	"github.com/samirrijal/mapcam/internal/core/domain"
	"github.com/samirrijal/mapcam/internal/pkg/evented"
)

func newTestHost(t *testing.T) (*dispatch.Host, *fakeContext, *[]string) {
	t.Helper()
	var terminated []string
	bodies := dispatch.NewBodies()
	bodies.Register("echo", func(w *dispatch.HostedWorker, options map[string]any) error {
		prefix, _ := options["prefix"].(string)
		w.On("ping", func(ev evented.Event) {
			_ = w.Send("pong", map[string]any{"msg": prefix + ev.Data["msg"].(string)})
		})
		w.OnTerminate(func() { terminated = append(terminated, w.Body()) })
		return nil
	})
	bodies.Register("broken", func(*dispatch.HostedWorker, map[string]any) error {
		return errors.New("no tiles configured")
	})

	ep := &fakeContext{}
	return dispatch.NewHost(ep, bodies), ep, &terminated
}

func TestHost_RunsBody(t *testing.T) {
	h, ep, _ := newTestHost(t)
	ep.reply(domain.CreatePooledWorker(7, "echo", map[string]any{"prefix": ">"}))
	ep.reply(domain.Message{PooledWorkerID: 7, Type: "ping", Data: map[string]any{"msg": "hi"}})

	if h.Len() != 1 {
		t.Fatalf("len = %d", h.Len())
	}
	got := ep.messages()
	want := []domain.Message{{PooledWorkerID: 7, Type: "pong", Data: map[string]any{"msg": ">hi"}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("replies = %+v, want %+v", got, want)
	}
}

func TestHost_UnknownBody(t *testing.T) {
	h, ep, _ := newTestHost(t)
	ep.reply(domain.CreatePooledWorker(1, "missing", nil))

	got := ep.messages()
	if len(got) != 1 || got[0].Type != domain.MessageError || got[0].PooledWorkerID != 1 {
		t.Fatalf("expected an error reply, got %+v", got)
	}
	if h.Len() != 0 {
		t.Error("unknown body must not register a worker")
	}
}

func TestHost_BodyError(t *testing.T) {
	h, ep, _ := newTestHost(t)
	ep.reply(domain.CreatePooledWorker(2, "broken", nil))
	got := ep.messages()
	if len(got) != 1 || got[0].Type != domain.MessageError {
		t.Fatalf("expected an error reply, got %+v", got)
	}
	if h.Len() != 0 {
		t.Error("failed body must not stay registered")
	}
}

func TestHost_UnknownID(t *testing.T) {
	_, ep, _ := newTestHost(t)
	ep.reply(domain.Message{PooledWorkerID: 9, Type: "ping", Data: map[string]any{"msg": "x"}})
	got := ep.messages()
	if len(got) != 1 || got[0].Type != domain.MessageError || got[0].PooledWorkerID != 9 {
		t.Fatalf("expected an error reply for id 9, got %+v", got)
	}
	if data := got[0].Data.(map[string]any); data["messageType"] != "ping" {
		t.Errorf("unexpected error data %v", data)
	}
}

func TestHost_Terminate(t *testing.T) {
	h, ep, terminated := newTestHost(t)
	ep.reply(domain.CreatePooledWorker(3, "echo", nil))
	ep.reply(domain.CreatePooledWorker(4, "echo", nil))
	ep.reply(domain.TerminatePooledWorker(3))

	if h.Len() != 1 {
		t.Errorf("len = %d, want 1", h.Len())
	}
	if len(*terminated) != 1 {
		t.Errorf("terminate hooks ran %d times", len(*terminated))
	}

	_ = h.Close()
	if h.Len() != 0 || len(*terminated) != 2 {
		t.Errorf("close left len=%d hooks=%d", h.Len(), len(*terminated))
	}
}

func TestBodies_Names(t *testing.T) {
	b := dispatch.NewBodies()
	b.Register("tile-loader", nil)
	b.Register("echo", nil)
	if got := b.Names(); !reflect.DeepEqual(got, []string{"echo", "tile-loader"}) {
		t.Errorf("names = %v", got)
	}
	if _, ok := b.Lookup("nope"); ok {
		t.Error("unexpected body")
	}
}
