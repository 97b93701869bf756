package usecases_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/mapcam/internal/core/domain"
	"github.com/samirrijal/mapcam/internal/core/ports"
	"github.com/samirrijal/mapcam/internal/core/usecases"
	"github.com/samirrijal/mapcam/internal/pkg/frame"
)

// --- Manual session loop ---

// manualLoop runs work inline under a lock and only animates when the test
// ticks it.
type manualLoop struct {
	mu     sync.Mutex
	m      *frame.Manual
	closed bool
}

func (l *manualLoop) Now() time.Time { return l.m.Now() }

func (l *manualLoop) RequestFrame(fn func(time.Time)) func() { return l.m.RequestFrame(fn) }

func (l *manualLoop) AfterFunc(d time.Duration, fn func()) func() { return l.m.AfterFunc(d, fn) }

func (l *manualLoop) Do(fn func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return frame.ErrClosed
	}
	fn()
	return nil
}

func (l *manualLoop) Post(fn func()) error { return l.Do(fn) }

func (l *manualLoop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
}

// settle ticks until nothing is scheduled.
func (l *manualLoop) settle() {
	for i := 0; i < 1000; i++ {
		l.mu.Lock()
		idle := l.m.Pending() == 0
		if !idle {
			l.m.Tick(16 * time.Millisecond)
		}
		l.mu.Unlock()
		if idle {
			return
		}
	}
}

type loops struct {
	mu  sync.Mutex
	all []*manualLoop
}

func (ls *loops) last() *manualLoop {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.all[len(ls.all)-1]
}

var testDefaults = usecases.CameraDefaults{
	FrameRate:         60,
	MinZoom:           0,
	MaxZoom:           22,
	Width:             512,
	Height:            512,
	RenderWorldCopies: true,
	SessionTTL:        60,
}

func newCameraService(t *testing.T, views ports.ViewRepository, pub ports.EventPublisher, cache ports.CacheService) (*usecases.CameraService, *loops) {
	t.Helper()
	svc := usecases.NewCameraService(testDefaults, views, pub, cache)
	ls := &loops{}
	svc.SetLoopFactory(func() usecases.SessionLoop {
		l := &manualLoop{m: frame.NewManual(time.Unix(0, 0))}
		ls.mu.Lock()
		ls.all = append(ls.all, l)
		ls.mu.Unlock()
		return l
	})
	t.Cleanup(svc.Close)
	return svc, ls
}

// --- Mock ViewRepository ---

type mockViewRepo struct {
	createFn  func(ctx context.Context, view *domain.SavedView) error
	getByIDFn func(ctx context.Context, id string) (*domain.SavedView, error)
	listFn    func(ctx context.Context, limit, offset int) ([]domain.SavedView, error)
	countFn   func(ctx context.Context) (int, error)
	deleteFn  func(ctx context.Context, id string) error
}

func (m *mockViewRepo) Create(ctx context.Context, view *domain.SavedView) error {
	if m.createFn != nil {
		return m.createFn(ctx, view)
	}
	return nil
}

func (m *mockViewRepo) GetByID(ctx context.Context, id string) (*domain.SavedView, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrViewNotFound
}

func (m *mockViewRepo) List(ctx context.Context, limit, offset int) ([]domain.SavedView, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return nil, nil
}

func (m *mockViewRepo) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}

func (m *mockViewRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu     sync.Mutex
	events []*domain.CameraEvent
}

func (m *mockPublisher) PublishCameraEvent(ctx context.Context, event *domain.CameraEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockPublisher) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string][]byte)} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mockCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

// eventually polls cond for up to a second.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
