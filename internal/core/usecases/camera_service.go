package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/mapcam/internal/core/camera"
	"github.com/samirrijal/mapcam/internal/core/domain"
	"github.com/samirrijal/mapcam/internal/core/ports"
	"github.com/samirrijal/mapcam/internal/core/transform"
	"github.com/samirrijal/mapcam/internal/pkg/evented"
	"github.com/samirrijal/mapcam/internal/pkg/frame"
	"github.com/samirrijal/mapcam/internal/pkg/metrics"
	"github.com/samirrijal/mapcam/internal/pkg/telemetry"
)

var tracer = telemetry.Tracer("github.com/samirrijal/mapcam/internal/core/usecases")

// SessionLoop is the goroutine a session's camera lives on.
type SessionLoop interface {
	ports.FrameScheduler
	// Do runs fn on the loop and waits for it.
	Do(fn func()) error
	// Post queues fn on the loop without waiting.
	Post(fn func()) error
	Close()
}

// CameraDefaults fill in the session options a caller leaves out.
type CameraDefaults struct {
	FrameRate         int
	MinZoom           float64
	MaxZoom           float64
	Width             int
	Height            int
	RenderWorldCopies bool
	// SessionTTL is how long, in seconds, snapshots stay in the cache.
	SessionTTL int
}

// Session is one live camera. Its camera is only touched on its loop.
type Session struct {
	ID        string
	CreatedAt time.Time

	loop SessionLoop
	cam  *camera.Camera

	// Touched on the loop only.
	movedAt time.Time
	snapSeq uint64

	snapMu      sync.Mutex
	snapWritten uint64
}

// Events is the session's emitter. Listeners registered on it run on the
// session loop for camera events, and on the dispatcher goroutine for tile
// events.
func (s *Session) Events() *evented.Emitter { return s.cam.Emitter }

// Do runs fn with the session camera on the session loop.
func (s *Session) Do(fn func(cam *camera.Camera)) error {
	if err := s.loop.Do(func() { fn(s.cam) }); err != nil {
		if errors.Is(err, frame.ErrClosed) {
			return domain.ErrSessionNotFound
		}
		return err
	}
	return nil
}

// Post queues fn with the session camera on the session loop.
func (s *Session) Post(fn func(cam *camera.Camera)) error {
	if err := s.loop.Post(func() { fn(s.cam) }); err != nil {
		if errors.Is(err, frame.ErrClosed) {
			return domain.ErrSessionNotFound
		}
		return err
	}
	return nil
}

// CameraService manages camera sessions: it creates them, runs camera
// operations on their loops, relays their events and snapshots them to the
// cache so they can be resumed.
type CameraService struct {
	defaults  CameraDefaults
	views     ports.ViewRepository
	publisher ports.EventPublisher
	cache     ports.CacheService
	newLoop   func() SessionLoop

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewCameraService creates a new CameraService. views, publisher and cache
// may be nil.
func NewCameraService(defaults CameraDefaults, views ports.ViewRepository, publisher ports.EventPublisher, cache ports.CacheService) *CameraService {
	s := &CameraService{
		defaults:  defaults,
		views:     views,
		publisher: publisher,
		cache:     cache,
		sessions:  make(map[string]*Session),
	}
	s.newLoop = func() SessionLoop { return frame.NewLoop(defaults.FrameRate) }
	return s
}

// SetLoopFactory replaces the loop every new session runs on.
func (s *CameraService) SetLoopFactory(fn func() SessionLoop) {
	s.newLoop = fn
}

// Create starts a new session.
func (s *CameraService) Create(ctx context.Context, opts domain.SessionOptions) (domain.CameraState, error) {
	_, span := tracer.Start(ctx, "CameraService.Create")
	defer span.End()

	sess, err := s.start(uuid.NewString(), opts)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.CameraState{}, err
	}
	span.SetAttributes(attribute.String(telemetry.AttrSessionID, sess.ID))
	return s.state(sess)
}

func (s *CameraService) start(id string, opts domain.SessionOptions) (*Session, error) {
	if opts.Width == 0 && opts.Height == 0 {
		opts.Width, opts.Height = s.defaults.Width, s.defaults.Height
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid session options: viewport must have area, got %dx%d", opts.Width, opts.Height)
	}
	if opts.MinZoom == nil {
		opts.MinZoom = &s.defaults.MinZoom
	}
	if opts.MaxZoom == nil {
		opts.MaxZoom = &s.defaults.MaxZoom
	}
	if opts.RenderWorldCopies == nil {
		opts.RenderWorldCopies = &s.defaults.RenderWorldCopies
	}
	tr, err := transform.New(opts)
	if err != nil {
		return nil, fmt.Errorf("invalid session options: %w", err)
	}

	loop := s.newLoop()
	sess := &Session{ID: id, CreatedAt: time.Now(), loop: loop, cam: camera.New(tr, loop)}
	for _, typ := range domain.CameraEvents {
		sess.cam.On(typ, s.relay(sess))
	}

	s.mu.Lock()
	if _, exists := s.sessions[id]; exists {
		s.mu.Unlock()
		loop.Close()
		return nil, fmt.Errorf("session %s already exists", id)
	}
	s.sessions[id] = sess
	s.mu.Unlock()

	metrics.ActiveSessions.Inc()
	slog.Info("camera session started", "session", id, "width", opts.Width, "height", opts.Height)
	_ = sess.Do(func(cam *camera.Camera) { s.snapshot(sess, cam.State()) })
	return sess, nil
}

// relay publishes session events and records animation metrics. It runs on
// the session loop.
func (s *CameraService) relay(sess *Session) evented.Listener {
	return func(ev evented.Event) {
		st := sess.cam.State()
		st.SessionID = sess.ID

		switch ev.Type {
		case domain.EventMoveStart:
			sess.movedAt = st.UpdatedAt
		case domain.EventMoveEnd:
			if !sess.movedAt.IsZero() {
				metrics.AnimationDuration.WithLabelValues(kindOf(ev.Data)).Observe(st.UpdatedAt.Sub(sess.movedAt).Seconds())
				sess.movedAt = time.Time{}
			}
			s.snapshot(sess, st)
		}

		if s.publisher == nil {
			return
		}
		event := &domain.CameraEvent{Type: ev.Type, SessionID: sess.ID, State: st, Data: ev.Data}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.publisher.PublishCameraEvent(ctx, event); err != nil {
			slog.Warn("publish camera event", "session", sess.ID, "type", ev.Type, "error", err)
		}
	}
}

func kindOf(data map[string]any) string {
	if k, ok := data["kind"].(string); ok {
		return k
	}
	return "jump"
}

// snapshot stores st in the cache in the background. It runs on the session
// loop.
func (s *CameraService) snapshot(sess *Session, st domain.CameraState) {
	if s.cache == nil {
		return
	}
	st.SessionID = sess.ID
	data, err := json.Marshal(st)
	if err != nil {
		return
	}
	sess.snapSeq++
	seq := sess.snapSeq
	go func() {
		sess.snapMu.Lock()
		defer sess.snapMu.Unlock()
		// A newer snapshot already landed.
		if seq < sess.snapWritten {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.cache.Set(ctx, snapshotKey(sess.ID), data, s.defaults.SessionTTL); err != nil {
			slog.Warn("cache session snapshot", "session", sess.ID, "error", err)
			return
		}
		sess.snapWritten = seq
	}()
}

func snapshotKey(id string) string { return "session:" + id }

// Get returns a live session.
func (s *CameraService) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// Len is the number of live sessions.
func (s *CameraService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// State returns a snapshot of the session's camera.
func (s *CameraService) State(ctx context.Context, id string) (domain.CameraState, error) {
	sess, err := s.Get(id)
	if err != nil {
		return domain.CameraState{}, err
	}
	return s.state(sess)
}

func (s *CameraService) state(sess *Session) (domain.CameraState, error) {
	var st domain.CameraState
	err := sess.Do(func(cam *camera.Camera) { st = cam.State() })
	st.SessionID = sess.ID
	return st, err
}

// Delete stops and removes a session.
func (s *CameraService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}

	_ = sess.Do(func(cam *camera.Camera) { cam.Stop() })
	sess.loop.Close()
	metrics.ActiveSessions.Dec()
	if s.cache != nil {
		_ = s.cache.Delete(ctx, snapshotKey(id))
	}
	slog.Info("camera session closed", "session", id)
	return nil
}

// Close removes every session.
func (s *CameraService) Close() {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	for _, id := range ids {
		_ = s.Delete(context.Background(), id)
	}
}

// Resume returns the session's state, restarting it from its cached
// snapshot when it is not live on this instance.
func (s *CameraService) Resume(ctx context.Context, id string) (domain.CameraState, error) {
	if sess, err := s.Get(id); err == nil {
		return s.state(sess)
	}
	if s.cache == nil {
		return domain.CameraState{}, domain.ErrSessionNotFound
	}

	data, err := s.cache.Get(ctx, snapshotKey(id))
	if errors.Is(err, ports.ErrCacheMiss) {
		metrics.CacheMisses.WithLabelValues("session").Inc()
		return domain.CameraState{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.CameraState{}, fmt.Errorf("load snapshot: %w", err)
	}
	metrics.CacheHits.WithLabelValues("session").Inc()

	var st domain.CameraState
	if err := json.Unmarshal(data, &st); err != nil {
		return domain.CameraState{}, fmt.Errorf("decode snapshot: %w", err)
	}
	minZoom, maxZoom := st.MinZoom, st.MaxZoom
	sess, err := s.start(id, domain.SessionOptions{
		Width:   st.Width,
		Height:  st.Height,
		Center:  st.Center,
		Zoom:    st.Zoom,
		Bearing: st.Bearing,
		Pitch:   st.Pitch,
		MinZoom: &minZoom,
		MaxZoom: &maxZoom,

		RenderWorldCopies: &st.RenderWorldCopies,
		MaxBounds:         st.MaxBounds,
	})
	if err != nil {
		return domain.CameraState{}, err
	}
	return s.state(sess)
}

// do runs op on the session camera inside a span and returns the state
// right after it.
func (s *CameraService) do(ctx context.Context, id, op string, fn func(cam *camera.Camera)) (domain.CameraState, error) {
	_, span := tracer.Start(ctx, "CameraService."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.AttrSessionID, id),
		attribute.String(telemetry.AttrOperation, op),
	)

	sess, err := s.Get(id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.CameraState{}, err
	}

	var st domain.CameraState
	err = sess.Do(func(cam *camera.Camera) {
		if active := cam.ActiveSession(); active != nil {
			metrics.AnimationsInterrupted.WithLabelValues(active.Kind).Inc()
		}
		fn(cam)
		if active := cam.ActiveSession(); active != nil {
			metrics.AnimationsStarted.WithLabelValues(active.Kind).Inc()
		}
		st = cam.State()
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.CameraState{}, err
	}
	st.SessionID = id
	return st, nil
}

// withKind tags event data with the transition kind for metrics.
func withKind(data domain.EventData, kind string) domain.EventData {
	out := make(domain.EventData, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out["kind"] = kind
	return out
}

func (s *CameraService) JumpTo(ctx context.Context, id string, opts domain.CameraOptions, data domain.EventData) (domain.CameraState, error) {
	return s.do(ctx, id, "JumpTo", func(cam *camera.Camera) { cam.JumpTo(opts, data) })
}

func (s *CameraService) EaseTo(ctx context.Context, id string, opts domain.CameraOptions, anim domain.AnimationOptions, data domain.EventData) (domain.CameraState, error) {
	return s.do(ctx, id, "EaseTo", func(cam *camera.Camera) { cam.EaseTo(opts, anim, withKind(data, camera.KindEase)) })
}

func (s *CameraService) FlyTo(ctx context.Context, id string, opts domain.FlyToOptions, data domain.EventData) (domain.CameraState, error) {
	return s.do(ctx, id, "FlyTo", func(cam *camera.Camera) { cam.FlyTo(opts, withKind(data, camera.KindFly)) })
}

// FitBounds reports false when the bounds cannot be shown with the given
// padding; the camera is left untouched then.
func (s *CameraService) FitBounds(ctx context.Context, id string, b domain.LngLatBounds, opts domain.FitBoundsOptions, data domain.EventData) (domain.CameraState, bool, error) {
	ok := false
	st, err := s.do(ctx, id, "FitBounds", func(cam *camera.Camera) {
		if _, ok = cam.CameraForBounds(b, opts); ok {
			kind := camera.KindFly
			if opts.Linear {
				kind = camera.KindEase
			}
			cam.FitBounds(b, opts, withKind(data, kind))
		}
	})
	return st, ok, err
}

func (s *CameraService) PanBy(ctx context.Context, id string, offset domain.Point, anim domain.AnimationOptions, data domain.EventData) (domain.CameraState, error) {
	return s.do(ctx, id, "PanBy", func(cam *camera.Camera) { cam.PanBy(offset, anim, withKind(data, camera.KindEase)) })
}

func (s *CameraService) ZoomTo(ctx context.Context, id string, zoom float64, around *domain.LngLat, anim domain.AnimationOptions, data domain.EventData) (domain.CameraState, error) {
	return s.do(ctx, id, "ZoomTo", func(cam *camera.Camera) { cam.ZoomTo(zoom, around, anim, withKind(data, camera.KindEase)) })
}

func (s *CameraService) RotateTo(ctx context.Context, id string, bearing float64, anim domain.AnimationOptions, data domain.EventData) (domain.CameraState, error) {
	return s.do(ctx, id, "RotateTo", func(cam *camera.Camera) { cam.RotateTo(bearing, anim, withKind(data, camera.KindEase)) })
}

func (s *CameraService) ResetNorth(ctx context.Context, id string, anim domain.AnimationOptions, data domain.EventData) (domain.CameraState, error) {
	return s.do(ctx, id, "ResetNorth", func(cam *camera.Camera) { cam.ResetNorth(anim, withKind(data, camera.KindEase)) })
}

func (s *CameraService) Stop(ctx context.Context, id string) (domain.CameraState, error) {
	return s.do(ctx, id, "Stop", func(cam *camera.Camera) { cam.Stop() })
}

// Resize changes the viewport size. The running transition is stopped first.
func (s *CameraService) Resize(ctx context.Context, id string, width, height int) (domain.CameraState, error) {
	if width <= 0 || height <= 0 {
		return domain.CameraState{}, fmt.Errorf("invalid size %dx%d", width, height)
	}
	return s.do(ctx, id, "Resize", func(cam *camera.Camera) {
		cam.Stop()
		cam.Transform().Resize(width, height)
		cam.JumpTo(domain.CameraOptions{}, domain.EventData{"resize": true})
	})
}

func (s *CameraService) Bounds(ctx context.Context, id string) (domain.LngLatBounds, error) {
	sess, err := s.Get(id)
	if err != nil {
		return domain.LngLatBounds{}, err
	}
	var b domain.LngLatBounds
	err = sess.Do(func(cam *camera.Camera) { b = cam.GetBounds() })
	return b, err
}

// FlyToView flies the session to a saved view.
func (s *CameraService) FlyToView(ctx context.Context, id, viewID string) (domain.CameraState, error) {
	view, err := s.view(ctx, viewID)
	if err != nil {
		return domain.CameraState{}, err
	}
	return s.FlyTo(ctx, id, domain.FlyToOptions{CameraOptions: view.CameraOptions()}, domain.EventData{"view": viewID})
}

// FlyToViewAndWait flies to a saved view and waits for the flight to end,
// however it ends.
func (s *CameraService) FlyToViewAndWait(ctx context.Context, id, viewID string) (domain.CameraState, error) {
	view, err := s.view(ctx, viewID)
	if err != nil {
		return domain.CameraState{}, err
	}
	sess, err := s.Get(id)
	if err != nil {
		return domain.CameraState{}, err
	}

	ended := make(chan struct{})
	err = sess.Do(func(cam *camera.Camera) {
		cam.FlyTo(domain.FlyToOptions{CameraOptions: view.CameraOptions()}, domain.EventData{"view": viewID, "kind": camera.KindFly})
		if !cam.IsMoving() {
			close(ended)
			return
		}
		cam.Once(domain.EventMoveEnd, func(evented.Event) { close(ended) })
	})
	if err != nil {
		return domain.CameraState{}, err
	}

	select {
	case <-ended:
	case <-ctx.Done():
		return domain.CameraState{}, ctx.Err()
	}
	return s.State(ctx, id)
}

func (s *CameraService) view(ctx context.Context, viewID string) (*domain.SavedView, error) {
	ctx, span := tracer.Start(ctx, "CameraService.view")
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrViewID, viewID))

	if s.views == nil {
		return nil, domain.ErrViewNotFound
	}
	v, err := s.views.GetByID(ctx, viewID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return v, err
}

// SubscribeCameraEvents delivers a session's camera events to handler on a
// goroutine of its own, implementing ports.EventSubscriber without a broker.
// Events are dropped when handler falls more than a buffer behind.
func (s *CameraService) SubscribeCameraEvents(ctx context.Context, id string, handler func(ctx context.Context, event *domain.CameraEvent) error) (func(), error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	events := make(chan *domain.CameraEvent, 256)
	done := make(chan struct{})
	var ids []evented.ListenerID
	err = sess.Do(func(cam *camera.Camera) {
		for _, typ := range domain.CameraEvents {
			ids = append(ids, cam.On(typ, func(ev evented.Event) {
				st := cam.State()
				st.SessionID = id
				select {
				case events <- &domain.CameraEvent{Type: ev.Type, SessionID: id, State: st, Data: ev.Data}:
				default:
					slog.Debug("camera event dropped for slow subscriber", "session", id, "type", ev.Type)
				}
			}))
		}
	})
	if err != nil {
		return nil, err
	}

	go func() {
		for {
			select {
			case ev := <-events:
				_ = handler(ctx, ev)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = sess.Do(func(cam *camera.Camera) {
				for i, typ := range domain.CameraEvents {
					cam.Off(typ, ids[i])
				}
			})
			close(done)
		})
	}, nil
}
