package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/mapcam/internal/core/camera"
	"github.com/samirrijal/mapcam/internal/core/dispatch"
	"github.com/samirrijal/mapcam/internal/core/domain"
	"github.com/samirrijal/mapcam/internal/jobs"
	"github.com/samirrijal/mapcam/internal/pkg/codec"
	"github.com/samirrijal/mapcam/internal/pkg/evented"
	"github.com/samirrijal/mapcam/internal/pkg/metrics"
	"github.com/samirrijal/mapcam/internal/pkg/telemetry"
)

type tileAttachment struct {
	worker   *dispatch.PooledWorker
	listener evented.ListenerID
}

// TileService loads the tiles covering a session's viewport each time the
// camera comes to rest. Loads run in a tile-loader pooled worker; results
// are fired on the session as tileload and tileerror events.
type TileService struct {
	pool     *dispatch.Dispatcher
	cameras  *CameraService
	maxTiles int

	mu       sync.Mutex
	attached map[string]*tileAttachment
}

// NewTileService creates a new TileService. maxTiles caps the tiles
// requested per moveend; 0 means no cap.
func NewTileService(pool *dispatch.Dispatcher, cameras *CameraService, maxTiles int) *TileService {
	return &TileService{pool: pool, cameras: cameras, maxTiles: maxTiles, attached: make(map[string]*tileAttachment)}
}

// Attach starts loading tiles for a session, beginning with its current
// viewport. Attaching twice does nothing.
func (s *TileService) Attach(ctx context.Context, sessionID string) error {
	_, span := tracer.Start(ctx, "TileService.Attach")
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.AttrSessionID, sessionID),
		attribute.String(telemetry.AttrBody, jobs.TileLoaderBody),
	)

	sess, err := s.cameras.Get(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attached[sessionID]; ok {
		return nil
	}

	w, err := s.pool.Allocate(jobs.TileLoaderBody, nil)
	if err != nil {
		return fmt.Errorf("allocate tile loader: %w", err)
	}
	w.On(jobs.MsgTile, s.relay(sess, domain.EventTileLoad))
	w.On(jobs.MsgTileError, s.relay(sess, domain.EventTileError))
	w.On(domain.EventError, s.relay(sess, domain.EventTileError))

	a := &tileAttachment{worker: w}
	err = sess.Do(func(cam *camera.Camera) {
		a.listener = cam.On(domain.EventMoveEnd, func(evented.Event) { s.request(sessionID, cam, w) })
		s.request(sessionID, cam, w)
	})
	if err != nil {
		_ = w.Terminate()
		return err
	}
	s.attached[sessionID] = a
	slog.Debug("tile loader attached", "session", sessionID, "worker", w.ID())
	return nil
}

// request sends one loadTile job per covering tile. It runs on the session
// loop.
func (s *TileService) request(sessionID string, cam *camera.Camera, w *dispatch.PooledWorker) {
	tr := cam.Transform()
	z := int(math.Floor(tr.Zoom()))
	for _, t := range tr.CoveringTiles(z, s.maxTiles) {
		job := domain.TileJob{Z: int(t.Z), X: int(t.X), Y: int(t.Y)}
		if err := w.Send(jobs.MsgLoadTile, job); err != nil {
			slog.Debug("tile request dropped", "session", sessionID, "error", err)
			return
		}
		metrics.TilesRequested.Inc()
	}
}

// relay re-fires a worker reply on the session loop as typ.
func (s *TileService) relay(sess *Session, typ string) evented.Listener {
	return func(ev evented.Event) {
		var reply jobs.TileReply
		if err := codec.Decode(ev.Data, &reply); err != nil {
			slog.Warn("undecodable tile reply", "session", sess.ID, "error", err)
		}
		if typ == domain.EventTileLoad {
			metrics.TilesLoaded.WithLabelValues("ok").Inc()
			metrics.TileBytes.Observe(float64(reply.Size))
		} else {
			metrics.TilesLoaded.WithLabelValues("error").Inc()
		}

		data := map[string]any{"z": reply.Z, "x": reply.X, "y": reply.Y}
		if reply.Size > 0 {
			data["size"] = reply.Size
		}
		if typ == domain.EventTileError {
			msg := reply.Error
			if msg == "" {
				msg, _ = ev.Data["error"].(string)
			}
			data["error"] = msg
		}
		_ = sess.Post(func(cam *camera.Camera) { cam.Fire(typ, data) })
	}
}

// Detach stops loading tiles for a session and releases its worker.
func (s *TileService) Detach(sessionID string) error {
	s.mu.Lock()
	a, ok := s.attached[sessionID]
	delete(s.attached, sessionID)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	if sess, err := s.cameras.Get(sessionID); err == nil {
		_ = sess.Do(func(cam *camera.Camera) { cam.Off(domain.EventMoveEnd, a.listener) })
	}
	return a.worker.Terminate()
}

// Attached reports whether tiles are loaded for a session.
func (s *TileService) Attached(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.attached[sessionID]
	return ok
}

// Close detaches every session.
func (s *TileService) Close() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.attached))
	for id := range s.attached {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		_ = s.Detach(id)
	}
}
