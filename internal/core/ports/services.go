package ports

import (
	"context"
	"errors"
	"time"

	"github.com/samirrijal/mapcam/internal/core/domain"
)

// FrameScheduler drives camera animations. Callbacks run on the scheduler's
// own goroutine, one at a time.
type FrameScheduler interface {
	Now() time.Time
	// RequestFrame runs fn once on the next frame. The returned function
	// cancels the request if it has not run yet.
	RequestFrame(fn func(now time.Time)) (cancel func())
	// AfterFunc runs fn once after d.
	AfterFunc(d time.Duration, fn func()) (cancel func())
}

// WorkerContext is one real background execution context. Messages posted
// to it must be delivered in the order they were posted.
type WorkerContext interface {
	PostMessage(m domain.Message) error
	// OnMessage installs the handler for messages coming back from the
	// context. It replaces any previous handler.
	OnMessage(fn func(domain.Message))
	Close() error
}

// ContextFactory creates the real contexts of a worker pool.
type ContextFactory interface {
	NewContext(index int) (WorkerContext, error)
}

// ContextFactoryFunc adapts a function to ContextFactory.
type ContextFactoryFunc func(index int) (WorkerContext, error)

func (f ContextFactoryFunc) NewContext(index int) (WorkerContext, error) { return f(index) }

// EventPublisher publishes camera events to a message broker.
type EventPublisher interface {
	PublishCameraEvent(ctx context.Context, event *domain.CameraEvent) error
}

// EventSubscriber subscribes to camera events from a message broker.
type EventSubscriber interface {
	SubscribeCameraEvents(ctx context.Context, sessionID string, handler func(ctx context.Context, event *domain.CameraEvent) error) (unsubscribe func(), err error)
}

// ErrCacheMiss is returned by CacheService.Get for absent keys.
var ErrCacheMiss = errors.New("cache miss")

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// TileSource reads encoded tiles by coordinate.
type TileSource interface {
	ReadTile(ctx context.Context, z, x, y int) ([]byte, error)
	Close() error
}

// TourRunner starts camera tours.
type TourRunner interface {
	StartTour(ctx context.Context, tour domain.Tour) (runID string, err error)
}
