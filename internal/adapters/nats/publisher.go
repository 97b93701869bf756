package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/mapcam/internal/core/domain"
)

const cameraStream = "CAMERA_EVENTS"

// CameraSubject is the subject a session's event of type typ is published
// on. Use "*" or ">" wildcards to subscribe to several.
func CameraSubject(sessionID, typ string) string {
	return "mapcam.camera." + sessionID + "." + typ
}

// Publisher implements ports.EventPublisher on NATS. Every event goes out on
// core NATS; the CAMERA_EVENTS stream keeps the last event of each type per
// session so late subscribers can catch up. End events are published through
// JetStream and acknowledged.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher enables JetStream on conn and ensures the camera stream exists.
func NewPublisher(conn *nats.Conn) (*Publisher, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:              cameraStream,
		Subjects:          []string{"mapcam.camera.>"},
		Retention:         nats.LimitsPolicy,
		MaxMsgsPerSubject: 1,
		MaxAge:            1 * time.Hour,
		Storage:           nats.MemoryStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist; try update.
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}
	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishCameraEvent(ctx context.Context, event *domain.CameraEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	subject := CameraSubject(event.SessionID, event.Type)
	switch event.Type {
	case domain.EventMoveEnd, domain.EventZoomEnd, domain.EventPitchEnd:
		_, err = p.js.Publish(subject, data, nats.Context(ctx))
		return err
	}
	return p.conn.Publish(subject, data)
}

// Subscriber implements ports.EventSubscriber with core NATS subscriptions.
type Subscriber struct {
	conn *nats.Conn
}

func NewSubscriber(conn *nats.Conn) *Subscriber {
	return &Subscriber{conn: conn}
}

func (s *Subscriber) SubscribeCameraEvents(ctx context.Context, sessionID string, handler func(ctx context.Context, event *domain.CameraEvent) error) (func(), error) {
	sub, err := s.conn.Subscribe(CameraSubject(sessionID, "*"), func(msg *nats.Msg) {
		var event domain.CameraEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return
		}
		_ = handler(ctx, &event)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe camera events: %w", err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}
