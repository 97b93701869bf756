package natsadapter

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/mapcam/internal/core/domain"
	"github.com/samirrijal/mapcam/internal/core/ports"
	"github.com/samirrijal/mapcam/internal/pkg/codec"
	"github.com/samirrijal/mapcam/internal/pkg/metrics"
)

var ErrClosed = errors.New("nats context closed")

// Transport creates worker contexts served by remote processes. Context i
// publishes jobs on <prefix>.<i>.in and listens for replies on
// <prefix>.<i>.out. Core NATS keeps per-publisher order, which is the order
// the dispatcher relies on.
type Transport struct {
	conn   *nats.Conn
	prefix string
}

func NewTransport(conn *nats.Conn, prefix string) *Transport {
	return &Transport{conn: conn, prefix: prefix}
}

func (t *Transport) NewContext(index int) (ports.WorkerContext, error) {
	return newSubjectContext(t.conn, inSubject(t.prefix, index), outSubject(t.prefix, index))
}

// subjectContext publishes on one subject and receives on another. It serves
// both ends: the dispatcher side and, with the subjects swapped, the worker
// side.
type subjectContext struct {
	conn    *nats.Conn
	publish string
	sub     *nats.Subscription

	mu      sync.Mutex
	handler func(domain.Message)
	closed  bool
}

func newSubjectContext(conn *nats.Conn, publish, receive string) (*subjectContext, error) {
	c := &subjectContext{conn: conn, publish: publish}
	sub, err := conn.Subscribe(receive, c.receive)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", receive, err)
	}
	c.sub = sub
	return c, nil
}

func (c *subjectContext) receive(msg *nats.Msg) {
	m, err := codec.Unmarshal(msg.Data)
	if err != nil {
		metrics.DispatchDropped.WithLabelValues("decode").Inc()
		slog.Warn("undecodable worker message", "subject", msg.Subject, "error", err)
		return
	}
	c.mu.Lock()
	fn := c.handler
	c.mu.Unlock()
	if fn == nil {
		metrics.DispatchDropped.WithLabelValues("unhandled").Inc()
		slog.Warn("worker message before handler", "subject", msg.Subject, "type", m.Type)
		return
	}
	fn(m)
}

func (c *subjectContext) PostMessage(m domain.Message) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	b, err := codec.Marshal(m)
	if err != nil {
		return err
	}
	return c.conn.Publish(c.publish, b)
}

func (c *subjectContext) OnMessage(fn func(domain.Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = fn
}

func (c *subjectContext) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.sub.Unsubscribe()
}
