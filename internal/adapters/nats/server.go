package natsadapter

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/mapcam/internal/core/dispatch"
)

// ContextServer is the worker-process side of Transport: it hosts the
// pooled workers of contexts 0..n-1.
type ContextServer struct {
	conn   *nats.Conn
	prefix string
	bodies *dispatch.Bodies

	hosts    []*dispatch.Host
	contexts []*subjectContext
}

func NewContextServer(conn *nats.Conn, prefix string, bodies *dispatch.Bodies) *ContextServer {
	return &ContextServer{conn: conn, prefix: prefix, bodies: bodies}
}

// Serve starts hosting n contexts. It returns once the subscriptions are
// registered with the server.
func (s *ContextServer) Serve(n int) error {
	for i := 0; i < n; i++ {
		c, err := newSubjectContext(s.conn, outSubject(s.prefix, i), inSubject(s.prefix, i))
		if err != nil {
			_ = s.Close()
			return err
		}
		s.contexts = append(s.contexts, c)
		s.hosts = append(s.hosts, dispatch.NewHost(c, s.bodies))
	}
	if err := s.conn.Flush(); err != nil {
		_ = s.Close()
		return fmt.Errorf("flush subscriptions: %w", err)
	}
	slog.Info("serving worker contexts", "count", n, "prefix", s.prefix, "bodies", s.bodies.Names())
	return nil
}

// Close stops every context and terminates their workers.
func (s *ContextServer) Close() error {
	var errs []error
	for _, c := range s.contexts {
		errs = append(errs, c.Close())
	}
	for _, h := range s.hosts {
		errs = append(errs, h.Close())
	}
	s.contexts, s.hosts = nil, nil
	return errors.Join(errs...)
}
