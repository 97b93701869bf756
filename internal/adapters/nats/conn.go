package natsadapter

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Connect opens a connection that keeps reconnecting in the background.
func Connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

func inSubject(prefix string, index int) string  { return fmt.Sprintf("%s.%d.in", prefix, index) }
func outSubject(prefix string, index int) string { return fmt.Sprintf("%s.%d.out", prefix, index) }
