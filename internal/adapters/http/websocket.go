package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/mapcam/internal/core/domain"
	"github.com/samirrijal/mapcam/internal/core/ports"
	"github.com/samirrijal/mapcam/internal/pkg/metrics"
)

// wsMessage is sent from client to filter the event stream.
type wsMessage struct {
	Action string   `json:"action"` // "subscribe" | "unsubscribe"
	Types  []string `json:"types"`  // event types, empty = all
}

// WebSocketHandler streams a session's camera events. By default every
// camera event is forwarded; clients narrow the stream with
// {"action":"subscribe","types":["moveend"]} and widen it again with
// unsubscribe.
func WebSocketHandler(events ports.EventSubscriber) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		sessionID := c.Params("id")
		log := slog.With("session", sessionID, "remote", c.RemoteAddr().String())
		log.Info("ws client connected")
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		filter := make(map[string]bool)

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		unsubscribe, err := events.SubscribeCameraEvents(ctx, sessionID, func(_ context.Context, ev *domain.CameraEvent) error {
			mu.Lock()
			wanted := len(filter) == 0 || filter[ev.Type]
			mu.Unlock()
			if !wanted {
				return nil
			}
			return writeJSON(ev)
		})
		if err != nil {
			_ = writeJSON(map[string]string{"error": err.Error()})
			log.Warn("ws subscribe failed", "error", err)
			return
		}
		defer unsubscribe()

		// Keep-alive ping
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			switch m.Action {
			case "subscribe":
				mu.Lock()
				for _, t := range m.Types {
					filter[t] = true
				}
				mu.Unlock()
				_ = writeJSON(map[string]any{"status": "subscribed", "types": m.Types})

			case "unsubscribe":
				mu.Lock()
				if len(m.Types) == 0 {
					filter = make(map[string]bool)
				}
				for _, t := range m.Types {
					delete(filter, t)
				}
				mu.Unlock()
				_ = writeJSON(map[string]any{"status": "unsubscribed", "types": m.Types})

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		log.Info("ws client disconnected")
	}
}
