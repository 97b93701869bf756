// Package jobs holds the bodies pooled workers run inside background
// contexts.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samirrijal/mapcam/internal/core/dispatch"
	"github.com/samirrijal/mapcam/internal/core/domain"
	"github.com/samirrijal/mapcam/internal/core/ports"
	"github.com/samirrijal/mapcam/internal/pkg/codec"
	"github.com/samirrijal/mapcam/internal/pkg/evented"
)

// Body names.
const (
	EchoBody       = "echo"
	TileLoaderBody = "tile-loader"
)

// Job and reply message types.
const (
	MsgEcho      = "echo"
	MsgLoadTile  = "loadTile"
	MsgTile      = "tile"
	MsgTileError = "tileError"
)

const defaultTileTimeout = 10 * time.Second

// Register adds every body to b. The tile loader reads from source, which
// may be nil when no tiles are configured; allocating it then fails.
func Register(b *dispatch.Bodies, source ports.TileSource) {
	b.Register(EchoBody, Echo)
	b.Register(TileLoaderBody, NewTileLoader(source))
}

// Echo sends every echo message straight back.
func Echo(w *dispatch.HostedWorker, _ map[string]any) error {
	w.On(MsgEcho, func(ev evented.Event) {
		if err := w.Send(MsgEcho, ev.Data); err != nil {
			slog.Warn("echo reply failed", "id", w.ID(), "error", err)
		}
	})
	return nil
}

// TileReply is the payload of a tile or tileError message.
type TileReply struct {
	domain.TileJob
	Size  int    `json:"size,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewTileLoader returns a body answering loadTile jobs with the size of the
// tile read from source. The option "timeout_ms" bounds each read.
func NewTileLoader(source ports.TileSource) dispatch.Body {
	return func(w *dispatch.HostedWorker, options map[string]any) error {
		if source == nil {
			return errors.New("no tile source configured")
		}
		timeout := defaultTileTimeout
		if ms, ok := codec.Int(options, "timeout_ms"); ok && ms > 0 {
			timeout = time.Duration(ms) * time.Millisecond
		}

		ctx, cancel := context.WithCancel(context.Background())
		w.OnTerminate(cancel)

		w.On(MsgLoadTile, func(ev evented.Event) {
			var job domain.TileJob
			if err := codec.Decode(ev.Data, &job); err != nil {
				_ = w.Send(MsgTileError, TileReply{Error: "bad job: " + err.Error()})
				return
			}

			readCtx, done := context.WithTimeout(ctx, timeout)
			data, err := source.ReadTile(readCtx, job.Z, job.X, job.Y)
			done()
			if err != nil {
				_ = w.Send(MsgTileError, TileReply{TileJob: job, Error: err.Error()})
				return
			}
			if err := w.Send(MsgTile, TileReply{TileJob: job, Size: len(data)}); err != nil {
				slog.Warn("tile reply failed", "id", w.ID(), "error", err)
			}
		})
		return nil
	}
}
