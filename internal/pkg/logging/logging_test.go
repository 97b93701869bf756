package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestWarnOnce(t *testing.T) {
	resetWarnOnce()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	WarnOnce("padding must be a number or an object")
	WarnOnce("padding must be a number or an object")
	WarnOnce("bounds cannot fit")

	out := buf.String()
	if n := strings.Count(out, "padding must be"); n != 1 {
		t.Errorf("expected 1 padding warning, got %d", n)
	}
	if !strings.Contains(out, "bounds cannot fit") {
		t.Error("expected second distinct warning to be logged")
	}
}

func TestSetup_Levels(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	Setup("debug", "text")
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug enabled")
	}
	Setup("error", "json")
	if slog.Default().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("expected warn disabled at error level")
	}
}

func TestNewHandler(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(NewHandler(&buf, "DEBUG", "json"))
	l.Debug("frame", "k", 0.5)
	out := buf.String()
	if !strings.Contains(out, `"msg":"frame"`) || !strings.Contains(out, `"source"`) {
		t.Errorf("expected a JSON debug record with source, got %q", out)
	}

	buf.Reset()
	l = slog.New(NewHandler(&buf, "bogus", "text"))
	l.Debug("hidden")
	l.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "msg=shown") {
		t.Errorf("unknown level should mean info, got %q", buf.String())
	}
}
