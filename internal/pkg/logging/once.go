package logging

import (
	"log/slog"
	"sync"
)

var warned sync.Map

// WarnOnce logs msg at warn level the first time it is seen in the process.
func WarnOnce(msg string, args ...any) {
	if _, loaded := warned.LoadOrStore(msg, struct{}{}); loaded {
		return
	}
	slog.Warn(msg, args...)
}

// resetWarnOnce forgets every message seen so far.
func resetWarnOnce() {
	warned.Range(func(k, _ any) bool {
		warned.Delete(k)
		return true
	})
}
