// Package frame provides the schedulers that drive camera animations.
package frame

import (
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned when posting to a closed Loop.
var ErrClosed = errors.New("frame loop closed")

type pending struct {
	id uint64
	fn func(time.Time)
}

// Loop is a real-time scheduler backed by one goroutine. Frame callbacks,
// timers and posted tasks all run on that goroutine, so state touched only
// from them needs no locking. The ticker only runs while frames are pending.
//
// RequestFrame must be called from the loop goroutine. Do must not be.
type Loop struct {
	interval time.Duration
	tasks    chan func()
	done     chan struct{}
	stopped  chan struct{}
	once     sync.Once

	// Owned by the loop goroutine.
	nextID  uint64
	frames  []pending
	ticker  *time.Ticker
	timerID uint64
	timers  map[uint64]*time.Timer
}

// NewLoop starts a loop ticking at fps frames per second while animating.
func NewLoop(fps int) *Loop {
	if fps <= 0 {
		fps = 60
	}
	l := &Loop{
		interval: time.Second / time.Duration(fps),
		tasks:    make(chan func(), 64),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		timers:   make(map[uint64]*time.Timer),
	}
	go l.run()
	return l
}

// Now returns the wall clock.
func (l *Loop) Now() time.Time { return time.Now() }

// RequestFrame schedules fn for the next tick.
func (l *Loop) RequestFrame(fn func(time.Time)) func() {
	l.nextID++
	id := l.nextID
	l.frames = append(l.frames, pending{id: id, fn: fn})
	return func() { l.cancelFrame(id) }
}

func (l *Loop) cancelFrame(id uint64) {
	for i, f := range l.frames {
		if f.id == id {
			l.frames = append(l.frames[:i], l.frames[i+1:]...)
			return
		}
	}
}

// AfterFunc runs fn on the loop goroutine after d. The returned cancel must
// be called from the loop goroutine.
func (l *Loop) AfterFunc(d time.Duration, fn func()) func() {
	l.timerID++
	id := l.timerID
	t := time.AfterFunc(d, func() {
		_ = l.Post(func() {
			if _, ok := l.timers[id]; !ok {
				return
			}
			delete(l.timers, id)
			fn()
		})
	})
	l.timers[id] = t
	return func() {
		if t, ok := l.timers[id]; ok {
			t.Stop()
			delete(l.timers, id)
		}
	}
}

// Post queues fn to run on the loop goroutine without waiting.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}
	select {
	case l.tasks <- fn:
		return nil
	case <-l.done:
		return ErrClosed
	}
}

// Do runs fn on the loop goroutine and waits for it to return.
func (l *Loop) Do(fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-l.stopped:
		return ErrClosed
	}
}

// Close stops the loop and waits for it to exit. Pending frames and timers
// are dropped. It must not be called from the loop goroutine.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.done) })
	<-l.stopped
}

func (l *Loop) run() {
	defer close(l.stopped)
	for {
		var tick <-chan time.Time
		if l.ticker != nil {
			tick = l.ticker.C
		}

		select {
		case <-l.done:
			if l.ticker != nil {
				l.ticker.Stop()
			}
			for _, t := range l.timers {
				t.Stop()
			}
			return
		case fn := <-l.tasks:
			fn()
		case now := <-tick:
			l.fire(now)
		}

		switch {
		case len(l.frames) == 0 && l.ticker != nil:
			l.ticker.Stop()
			l.ticker = nil
		case len(l.frames) > 0 && l.ticker == nil:
			l.ticker = time.NewTicker(l.interval)
		}
	}
}

// fire runs the frames requested before this tick. Frames requested by
// those callbacks wait for the next one.
func (l *Loop) fire(now time.Time) {
	batch := l.frames
	l.frames = nil
	for _, f := range batch {
		f.fn(now)
	}
}
