package frame

import (
	"sort"
	"time"
)

type timer struct {
	id uint64
	at time.Time
	fn func()
}

// Manual is a deterministic scheduler for tests: time only moves when Tick
// is called. It is not safe for concurrent use.
type Manual struct {
	now    time.Time
	nextID uint64
	frames []pending
	timers []timer
}

// NewManual returns a scheduler whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time { return m.now }

func (m *Manual) RequestFrame(fn func(time.Time)) func() {
	m.nextID++
	id := m.nextID
	m.frames = append(m.frames, pending{id: id, fn: fn})
	return func() {
		for i, f := range m.frames {
			if f.id == id {
				m.frames = append(m.frames[:i], m.frames[i+1:]...)
				return
			}
		}
	}
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) func() {
	m.nextID++
	id := m.nextID
	m.timers = append(m.timers, timer{id: id, at: m.now.Add(d), fn: fn})
	return func() {
		for i, t := range m.timers {
			if t.id == id {
				m.timers = append(m.timers[:i], m.timers[i+1:]...)
				return
			}
		}
	}
}

// Tick advances the clock by d, fires due timers in order, then runs the
// frames that were pending before the tick.
func (m *Manual) Tick(d time.Duration) {
	m.now = m.now.Add(d)

	sort.SliceStable(m.timers, func(i, j int) bool { return m.timers[i].at.Before(m.timers[j].at) })
	for len(m.timers) > 0 && !m.timers[0].at.After(m.now) {
		t := m.timers[0]
		m.timers = m.timers[1:]
		t.fn()
	}

	batch := m.frames
	m.frames = nil
	for _, f := range batch {
		f.fn(m.now)
	}
}

// Pending reports how many frames and timers are scheduled.
func (m *Manual) Pending() int { return len(m.frames) + len(m.timers) }

// RunUntilIdle ticks by step until nothing is scheduled or limit ticks have
// elapsed. It returns the number of ticks.
func (m *Manual) RunUntilIdle(step time.Duration, limit int) int {
	n := 0
	for m.Pending() > 0 && n < limit {
		m.Tick(step)
		n++
	}
	return n
}
