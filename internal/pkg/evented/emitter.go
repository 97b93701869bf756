// Package evented provides a small event emitter that can be composed into
// any type needing on/off/once/fire semantics, with optional bubbling to a
// parent emitter.
package evented

import (
	"log/slog"
	"sync"
)

// Event is delivered to listeners. Data holds the caller-supplied payload;
// Type and Target are filled in by the emitter.
type Event struct {
	Type   string
	Target any
	Data   map[string]any
}

// Listener handles an event.
type Listener func(Event)

// ListenerID identifies a registration for Off.
type ListenerID uint64

type registration struct {
	id   ListenerID
	fn   Listener
	once bool
}

// Emitter is safe for concurrent use. Listeners run on the goroutine that
// calls Fire, outside the emitter's lock, so they may call On/Off/Fire.
type Emitter struct {
	mu        sync.Mutex
	target    any
	nextID    ListenerID
	listeners map[string][]registration

	parent     *Emitter
	parentData map[string]any
}

// New returns an emitter whose events carry target as their Target.
func New(target any) *Emitter {
	return &Emitter{target: target, listeners: make(map[string][]registration)}
}

// On registers fn for events of type typ.
func (e *Emitter) On(typ string, fn Listener) ListenerID {
	return e.add(typ, fn, false)
}

// Once registers fn to run for the next event of type typ only.
func (e *Emitter) Once(typ string, fn Listener) ListenerID {
	return e.add(typ, fn, true)
}

func (e *Emitter) add(typ string, fn Listener, once bool) ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	e.listeners[typ] = append(e.listeners[typ], registration{id: e.nextID, fn: fn, once: once})
	return e.nextID
}

// Off removes a registration. Unknown ids are ignored.
func (e *Emitter) Off(typ string, id ListenerID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	regs := e.listeners[typ]
	for i, r := range regs {
		if r.id == id {
			e.listeners[typ] = append(regs[:i:i], regs[i+1:]...)
			break
		}
	}
	if len(e.listeners[typ]) == 0 {
		delete(e.listeners, typ)
	}
}

// Listens reports whether this emitter or any of its parents has a listener
// for typ.
func (e *Emitter) Listens(typ string) bool {
	e.mu.Lock()
	n := len(e.listeners[typ])
	parent := e.parent
	e.mu.Unlock()
	return n > 0 || (parent != nil && parent.Listens(typ))
}

// SetEventedParent makes every fired event bubble to parent, with data merged
// into the payload. The parent is not owned: it is only used for bubbling.
// Pass nil to detach.
func (e *Emitter) SetEventedParent(parent *Emitter, data map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.parent = parent
	e.parentData = data
}

// Fire delivers an event of type typ to the registered listeners, then to
// the parent chain. An "error" event nobody listens for is logged.
func (e *Emitter) Fire(typ string, data map[string]any) {
	if typ == "error" && !e.Listens(typ) {
		slog.Error("unhandled error event", "data", data)
		return
	}

	e.mu.Lock()
	regs := e.listeners[typ]
	snapshot := make([]registration, len(regs))
	copy(snapshot, regs)
	if len(regs) > 0 {
		kept := regs[:0:0]
		for _, r := range regs {
			if !r.once {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(e.listeners, typ)
		} else {
			e.listeners[typ] = kept
		}
	}
	parent, parentData := e.parent, e.parentData
	target := e.target
	e.mu.Unlock()

	ev := Event{Type: typ, Target: target, Data: merge(data, nil)}
	for _, r := range snapshot {
		r.fn(ev)
	}

	if parent != nil {
		parent.Fire(typ, merge(data, parentData))
	}
}

func merge(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
