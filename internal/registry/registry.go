package registry

import (
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/leadstack/leadsync/internal/event"
)

// Handler receives a dispatched event.
type Handler func(ev event.Envelope)

// handler is one registration. removed is flipped under the registry
// lock; a dispatch snapshot taken earlier may still hold the pointer,
// so fired handlers re-check it.
type handler struct {
	id      int64
	name    string // Empty for wildcard registrations
	fn      Handler
	removed bool
}

// Registry fans the inbound event stream out to named subscribers.
type Registry struct {
	logger *slog.Logger

	mu       sync.Mutex
	nextID   int64
	handlers map[string][]*handler // Event name → registrations, in subscribe order
	wildcard []*handler            // SubscribeAll registrations

	dispatched int64
	panicked   int64
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:   logger.With("component", "registry"),
		handlers: make(map[string][]*handler),
	}
}

// Subscribe registers cb for the named event and returns its
// unsubscribe function. The returned function is idempotent and
// removes only this registration.
func (r *Registry) Subscribe(name string, cb Handler) func() {
	name = event.Normalize(name)

	r.mu.Lock()
	r.nextID++
	h := &handler{id: r.nextID, name: name, fn: cb}
	r.handlers[name] = append(r.handlers[name], h)
	r.mu.Unlock()

	return func() { r.remove(h) }
}

// SubscribeAll registers cb for every dispatched event. Used by
// cross-cutting consumers like the event journal.
func (r *Registry) SubscribeAll(cb Handler) func() {
	r.mu.Lock()
	r.nextID++
	h := &handler{id: r.nextID, fn: cb}
	r.wildcard = append(r.wildcard, h)
	r.mu.Unlock()

	return func() { r.remove(h) }
}

// remove unregisters h. Safe to call more than once.
func (r *Registry) remove(h *handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h.removed {
		return
	}
	h.removed = true

	if h.name == "" {
		r.wildcard = drop(r.wildcard, h.id)
		return
	}

	rest := drop(r.handlers[h.name], h.id)
	if len(rest) == 0 {
		delete(r.handlers, h.name)
	} else {
		r.handlers[h.name] = rest
	}
}

func drop(hs []*handler, id int64) []*handler {
	for i, h := range hs {
		if h.id == id {
			return append(hs[:i:i], hs[i+1:]...)
		}
	}
	return hs
}

// Dispatch invokes all handlers registered for ev.Type, then all
// wildcard handlers, in registration order. The handler set is
// snapshotted before the first callback runs: handlers added during
// dispatch fire on the next dispatch only. A panicking handler is
// recovered and logged; remaining handlers still run.
func (r *Registry) Dispatch(ev event.Envelope) {
	r.mu.Lock()
	snapshot := make([]*handler, 0, len(r.handlers[ev.Type])+len(r.wildcard))
	snapshot = append(snapshot, r.handlers[ev.Type]...)
	snapshot = append(snapshot, r.wildcard...)
	r.dispatched++
	r.mu.Unlock()

	for _, h := range snapshot {
		r.mu.Lock()
		skip := h.removed
		r.mu.Unlock()
		if skip {
			continue
		}
		r.invoke(h, ev)
	}
}

// invoke runs one handler with panic isolation.
func (r *Registry) invoke(h *handler, ev event.Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			r.mu.Lock()
			r.panicked++
			r.mu.Unlock()
			r.logger.Error("subscriber panicked",
				"event", ev.Type,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
		}
	}()
	h.fn(ev)
}

// EventNames returns the sorted set of event names with at least one
// registration. The connection manager re-issues server-side
// subscriptions from this set after each reconnect.
func (r *Registry) EventNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats reports dispatch counters.
type Stats struct {
	Subscriptions int
	Dispatched    int64
	Panicked      int64
}

// Stats returns current registry statistics.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.wildcard)
	for _, hs := range r.handlers {
		n += len(hs)
	}
	return Stats{
		Subscriptions: n,
		Dispatched:    r.dispatched,
		Panicked:      r.panicked,
	}
}
