// Package hostevents feeds network, visibility and unload events of the host
// into the agent.
package hostevents

import (
	"sort"
	"sync"

	"callbridge/internal/core/domain"
	"callbridge/internal/core/ports"

	"go.uber.org/zap"
)

type listener struct {
	event domain.HostEventType
	fn    func()
}

// Target is the host event target. It implements ports.HostEvents and
// dispatches events to listeners in registration order.
type Target struct {
	logger *zap.SugaredLogger

	mu        sync.Mutex
	hidden    bool
	nextID    ports.ListenerID
	listeners map[ports.ListenerID]listener
}

func NewTarget(logger *zap.SugaredLogger) *Target {
	return &Target{
		logger:    logger,
		listeners: make(map[ports.ListenerID]listener),
	}
}

func (t *Target) AddListener(event domain.HostEventType, fn func()) ports.ListenerID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	t.listeners[t.nextID] = listener{event: event, fn: fn}
	return t.nextID
}

func (t *Target) RemoveListener(id ports.ListenerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.listeners, id)
}

func (t *Target) Hidden() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hidden
}

// SetHidden records the page visibility and dispatches visibilitychange when it changed.
func (t *Target) SetHidden(hidden bool) {
	t.mu.Lock()
	changed := t.hidden != hidden
	t.hidden = hidden
	t.mu.Unlock()

	if changed {
		t.Dispatch(domain.HostVisibilityChange)
	}
}

// ListenerCount returns the number of registered listeners for event.
func (t *Target) ListenerCount(event domain.HostEventType) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, l := range t.listeners {
		if l.event == event {
			n++
		}
	}
	return n
}

// Dispatch runs the listeners for event synchronously. A panicking listener is
// logged and does not stop the others.
func (t *Target) Dispatch(event domain.HostEventType) {
	t.mu.Lock()
	ids := make([]ports.ListenerID, 0, len(t.listeners))
	for id, l := range t.listeners {
		if l.event == event {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, t.listeners[id].fn)
	}
	t.mu.Unlock()

	t.logger.Debugw("Dispatching host event", "event", event, "listeners", len(fns))
	for _, fn := range fns {
		t.call(event, fn)
	}
}

func (t *Target) call(event domain.HostEventType, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Errorw("Host event listener panicked", "event", event, "panic", r)
		}
	}()
	fn()
}
