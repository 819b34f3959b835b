package services

import (
	"sort"
	"sync"

	"callbridge/internal/core/domain"
	"callbridge/internal/core/ports"

	"go.uber.org/zap"
)

// ListenerOptions are the per-call collaborators a ListenerBundle wires into
// session and host events.
type ListenerOptions struct {
	EnableInterruption  bool
	FlowInterrupt       func()
	Session             ports.VideoSession
	NotifyDisconnection func()
	SessionGUID         string
	OfflineAttribute    string
	Offline             func()
	Online              func()
}

// ListenerBundle installs one set of session and host event handlers at a time.
// The installed guard and the active-subscriber set belong to the bundle, so
// two controllers never share them.
type ListenerBundle struct {
	host     ports.HostEvents
	notifier *AlertNotifier
	bridge   *PlatformBridge
	metrics  ports.CallMetrics
	logger   *zap.SugaredLogger

	mu        sync.Mutex
	installed bool
	active    map[domain.ConnectionID]struct{}
}

func NewListenerBundle(
	host ports.HostEvents,
	notifier *AlertNotifier,
	bridge *PlatformBridge,
	metrics ports.CallMetrics,
	logger *zap.SugaredLogger,
) *ListenerBundle {
	return &ListenerBundle{
		host:     host,
		notifier: notifier,
		bridge:   bridge,
		metrics:  metricsOrNoop(metrics),
		logger:   logger,
		active:   make(map[domain.ConnectionID]struct{}),
	}
}

// Install registers the handlers and returns their teardown. While a previous
// install is active it registers nothing and returns a no-op teardown.
//
// The teardown removes the host listeners only. Session handlers stay until
// the session's handlers are cleared elsewhere.
func (b *ListenerBundle) Install(opts ListenerOptions) func() {
	b.mu.Lock()
	if b.installed {
		b.mu.Unlock()
		b.logger.Infow("Listeners already installed, skipping setup")
		return func() {}
	}
	b.installed = true
	b.mu.Unlock()

	if opts.Session != nil {
		opts.Session.OnMany(map[domain.SessionEventType]ports.SessionHandler{
			domain.EventConnectionCreated:   b.handleConnectionCreated,
			domain.EventConnectionDestroyed: b.handleConnectionDestroyed,
			domain.EventSessionReconnecting: func(domain.SessionEvent) {
				b.logger.Infow("Session reconnecting, updating UI")
				b.notifier.MarkOffline(StatusReconnecting)
			},
			domain.EventSessionReconnected: func(domain.SessionEvent) {
				b.logger.Infow("Session reconnected, restoring UI")
				b.notifier.MarkOnline(StatusRestored)
				invoke(opts.Online)
			},
		})
	}

	ids := []ports.ListenerID{
		b.host.AddListener(domain.HostOffline, func() { b.handleOffline(opts) }),
		b.host.AddListener(domain.HostOnline, func() { b.handleOnline(opts) }),
		b.host.AddListener(domain.HostBeforeUnload, func() {
			b.metrics.HostEvent(domain.HostBeforeUnload)
			b.logger.Infow("Page unloading, interrupting flow")
			invoke(opts.FlowInterrupt)
		}),
	}
	if opts.EnableInterruption {
		ids = append(ids, b.host.AddListener(domain.HostVisibilityChange, func() {
			b.metrics.HostEvent(domain.HostVisibilityChange)
			if b.host.Hidden() {
				invoke(opts.FlowInterrupt)
				b.logger.Infow("Visibility change detected, flow interrupted")
			}
		}))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for _, id := range ids {
				b.host.RemoveListener(id)
			}
			b.mu.Lock()
			b.installed = false
			b.mu.Unlock()
			b.logger.Infow("Listeners removed")
		})
	}
}

// Installed reports whether a teardown is outstanding.
func (b *ListenerBundle) Installed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.installed
}

// CheckParticipantStatus rebuilds the active-subscriber set from the
// session's connections that carry a non-publisher role, and reports whether
// any remain.
func (b *ListenerBundle) CheckParticipantStatus(session ports.VideoSession) bool {
	if session == nil || !session.IsConnected() {
		b.logger.Warnw("Session is not connected, cannot check participant status")
		b.mu.Lock()
		b.active = make(map[domain.ConnectionID]struct{})
		b.mu.Unlock()
		b.metrics.ActiveSubscribers(0)
		return false
	}

	active := make(map[domain.ConnectionID]struct{})
	for _, conn := range session.Connections() {
		if conn == nil {
			continue
		}
		role := conn.Role
		if role == "" {
			role = ParseConnectionData(conn.Data)["role"]
		}
		if role != "" && role != domain.RolePublisher {
			active[conn.ConnectionID] = struct{}{}
		}
	}

	b.mu.Lock()
	b.active = active
	b.mu.Unlock()

	b.metrics.ActiveSubscribers(len(active))
	b.logger.Infow("Participant status checked", "active_subscribers", len(active))
	return len(active) > 0
}

// ActiveSubscribers returns the tracked connection ids in sorted order.
func (b *ListenerBundle) ActiveSubscribers() []domain.ConnectionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]domain.ConnectionID, 0, len(b.active))
	for id := range b.active {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (b *ListenerBundle) handleConnectionCreated(ev domain.SessionEvent) {
	if ev.Connection == nil {
		return
	}
	b.logger.Infow("Connection created", "connection_id", ev.Connection.ConnectionID)

	b.mu.Lock()
	b.active[ev.Connection.ConnectionID] = struct{}{}
	n := len(b.active)
	b.mu.Unlock()
	b.metrics.ActiveSubscribers(n)
}

func (b *ListenerBundle) handleConnectionDestroyed(ev domain.SessionEvent) {
	if ev.Connection == nil {
		return
	}
	b.logger.Infow("Connection destroyed", "connection_id", ev.Connection.ConnectionID)

	b.mu.Lock()
	delete(b.active, ev.Connection.ConnectionID)
	n := len(b.active)
	b.mu.Unlock()
	b.metrics.ActiveSubscribers(n)
}

// handleOffline fires the disconnection notifier and the alert even when the
// GUID or attribute is missing; only the UI update is guarded on both.
func (b *ListenerBundle) handleOffline(opts ListenerOptions) {
	b.metrics.HostEvent(domain.HostOffline)
	b.logger.Infow("Network connection lost, user is offline")

	invoke(opts.NotifyDisconnection)
	invoke(opts.Offline)

	guid := opts.SessionGUID
	b.bridge.UpdateEntityAttribute(guid, opts.OfflineAttribute, true,
		func() {
			b.logger.Infow("Offline status persisted", "guid", guid)
		},
		func(err error) {
			b.logger.Errorw("Failed to persist offline status", "guid", guid, "error", err)
		},
	)

	if guid == "" || opts.OfflineAttribute == "" {
		b.logger.Errorw("Missing session GUID or offline attribute, offline UI not updated",
			"guid", guid,
			"attribute", opts.OfflineAttribute,
		)
		return
	}
	b.notifier.MarkOffline(StatusOffline)
}

func (b *ListenerBundle) handleOnline(opts ListenerOptions) {
	b.metrics.HostEvent(domain.HostOnline)
	b.logger.Infow("Network connection restored")

	b.notifier.MarkOnline(StatusOnline)
	invoke(opts.FlowInterrupt)
}

func invoke(fn func()) {
	if fn != nil {
		fn()
	}
}
