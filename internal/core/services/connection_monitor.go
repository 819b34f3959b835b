package services

import (
	"sync"

	"callbridge/internal/core/domain"
	"callbridge/internal/core/ports"

	"go.uber.org/zap"
)

// ConnectionMonitor tracks whether the local publisher and at least one
// remote participant currently have streams in the session.
type ConnectionMonitor struct {
	session ports.VideoSession
	logger  *zap.SugaredLogger

	mu                  sync.Mutex
	handlerIDs          []ports.HandlerID
	publisherConnected  bool
	subscriberConnected bool
}

func NewConnectionMonitor(session ports.VideoSession, logger *zap.SugaredLogger) *ConnectionMonitor {
	return &ConnectionMonitor{session: session, logger: logger}
}

// Attach registers the stream and disconnect handlers and runs an initial check.
// Attaching an attached monitor does nothing.
func (m *ConnectionMonitor) Attach() error {
	if m.session == nil {
		m.logger.Errorw("Session is not initialized, connection monitor not attached")
		return domain.ErrSessionNotInitialized
	}

	m.mu.Lock()
	if len(m.handlerIDs) > 0 {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	ids := []ports.HandlerID{
		m.session.On(domain.EventStreamCreated, func(domain.SessionEvent) { m.Check() }),
		m.session.On(domain.EventStreamDestroyed, func(domain.SessionEvent) { m.Check() }),
		m.session.On(domain.EventSessionDisconnected, func(domain.SessionEvent) { m.markDisconnected() }),
	}

	m.mu.Lock()
	m.handlerIDs = ids
	m.mu.Unlock()

	m.Check()
	return nil
}

// Detach removes exactly the handlers Attach installed.
func (m *ConnectionMonitor) Detach() {
	m.mu.Lock()
	ids := m.handlerIDs
	m.handlerIDs = nil
	m.mu.Unlock()

	if len(ids) == 0 || m.session == nil {
		return
	}
	m.session.Off(ids...)
}

// Check recomputes both flags from the session's current streams.
func (m *ConnectionMonitor) Check() {
	if m.session == nil {
		return
	}

	var ownID domain.ConnectionID
	if own := m.session.Connection(); own != nil {
		ownID = own.ConnectionID
	}

	publisher, subscriber := false, false
	for _, stream := range m.session.Streams() {
		owner := stream.OwnerID()
		switch {
		case ownID != "" && owner == ownID:
			publisher = true
		case owner != ownID:
			subscriber = true
		}
	}

	m.mu.Lock()
	m.publisherConnected = publisher
	m.subscriberConnected = subscriber
	m.mu.Unlock()

	m.logStatus(publisher, subscriber)
}

func (m *ConnectionMonitor) PublisherConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.publisherConnected
}

func (m *ConnectionMonitor) SubscriberConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscriberConnected
}

func (m *ConnectionMonitor) markDisconnected() {
	m.mu.Lock()
	m.publisherConnected = false
	m.subscriberConnected = false
	m.mu.Unlock()

	m.logStatus(false, false)
}

func (m *ConnectionMonitor) logStatus(publisher, subscriber bool) {
	if publisher && subscriber {
		m.logger.Infow("Publisher and subscriber are both connected")
		return
	}
	if !publisher {
		m.logger.Warnw("Publisher is not connected")
	}
	if !subscriber {
		m.logger.Warnw("Subscriber is not connected")
	}
}
