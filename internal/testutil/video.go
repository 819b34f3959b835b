package testutil

import (
	"fmt"
	"sync"
	"time"

	"callbridge/internal/core/domain"
	"callbridge/internal/core/ports"
)

// Names recorded in the CallLog by the video fakes.
const (
	CallInitSession   = "sdk.init_session"
	CallInitPublisher = "sdk.init_publisher"
	CallConnect       = "session.connect"
	CallSignal        = "session.signal"
	CallPublish       = "session.publish"
	CallSubscribe     = "session.subscribe"
	CallUnsubscribe   = "session.unsubscribe"
	CallOff           = "session.off"
	CallOffAll        = "session.off_all"
	CallDisconnect    = "session.disconnect"
	CallDestroy       = "publisher.destroy"
)

// Loop queues SDK completions until the test drains them, mimicking callbacks
// that arrive after the issuing call returned.
type Loop struct {
	mu      sync.Mutex
	pending []func()
}

func (l *Loop) enqueue(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, fn)
}

// Drain runs queued completions, including those queued while draining.
func (l *Loop) Drain() {
	for {
		l.mu.Lock()
		if len(l.pending) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.pending[0]
		l.pending = l.pending[1:]
		l.mu.Unlock()
		fn()
	}
}

// Step runs the oldest queued completion and reports whether there was one.
func (l *Loop) Step() bool {
	l.mu.Lock()
	if len(l.pending) == 0 {
		l.mu.Unlock()
		return false
	}
	fn := l.pending[0]
	l.pending = l.pending[1:]
	l.mu.Unlock()
	fn()
	return true
}

func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// FakeSDK implements ports.VideoSDK.
type FakeSDK struct {
	Log     *CallLog
	Loop    *Loop
	Session *FakeSession

	InitSessionErr error
	PublisherErr   error

	mu         sync.Mutex
	publishers []*FakePublisher
	initOpts   []domain.PublisherOptions
	targets    []string
}

func NewFakeSDK() *FakeSDK {
	log := NewCallLog()
	loop := &Loop{}
	return &FakeSDK{
		Log:     log,
		Loop:    loop,
		Session: NewFakeSession("session-1", log, loop),
	}
}

func (s *FakeSDK) InitSession(apiKey, sessionID string) (ports.VideoSession, error) {
	s.Log.Record(CallInitSession)
	if s.InitSessionErr != nil {
		return nil, s.InitSessionErr
	}
	return s.Session, nil
}

func (s *FakeSDK) InitPublisher(target string, opts domain.PublisherOptions, done func(error)) ports.Publisher {
	s.Log.Record(CallInitPublisher)

	s.mu.Lock()
	pub := &FakePublisher{id: fmt.Sprintf("publisher-%d", len(s.publishers)+1), opts: opts, log: s.Log}
	s.publishers = append(s.publishers, pub)
	s.initOpts = append(s.initOpts, opts)
	s.targets = append(s.targets, target)
	err := s.PublisherErr
	s.mu.Unlock()

	s.Loop.enqueue(func() { done(err) })
	return pub
}

func (s *FakeSDK) Publishers() []*FakePublisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*FakePublisher(nil), s.publishers...)
}

func (s *FakeSDK) PublisherTargets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.targets...)
}

type handlerEntry struct {
	event   domain.SessionEventType
	handler ports.SessionHandler
}

// FakeSession implements ports.VideoSession. Connect, Signal, Publish and
// Subscribe complete through the Loop. A successful Publish adds the own
// stream without emitting streamCreated.
type FakeSession struct {
	id   string
	log  *CallLog
	loop *Loop

	ConnectErr   error
	SignalErr    error
	PublishErr   error
	SubscribeErr error

	// OnSignal, when set, runs inside Signal before it returns. Tests use it
	// to run queued completions in the middle of a teardown.
	OnSignal func()

	mu          sync.Mutex
	connected   bool
	own         *domain.Connection
	ownID       domain.ConnectionID
	streams     []*domain.Stream
	connections []*domain.Connection
	subscribers map[domain.StreamID][]ports.Subscriber
	handlers    map[ports.HandlerID]handlerEntry
	nextID      ports.HandlerID
	signals     []domain.Signal
	published   []ports.Publisher
}

func NewFakeSession(id string, log *CallLog, loop *Loop) *FakeSession {
	return &FakeSession{
		id:          id,
		log:         log,
		loop:        loop,
		ownID:       "own-connection",
		subscribers: make(map[domain.StreamID][]ports.Subscriber),
		handlers:    make(map[ports.HandlerID]handlerEntry),
	}
}

func (s *FakeSession) ID() string { return s.id }

func (s *FakeSession) Connect(token string, done func(error)) {
	s.log.Record(CallConnect)
	s.loop.enqueue(func() {
		s.mu.Lock()
		err := s.ConnectErr
		if err == nil {
			s.connected = true
			s.own = &domain.Connection{ConnectionID: s.ownID, CreationTime: time.Now(), Role: domain.RolePublisher}
		}
		s.mu.Unlock()
		done(err)
	})
}

func (s *FakeSession) Disconnect() {
	s.log.Record(CallDisconnect)
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
}

func (s *FakeSession) Signal(sig domain.Signal, done func(error)) {
	s.log.Record(CallSignal)
	s.mu.Lock()
	s.signals = append(s.signals, sig)
	err := s.SignalErr
	hook := s.OnSignal
	s.mu.Unlock()
	if done != nil {
		s.loop.enqueue(func() { done(err) })
	}
	if hook != nil {
		hook()
	}
}

func (s *FakeSession) Publish(pub ports.Publisher, done func(error)) {
	s.log.Record(CallPublish)
	s.mu.Lock()
	s.published = append(s.published, pub)
	err := s.PublishErr
	s.mu.Unlock()
	s.loop.enqueue(func() {
		if err == nil {
			s.mu.Lock()
			s.streams = append(s.streams, &domain.Stream{StreamID: domain.StreamID("stream-" + pub.ID()), Connection: s.own})
			s.mu.Unlock()
		}
		if done != nil {
			done(err)
		}
	})
}

func (s *FakeSession) Subscribe(stream *domain.Stream, target string, opts domain.SubscriberOptions, done func(error)) ports.Subscriber {
	s.log.Record(CallSubscribe)
	sub := &FakeSubscriber{SubscriberID: "subscriber-" + string(stream.StreamID), StreamRef: stream}
	s.mu.Lock()
	s.subscribers[stream.StreamID] = append(s.subscribers[stream.StreamID], sub)
	err := s.SubscribeErr
	s.mu.Unlock()
	if done != nil {
		s.loop.enqueue(func() { done(err) })
	}
	return sub
}

func (s *FakeSession) Unsubscribe(sub ports.Subscriber) {
	s.log.Record(CallUnsubscribe)
}

func (s *FakeSession) Streams() []*domain.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Stream(nil), s.streams...)
}

func (s *FakeSession) SubscribersForStream(stream *domain.Stream) []ports.Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.Subscriber(nil), s.subscribers[stream.StreamID]...)
}

func (s *FakeSession) Connections() []*domain.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Connection(nil), s.connections...)
}

func (s *FakeSession) Connection() *domain.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.own
}

func (s *FakeSession) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *FakeSession) On(event domain.SessionEventType, handler ports.SessionHandler) ports.HandlerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.handlers[s.nextID] = handlerEntry{event: event, handler: handler}
	return s.nextID
}

func (s *FakeSession) OnMany(handlers map[domain.SessionEventType]ports.SessionHandler) []ports.HandlerID {
	ids := make([]ports.HandlerID, 0, len(handlers))
	for event, h := range handlers {
		ids = append(ids, s.On(event, h))
	}
	return ids
}

func (s *FakeSession) Off(ids ...ports.HandlerID) {
	s.log.Record(CallOff)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.handlers, id)
	}
}

func (s *FakeSession) OffAll() {
	s.log.Record(CallOffAll)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = make(map[ports.HandlerID]handlerEntry)
}

// SetConnected marks the session connected with the given own connection id.
func (s *FakeSession) SetConnected(ownID domain.ConnectionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	s.ownID = ownID
	s.own = &domain.Connection{ConnectionID: ownID, Role: domain.RolePublisher}
}

func (s *FakeSession) SetStreams(streams ...*domain.Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams = streams
}

func (s *FakeSession) SetConnections(conns ...*domain.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections = conns
}

// AddSubscriber attaches sub to stream without recording a Subscribe call.
func (s *FakeSession) AddSubscriber(stream *domain.Stream, sub ports.Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[stream.StreamID] = append(s.subscribers[stream.StreamID], sub)
}

// Emit delivers ev to every handler registered for its type.
func (s *FakeSession) Emit(ev domain.SessionEvent) {
	s.mu.Lock()
	var targets []ports.SessionHandler
	for id := ports.HandlerID(1); id <= s.nextID; id++ {
		if h, ok := s.handlers[id]; ok && h.event == ev.Type {
			targets = append(targets, h.handler)
		}
	}
	s.mu.Unlock()

	for _, h := range targets {
		h(ev)
	}
}

// HandlerCount returns how many handlers are registered for event.
func (s *FakeSession) HandlerCount(event domain.SessionEventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.handlers {
		if h.event == event {
			n++
		}
	}
	return n
}

func (s *FakeSession) Signals() []domain.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Signal(nil), s.signals...)
}

func (s *FakeSession) Published() []ports.Publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.Publisher(nil), s.published...)
}

// FakePublisher implements ports.Publisher.
type FakePublisher struct {
	id   string
	opts domain.PublisherOptions
	log  *CallLog

	mu        sync.Mutex
	destroyed int
}

func (p *FakePublisher) ID() string                       { return p.id }
func (p *FakePublisher) Options() domain.PublisherOptions { return p.opts }

func (p *FakePublisher) Destroy() {
	p.log.Record(CallDestroy)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destroyed++
}

func (p *FakePublisher) DestroyCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destroyed
}

// FakeSubscriber implements ports.Subscriber.
type FakeSubscriber struct {
	SubscriberID string
	StreamRef    *domain.Stream
	Props        map[string]any
}

func (s *FakeSubscriber) ID() string                 { return s.SubscriberID }
func (s *FakeSubscriber) Stream() *domain.Stream     { return s.StreamRef }
func (s *FakeSubscriber) Properties() map[string]any { return s.Props }
