package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"callbridge/internal/core/domain"
	"callbridge/internal/core/ports"
	apperrors "callbridge/pkg/errors"
	"callbridge/pkg/retry"
	"callbridge/pkg/tracing"
	"callbridge/pkg/utils"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type sessionState int

const (
	stateIdle sessionState = iota
	stateConnecting
	stateConnected
	stateReconnecting
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateConnecting:
		return "connecting"
	case stateConnected:
		return "connected"
	case stateReconnecting:
		return "reconnecting"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var errRequestTimeout = errors.New("signaling request timed out")

type pendingRequest struct {
	timer  *time.Timer
	finish func(Message, error)
}

type registeredHandler struct {
	id    ports.HandlerID
	event domain.SessionEventType
	fn    ports.SessionHandler
}

// Session implements ports.VideoSession over one websocket at a time. A
// dropped socket is redialed with backoff using the token of the last
// Connect.
type Session struct {
	sdk    *SDK
	apiKey string
	id     string

	writeMu sync.Mutex

	mu          sync.Mutex
	state       sessionState
	conn        *websocket.Conn
	token       string
	cancel      context.CancelFunc
	own         *domain.Connection
	connections []*domain.Connection
	streams     []*domain.Stream
	subscribers map[domain.StreamID][]*Subscriber
	pending     map[string]*pendingRequest
	handlers    []registeredHandler
	nextHandler ports.HandlerID
}

func newSession(sdk *SDK, apiKey, id string) *Session {
	return &Session{
		sdk:         sdk,
		apiKey:      apiKey,
		id:          id,
		subscribers: make(map[domain.StreamID][]*Subscriber),
		pending:     make(map[string]*pendingRequest),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Connect(token string, done func(error)) {
	s.mu.Lock()
	if s.state != stateIdle {
		state := s.state
		s.mu.Unlock()
		s.sdk.complete(done, fmt.Errorf("session %s cannot connect while %s", s.id, state))
		return
	}
	s.state = stateConnecting
	s.token = token
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		err := s.open(ctx)
		if err != nil {
			s.mu.Lock()
			if s.state == stateConnecting {
				s.state = stateIdle
			}
			s.mu.Unlock()
			s.sdk.logger.Warnw("Session connect failed", "session_id", s.id, "error", err)
		} else {
			s.sdk.logger.Infow("Session connected", "session_id", s.id, "connection_id", s.ownID())
		}
		s.sdk.complete(done, err)
	}()
}

// open dials, starts the read and ping loops and performs the connect
// handshake, replacing the session snapshot with the server's.
func (s *Session) open(ctx context.Context) error {
	conn, err := s.sdk.dial(ctx, s.id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		conn.Close()
		return domain.ErrSessionNotConnected
	}
	s.conn = conn
	token := s.token
	s.mu.Unlock()

	conn.SetReadDeadline(time.Now().Add(s.sdk.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.sdk.cfg.PongTimeout))
	})
	go s.readLoop(conn)
	go s.pingLoop(ctx, conn)

	reply, err := s.roundTrip(ctx, msgConnect, connectPayload{Token: token, APIKey: s.apiKey})
	if err != nil {
		conn.Close()
		return err
	}
	var ack connectAck
	if err := json.Unmarshal(reply.Payload, &ack); err != nil {
		conn.Close()
		return fmt.Errorf("decode connect ack: %w", err)
	}
	if ack.Connection == nil {
		conn.Close()
		return apperrors.NewSignalError("connect ack carries no connection")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateClosed || s.conn != conn {
		conn.Close()
		return domain.ErrSessionNotConnected
	}
	s.own = ack.Connection
	s.connections = ack.Connections
	s.streams = ack.Streams
	s.pruneSubscribersLocked()
	s.state = stateConnected
	return nil
}

func (s *Session) pruneSubscribersLocked() {
	live := make(map[domain.StreamID]bool, len(s.streams))
	for _, st := range s.streams {
		live[st.StreamID] = true
	}
	for id, subs := range s.subscribers {
		if live[id] {
			continue
		}
		for _, sub := range subs {
			sub.close()
		}
		delete(s.subscribers, id)
	}
}

func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			s.connectionLost(conn, err)
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.sdk.cfg.PongTimeout))
		s.handleMessage(msg)
	}
}

func (s *Session) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.sdk.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.sdk.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (s *Session) handleMessage(msg Message) {
	switch msg.Type {
	case msgAck:
		req := s.takePending(msg.RequestID)
		if req == nil {
			s.sdk.logger.Debugw("Ack for unknown request", "request_id", msg.RequestID)
			return
		}
		req.timer.Stop()
		var err error
		if msg.Error != "" {
			err = apperrors.NewSignalError(msg.Error)
		}
		req.finish(msg, err)

	case msgConnectionCreated:
		var ev connectionEvent
		if !s.decode(msg, &ev) || ev.Connection == nil {
			return
		}
		s.mu.Lock()
		if indexConnection(s.connections, ev.Connection.ConnectionID) < 0 {
			s.connections = append(s.connections, ev.Connection)
		}
		s.mu.Unlock()
		s.emit(domain.SessionEvent{Type: domain.EventConnectionCreated, Connection: ev.Connection})

	case msgConnectionDestroyed:
		var ev connectionEvent
		if !s.decode(msg, &ev) || ev.Connection == nil {
			return
		}
		ev.Connection.Destroyed = true
		ev.Connection.DestroyedReason = ev.Reason
		s.mu.Lock()
		if i := indexConnection(s.connections, ev.Connection.ConnectionID); i >= 0 {
			s.connections = append(s.connections[:i], s.connections[i+1:]...)
		}
		s.mu.Unlock()
		s.emit(domain.SessionEvent{Type: domain.EventConnectionDestroyed, Connection: ev.Connection, Reason: ev.Reason})

	case msgStreamCreated:
		var ev streamEvent
		if !s.decode(msg, &ev) || ev.Stream == nil {
			return
		}
		s.mu.Lock()
		if indexStream(s.streams, ev.Stream.StreamID) < 0 {
			s.streams = append(s.streams, ev.Stream)
		}
		own := s.own != nil && ev.Stream.OwnerID() == s.own.ConnectionID
		s.mu.Unlock()
		if !own {
			s.emit(domain.SessionEvent{Type: domain.EventStreamCreated, Stream: ev.Stream})
		}

	case msgStreamDestroyed:
		var ev streamEvent
		if !s.decode(msg, &ev) || ev.Stream == nil {
			return
		}
		s.mu.Lock()
		if i := indexStream(s.streams, ev.Stream.StreamID); i >= 0 {
			s.streams = append(s.streams[:i], s.streams[i+1:]...)
		}
		subs := s.subscribers[ev.Stream.StreamID]
		delete(s.subscribers, ev.Stream.StreamID)
		s.mu.Unlock()
		for _, sub := range subs {
			sub.close()
		}
		s.emit(domain.SessionEvent{Type: domain.EventStreamDestroyed, Stream: ev.Stream, Reason: ev.Reason})

	case msgSignal:
		var sig signalPayload
		if !s.decode(msg, &sig) {
			return
		}
		s.emit(domain.SessionEvent{
			Type:   domain.EventSignal,
			Signal: &domain.Signal{Type: sig.Type, Data: sig.Data, From: sig.From},
		})

	default:
		s.sdk.logger.Warnw("Unknown signaling message", "type", msg.Type, "session_id", s.id)
	}
}

func (s *Session) decode(msg Message, v any) bool {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		s.sdk.logger.Warnw("Invalid signaling payload", "type", msg.Type, "error", err)
		return false
	}
	return true
}

// connectionLost handles the end of a socket's read loop. Only the current
// socket of a connected session triggers a reconnect.
func (s *Session) connectionLost(conn *websocket.Conn, cause error) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	pending := s.pending
	s.pending = make(map[string]*pendingRequest)
	reconnect := s.state == stateConnected
	if reconnect {
		s.state = stateReconnecting
	}
	s.mu.Unlock()

	failPending(pending, domain.ErrSessionNotConnected)
	if !reconnect {
		return
	}

	if websocket.IsUnexpectedCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.sdk.logger.Warnw("Signaling connection lost", "session_id", s.id, "error", cause)
	} else {
		s.sdk.logger.Infow("Signaling connection closed", "session_id", s.id)
	}
	s.emit(domain.SessionEvent{Type: domain.EventSessionReconnecting})
	go s.reconnect()
}

func (s *Session) reconnect() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		// stops the ping loop of the lost socket
		cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if s.state != stateReconnecting {
		s.mu.Unlock()
		cancel()
		return
	}
	s.cancel = cancel
	s.mu.Unlock()

	cfg := s.sdk.cfg.Reconnect
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		s.sdk.logger.Infow("Reconnecting to signaling server", "session_id", s.id, "attempt", attempt, "delay", delay, "error", err)
	}
	err := retry.Retry(ctx, cfg, s.open)

	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		return
	}
	if err == nil {
		s.mu.Unlock()
		s.sdk.observer.RecordReconnect("success")
		s.sdk.logger.Infow("Session reconnected", "session_id", s.id)
		s.emit(domain.SessionEvent{Type: domain.EventSessionReconnected})
		return
	}
	s.state = stateClosed
	subs := s.clearLocked()
	s.mu.Unlock()

	cancel()
	for _, sub := range subs {
		sub.close()
	}
	s.sdk.observer.RecordReconnect("failed")
	s.sdk.logger.Errorw("Reconnect attempts exhausted", "session_id", s.id, "error", err)
	s.emit(domain.SessionEvent{Type: domain.EventSessionDisconnected, Reason: ReasonNetworkDisconnected})
}

// clearLocked drops the session snapshot and returns the removed subscribers.
func (s *Session) clearLocked() []*Subscriber {
	var subs []*Subscriber
	for _, list := range s.subscribers {
		subs = append(subs, list...)
	}
	s.subscribers = make(map[domain.StreamID][]*Subscriber)
	s.streams = nil
	s.connections = nil
	s.own = nil
	return subs
}

// Disconnect closes the socket and emits sessionDisconnected if the session
// was connected. Repeated calls are no-ops.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		return
	}
	wasLive := s.state == stateConnected || s.state == stateReconnecting
	s.state = stateClosed
	conn := s.conn
	s.conn = nil
	pending := s.pending
	s.pending = make(map[string]*pendingRequest)
	cancel := s.cancel
	subs := s.clearLocked()
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	failPending(pending, domain.ErrSessionNotConnected)
	for _, sub := range subs {
		sub.close()
	}
	if conn != nil {
		if err := s.write(conn, Message{Type: msgDisconnect, SessionID: s.id}); err != nil {
			s.sdk.logger.Debugw("Sending disconnect failed", "session_id", s.id, "error", err)
		}
		conn.Close()
	}
	s.sdk.logger.Infow("Session disconnected", "session_id", s.id)
	if wasLive {
		s.emit(domain.SessionEvent{Type: domain.EventSessionDisconnected, Reason: ReasonClientDisconnected})
	}
}

func (s *Session) Signal(sig domain.Signal, done func(error)) {
	s.send(msgSignal, signalPayload{Type: sig.Type, Data: sig.Data}, func(_ Message, err error) {
		s.sdk.complete(done, err)
	})
}

func (s *Session) Publish(pub ports.Publisher, done func(error)) {
	p, ok := pub.(*Publisher)
	if !ok || p == nil {
		s.sdk.complete(done, fmt.Errorf("%w: publisher was not created by this SDK", domain.ErrInvalidParameters))
		return
	}
	if !s.IsConnected() {
		s.sdk.complete(done, domain.ErrSessionNotConnected)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.sdk.cfg.RequestTimeout)
		defer cancel()

		sdp, err := p.offer(ctx)
		if err != nil {
			s.sdk.complete(done, err)
			return
		}

		streamID := domain.StreamID(uuid.NewString())
		opts := p.Options()
		payload := publishPayload{
			StreamID:    streamID,
			Name:        p.ID(),
			SDP:         sdp,
			HasAudio:    opts.PublishAudio,
			HasVideo:    opts.PublishVideo,
			VideoFilter: opts.VideoFilter,
		}
		s.send(msgPublish, payload, func(reply Message, err error) {
			if err == nil {
				var ack sdpAck
				if len(reply.Payload) > 0 {
					if err = json.Unmarshal(reply.Payload, &ack); err != nil {
						err = fmt.Errorf("decode publish ack: %w", err)
					}
				}
				if err == nil {
					err = p.published(s, streamID, ack.SDP)
				}
				if err == nil {
					s.addOwnStream(&domain.Stream{
						StreamID:     streamID,
						Name:         p.ID(),
						HasAudio:     opts.PublishAudio,
						HasVideo:     opts.PublishVideo,
						CreationTime: time.Now(),
					})
				}
			}
			s.sdk.complete(done, err)
		})
	}()
}

// addOwnStream records a stream published by this connection. The server does
// not echo it back as streamCreated, and handlers never see it as remote.
func (s *Session) addOwnStream(stream *domain.Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stream.Connection = s.own
	if indexStream(s.streams, stream.StreamID) < 0 {
		s.streams = append(s.streams, stream)
	}
}

func (s *Session) removeStream(id domain.StreamID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexStream(s.streams, id); i >= 0 {
		s.streams = append(s.streams[:i], s.streams[i+1:]...)
	}
}

func (s *Session) Subscribe(stream *domain.Stream, target string, opts domain.SubscriberOptions, done func(error)) ports.Subscriber {
	sub := &Subscriber{
		id:     utils.GenerateSubscriberID(),
		stream: stream,
		props: map[string]any{
			"insertMode": string(opts.InsertMode),
			"width":      opts.Width,
			"height":     opts.Height,
			"target":     target,
		},
	}
	if stream == nil {
		s.sdk.complete(done, fmt.Errorf("%w: stream is required", domain.ErrInvalidParameters))
		return sub
	}

	s.mu.Lock()
	if s.state != stateConnected {
		s.mu.Unlock()
		s.sdk.complete(done, domain.ErrSessionNotConnected)
		return sub
	}
	s.subscribers[stream.StreamID] = append(s.subscribers[stream.StreamID], sub)
	s.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.sdk.cfg.RequestTimeout)
		defer cancel()

		sdp, err := sub.offer(ctx, s.sdk.media)
		if err != nil {
			s.removeSubscriber(sub)
			sub.close()
			s.sdk.complete(done, err)
			return
		}

		payload := subscribePayload{SubscriberID: sub.id, StreamID: stream.StreamID, SDP: sdp}
		s.send(msgSubscribe, payload, func(reply Message, err error) {
			if err == nil {
				var ack sdpAck
				if len(reply.Payload) > 0 {
					if err = json.Unmarshal(reply.Payload, &ack); err != nil {
						err = fmt.Errorf("decode subscribe ack: %w", err)
					}
				}
				if err == nil {
					err = sub.accept(ack.SDP)
				}
			}
			if err != nil {
				s.removeSubscriber(sub)
				sub.close()
			}
			s.sdk.complete(done, err)
		})
	}()
	return sub
}

func (s *Session) Unsubscribe(sub ports.Subscriber) {
	p, ok := sub.(*Subscriber)
	if !ok || p == nil {
		return
	}
	removed := s.removeSubscriber(p)
	p.close()
	if removed && s.IsConnected() {
		s.send(msgUnsubscribe, unsubscribePayload{SubscriberID: p.id, StreamID: p.stream.StreamID}, nil)
	}
}

func (s *Session) removeSubscriber(sub *Subscriber) bool {
	if sub.stream == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.subscribers[sub.stream.StreamID]
	for i, candidate := range list {
		if candidate == sub {
			list = append(list[:i], list[i+1:]...)
			if len(list) == 0 {
				delete(s.subscribers, sub.stream.StreamID)
			} else {
				s.subscribers[sub.stream.StreamID] = list
			}
			return true
		}
	}
	return false
}

func (s *Session) Streams() []*domain.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Stream, len(s.streams))
	copy(out, s.streams)
	return out
}

func (s *Session) SubscribersForStream(stream *domain.Stream) []ports.Subscriber {
	if stream == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.subscribers[stream.StreamID]
	out := make([]ports.Subscriber, 0, len(list))
	for _, sub := range list {
		out = append(out, sub)
	}
	return out
}

func (s *Session) Connections() []*domain.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Connection, len(s.connections))
	copy(out, s.connections)
	return out
}

func (s *Session) Connection() *domain.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.own
}

func (s *Session) ownID() domain.ConnectionID {
	if own := s.Connection(); own != nil {
		return own.ConnectionID
	}
	return ""
}

func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateConnected
}

func (s *Session) On(event domain.SessionEventType, handler ports.SessionHandler) ports.HandlerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextHandler++
	s.handlers = append(s.handlers, registeredHandler{id: s.nextHandler, event: event, fn: handler})
	return s.nextHandler
}

// OnMany registers handlers in event name order.
func (s *Session) OnMany(handlers map[domain.SessionEventType]ports.SessionHandler) []ports.HandlerID {
	events := make([]domain.SessionEventType, 0, len(handlers))
	for event := range handlers {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i] < events[j] })

	ids := make([]ports.HandlerID, 0, len(events))
	for _, event := range events {
		ids = append(ids, s.On(event, handlers[event]))
	}
	return ids
}

func (s *Session) Off(ids ...ports.HandlerID) {
	remove := make(map[ports.HandlerID]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.handlers[:0]
	for _, h := range s.handlers {
		if !remove[h.id] {
			kept = append(kept, h)
		}
	}
	s.handlers = kept
}

func (s *Session) OffAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = nil
}

// emit delivers ev to the handlers registered for its type at delivery time.
func (s *Session) emit(ev domain.SessionEvent) {
	s.sdk.events.post(func() {
		s.mu.Lock()
		var fns []ports.SessionHandler
		for _, h := range s.handlers {
			if h.event == ev.Type {
				fns = append(fns, h.fn)
			}
		}
		s.mu.Unlock()
		for _, fn := range fns {
			fn(ev)
		}
	})
}

// send issues a request and resolves it on its ack, a timeout or loss of the
// socket. resolve runs on the read goroutine and may be nil.
func (s *Session) send(msgType string, payload any, resolve func(Message, error)) {
	ctx, span := tracing.TraceSignal(context.Background(), msgType, s.id)
	start := time.Now()
	var once sync.Once
	finish := func(reply Message, err error) {
		once.Do(func() {
			tracing.RecordError(ctx, err)
			tracing.MeasureDuration(ctx, start)
			span.End()
			s.sdk.observer.RecordSignalRequest(msgType, time.Since(start))
			if err != nil {
				s.sdk.logger.Debugw("Signaling request failed", "type", msgType, "session_id", s.id, "error", err)
			}
			if resolve != nil {
				resolve(reply, err)
			}
		})
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		finish(Message{}, fmt.Errorf("encode %s: %w", msgType, err))
		return
	}
	msg := Message{Type: msgType, RequestID: utils.GenerateRequestID(), SessionID: s.id, Payload: raw}

	s.mu.Lock()
	allowed := s.state == stateConnected ||
		(msgType == msgConnect && (s.state == stateConnecting || s.state == stateReconnecting))
	conn := s.conn
	if !allowed || conn == nil {
		s.mu.Unlock()
		finish(Message{}, domain.ErrSessionNotConnected)
		return
	}
	msg.ConnectionID = s.ownIDLocked()
	req := &pendingRequest{finish: finish}
	req.timer = time.AfterFunc(s.sdk.cfg.RequestTimeout, func() {
		if s.takePending(msg.RequestID) != nil {
			finish(Message{}, fmt.Errorf("%s: %w", msgType, errRequestTimeout))
		}
	})
	s.pending[msg.RequestID] = req
	s.mu.Unlock()

	tracing.AddSpanAttributes(ctx, tracing.ConnectionIDKey.String(string(msg.ConnectionID)))
	if streamID := payloadStreamID(payload); streamID != "" {
		tracing.AddSpanAttributes(ctx, tracing.StreamIDKey.String(string(streamID)))
	}

	if err := s.write(conn, msg); err != nil {
		if s.takePending(msg.RequestID) != nil {
			req.timer.Stop()
			finish(Message{}, fmt.Errorf("write %s: %w", msgType, err))
		}
	}
}

func payloadStreamID(payload any) domain.StreamID {
	switch p := payload.(type) {
	case publishPayload:
		return p.StreamID
	case unpublishPayload:
		return p.StreamID
	case subscribePayload:
		return p.StreamID
	case unsubscribePayload:
		return p.StreamID
	}
	return ""
}

// roundTrip sends a request and blocks until it resolves.
func (s *Session) roundTrip(ctx context.Context, msgType string, payload any) (Message, error) {
	type result struct {
		msg Message
		err error
	}
	ch := make(chan result, 1)
	s.send(msgType, payload, func(reply Message, err error) {
		ch <- result{reply, err}
	})
	select {
	case r := <-ch:
		return r.msg, r.err
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (s *Session) ownIDLocked() domain.ConnectionID {
	if s.own == nil {
		return ""
	}
	return s.own.ConnectionID
}

func (s *Session) takePending(requestID string) *pendingRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.pending[requestID]
	if !ok {
		return nil
	}
	delete(s.pending, requestID)
	return req
}

func (s *Session) write(conn *websocket.Conn, msg Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(s.sdk.cfg.WriteTimeout))
	return conn.WriteJSON(msg)
}

func failPending(pending map[string]*pendingRequest, err error) {
	for _, req := range pending {
		req.timer.Stop()
		req.finish(Message{}, err)
	}
}

func indexConnection(list []*domain.Connection, id domain.ConnectionID) int {
	for i, c := range list {
		if c.ConnectionID == id {
			return i
		}
	}
	return -1
}

func indexStream(list []*domain.Stream, id domain.StreamID) int {
	for i, st := range list {
		if st.StreamID == id {
			return i
		}
	}
	return -1
}

// Subscriber implements ports.Subscriber.
type Subscriber struct {
	id     string
	stream *domain.Stream
	props  map[string]any

	mu     sync.Mutex
	media  MediaPeer
	closed bool
}

func (s *Subscriber) ID() string                 { return s.id }
func (s *Subscriber) Stream() *domain.Stream     { return s.stream }
func (s *Subscriber) Properties() map[string]any { return s.props }

func (s *Subscriber) offer(ctx context.Context, engine MediaEngine) (string, error) {
	if engine == nil {
		return "", nil
	}
	media, err := engine.NewSubscriberPeer(s.stream)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = media.Close()
		return "", errors.New("subscriber closed")
	}
	s.media = media
	s.mu.Unlock()
	return media.Offer(ctx)
}

func (s *Subscriber) accept(answer string) error {
	s.mu.Lock()
	media := s.media
	s.mu.Unlock()
	if media == nil || answer == "" {
		return nil
	}
	return media.Answer(answer)
}

func (s *Subscriber) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	media := s.media
	s.media = nil
	s.mu.Unlock()
	if media != nil {
		_ = media.Close()
	}
}
