package ports

import (
	"callbridge/internal/core/domain"
)

type HandlerID uint64

type SessionHandler func(domain.SessionEvent)

// VideoSDK creates sessions and publishers. Completion callbacks run on the
// session's dispatch goroutine and fire exactly once.
type VideoSDK interface {
	InitSession(apiKey, sessionID string) (VideoSession, error)
	InitPublisher(target string, opts domain.PublisherOptions, done func(error)) Publisher
}

type VideoSession interface {
	ID() string
	Connect(token string, done func(error))
	Disconnect()
	Signal(sig domain.Signal, done func(error))
	Publish(pub Publisher, done func(error))
	Subscribe(stream *domain.Stream, target string, opts domain.SubscriberOptions, done func(error)) Subscriber
	Unsubscribe(sub Subscriber)

	Streams() []*domain.Stream
	SubscribersForStream(stream *domain.Stream) []Subscriber
	Connections() []*domain.Connection
	// Connection returns the session's own connection, nil until connected.
	Connection() *domain.Connection
	IsConnected() bool

	On(event domain.SessionEventType, handler SessionHandler) HandlerID
	OnMany(handlers map[domain.SessionEventType]SessionHandler) []HandlerID
	Off(ids ...HandlerID)
	OffAll()
}

type Publisher interface {
	ID() string
	Options() domain.PublisherOptions
	Destroy()
}

type Subscriber interface {
	ID() string
	Stream() *domain.Stream
	Properties() map[string]any
}
