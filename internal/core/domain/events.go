package domain

type SessionEventType string

const (
	EventConnectionCreated   SessionEventType = "connectionCreated"
	EventConnectionDestroyed SessionEventType = "connectionDestroyed"
	EventStreamCreated       SessionEventType = "streamCreated"
	EventStreamDestroyed     SessionEventType = "streamDestroyed"
	EventSessionDisconnected SessionEventType = "sessionDisconnected"
	EventSessionReconnecting SessionEventType = "sessionReconnecting"
	EventSessionReconnected  SessionEventType = "sessionReconnected"
	EventSignal              SessionEventType = "signal"
)

// SessionEvent carries whichever of Connection/Stream/Signal applies to Type.
type SessionEvent struct {
	Type       SessionEventType
	Connection *Connection
	Stream     *Stream
	Signal     *Signal
	Reason     string
}

type HostEventType string

const (
	HostOnline           HostEventType = "online"
	HostOffline          HostEventType = "offline"
	HostVisibilityChange HostEventType = "visibilitychange"
	HostBeforeUnload     HostEventType = "beforeunload"
)
