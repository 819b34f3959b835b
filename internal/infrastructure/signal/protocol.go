package signal

import (
	"encoding/json"

	"callbridge/internal/core/domain"
)

// Frame types exchanged with the signaling server.
const (
	msgConnect     = "connect"
	msgSignal      = "signal"
	msgPublish     = "publish"
	msgUnpublish   = "unpublish"
	msgSubscribe   = "subscribe"
	msgUnsubscribe = "unsubscribe"
	msgDisconnect  = "disconnect"

	msgAck                 = "ack"
	msgConnectionCreated   = "connection_created"
	msgConnectionDestroyed = "connection_destroyed"
	msgStreamCreated       = "stream_created"
	msgStreamDestroyed     = "stream_destroyed"
)

// Reasons carried by sessionDisconnected.
const (
	ReasonClientDisconnected  = "clientDisconnected"
	ReasonNetworkDisconnected = "networkDisconnected"
)

// Message is one JSON frame on the signaling socket.
type Message struct {
	Type         string              `json:"type"`
	RequestID    string              `json:"request_id,omitempty"`
	SessionID    string              `json:"session_id,omitempty"`
	ConnectionID domain.ConnectionID `json:"connection_id,omitempty"`
	Error        string              `json:"error,omitempty"`
	Payload      json.RawMessage     `json:"payload,omitempty"`
}

type connectPayload struct {
	Token  string `json:"token"`
	APIKey string `json:"api_key"`
}

type connectAck struct {
	Connection  *domain.Connection   `json:"connection"`
	Connections []*domain.Connection `json:"connections"`
	Streams     []*domain.Stream     `json:"streams"`
}

type signalPayload struct {
	Type string              `json:"type"`
	Data string              `json:"data"`
	From domain.ConnectionID `json:"from,omitempty"`
}

type publishPayload struct {
	StreamID    domain.StreamID     `json:"stream_id"`
	Name        string              `json:"name"`
	SDP         string              `json:"sdp,omitempty"`
	HasAudio    bool                `json:"has_audio"`
	HasVideo    bool                `json:"has_video"`
	VideoFilter *domain.VideoFilter `json:"video_filter,omitempty"`
}

type unpublishPayload struct {
	StreamID domain.StreamID `json:"stream_id"`
}

type subscribePayload struct {
	SubscriberID string          `json:"subscriber_id"`
	StreamID     domain.StreamID `json:"stream_id"`
	SDP          string          `json:"sdp,omitempty"`
}

type unsubscribePayload struct {
	SubscriberID string          `json:"subscriber_id"`
	StreamID     domain.StreamID `json:"stream_id"`
}

// sdpAck is the payload of publish and subscribe acks.
type sdpAck struct {
	SDP string `json:"sdp"`
}

type connectionEvent struct {
	Connection *domain.Connection `json:"connection"`
	Reason     string             `json:"reason,omitempty"`
}

type streamEvent struct {
	Stream *domain.Stream `json:"stream"`
	Reason string         `json:"reason,omitempty"`
}
