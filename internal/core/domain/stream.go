package domain

import (
	"time"
)

type ConnectionID string
type StreamID string

// Connection is a read-only view of a session participant.
type Connection struct {
	ConnectionID    ConnectionID    `json:"connection_id"`
	CreationTime    time.Time       `json:"creation_time"`
	Destroyed       bool            `json:"destroyed,omitempty"`
	DestroyedReason string          `json:"destroyed_reason,omitempty"`
	Capabilities    map[string]bool `json:"capabilities,omitempty"`
	Permissions     map[string]bool `json:"permissions,omitempty"`
	Quality         string          `json:"quality,omitempty"`
	Role            string          `json:"role,omitempty"`
	Data            string          `json:"data,omitempty"`
}

const RolePublisher = "publisher"

type Stream struct {
	StreamID     StreamID    `json:"stream_id"`
	Name         string      `json:"name,omitempty"`
	Connection   *Connection `json:"connection,omitempty"`
	HasAudio     bool        `json:"has_audio"`
	HasVideo     bool        `json:"has_video"`
	CreationTime time.Time   `json:"creation_time"`
}

// OwnerID returns the id of the connection that published the stream.
func (s *Stream) OwnerID() ConnectionID {
	if s == nil || s.Connection == nil {
		return ""
	}
	return s.Connection.ConnectionID
}

type Signal struct {
	Type string       `json:"type"`
	Data string       `json:"data"`
	From ConnectionID `json:"from,omitempty"`
}

type InsertMode string

const InsertAppend InsertMode = "append"

type VideoFilterType string

const (
	FilterBackgroundBlur        VideoFilterType = "backgroundBlur"
	FilterBackgroundReplacement VideoFilterType = "backgroundReplacement"
)

type VideoFilter struct {
	Type             VideoFilterType `json:"type"`
	BlurStrength     string          `json:"blur_strength,omitempty"`
	BackgroundImgURL string          `json:"background_img_url,omitempty"`
}

type PublisherOptions struct {
	InsertMode   InsertMode   `json:"insert_mode"`
	Width        string       `json:"width"`
	Height       string       `json:"height"`
	PublishAudio bool         `json:"publish_audio"`
	PublishVideo bool         `json:"publish_video"`
	VideoFilter  *VideoFilter `json:"video_filter,omitempty"`
}

type SubscriberOptions struct {
	InsertMode InsertMode `json:"insert_mode"`
	Width      string     `json:"width"`
	Height     string     `json:"height"`
}
