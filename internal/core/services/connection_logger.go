package services

import (
	"net/url"
	"sort"
	"time"

	"callbridge/internal/core/domain"
	"callbridge/internal/core/ports"

	"go.uber.org/zap"
)

const (
	LabelCurrentConnections      = "Current Connections"
	LabelDisconnectedConnections = "Disconnected Connections"

	defaultDestroyedReason = "N/A"
	defaultQuality         = "Unknown"
	defaultStreamRef       = "Unknown"
	defaultStreamName      = "Unnamed Stream"
)

// ConnectionRecord is the diagnostic projection of one session connection.
type ConnectionRecord struct {
	ConnectionID    domain.ConnectionID `json:"connectionId"`
	Metadata        map[string]string   `json:"metadata"`
	CreationTime    time.Time           `json:"creationTime"`
	Destroyed       bool                `json:"destroyed"`
	DestroyedReason string              `json:"destroyedReason"`
	Capabilities    map[string]bool     `json:"capabilities"`
	Permissions     map[string]bool     `json:"permissions"`
	Quality         string              `json:"quality"`
	Role            string              `json:"role"`
	AllKeys         []string            `json:"allKeys"`
}

// SubscriberRecord is the diagnostic projection of one subscriber.
type SubscriberRecord struct {
	SubscriberID string         `json:"subscriberId"`
	StreamID     string         `json:"streamId"`
	ConnectionID string         `json:"connectionId"`
	StreamName   string         `json:"streamName"`
	Properties   map[string]any `json:"subscriberProperties"`
}

// ConnectionLogger emits structured records about a session's participants.
// It only reads from the session.
type ConnectionLogger struct {
	logger *zap.SugaredLogger
}

func NewConnectionLogger(logger *zap.SugaredLogger) *ConnectionLogger {
	return &ConnectionLogger{logger: logger}
}

// LogConnections logs and returns one record per connection.
func (l *ConnectionLogger) LogConnections(connections []*domain.Connection, label string) []ConnectionRecord {
	records := make([]ConnectionRecord, 0, len(connections))
	for _, conn := range connections {
		if conn == nil {
			continue
		}
		records = append(records, newConnectionRecord(conn))
	}

	if len(records) == 0 {
		l.logger.Infow("No " + label + " found.")
		return records
	}

	l.logger.Infow(label, "count", len(records))
	for i, rec := range records {
		l.logger.Infow("Connection",
			"label", label,
			"index", i+1,
			"connectionId", rec.ConnectionID,
			"metadata", rec.Metadata,
			"creationTime", rec.CreationTime,
			"destroyed", rec.Destroyed,
			"destroyedReason", rec.DestroyedReason,
			"capabilities", rec.Capabilities,
			"permissions", rec.Permissions,
			"quality", rec.Quality,
			"role", rec.Role,
			"allKeys", rec.AllKeys,
		)
	}
	return records
}

// NotifyConnections logs the session's connections under the current or
// disconnected label. Nothing is logged except a warning when the session is
// absent or not connected.
func (l *ConnectionLogger) NotifyConnections(session ports.VideoSession, disconnected bool) []ConnectionRecord {
	if session == nil || !session.IsConnected() {
		l.logger.Warnw("Session is not connected, cannot list connections")
		return nil
	}

	label := LabelCurrentConnections
	if disconnected {
		label = LabelDisconnectedConnections
	}
	return l.LogConnections(session.Connections(), label)
}

// LogSubscribers logs and returns one record per subscriber of a connected session.
func (l *ConnectionLogger) LogSubscribers(subscribers []ports.Subscriber, session ports.VideoSession) []SubscriberRecord {
	if session == nil || !session.IsConnected() {
		l.logger.Warnw("Session is not connected, cannot list subscribers")
		return nil
	}

	records := make([]SubscriberRecord, 0, len(subscribers))
	for _, sub := range subscribers {
		if sub == nil {
			continue
		}
		records = append(records, newSubscriberRecord(sub))
	}

	if len(records) == 0 {
		l.logger.Infow("No active subscribers found.")
		return records
	}

	for i, rec := range records {
		l.logger.Infow("Subscriber",
			"index", i+1,
			"subscriberId", rec.SubscriberID,
			"streamId", rec.StreamID,
			"connectionId", rec.ConnectionID,
			"streamName", rec.StreamName,
			"subscriberProperties", rec.Properties,
		)
	}
	return records
}

// ParseConnectionData decodes the query-string encoded connection data
// ("role=agent&name=Ana") into a flat map. Keys repeated in the input keep
// their first value; malformed pairs are dropped.
func ParseConnectionData(data string) map[string]string {
	out := make(map[string]string)
	if data == "" {
		return out
	}
	values, _ := url.ParseQuery(data)
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func newConnectionRecord(conn *domain.Connection) ConnectionRecord {
	rec := ConnectionRecord{
		ConnectionID:    conn.ConnectionID,
		Metadata:        ParseConnectionData(conn.Data),
		CreationTime:    conn.CreationTime,
		Destroyed:       conn.Destroyed,
		DestroyedReason: conn.DestroyedReason,
		Capabilities:    conn.Capabilities,
		Permissions:     conn.Permissions,
		Quality:         conn.Quality,
		Role:            conn.Role,
		AllKeys:         populatedKeys(conn),
	}
	if rec.DestroyedReason == "" {
		rec.DestroyedReason = defaultDestroyedReason
	}
	if rec.Capabilities == nil {
		rec.Capabilities = map[string]bool{}
	}
	if rec.Permissions == nil {
		rec.Permissions = map[string]bool{}
	}
	if rec.Quality == "" {
		rec.Quality = defaultQuality
	}
	return rec
}

func populatedKeys(conn *domain.Connection) []string {
	keys := []string{"connectionId"}
	if !conn.CreationTime.IsZero() {
		keys = append(keys, "creationTime")
	}
	if conn.Destroyed {
		keys = append(keys, "destroyed")
	}
	if conn.DestroyedReason != "" {
		keys = append(keys, "destroyedReason")
	}
	if conn.Capabilities != nil {
		keys = append(keys, "capabilities")
	}
	if conn.Permissions != nil {
		keys = append(keys, "permissions")
	}
	if conn.Quality != "" {
		keys = append(keys, "quality")
	}
	if conn.Role != "" {
		keys = append(keys, "role")
	}
	if conn.Data != "" {
		keys = append(keys, "data")
	}
	sort.Strings(keys)
	return keys
}

func newSubscriberRecord(sub ports.Subscriber) SubscriberRecord {
	rec := SubscriberRecord{
		SubscriberID: sub.ID(),
		StreamID:     defaultStreamRef,
		ConnectionID: defaultStreamRef,
		StreamName:   defaultStreamName,
		Properties:   sub.Properties(),
	}
	if stream := sub.Stream(); stream != nil {
		if stream.StreamID != "" {
			rec.StreamID = string(stream.StreamID)
		}
		if owner := stream.OwnerID(); owner != "" {
			rec.ConnectionID = string(owner)
		}
		if stream.Name != "" {
			rec.StreamName = stream.Name
		}
	}
	if rec.Properties == nil {
		rec.Properties = map[string]any{}
	}
	return rec
}
