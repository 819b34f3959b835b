package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"callbridge/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type EventType string

const EventWorkflowAction EventType = "workflow.action"

// Event is a message published on the action channel.
type Event struct {
	Type       EventType             `json:"type"`
	InstanceID string                `json:"instance_id"`
	Timestamp  time.Time             `json:"timestamp"`
	Action     *domain.ActionRequest `json:"action,omitempty"`
}

// EventBus carries workflow actions between agents and the platform runtime
// over a Redis pub/sub channel.
type EventBus struct {
	client     *redis.Client
	instanceID string
	channel    string
	logger     *zap.SugaredLogger
}

func NewEventBus(client *redis.Client, instanceID, channel string, logger *zap.SugaredLogger) *EventBus {
	return &EventBus{
		client:     client,
		instanceID: instanceID,
		channel:    channel,
		logger:     logger,
	}
}

func (eb *EventBus) Channel() string {
	return eb.channel
}

// Publish stamps and publishes event, returning the number of receivers.
func (eb *EventBus) Publish(ctx context.Context, event *Event) (int64, error) {
	event.InstanceID = eb.instanceID
	event.Timestamp = time.Now()

	data, err := EncodeEvent(event)
	if err != nil {
		return 0, err
	}

	receivers, err := eb.client.Publish(ctx, eb.channel, data).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.Debugw("published event",
		"type", event.Type,
		"channel", eb.channel,
		"receivers", receivers,
	)
	return receivers, nil
}

func (eb *EventBus) PublishAction(ctx context.Context, req domain.ActionRequest) (int64, error) {
	return eb.Publish(ctx, &Event{Type: EventWorkflowAction, Action: &req})
}

// Subscribe delivers events from other instances to handler until ctx is done.
func (eb *EventBus) Subscribe(ctx context.Context, handler func(*Event) error) error {
	pubsub := eb.client.Subscribe(ctx, eb.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", eb.channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			event, err := DecodeEvent([]byte(msg.Payload))
			if err != nil {
				eb.logger.Warnw("failed to unmarshal event",
					"error", err,
					"payload", msg.Payload,
				)
				continue
			}
			if event.InstanceID == eb.instanceID {
				continue
			}
			if err := handler(event); err != nil {
				eb.logger.Warnw("error handling event",
					"type", event.Type,
					"error", err,
				)
			}
		}
	}
}

func EncodeEvent(event *Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}

func DecodeEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	if event.Type == "" {
		return nil, fmt.Errorf("event has no type")
	}
	return &event, nil
}
