package distributed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"sportshub/internal/core/domain"
	"sportshub/internal/core/ports"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventType represents the type of event
type EventType string

const (
	EventGameUpdate    EventType = "game.update"
	EventSessionNotice EventType = "session.notice"
)

const DefaultChannel = "sportshub:events"

var ErrAlreadySubscribed = errors.New("event bus already subscribed")

// Event represents a distributed event
type Event struct {
	Type       EventType        `json:"type"`
	InstanceID string           `json:"instance_id"`
	Timestamp  time.Time        `json:"timestamp"`
	SessionID  domain.SessionID `json:"session_id,omitempty"`
	Payload    json.RawMessage  `json:"payload,omitempty"`
}

// SessionNotice is the payload of an EventSessionNotice.
type SessionNotice struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EventBus carries game events and session notices between instances over
// one Redis pub/sub channel. Each instance ignores its own events.
type EventBus struct {
	client     redis.UniversalClient
	channel    string
	instanceID string
	clock      clockwork.Clock
	logger     *zap.SugaredLogger

	mu     sync.Mutex
	pubsub *redis.PubSub
}

func NewEventBus(
	client redis.UniversalClient,
	channel string,
	instanceID string,
	logger *zap.SugaredLogger,
) *EventBus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &EventBus{
		client:     client,
		channel:    channel,
		instanceID: instanceID,
		clock:      clockwork.NewRealClock(),
		logger:     logger,
	}
}

func (eb *EventBus) InstanceID() string {
	return eb.instanceID
}

// Publish publishes an event to the event bus
func (eb *EventBus) Publish(ctx context.Context, event *Event) error {
	event.InstanceID = eb.instanceID
	event.Timestamp = eb.clock.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := eb.client.Publish(ctx, eb.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.Debugw("Published event",
		"type", event.Type,
		"session_id", event.SessionID,
	)
	return nil
}

func (eb *EventBus) PublishGameUpdate(ctx context.Context, update domain.GameUpdateEvent) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal game update: %w", err)
	}
	return eb.Publish(ctx, &Event{Type: EventGameUpdate, Payload: payload})
}

func (eb *EventBus) PublishSessionNotice(ctx context.Context, sessionID domain.SessionID, event string, data interface{}) error {
	notice := SessionNotice{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal session notice: %w", err)
		}
		notice.Data = raw
	}

	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal session notice: %w", err)
	}
	return eb.Publish(ctx, &Event{Type: EventSessionNotice, SessionID: sessionID, Payload: payload})
}

// Subscribe calls handler for every event from other instances until ctx is
// done. Handler errors are logged and do not stop the loop.
func (eb *EventBus) Subscribe(ctx context.Context, handler func(context.Context, *Event) error) error {
	eb.mu.Lock()
	if eb.pubsub != nil {
		eb.mu.Unlock()
		return ErrAlreadySubscribed
	}
	pubsub := eb.client.Subscribe(ctx, eb.channel)
	eb.pubsub = pubsub
	eb.mu.Unlock()

	defer func() {
		eb.mu.Lock()
		eb.pubsub = nil
		eb.mu.Unlock()
		_ = pubsub.Close()
	}()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				eb.logger.Warnw("Failed to unmarshal event",
					"error", err,
					"payload", msg.Payload,
				)
				continue
			}

			if event.InstanceID == eb.instanceID {
				continue
			}

			if err := handler(ctx, &event); err != nil {
				eb.logger.Warnw("Error handling event",
					"type", event.Type,
					"instance_id", event.InstanceID,
					"error", err,
				)
			}
		}
	}
}

// Close ends an active subscription.
func (eb *EventBus) Close() error {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.pubsub != nil {
		return eb.pubsub.Close()
	}
	return nil
}

// LocalDelivery is the in-process fan-out an instance owns.
type LocalDelivery interface {
	ports.GameEventPublisher
	ports.SessionNotifier
}

// ClusterFanout delivers to this instance's connections first and then
// forwards the same event to every other instance on the bus.
type ClusterFanout struct {
	local  LocalDelivery
	bus    *EventBus
	logger *zap.SugaredLogger
}

func NewClusterFanout(local LocalDelivery, bus *EventBus, logger *zap.SugaredLogger) *ClusterFanout {
	return &ClusterFanout{local: local, bus: bus, logger: logger}
}

func (f *ClusterFanout) PublishGameUpdate(ctx context.Context, event domain.GameUpdateEvent) error {
	if err := f.local.PublishGameUpdate(ctx, event); err != nil {
		return err
	}
	return f.bus.PublishGameUpdate(ctx, event)
}

func (f *ClusterFanout) NotifySession(ctx context.Context, sessionID domain.SessionID, event string, payload interface{}) error {
	if err := f.local.NotifySession(ctx, sessionID, event, payload); err != nil {
		return err
	}
	return f.bus.PublishSessionNotice(ctx, sessionID, event, payload)
}

// Run delivers events from other instances to local connections until ctx
// is done.
func (f *ClusterFanout) Run(ctx context.Context) error {
	f.logger.Infow("Event bus subscribed",
		"channel", f.bus.channel,
		"instance_id", f.bus.instanceID,
	)
	err := f.bus.Subscribe(ctx, f.deliver)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (f *ClusterFanout) deliver(ctx context.Context, event *Event) error {
	switch event.Type {
	case EventGameUpdate:
		var update domain.GameUpdateEvent
		if err := json.Unmarshal(event.Payload, &update); err != nil {
			return fmt.Errorf("failed to decode game update: %w", err)
		}
		return f.local.PublishGameUpdate(ctx, update)

	case EventSessionNotice:
		var notice SessionNotice
		if err := json.Unmarshal(event.Payload, &notice); err != nil {
			return fmt.Errorf("failed to decode session notice: %w", err)
		}
		var data interface{}
		if len(notice.Data) > 0 {
			data = notice.Data
		}
		return f.local.NotifySession(ctx, event.SessionID, notice.Event, data)

	default:
		return fmt.Errorf("unknown event type %q", event.Type)
	}
}
