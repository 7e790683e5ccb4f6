package realtime

import (
	"sync"

	"sportshub/internal/core/domain"
	"sportshub/internal/core/ports"

	"go.uber.org/zap"
)

// Broadcaster routes events to the connections subscribed to named topics.
// It does not know what topics mean; callers pick the topic set.
type Broadcaster struct {
	transport ports.Transport
	metrics   Metrics
	logger    *zap.SugaredLogger

	mu sync.RWMutex
	// connections holds every connected id and the topics it belongs to.
	connections map[domain.ConnectionID]map[domain.Topic]struct{}
	topics      map[domain.Topic]map[domain.ConnectionID]struct{}
}

func NewBroadcaster(transport ports.Transport, logger *zap.SugaredLogger, opts ...Option) *Broadcaster {
	o := buildOptions(opts)
	return &Broadcaster{
		transport:   transport,
		metrics:     o.metrics,
		logger:      logger,
		connections: make(map[domain.ConnectionID]map[domain.Topic]struct{}),
		topics:      make(map[domain.Topic]map[domain.ConnectionID]struct{}),
	}
}

// Connect registers a connection. Calling it twice is harmless.
func (b *Broadcaster) Connect(id domain.ConnectionID) {
	b.mu.Lock()
	if _, ok := b.connections[id]; !ok {
		b.connections[id] = make(map[domain.Topic]struct{})
	}
	count := len(b.connections)
	b.mu.Unlock()

	b.metrics.SetActiveConnections(count)
}

// Disconnect removes the connection from every topic it joined.
func (b *Broadcaster) Disconnect(id domain.ConnectionID) {
	b.mu.Lock()
	subscribed, ok := b.connections[id]
	if !ok {
		b.mu.Unlock()
		return
	}
	for topic := range subscribed {
		b.removeMemberLocked(topic, id)
	}
	delete(b.connections, id)
	count, topicCount := len(b.connections), len(b.topics)
	b.mu.Unlock()

	b.metrics.SetActiveConnections(count)
	b.metrics.SetActiveTopics(topicCount)
	b.logger.Debugw("connection removed from broadcaster",
		"connection_id", id,
		"topics", len(subscribed),
	)
}

// Subscribe adds the connection to topic. It reports whether membership
// changed; subscribing twice is a no-op. Unknown connections are ignored.
func (b *Broadcaster) Subscribe(id domain.ConnectionID, topic domain.Topic) bool {
	b.mu.Lock()
	subscribed, ok := b.connections[id]
	if !ok {
		b.mu.Unlock()
		b.logger.Debugw("subscribe from unknown connection ignored",
			"connection_id", id,
			"topic", topic,
		)
		return false
	}
	if _, already := subscribed[topic]; already {
		b.mu.Unlock()
		return false
	}

	subscribed[topic] = struct{}{}
	members, exists := b.topics[topic]
	if !exists {
		members = make(map[domain.ConnectionID]struct{})
		b.topics[topic] = members
	}
	members[id] = struct{}{}
	topicCount := len(b.topics)
	b.mu.Unlock()

	b.metrics.SetActiveTopics(topicCount)
	return true
}

// Unsubscribe removes the connection from topic if it was a member.
func (b *Broadcaster) Unsubscribe(id domain.ConnectionID, topic domain.Topic) bool {
	b.mu.Lock()
	subscribed, ok := b.connections[id]
	if !ok {
		b.mu.Unlock()
		return false
	}
	if _, member := subscribed[topic]; !member {
		b.mu.Unlock()
		return false
	}

	delete(subscribed, topic)
	b.removeMemberLocked(topic, id)
	topicCount := len(b.topics)
	b.mu.Unlock()

	b.metrics.SetActiveTopics(topicCount)
	return true
}

func (b *Broadcaster) removeMemberLocked(topic domain.Topic, id domain.ConnectionID) {
	members, ok := b.topics[topic]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(b.topics, topic)
	}
}

// Publish sends one copy of the event to every connection subscribed to at
// least one of topics and returns how many sends succeeded. Failed sends are
// logged and skipped.
func (b *Broadcaster) Publish(event string, data interface{}, topics ...domain.Topic) int {
	recipients := b.recipients(topics)
	if len(recipients) == 0 {
		b.metrics.RecordPublish(event, 0)
		return 0
	}

	msg := domain.NewOutboundMessage(event, data)
	delivered := 0
	for _, id := range recipients {
		if err := b.transport.Send(id, msg); err != nil {
			b.metrics.RecordDeliveryFailure(event)
			b.logger.Warnw("failed to deliver event",
				"event", event,
				"connection_id", id,
				"error", err,
			)
			continue
		}
		delivered++
	}

	b.metrics.RecordPublish(event, delivered)
	return delivered
}

// recipients snapshots the deduplicated member set of topics.
func (b *Broadcaster) recipients(topics []domain.Topic) []domain.ConnectionID {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[domain.ConnectionID]struct{})
	var out []domain.ConnectionID
	for _, topic := range topics {
		for id := range b.topics[topic] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func (b *Broadcaster) ConnectionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.connections)
}

func (b *Broadcaster) SubscriberCount(topic domain.Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *Broadcaster) TopicCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics)
}

// TopicsOf returns the topics a connection is subscribed to.
func (b *Broadcaster) TopicsOf(id domain.ConnectionID) []domain.Topic {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]domain.Topic, 0, len(b.connections[id]))
	for topic := range b.connections[id] {
		out = append(out, topic)
	}
	return out
}
