package realtime

import (
	"fmt"
	"sync"
	"testing"

	"sportshub/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestBroadcaster(t *testing.T) (*Broadcaster, *fakeTransport) {
	transport := newFakeTransport()
	return NewBroadcaster(transport, zaptest.NewLogger(t).Sugar()), transport
}

func TestBroadcaster_SubscribeThenPublish(t *testing.T) {
	b, transport := newTestBroadcaster(t)
	b.Connect("c1")

	assert.True(t, b.Subscribe("c1", domain.TopicAll))

	delivered := b.Publish("game_update", "payload", domain.TopicAll)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, []sent{{Event: "game_update", Data: "payload"}}, transport.received("c1"))
}

func TestBroadcaster_SubscribeIsIdempotent(t *testing.T) {
	b, transport := newTestBroadcaster(t)
	b.Connect("c1")

	assert.True(t, b.Subscribe("c1", domain.SportTopic("nfl")))
	assert.False(t, b.Subscribe("c1", domain.SportTopic("nfl")))
	assert.Equal(t, 1, b.SubscriberCount(domain.SportTopic("nfl")))

	b.Publish("game_update", nil, domain.SportTopic("nfl"))
	assert.Len(t, transport.received("c1"), 1)
}

func TestBroadcaster_UnsubscribeStopsDelivery(t *testing.T) {
	b, transport := newTestBroadcaster(t)
	b.Connect("c1")
	b.Subscribe("c1", domain.GameTopic("g1"))

	assert.True(t, b.Unsubscribe("c1", domain.GameTopic("g1")))
	assert.False(t, b.Unsubscribe("c1", domain.GameTopic("g1")))

	assert.Equal(t, 0, b.Publish("score_update", nil, domain.GameTopic("g1")))
	assert.Empty(t, transport.received("c1"))
	assert.Equal(t, 0, b.TopicCount())
}

func TestBroadcaster_UnsubscribeAbsentIsNoop(t *testing.T) {
	b, _ := newTestBroadcaster(t)
	b.Connect("c1")

	assert.False(t, b.Unsubscribe("c1", domain.TopicAll))
	assert.False(t, b.Unsubscribe("unknown", domain.TopicAll))
}

func TestBroadcaster_GameEventFanOut(t *testing.T) {
	b, transport := newTestBroadcaster(t)

	subscriptions := map[domain.ConnectionID][]domain.Topic{
		"all-only":   {domain.TopicAll},
		"sport-only": {domain.SportTopic("soccer")},
		"game-only":  {domain.GameTopic("g1")},
		"everything": {domain.TopicAll, domain.SportTopic("soccer"), domain.GameTopic("g1")},
		"other":      {domain.SportTopic("nba"), domain.GameTopic("g2")},
	}
	for id, topics := range subscriptions {
		b.Connect(id)
		for _, topic := range topics {
			b.Subscribe(id, topic)
		}
	}

	event := domain.GameUpdateEvent{
		Kind:    domain.EventScoreUpdate,
		GameID:  "g1",
		SportID: "soccer",
		Payload: domain.GamePayload{ID: "g1", Score: &domain.Score{Home: 1}},
	}
	delivered := b.Publish(string(event.Kind), event.Payload, event.Topics()...)

	assert.Equal(t, 4, delivered)
	for _, id := range []domain.ConnectionID{"all-only", "sport-only", "game-only", "everything"} {
		assert.Equal(t, []string{"score_update"}, transport.events(id), "connection %s", id)
	}
	assert.Empty(t, transport.received("other"))
}

func TestBroadcaster_PublishToEmptyTopic(t *testing.T) {
	b, _ := newTestBroadcaster(t)
	assert.Equal(t, 0, b.Publish("game_new", nil, domain.SportTopic("curling")))
}

func TestBroadcaster_SendFailureDoesNotStopOthers(t *testing.T) {
	b, transport := newTestBroadcaster(t)
	for _, id := range []domain.ConnectionID{"a", "b", "c"} {
		b.Connect(id)
		b.Subscribe(id, domain.TopicAll)
	}
	transport.fail("b")

	delivered := b.Publish("game_update", nil, domain.TopicAll)

	assert.Equal(t, 2, delivered)
	assert.Len(t, transport.received("a"), 1)
	assert.Len(t, transport.received("c"), 1)
}

func TestBroadcaster_DisconnectCleansUpAllTopics(t *testing.T) {
	b, transport := newTestBroadcaster(t)
	b.Connect("c1")
	b.Connect("c2")
	b.Subscribe("c1", domain.TopicAll)
	b.Subscribe("c1", domain.SportTopic("nfl"))
	b.Subscribe("c2", domain.TopicAll)

	b.Disconnect("c1")

	assert.Equal(t, 1, b.ConnectionCount())
	assert.Equal(t, 0, b.SubscriberCount(domain.SportTopic("nfl")))
	assert.Empty(t, b.TopicsOf("c1"))

	b.Publish("game_update", nil, domain.TopicAll, domain.SportTopic("nfl"))
	assert.Empty(t, transport.received("c1"))
	assert.Len(t, transport.received("c2"), 1)
}

func TestBroadcaster_SubscribeUnknownConnectionIgnored(t *testing.T) {
	b, _ := newTestBroadcaster(t)

	assert.False(t, b.Subscribe("ghost", domain.TopicAll))
	assert.Equal(t, 0, b.SubscriberCount(domain.TopicAll))
	assert.Equal(t, 0, b.ConnectionCount())
}

func TestBroadcaster_ConnectionCount(t *testing.T) {
	b, _ := newTestBroadcaster(t)
	b.Connect("a")
	b.Connect("a")
	b.Connect("b")
	assert.Equal(t, 2, b.ConnectionCount())

	b.Disconnect("a")
	b.Disconnect("a")
	assert.Equal(t, 1, b.ConnectionCount())
}

func TestBroadcaster_ConcurrentAccess(t *testing.T) {
	b, transport := newTestBroadcaster(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := domain.ConnectionID(fmt.Sprintf("c%d", i))
			b.Connect(id)
			b.Subscribe(id, domain.TopicAll)
			b.Publish("game_update", i, domain.TopicAll)
			if i%2 == 0 {
				b.Disconnect(id)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 25, b.ConnectionCount())
	assert.Equal(t, 25, b.SubscriberCount(domain.TopicAll))
	assert.NotEmpty(t, transport.received("c1"))
}
