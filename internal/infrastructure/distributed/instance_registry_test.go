package distributed

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestRegistry(t *testing.T, mr *miniredis.Miniredis, id string) *InstanceRegistry {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewInstanceRegistry(client, id, "signal", 30*time.Second, zaptest.NewLogger(t).Sugar())
}

func TestInstanceRegistry_RegisterAndList(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	b := newTestRegistry(t, mr, "node-b")
	a := newTestRegistry(t, mr, "node-a")

	require.NoError(t, b.Register(ctx, InstanceStats{Connections: 7, Topics: 3}))
	require.NoError(t, a.Register(ctx, InstanceStats{Connections: 2, Rooms: 1}))

	list, err := a.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "node-a", list[0].InstanceID)
	assert.Equal(t, "signal", list[0].Role)
	assert.Equal(t, 1, list[0].Rooms)
	assert.Equal(t, 7, list[1].Connections)
}

func TestInstanceRegistry_ExpiredRecordsArePruned(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	a := newTestRegistry(t, mr, "node-a")
	b := newTestRegistry(t, mr, "node-b")

	require.NoError(t, a.Register(ctx, InstanceStats{}))
	require.NoError(t, b.Register(ctx, InstanceStats{}))

	mr.FastForward(31 * time.Second)
	require.NoError(t, a.Register(ctx, InstanceStats{Connections: 1}))

	list, err := a.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "node-a", list[0].InstanceID)

	members, err := mr.Members("sportshub:instance:members")
	require.NoError(t, err)
	assert.Equal(t, []string{"node-a"}, members)
}

func TestInstanceRegistry_ListEmpty(t *testing.T) {
	mr := miniredis.RunT(t)
	list, err := newTestRegistry(t, mr, "node-a").List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestInstanceRegistry_HeartbeatUnregistersOnStop(t *testing.T) {
	mr := miniredis.RunT(t)
	clock := clockwork.NewFakeClock()
	r := newTestRegistry(t, mr, "node-a").WithClock(clock)

	connections := 0
	stats := func() InstanceStats {
		connections++
		return InstanceStats{Connections: connections}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Heartbeat(ctx, 10*time.Second, stats)
		close(done)
	}()

	clock.BlockUntil(1)
	clock.Advance(10 * time.Second)
	require.Eventually(t, func() bool {
		list, err := r.List(context.Background())
		return err == nil && len(list) == 1 && list[0].Connections == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.False(t, mr.Exists("sportshub:instance:node-a"))
}
