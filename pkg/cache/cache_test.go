package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_ExpiresAfterTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewWithClock(time.Minute, clock)
	defer c.Stop()

	c.Set("games:live:soccer", 3, 10*time.Second)
	v, ok := c.Get("games:live:soccer")
	require.True(t, ok)
	assert.Equal(t, 3, v)

	clock.Advance(10 * time.Second)
	_, ok = c.Get("games:live:soccer")
	assert.False(t, ok)
}

func TestCache_GetOrLoadCollapsesConcurrentLoads(t *testing.T) {
	c := New(time.Minute)
	defer c.Stop()

	var loads int32
	release := make(chan struct{})
	load := func(context.Context) (interface{}, error) {
		atomic.AddInt32(&loads, 1)
		<-release
		return "value", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrLoad(context.Background(), "k", 0, load)
			assert.NoError(t, err)
			assert.Equal(t, "value", v)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
}

func TestCache_LoadErrorNotCached(t *testing.T) {
	c := New(time.Minute)
	defer c.Stop()

	_, err := c.GetOrLoad(context.Background(), "k", 0, func(context.Context) (interface{}, error) {
		return nil, errors.New("db down")
	})
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestCache_InvalidatePrefix(t *testing.T) {
	c := New(time.Minute)
	defer c.Stop()

	c.Set("games:today:soccer", 1, 0)
	c.Set("games:live:soccer", 2, 0)
	c.Set("sessions:active", 3, 0)

	c.InvalidatePrefix("games:")

	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("sessions:active")
	assert.True(t, ok)
}

func TestCache_JanitorRemovesExpired(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewWithClock(time.Minute, clock)
	defer c.Stop()

	c.Set("k", 1, time.Second)
	clock.BlockUntil(1)
	clock.Advance(time.Minute)

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}
