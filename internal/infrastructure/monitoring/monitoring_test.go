package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"sportshub/internal/core/ports"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector_RealtimeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheusCollector(reg)

	p.SetActiveConnections(3)
	p.SetActiveRooms(1)
	p.RecordPublish("score_update", 4)
	p.RecordPublish("score_update", 2)
	p.RecordDeliveryFailure("score_update")
	p.RecordRelay("offer", true)
	p.RecordRelay("offer", false)
	p.RecordRelay("offer", false)

	assert.Equal(t, 3.0, testutil.ToFloat64(p.activeConnections))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.activeRooms))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.publishesTotal.WithLabelValues("score_update")))
	assert.Equal(t, 6.0, testutil.ToFloat64(p.deliveriesTotal.WithLabelValues("score_update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.deliveryFailures.WithLabelValues("score_update")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.relayedTotal.WithLabelValues("offer", "dropped")))
}

func TestPrometheusCollector_PollAndTransport(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheusCollector(reg)

	p.ObservePoll("football-data", "live", 200*time.Millisecond, 5, nil)
	p.ObservePoll("football-data", "live", time.Second, 0, errors.New("boom"))
	p.ConnectionOpened()
	p.ConnectionClosed(time.Minute)
	p.MessageReceived("subscribe:all")
	p.Rejected("rate_limited")
	p.RecordHTTPRequest("GET", "/api/games/:sportId", 200, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.pollsTotal.WithLabelValues("football-data", "live", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.pollsTotal.WithLabelValues("football-data", "live", "error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(p.polledGames.WithLabelValues("football-data", "live")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.connectionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.rejectedTotal.WithLabelValues("rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.httpRequestsTotal.WithLabelValues("GET", "/api/games/:sportId", "200")))

	count, err := testutil.GatherAndCount(reg, "sportshub_poll_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPrometheusCollector_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPrometheusCollector(prometheus.NewRegistry())
		NewPrometheusCollector(prometheus.NewRegistry())
	})
}

type stubAdapter struct {
	health ports.AdapterHealth
}

func (s stubAdapter) Name() string { return "stub" }
func (s stubAdapter) FetchTodaysGames(context.Context) (*ports.AdapterResponse, error) {
	return &ports.AdapterResponse{}, nil
}
func (s stubAdapter) FetchLiveGames(context.Context) (*ports.AdapterResponse, error) {
	return &ports.AdapterResponse{}, nil
}
func (s stubAdapter) Health(context.Context) ports.AdapterHealth { return s.health }

func TestHealthChecker_AllHealthy(t *testing.T) {
	clock := clockwork.NewFakeClock()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := NewHealthChecker(clock)
	h.AddRedisCheck(client, time.Second)
	h.AddAdapterCheck(stubAdapter{health: ports.AdapterHealth{Healthy: true}}, time.Second)
	clock.Advance(90 * time.Second)

	status := h.CheckAll(context.Background())
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, 90.0, status.Uptime)
	assert.Equal(t, map[string]string{"redis": "healthy", "adapter:stub": "healthy"}, status.Checks)
	assert.True(t, h.IsReady(context.Background()))
}

func TestHealthChecker_AdapterFailureDegrades(t *testing.T) {
	h := NewHealthChecker(clockwork.NewFakeClock())
	h.AddAdapterCheck(stubAdapter{health: ports.AdapterHealth{Message: "circuit breaker open"}}, time.Second)

	status := h.CheckAll(context.Background())
	assert.Equal(t, StatusDegraded, status.Status)
	assert.Equal(t, "circuit breaker open", status.Checks["adapter:stub"])
	assert.True(t, h.IsReady(context.Background()))
}

func TestHealthChecker_RedisDownIsUnhealthy(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	h := NewHealthChecker(clockwork.NewFakeClock())
	h.AddRedisCheck(client, 200*time.Millisecond)

	status := h.CheckAll(context.Background())
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.NotEqual(t, StatusHealthy, status.Checks["redis"])
	assert.False(t, h.IsReady(context.Background()))
}

func TestHealthChecker_CheckTimeout(t *testing.T) {
	h := NewHealthChecker(clockwork.NewFakeClock())
	h.AddCheck(HealthCheck{
		Name:     "slow",
		Critical: true,
		Timeout:  20 * time.Millisecond,
		Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})

	status := h.CheckAll(context.Background())
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), status.Checks["slow"])
}
