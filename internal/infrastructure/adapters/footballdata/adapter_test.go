package footballdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"sportshub/internal/core/domain"
	"sportshub/pkg/circuitbreaker"
	"sportshub/pkg/retry"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var fetchDay = time.Date(2026, 10, 16, 14, 0, 0, 0, time.UTC)

const liveBody = `{
  "count": 1,
  "matches": [{
    "id": 4401,
    "utcDate": "2026-10-16T13:00:00Z",
    "status": "IN_PLAY",
    "minute": 67,
    "venue": "Anfield",
    "homeTeam": {"id": 64, "name": "Liverpool FC", "shortName": "Liverpool", "tla": "LIV", "crest": "https://crests.example/64.png"},
    "awayTeam": {"id": 73, "name": "Tottenham Hotspur FC", "shortName": "Tottenham", "tla": "TOT"},
    "score": {"fullTime": {"home": 2, "away": 1}, "halfTime": {"home": 1, "away": 1}}
  }]
}`

func testConfig(baseURL string) Config {
	return Config{
		APIKey:        "secret-key",
		BaseURL:       baseURL,
		CompetitionID: "2021",
		Timeout:       2 * time.Second,
		Retry: retry.Config{
			Enabled:      true,
			MaxAttempts:  2,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   1,
		},
		Breaker: circuitbreaker.Config{
			FailureThreshold:    2,
			SuccessThreshold:    1,
			Timeout:             time.Minute,
			MaxRequestsHalfOpen: 1,
		},
	}
}

func newTestAdapter(t *testing.T, cfg Config) *Adapter {
	return New(cfg, clockwork.NewFakeClockAt(fetchDay), zaptest.NewLogger(t).Sugar())
}

func TestAdapter_FetchLiveGames(t *testing.T) {
	var gotPath, gotStatus, gotToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotStatus = r.URL.Query().Get("status")
		gotToken = r.Header.Get("X-Auth-Token")
		w.Header().Set("X-Requests-Available-Minute", "7")
		w.Header().Set("X-RequestCounter-Reset", "30")
		_, _ = w.Write([]byte(liveBody))
	}))
	defer server.Close()

	a := newTestAdapter(t, testConfig(server.URL))
	resp, err := a.FetchLiveGames(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/competitions/2021/matches", gotPath)
	assert.Equal(t, "LIVE,IN_PLAY,PAUSED", gotStatus)
	assert.Equal(t, "secret-key", gotToken)

	require.Len(t, resp.Games, 1)
	game := resp.Games[0]
	assert.Equal(t, "4401", game.ExternalID)
	assert.Equal(t, domain.GameStatusInProgress, game.Status)
	assert.Equal(t, &domain.Score{Home: 2, Away: 1}, game.Score)
	require.NotNil(t, game.Period)
	assert.Equal(t, 2, *game.Period)
	assert.Equal(t, "67'", game.Clock)
	assert.Equal(t, "Anfield", game.Venue)
	assert.Equal(t, League, game.League)
	assert.Equal(t, domain.Team{
		ExternalID:   "64",
		Name:         "Liverpool FC",
		Abbreviation: "LIV",
		Logo:         "https://crests.example/64.png",
	}, game.HomeTeam)
	assert.True(t, game.StartTime.Equal(time.Date(2026, 10, 16, 13, 0, 0, 0, time.UTC)))

	require.NotNil(t, resp.RateLimit)
	assert.Equal(t, 7, resp.RateLimit.Remaining)
	assert.Equal(t, fetchDay.Add(30*time.Second), resp.RateLimit.ResetAt)
	assert.Equal(t, fetchDay, resp.FetchedAt)
}

func TestAdapter_FetchTodaysGamesQueriesCurrentDay(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"count": 0, "matches": []}`))
	}))
	defer server.Close()

	a := newTestAdapter(t, testConfig(server.URL))
	resp, err := a.FetchTodaysGames(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "dateFrom=2026-10-16&dateTo=2026-10-16", gotQuery)
	assert.Empty(t, resp.Games)
	assert.Nil(t, resp.RateLimit)
}

func TestAdapter_RetriesServerErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(liveBody))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Breaker.FailureThreshold = 5
	a := newTestAdapter(t, cfg)

	resp, err := a.FetchLiveGames(context.Background())
	require.NoError(t, err)
	assert.Len(t, resp.Games, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	assert.True(t, a.Health(context.Background()).Healthy)
}

func TestAdapter_ClientErrorsAreNotRetried(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message": "The resource you are looking for is restricted."}`))
	}))
	defer server.Close()

	a := newTestAdapter(t, testConfig(server.URL))

	_, err := a.FetchLiveGames(context.Background())
	require.Error(t, err)
	_, err = a.FetchLiveGames(context.Background())
	require.Error(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, circuitbreaker.StateClosed, a.breaker.GetState())

	health := a.Health(context.Background())
	assert.False(t, health.Healthy)
	assert.Contains(t, health.Message, "403")
}

func TestAdapter_OpenBreakerReportsUnavailable(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Retry.Enabled = false
	a := newTestAdapter(t, cfg)

	for i := 0; i < 2; i++ {
		_, err := a.FetchLiveGames(context.Background())
		require.Error(t, err)
	}

	_, err := a.FetchLiveGames(context.Background())
	assert.ErrorIs(t, err, domain.ErrAdapterUnavailable)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	health := a.Health(context.Background())
	assert.False(t, health.Healthy)
	assert.Equal(t, "circuit breaker open", health.Message)
}

func TestAdapter_MockModeWithoutAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	a := newTestAdapter(t, cfg)
	require.True(t, a.MockMode())

	today, err := a.FetchTodaysGames(context.Background())
	require.NoError(t, err)
	require.Len(t, today.Games, 2)
	assert.Equal(t, "12345", today.Games[0].ExternalID)
	assert.Equal(t, domain.GameStatusScheduled, today.Games[0].Status)
	assert.Equal(t, "ARS", today.Games[0].HomeTeam.Abbreviation)
	assert.Nil(t, today.Games[0].Score)
	assert.Equal(t, 9, today.RateLimit.Remaining)

	live, err := a.FetchLiveGames(context.Background())
	require.NoError(t, err)
	require.Len(t, live.Games, 1)
	assert.Equal(t, "12346", live.Games[0].ExternalID)
	assert.Equal(t, &domain.Score{Home: 2, Away: 1}, live.Games[0].Score)
	assert.Equal(t, "67'", live.Games[0].Clock)

	health := a.Health(context.Background())
	assert.True(t, health.Healthy)
	assert.Contains(t, health.Message, "mock")
}

func TestMapStatus(t *testing.T) {
	cases := map[string]domain.GameStatus{
		"SCHEDULED": domain.GameStatusScheduled,
		"TIMED":     domain.GameStatusScheduled,
		"LIVE":      domain.GameStatusInProgress,
		"IN_PLAY":   domain.GameStatusInProgress,
		"PAUSED":    domain.GameStatusInProgress,
		"FINISHED":  domain.GameStatusFinal,
		"POSTPONED": domain.GameStatusDelayed,
		"SUSPENDED": domain.GameStatusDelayed,
		"CANCELLED": domain.GameStatusCancelled,
		"AWARDED":   domain.GameStatusScheduled,
	}
	for in, want := range cases {
		assert.Equal(t, want, mapStatus(in), in)
	}
}

func TestToGameData_PeriodAndScore(t *testing.T) {
	m := apiMatch{ID: 1, Status: "IN_PLAY", Minute: intPtr(46)}
	data := toGameData(m, League)
	require.NotNil(t, data.Period)
	assert.Equal(t, 2, *data.Period)
	assert.Equal(t, "46'", data.Clock)
	assert.Nil(t, data.Score)

	m = apiMatch{ID: 2, Status: "SCHEDULED", Minute: intPtr(0)}
	m.Score.FullTime = apiScorePair{Home: intPtr(0)}
	data = toGameData(m, League)
	assert.Nil(t, data.Period)
	assert.Empty(t, data.Clock)
	assert.Equal(t, &domain.Score{}, data.Score)
}

func TestToTeam_FallsBackToShortName(t *testing.T) {
	team := toTeam(apiTeam{ID: 9, Name: "Some Club", ShortName: "Some"})
	assert.Equal(t, "Some", team.Abbreviation)
	assert.Equal(t, "9", team.ExternalID)
}
