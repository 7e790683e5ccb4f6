// Package footballdata adapts the football-data.org v4 API to the sport
// adapter port.
package footballdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"sportshub/internal/core/domain"
	"sportshub/internal/core/ports"
	"sportshub/pkg/circuitbreaker"
	"sportshub/pkg/retry"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	AdapterName = "football-data"
	League      = "Premier League"

	authHeader      = "X-Auth-Token"
	remainingHeader = "X-Requests-Available-Minute"
	resetHeader     = "X-RequestCounter-Reset"

	liveStatuses = "LIVE,IN_PLAY,PAUSED"
	maxBodyBytes = 4 << 20
)

type Config struct {
	APIKey        string
	BaseURL       string
	CompetitionID string
	Timeout       time.Duration
	Retry         retry.Config
	Breaker       circuitbreaker.Config
}

func DefaultConfig() Config {
	return Config{
		BaseURL:       "https://api.football-data.org/v4",
		CompetitionID: "2021",
		Timeout:       10 * time.Second,
		Retry:         retry.DefaultConfig(),
		Breaker:       circuitbreaker.DefaultConfig(),
	}
}

// statusError is a non-2xx reply from the provider.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("football-data returned %d: %s", e.Code, e.Body)
}

type Adapter struct {
	cfg     Config
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	group   singleflight.Group
	clock   clockwork.Clock
	logger  *zap.SugaredLogger

	mu      sync.Mutex
	lastErr error
}

func New(cfg Config, clock clockwork.Clock, logger *zap.SugaredLogger) *Adapter {
	if cfg.Retry.ShouldRetry == nil {
		cfg.Retry.ShouldRetry = isTransient
	}
	if cfg.Breaker.IsFailure == nil {
		cfg.Breaker.IsFailure = countsAgainstBreaker
	}

	a := &Adapter{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: circuitbreaker.NewWithClock(cfg.Breaker, clock),
		clock:   clock,
		logger:  logger.With("adapter", AdapterName),
	}
	a.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		a.logger.Warnw("Circuit breaker state changed", "from", from.String(), "to", to.String())
	})
	return a
}

func (a *Adapter) Name() string { return AdapterName }

// MockMode reports whether the adapter serves built-in fixtures because no
// API key is configured.
func (a *Adapter) MockMode() bool { return a.cfg.APIKey == "" }

func (a *Adapter) FetchTodaysGames(ctx context.Context) (*ports.AdapterResponse, error) {
	now := a.clock.Now().UTC()
	if a.MockMode() {
		return a.mockResponse(now, false), nil
	}

	day := now.Format("2006-01-02")
	return a.fetch(ctx, a.matchesURL("dateFrom="+day+"&dateTo="+day))
}

func (a *Adapter) FetchLiveGames(ctx context.Context) (*ports.AdapterResponse, error) {
	now := a.clock.Now().UTC()
	if a.MockMode() {
		return a.mockResponse(now, true), nil
	}

	return a.fetch(ctx, a.matchesURL("status="+liveStatuses))
}

// Health reports the breaker state and the outcome of the last fetch. It
// never calls the provider, so it does not spend rate limit.
func (a *Adapter) Health(ctx context.Context) ports.AdapterHealth {
	health := ports.AdapterHealth{Healthy: true, Message: "ok", LastChecked: a.clock.Now()}

	if a.MockMode() {
		health.Message = "serving mock data (no API key)"
		return health
	}
	if state := a.breaker.GetState(); state == circuitbreaker.StateOpen {
		health.Healthy = false
		health.Message = "circuit breaker open"
		return health
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastErr != nil {
		health.Healthy = false
		health.Message = a.lastErr.Error()
	}
	return health
}

func (a *Adapter) matchesURL(rawQuery string) string {
	return fmt.Sprintf("%s/competitions/%s/matches?%s", a.cfg.BaseURL, url.PathEscape(a.cfg.CompetitionID), rawQuery)
}

// fetch collapses concurrent identical requests, then retries the call
// through the circuit breaker.
func (a *Adapter) fetch(ctx context.Context, endpoint string) (*ports.AdapterResponse, error) {
	v, err, shared := a.group.Do(endpoint, func() (interface{}, error) {
		return retry.RetryWithResult(ctx, a.cfg.Retry, func() (*ports.AdapterResponse, error) {
			return circuitbreaker.Do(ctx, a.breaker, func() (*ports.AdapterResponse, error) {
				return a.get(ctx, endpoint)
			})
		})
	})
	a.recordOutcome(err)

	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return nil, fmt.Errorf("%w: %v", domain.ErrAdapterUnavailable, err)
		}
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	if shared {
		a.logger.Debugw("Shared in-flight fetch", "endpoint", endpoint)
	}
	return v.(*ports.AdapterResponse), nil
}

func (a *Adapter) get(ctx context.Context, endpoint string) (*ports.AdapterResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set(authHeader, a.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &statusError{Code: resp.StatusCode, Body: truncate(string(body), 200)}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Permanent(statusErr)
		}
		return nil, statusErr
	}

	var payload apiMatches
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode matches: %w", err))
	}

	now := a.clock.Now()
	out := &ports.AdapterResponse{
		Games:     make([]domain.GameData, 0, len(payload.Matches)),
		FetchedAt: now,
		RateLimit: a.rateLimit(resp.Header, now),
	}
	for _, m := range payload.Matches {
		out.Games = append(out.Games, toGameData(m, League))
	}

	a.logger.Debugw("Fetched matches", "endpoint", endpoint, "count", len(out.Games))
	return out, nil
}

// rateLimit reads the provider's per-minute counters. The reset header is
// in seconds; without it the window is assumed to roll over in a minute.
func (a *Adapter) rateLimit(h http.Header, now time.Time) *ports.RateLimitInfo {
	remaining, err := strconv.Atoi(h.Get(remainingHeader))
	if err != nil {
		return nil
	}
	reset := time.Minute
	if secs, err := strconv.Atoi(h.Get(resetHeader)); err == nil && secs >= 0 {
		reset = time.Duration(secs) * time.Second
	}
	return &ports.RateLimitInfo{Remaining: remaining, ResetAt: now.Add(reset)}
}

func (a *Adapter) mockResponse(now time.Time, liveOnly bool) *ports.AdapterResponse {
	games := make([]domain.GameData, 0, 2)
	for _, m := range mockMatches(now) {
		data := toGameData(m, League)
		if liveOnly && data.Status != domain.GameStatusInProgress {
			continue
		}
		games = append(games, data)
	}
	return &ports.AdapterResponse{
		Games:     games,
		FetchedAt: now,
		RateLimit: &ports.RateLimitInfo{Remaining: 9, ResetAt: now.Add(time.Minute)},
	}
}

func (a *Adapter) recordOutcome(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastErr = err
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !errors.Is(err, circuitbreaker.ErrOpen) && !retry.IsPermanent(err)
}

// countsAgainstBreaker ignores client errors; only the provider being down
// should trip the breaker.
func countsAgainstBreaker(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500 || statusErr.Code == http.StatusTooManyRequests
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
