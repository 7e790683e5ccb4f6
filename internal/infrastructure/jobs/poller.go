package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sportshub/internal/core/domain"
	"sportshub/internal/core/ports"
	"sportshub/pkg/distributed"
	"sportshub/pkg/tracing"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type PollKind string

const (
	PollLive  PollKind = "live"
	PollDaily PollKind = "daily"
)

var (
	ErrUnknownPollKind = errors.New("unknown poll kind")
	// ErrFetchFailed wraps every adapter error a poll returns.
	ErrFetchFailed = errors.New("fetching games failed")
)

func ParsePollKind(s string) (PollKind, error) {
	switch PollKind(s) {
	case PollLive, PollDaily:
		return PollKind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPollKind, s)
	}
}

// PollObserver receives one observation per completed poll.
type PollObserver interface {
	ObservePoll(adapter, kind string, duration time.Duration, games int, err error)
}

type PollerConfig struct {
	SportID      string
	LiveInterval time.Duration
	DailyHour    int
	DailyMinute  int
	// LockTTL bounds how long one instance may hold a poll lock.
	LockTTL time.Duration
}

type PollResult struct {
	Kind      PollKind `json:"kind"`
	Fetched   int      `json:"fetched"`
	Published int      `json:"published"`
	Failed    int      `json:"failed"`
	// Skipped is set when another instance held the poll lock.
	Skipped bool `json:"skipped"`
}

// Poller fetches games from a sport adapter, stores them and publishes the
// resulting game events.
type Poller struct {
	adapter   ports.SportAdapter
	games     ports.GameService
	publisher ports.GameEventPublisher
	locks     *distributed.LockManager
	observer  PollObserver
	cfg       PollerConfig
	clock     clockwork.Clock
	logger    *zap.SugaredLogger

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewPoller(
	adapter ports.SportAdapter,
	games ports.GameService,
	publisher ports.GameEventPublisher,
	cfg PollerConfig,
	clock clockwork.Clock,
	logger *zap.SugaredLogger,
) *Poller {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.LiveInterval
	}
	return &Poller{
		adapter:   adapter,
		games:     games,
		publisher: publisher,
		cfg:       cfg,
		clock:     clock,
		logger:    logger.With("job", "poller", "adapter", adapter.Name(), "sport_id", cfg.SportID),
		stop:      make(chan struct{}),
	}
}

// WithLocks makes every run take a Redis lock first.
func (p *Poller) WithLocks(locks *distributed.LockManager) *Poller {
	p.locks = locks
	return p
}

func (p *Poller) WithObserver(observer PollObserver) *Poller {
	p.observer = observer
	return p
}

// Start runs the daily fetch once, then keeps both schedules going until
// Stop is called or ctx is done. It does not block.
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(2)
	go p.dailyLoop(ctx)
	go p.liveLoop(ctx)

	p.logger.Infow("Poller started",
		"live_interval", p.cfg.LiveInterval,
		"daily_at", fmt.Sprintf("%02d:%02d", p.cfg.DailyHour, p.cfg.DailyMinute),
	)
}

// Stop ends both loops and waits for an in-progress run to finish.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

// SportID is the sport this poller stores games under.
func (p *Poller) SportID() string {
	return p.cfg.SportID
}

// Trigger runs one poll of the given kind right away.
func (p *Poller) Trigger(ctx context.Context, kind PollKind) (*PollResult, error) {
	if _, err := ParsePollKind(string(kind)); err != nil {
		return nil, err
	}
	return p.run(ctx, kind)
}

func (p *Poller) liveLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := p.clock.NewTicker(p.cfg.LiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			p.runLogged(ctx, PollLive)
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) dailyLoop(ctx context.Context) {
	defer p.wg.Done()

	p.runLogged(ctx, PollDaily)

	for {
		now := p.clock.Now()
		timer := p.clock.NewTimer(NextDailyRun(now, p.cfg.DailyHour, p.cfg.DailyMinute).Sub(now))

		select {
		case <-timer.Chan():
			p.runLogged(ctx, PollDaily)
		case <-p.stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (p *Poller) runLogged(ctx context.Context, kind PollKind) {
	if _, err := p.run(ctx, kind); err != nil {
		p.logger.Errorw("Poll failed", "kind", kind, "error", err)
	}
}

func (p *Poller) run(ctx context.Context, kind PollKind) (*PollResult, error) {
	ctx, span := tracing.TracePollJob(ctx, string(kind), p.cfg.SportID)
	defer span.End()

	result := &PollResult{Kind: kind}
	lockKey := fmt.Sprintf("poll:%s:%s", p.cfg.SportID, kind)

	ran, err := exclusive(ctx, p.locks, lockKey, p.cfg.LockTTL, func(ctx context.Context) error {
		return p.poll(ctx, kind, result)
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return result, err
	}
	if !ran {
		result.Skipped = true
		p.logger.Debugw("Poll skipped, lock held elsewhere", "kind", kind)
	}

	tracing.AddSpanAttributes(ctx,
		attribute.Int("poll.fetched", result.Fetched),
		attribute.Int("poll.published", result.Published),
		attribute.Bool("poll.skipped", result.Skipped),
	)
	return result, nil
}

func (p *Poller) poll(ctx context.Context, kind PollKind, result *PollResult) error {
	start := p.clock.Now()

	var (
		resp *ports.AdapterResponse
		err  error
	)
	if kind == PollLive {
		resp, err = p.adapter.FetchLiveGames(ctx)
	} else {
		resp, err = p.adapter.FetchTodaysGames(ctx)
	}
	if err != nil {
		p.observe(kind, start, 0, err)
		return fmt.Errorf("%w (%s): %w", ErrFetchFailed, kind, err)
	}
	result.Fetched = len(resp.Games)

	for _, data := range resp.Games {
		upsertCtx, span := tracing.TraceGameUpsert(ctx, p.cfg.SportID, data.ExternalID)
		game, res, err := p.games.UpsertGame(upsertCtx, p.cfg.SportID, data)
		if err != nil {
			tracing.RecordError(upsertCtx, err)
			span.End()
			result.Failed++
			p.logger.Warnw("Failed to store game", "external_id", data.ExternalID, "error", err)
			continue
		}
		tracing.AddSpanAttributes(upsertCtx, tracing.GameIDKey.String(game.ID))
		span.End()

		eventKind := domain.EventKindFor(game, res)
		if eventKind == "" {
			continue
		}
		if err := p.publisher.PublishGameUpdate(ctx, domain.NewGameUpdateEvent(eventKind, game)); err != nil {
			p.logger.Warnw("Failed to publish game event", "game_id", game.ID, "kind", eventKind, "error", err)
			continue
		}
		result.Published++
	}

	if rl := resp.RateLimit; rl != nil && rl.Remaining <= 2 {
		p.logger.Warnw("Provider rate limit nearly exhausted", "remaining", rl.Remaining, "reset_at", rl.ResetAt)
	}

	p.observe(kind, start, result.Fetched, nil)
	p.logger.Infow("Poll completed",
		"kind", kind,
		"fetched", result.Fetched,
		"published", result.Published,
		"failed", result.Failed,
	)
	return nil
}

func (p *Poller) observe(kind PollKind, start time.Time, games int, err error) {
	if p.observer == nil {
		return
	}
	p.observer.ObservePoll(p.adapter.Name(), string(kind), p.clock.Since(start), games, err)
}

// NextDailyRun returns the first hour:minute strictly after now, in now's
// location.
func NextDailyRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
