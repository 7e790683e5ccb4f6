package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"sportshub/pkg/distributed"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const sweepLockKey = "sweep:screen-share"

// SessionCleaner ends sessions that have outlived the session timeout.
type SessionCleaner interface {
	CleanupExpiredSessions(ctx context.Context) (int, error)
}

// SessionSweeper periodically ends stale screen-share sessions.
type SessionSweeper struct {
	cleaner  SessionCleaner
	locks    *distributed.LockManager
	interval time.Duration
	clock    clockwork.Clock
	logger   *zap.SugaredLogger

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewSessionSweeper(cleaner SessionCleaner, interval time.Duration, clock clockwork.Clock, logger *zap.SugaredLogger) *SessionSweeper {
	return &SessionSweeper{
		cleaner:  cleaner,
		interval: interval,
		clock:    clock,
		logger:   logger.With("job", "session_sweeper"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *SessionSweeper) WithLocks(locks *distributed.LockManager) *SessionSweeper {
	s.locks = locks
	return s
}

func (s *SessionSweeper) Start(ctx context.Context) {
	if s.started.CompareAndSwap(false, true) {
		go s.loop(ctx)
	}
}

func (s *SessionSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.started.Load() {
		<-s.done
	}
}

// RunOnce sweeps immediately and returns how many sessions were ended.
func (s *SessionSweeper) RunOnce(ctx context.Context) (int, error) {
	var ended int
	_, err := exclusive(ctx, s.locks, sweepLockKey, s.interval, func(ctx context.Context) error {
		n, err := s.cleaner.CleanupExpiredSessions(ctx)
		ended = n
		return err
	})
	return ended, err
}

func (s *SessionSweeper) loop(ctx context.Context) {
	defer close(s.done)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			ended, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.Errorw("Session sweep failed", "error", err)
				continue
			}
			if ended > 0 {
				s.logger.Infow("Ended expired sessions", "count", ended)
			}
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}
