package monitoring

import (
	"context"
	"errors"
	"sync"
	"time"

	"sportshub/internal/core/ports"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

type HealthChecker struct {
	checks  []HealthCheck
	mu      sync.RWMutex
	clock   clockwork.Clock
	started time.Time
}

type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
	// A failing non-critical check degrades the status instead of failing it.
	Critical bool
	Timeout  time.Duration
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Uptime    float64           `json:"uptime"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func NewHealthChecker(clock clockwork.Clock) *HealthChecker {
	return &HealthChecker{
		checks:  make([]HealthCheck, 0),
		clock:   clock,
		started: clock.Now(),
	}
}

func (h *HealthChecker) AddCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if check.Timeout <= 0 {
		check.Timeout = 2 * time.Second
	}
	h.checks = append(h.checks, check)
}

// AddRedisCheck pings Redis.
func (h *HealthChecker) AddRedisCheck(client redis.UniversalClient, timeout time.Duration) {
	h.AddCheck(HealthCheck{
		Name:     "redis",
		Critical: true,
		Timeout:  timeout,
		Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	})
}

// AddDatabaseCheck pings the SQL database behind db.
func (h *HealthChecker) AddDatabaseCheck(db *gorm.DB, timeout time.Duration) {
	h.AddCheck(HealthCheck{
		Name:     "database",
		Critical: true,
		Timeout:  timeout,
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})
}

// AddAdapterCheck reports the sports adapter's own view of its health. The
// service keeps serving stored games while the provider is down.
func (h *HealthChecker) AddAdapterCheck(adapter ports.SportAdapter, timeout time.Duration) {
	h.AddCheck(HealthCheck{
		Name:    "adapter:" + adapter.Name(),
		Timeout: timeout,
		Check: func(ctx context.Context) error {
			health := adapter.Health(ctx)
			if !health.Healthy {
				return errors.New(health.Message)
			}
			return nil
		},
	})
}

// CheckAll runs every check concurrently, each under its own timeout.
func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	h.mu.RLock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	now := h.clock.Now()
	status := HealthStatus{
		Status:    StatusHealthy,
		Uptime:    now.Sub(h.started).Seconds(),
		Timestamp: now,
		Checks:    make(map[string]string, len(checks)),
	}

	errs := make([]error, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check HealthCheck) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
			defer cancel()
			errs[i] = check.Check(checkCtx)
		}(i, check)
	}
	wg.Wait()

	for i, check := range checks {
		if errs[i] == nil {
			status.Checks[check.Name] = StatusHealthy
			continue
		}
		status.Checks[check.Name] = errs[i].Error()
		if check.Critical {
			status.Status = StatusUnhealthy
		} else if status.Status == StatusHealthy {
			status.Status = StatusDegraded
		}
	}

	return status
}

// IsReady reports whether every critical check passes.
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	return h.CheckAll(ctx).Status != StatusUnhealthy
}
