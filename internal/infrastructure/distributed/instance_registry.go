package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// InstanceStats is the realtime load one node reports about itself.
type InstanceStats struct {
	InstanceID  string    `json:"instanceId"`
	Role        string    `json:"role"`
	Connections int       `json:"connections"`
	Topics      int       `json:"topics"`
	Rooms       int       `json:"rooms"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// InstanceRegistry keeps a heartbeat record per node in Redis so any node
// can report cluster-wide realtime load. Records expire when a node stops
// heartbeating.
type InstanceRegistry struct {
	client     redis.UniversalClient
	instanceID string
	role       string
	ttl        time.Duration
	prefix     string
	clock      clockwork.Clock
	logger     *zap.SugaredLogger
}

func NewInstanceRegistry(
	client redis.UniversalClient,
	instanceID string,
	role string,
	ttl time.Duration,
	logger *zap.SugaredLogger,
) *InstanceRegistry {
	return &InstanceRegistry{
		client:     client,
		instanceID: instanceID,
		role:       role,
		ttl:        ttl,
		prefix:     "sportshub:instance:",
		clock:      clockwork.NewRealClock(),
		logger:     logger,
	}
}

// WithClock replaces the heartbeat clock.
func (r *InstanceRegistry) WithClock(clock clockwork.Clock) *InstanceRegistry {
	r.clock = clock
	return r
}

// Register writes this node's stats with a fresh TTL.
func (r *InstanceRegistry) Register(ctx context.Context, stats InstanceStats) error {
	stats.InstanceID = r.instanceID
	stats.Role = r.role
	stats.UpdatedAt = r.clock.Now()

	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal instance stats: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.instanceKey(r.instanceID), data, r.ttl)
	pipe.SAdd(ctx, r.setKey(), r.instanceID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to register instance: %w", err)
	}
	return nil
}

// Unregister removes this node's record, e.g. on shutdown.
func (r *InstanceRegistry) Unregister(ctx context.Context) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.instanceKey(r.instanceID))
	pipe.SRem(ctx, r.setKey(), r.instanceID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to unregister instance: %w", err)
	}
	return nil
}

// List returns every live node ordered by instance id. Members whose record
// expired are pruned from the set.
func (r *InstanceRegistry) List(ctx context.Context) ([]InstanceStats, error) {
	ids, err := r.client.SMembers(ctx, r.setKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.instanceKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load instances: %w", err)
	}

	var (
		result []InstanceStats
		stale  []interface{}
	)
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var stats InstanceStats
		if err := json.Unmarshal([]byte(raw), &stats); err != nil {
			r.logger.Warnw("Skipping malformed instance record",
				"instance_id", ids[i],
				"error", err,
			)
			continue
		}
		result = append(result, stats)
	}

	if len(stale) > 0 {
		if err := r.client.SRem(ctx, r.setKey(), stale...).Err(); err != nil {
			r.logger.Warnw("Failed to prune stale instances", "error", err)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].InstanceID < result[j].InstanceID })
	return result, nil
}

// Heartbeat registers stats() every interval until ctx is done, then
// unregisters.
func (r *InstanceRegistry) Heartbeat(ctx context.Context, interval time.Duration, stats func() InstanceStats) {
	if err := r.Register(ctx, stats()); err != nil {
		r.logger.Warnw("Instance heartbeat failed", "error", err)
	}

	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			unregisterCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			if err := r.Unregister(unregisterCtx); err != nil {
				r.logger.Warnw("Failed to unregister instance", "error", err)
			}
			cancel()
			return
		case <-ticker.Chan():
			if err := r.Register(ctx, stats()); err != nil {
				r.logger.Warnw("Instance heartbeat failed", "error", err)
			}
		}
	}
}

func (r *InstanceRegistry) instanceKey(id string) string {
	return r.prefix + id
}

func (r *InstanceRegistry) setKey() string {
	return r.prefix + "members"
}
