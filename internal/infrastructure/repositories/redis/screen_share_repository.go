package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"sportshub/internal/core/domain"
	"sportshub/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

const sessionIndexKey = keyPrefix + "sessions"

const (
	fieldCurrent = "current"
	fieldTotal   = "total"
)

// adjustCountersScript applies both deltas and floors the current count at
// zero. Returns {current, total}, or nil when the session is unknown.
var adjustCountersScript = redis.NewScript(`
if redis.call("exists", KEYS[1]) == 0 then
	return nil
end
local current = redis.call("hincrby", KEYS[2], "current", ARGV[1])
if current < 0 then
	redis.call("hset", KEYS[2], "current", 0)
	current = 0
end
local total = redis.call("hincrby", KEYS[2], "total", ARGV[2])
return {current, total}
`)

// RedisScreenShareRepository keeps session metadata as JSON, viewer
// counters in a separate hash, and viewers as JSON records indexed per
// session.
type RedisScreenShareRepository struct {
	client *redis.Client
	clock  clockwork.Clock
	prefix string
}

func NewRedisScreenShareRepository(client *redis.Client, clock clockwork.Clock) ports.ScreenShareRepository {
	return &RedisScreenShareRepository{
		client: client,
		clock:  clock,
		prefix: keyPrefix + "session:",
	}
}

func (r *RedisScreenShareRepository) sessionKey(id domain.SessionID) string {
	return r.prefix + string(id)
}

func (r *RedisScreenShareRepository) countersKey(id domain.SessionID) string {
	return r.prefix + string(id) + ":counters"
}

func (r *RedisScreenShareRepository) viewersKey(id domain.SessionID) string {
	return r.prefix + string(id) + ":viewers"
}

func (r *RedisScreenShareRepository) usersKey(id domain.SessionID) string {
	return r.prefix + string(id) + ":users"
}

func (r *RedisScreenShareRepository) viewerKey(id string) string {
	return keyPrefix + "viewer:" + id
}

func marshalSession(session *domain.ScreenShareSession) ([]byte, error) {
	meta := *session
	meta.CurrentViewers = 0
	meta.TotalViews = 0
	data, err := json.Marshal(&meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	return data, nil
}

func (r *RedisScreenShareRepository) CreateSession(ctx context.Context, session *domain.ScreenShareSession) error {
	data, err := marshalSession(session)
	if err != nil {
		return err
	}

	created, err := r.client.SetNX(ctx, r.sessionKey(session.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	if !created {
		return fmt.Errorf("session already exists: %s", session.ID)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.countersKey(session.ID), fieldCurrent, session.CurrentViewers, fieldTotal, session.TotalViews)
		pipe.ZAdd(ctx, sessionIndexKey, redis.Z{
			Score:  float64(session.CreatedAt.UnixNano()),
			Member: string(session.ID),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to index session: %w", err)
	}
	return nil
}

func (r *RedisScreenShareRepository) GetSession(ctx context.Context, id domain.SessionID) (*domain.ScreenShareSession, error) {
	pipe := r.client.Pipeline()
	metaCmd := pipe.Get(ctx, r.sessionKey(id))
	countersCmd := pipe.HGetAll(ctx, r.countersKey(id))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	data, err := metaCmd.Bytes()
	if err == redis.Nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var session domain.ScreenShareSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	var counters struct {
		Current int `redis:"current"`
		Total   int `redis:"total"`
	}
	if err := countersCmd.Scan(&counters); err != nil {
		return nil, fmt.Errorf("failed to read session counters: %w", err)
	}
	session.CurrentViewers = counters.Current
	session.TotalViews = counters.Total
	return &session, nil
}

func (r *RedisScreenShareRepository) UpdateSession(ctx context.Context, session *domain.ScreenShareSession) error {
	data, err := marshalSession(session)
	if err != nil {
		return err
	}

	updated, err := r.client.SetXX(ctx, r.sessionKey(session.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if !updated {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *RedisScreenShareRepository) ListSessions(ctx context.Context, filter ports.SessionFilter) ([]*domain.ScreenShareSession, error) {
	ids, err := r.client.ZRevRange(ctx, sessionIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	out := []*domain.ScreenShareSession{}
	for _, id := range ids {
		session, err := r.GetSession(ctx, domain.SessionID(id))
		if err == domain.ErrSessionNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !filter.Matches(session) {
			continue
		}
		out = append(out, session)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *RedisScreenShareRepository) AdjustViewerCounts(ctx context.Context, id domain.SessionID, currentDelta, totalDelta int) (*domain.ScreenShareSession, error) {
	err := adjustCountersScript.Run(ctx, r.client,
		[]string{r.sessionKey(id), r.countersKey(id)},
		currentDelta, totalDelta,
	).Err()
	if err == redis.Nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to adjust viewer counts: %w", err)
	}
	return r.GetSession(ctx, id)
}

func (r *RedisScreenShareRepository) loadViewer(ctx context.Context, g stringGetter, id string) (*domain.Viewer, error) {
	data, err := g.Get(ctx, r.viewerKey(id)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrViewerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get viewer: %w", err)
	}

	var viewer domain.Viewer
	if err := json.Unmarshal(data, &viewer); err != nil {
		return nil, fmt.Errorf("failed to unmarshal viewer: %w", err)
	}
	return &viewer, nil
}

func (r *RedisScreenShareRepository) ActivateViewer(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) (*domain.Viewer, bool, error) {
	exists, err := r.client.Exists(ctx, r.sessionKey(sessionID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to check session: %w", err)
	}
	if exists == 0 {
		return nil, false, domain.ErrSessionNotFound
	}

	var (
		viewer    *domain.Viewer
		activated bool
	)
	usersKey := r.usersKey(sessionID)
	err = watch(ctx, r.client, func(tx *redis.Tx) error {
		now := r.clock.Now()
		viewer, activated = nil, true

		if userID != "" {
			id, err := tx.HGet(ctx, usersKey, string(userID)).Result()
			if err != nil && err != redis.Nil {
				return fmt.Errorf("failed to resolve viewer: %w", err)
			}
			if err == nil {
				if viewer, err = r.loadViewer(ctx, tx, id); err != nil {
					return err
				}
				if viewer.IsActive {
					activated = false
					return nil
				}
				viewer.IsActive = true
				viewer.JoinedAt = now
				viewer.LeftAt = nil
			}
		}
		if viewer == nil {
			viewer = &domain.Viewer{
				ID:        uuid.New().String(),
				SessionID: sessionID,
				UserID:    userID,
				IsActive:  true,
				JoinedAt:  now,
			}
		}

		data, err := json.Marshal(viewer)
		if err != nil {
			return fmt.Errorf("failed to marshal viewer: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.viewerKey(viewer.ID), data, 0)
			pipe.SAdd(ctx, r.viewersKey(sessionID), viewer.ID)
			if userID != "" {
				pipe.HSet(ctx, usersKey, string(userID), viewer.ID)
			}
			return nil
		})
		return err
	}, usersKey)
	if err != nil {
		return nil, false, err
	}
	return viewer, activated, nil
}

func (r *RedisScreenShareRepository) DeactivateViewer(ctx context.Context, sessionID domain.SessionID, req domain.LeaveRequest) (bool, error) {
	id := req.ViewerID
	if req.UserID != "" {
		var err error
		id, err = r.client.HGet(ctx, r.usersKey(sessionID), string(req.UserID)).Result()
		if err == redis.Nil {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to resolve viewer: %w", err)
		}
	}
	if id == "" {
		return false, nil
	}
	return r.deactivate(ctx, sessionID, id)
}

func (r *RedisScreenShareRepository) deactivate(ctx context.Context, sessionID domain.SessionID, viewerID string) (bool, error) {
	key := r.viewerKey(viewerID)
	deactivated := false
	err := watch(ctx, r.client, func(tx *redis.Tx) error {
		deactivated = false
		viewer, err := r.loadViewer(ctx, tx, viewerID)
		if err == domain.ErrViewerNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if viewer.SessionID != sessionID || !viewer.IsActive {
			return nil
		}

		now := r.clock.Now()
		viewer.IsActive = false
		viewer.LeftAt = &now
		data, err := json.Marshal(viewer)
		if err != nil {
			return fmt.Errorf("failed to marshal viewer: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			deactivated = true
		}
		return err
	}, key)
	return deactivated, err
}

func (r *RedisScreenShareRepository) DeactivateAllViewers(ctx context.Context, sessionID domain.SessionID) (int, error) {
	ids, err := r.client.SMembers(ctx, r.viewersKey(sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list viewers: %w", err)
	}

	count := 0
	for _, id := range ids {
		ok, err := r.deactivate(ctx, sessionID, id)
		if err != nil {
			return count, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}
