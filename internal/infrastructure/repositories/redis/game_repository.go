package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"sportshub/internal/core/domain"
	"sportshub/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// RedisGameRepository stores each game as a JSON blob with a per-sport
// schedule (zset scored by start time) and per-status sets.
type RedisGameRepository struct {
	client *redis.Client
	clock  clockwork.Clock
	prefix string
}

func NewRedisGameRepository(client *redis.Client, clock clockwork.Clock) ports.GameRepository {
	return &RedisGameRepository{
		client: client,
		clock:  clock,
		prefix: keyPrefix + "game:",
	}
}

func (r *RedisGameRepository) gameKey(id string) string {
	return r.prefix + id
}

func (r *RedisGameRepository) externalKey(sportID, externalID string) string {
	return r.prefix + "ext:" + sportID + ":" + externalID
}

func (r *RedisGameRepository) scheduleKey(sportID string) string {
	return r.prefix + "schedule:" + sportID
}

func (r *RedisGameRepository) statusKey(sportID string, status domain.GameStatus) string {
	return r.prefix + "status:" + sportID + ":" + string(status)
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisGameRepository) load(ctx context.Context, g stringGetter, id string) (*domain.Game, error) {
	data, err := g.Get(ctx, r.gameKey(id)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game from Redis: %w", err)
	}

	var game domain.Game
	if err := json.Unmarshal(data, &game); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game: %w", err)
	}
	return &game, nil
}

func (r *RedisGameRepository) Upsert(ctx context.Context, sportID string, data domain.GameData) (*domain.Game, domain.UpsertResult, error) {
	extKey := r.externalKey(sportID, data.ExternalID)

	var (
		game *domain.Game
		res  domain.UpsertResult
	)
	err := watch(ctx, r.client, func(tx *redis.Tx) error {
		now := r.clock.Now()
		var previous domain.GameStatus

		id, err := tx.Get(ctx, extKey).Result()
		switch {
		case err == redis.Nil:
			game = domain.NewGame(uuid.New().String(), sportID, data, now)
			res = domain.UpsertResult{Created: true}
		case err != nil:
			return fmt.Errorf("failed to resolve external id: %w", err)
		default:
			game, err = r.load(ctx, tx, id)
			if err != nil {
				return err
			}
			previous = game.Status
			res = game.Apply(data, now)
		}

		blob, err := json.Marshal(game)
		if err != nil {
			return fmt.Errorf("failed to marshal game: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.gameKey(game.ID), blob, 0)
			pipe.Set(ctx, extKey, game.ID, 0)
			pipe.ZAdd(ctx, r.scheduleKey(sportID), redis.Z{
				Score:  float64(game.StartTime.UnixMilli()),
				Member: game.ID,
			})
			if previous != "" && previous != game.Status {
				pipe.SRem(ctx, r.statusKey(sportID, previous), game.ID)
			}
			pipe.SAdd(ctx, r.statusKey(sportID, game.Status), game.ID)
			return nil
		})
		return err
	}, extKey)
	if err != nil {
		return nil, domain.UpsertResult{}, err
	}
	return game, res, nil
}

func (r *RedisGameRepository) GetByID(ctx context.Context, id string) (*domain.Game, error) {
	return r.load(ctx, r.client, id)
}

func (r *RedisGameRepository) FindFirstFrom(ctx context.Context, sportID string, from time.Time) (*domain.Game, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.scheduleKey(sportID), &redis.ZRangeBy{
		Min:   strconv.FormatInt(from.UnixMilli(), 10),
		Max:   "+inf",
		Count: 1,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}
	if len(ids) == 0 {
		return nil, domain.ErrGameNotFound
	}
	return r.load(ctx, r.client, ids[0])
}

func (r *RedisGameRepository) ListBetween(ctx context.Context, sportID string, from, to time.Time) ([]*domain.Game, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.scheduleKey(sportID), &redis.ZRangeBy{
		Min: strconv.FormatInt(from.UnixMilli(), 10),
		Max: "(" + strconv.FormatInt(to.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}
	return r.loadMany(ctx, ids)
}

func (r *RedisGameRepository) ListByStatus(ctx context.Context, sportID string, status domain.GameStatus) ([]*domain.Game, error) {
	ids, err := r.client.SMembers(ctx, r.statusKey(sportID, status)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query status set: %w", err)
	}
	games, err := r.loadMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.Slice(games, func(i, j int) bool {
		return games[i].StartTime.Before(games[j].StartTime)
	})
	return games, nil
}

func (r *RedisGameRepository) loadMany(ctx context.Context, ids []string) ([]*domain.Game, error) {
	games := make([]*domain.Game, 0, len(ids))
	if len(ids) == 0 {
		return games, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.gameKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load games: %w", err)
	}

	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var game domain.Game
		if err := json.Unmarshal([]byte(s), &game); err != nil {
			return nil, fmt.Errorf("failed to unmarshal game: %w", err)
		}
		games = append(games, &game)
	}
	return games, nil
}
