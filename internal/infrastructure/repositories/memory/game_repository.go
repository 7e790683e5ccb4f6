package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"sportshub/internal/core/domain"
	"sportshub/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type gameKey struct {
	sportID    string
	externalID string
}

type MemoryGameRepository struct {
	clock clockwork.Clock

	mu         sync.RWMutex
	games      map[string]*domain.Game
	byExternal map[gameKey]string
}

func NewMemoryGameRepository(clock clockwork.Clock) ports.GameRepository {
	return &MemoryGameRepository{
		clock:      clock,
		games:      make(map[string]*domain.Game),
		byExternal: make(map[gameKey]string),
	}
}

func (r *MemoryGameRepository) Upsert(ctx context.Context, sportID string, data domain.GameData) (*domain.Game, domain.UpsertResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	key := gameKey{sportID: sportID, externalID: data.ExternalID}
	if id, exists := r.byExternal[key]; exists {
		game := r.games[id]
		res := game.Apply(data, now)
		return copyGame(game), res, nil
	}

	game := domain.NewGame(uuid.New().String(), sportID, data, now)
	r.games[game.ID] = game
	r.byExternal[key] = game.ID
	return copyGame(game), domain.UpsertResult{Created: true}, nil
}

func (r *MemoryGameRepository) GetByID(ctx context.Context, id string) (*domain.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	game, exists := r.games[id]
	if !exists {
		return nil, domain.ErrGameNotFound
	}
	return copyGame(game), nil
}

func (r *MemoryGameRepository) FindFirstFrom(ctx context.Context, sportID string, from time.Time) (*domain.Game, error) {
	games := r.filter(func(g *domain.Game) bool {
		return g.SportID == sportID && !g.StartTime.Before(from)
	})
	if len(games) == 0 {
		return nil, domain.ErrGameNotFound
	}
	return games[0], nil
}

func (r *MemoryGameRepository) ListBetween(ctx context.Context, sportID string, from, to time.Time) ([]*domain.Game, error) {
	return r.filter(func(g *domain.Game) bool {
		return g.SportID == sportID && !g.StartTime.Before(from) && g.StartTime.Before(to)
	}), nil
}

func (r *MemoryGameRepository) ListByStatus(ctx context.Context, sportID string, status domain.GameStatus) ([]*domain.Game, error) {
	return r.filter(func(g *domain.Game) bool {
		return g.SportID == sportID && g.Status == status
	}), nil
}

// filter returns copies of matching games ordered by start time.
func (r *MemoryGameRepository) filter(match func(*domain.Game) bool) []*domain.Game {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.Game{}
	for _, game := range r.games {
		if match(game) {
			out = append(out, copyGame(game))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

func copyGame(g *domain.Game) *domain.Game {
	c := *g
	if g.Score != nil {
		score := *g.Score
		c.Score = &score
	}
	if g.Period != nil {
		period := *g.Period
		c.Period = &period
	}
	return &c
}
