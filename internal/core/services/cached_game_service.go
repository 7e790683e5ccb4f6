package services

import (
	"context"
	"time"

	"sportshub/internal/core/domain"
	"sportshub/internal/core/ports"
	"sportshub/pkg/cache"
)

// CachedGameService wraps GameService reads with a short TTL cache. Any
// upsert for a sport drops that sport's cached views.
type CachedGameService struct {
	base  ports.GameService
	cache *cache.Cache
	ttl   time.Duration
}

func NewCachedGameService(base ports.GameService, c *cache.Cache, ttl time.Duration) *CachedGameService {
	return &CachedGameService{
		base:  base,
		cache: c,
		ttl:   ttl,
	}
}

func sportCachePrefix(sportID string) string {
	return "games:" + sportID + ":"
}

func (s *CachedGameService) UpsertGame(ctx context.Context, sportID string, data domain.GameData) (*domain.Game, domain.UpsertResult, error) {
	game, res, err := s.base.UpsertGame(ctx, sportID, data)
	if err != nil {
		return nil, res, err
	}
	if res.Created || res.ScoreChanged || res.StatusChanged || game.Status == domain.GameStatusInProgress {
		s.cache.InvalidatePrefix(sportCachePrefix(sportID))
	}
	return game, res, nil
}

func (s *CachedGameService) GetTodaysGames(ctx context.Context, sportID string) ([]*domain.Game, error) {
	v, err := s.cache.GetOrLoad(ctx, sportCachePrefix(sportID)+"today", s.ttl, func(ctx context.Context) (interface{}, error) {
		return s.base.GetTodaysGames(ctx, sportID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*domain.Game), nil
}

func (s *CachedGameService) GetLiveGames(ctx context.Context, sportID string) ([]*domain.Game, error) {
	v, err := s.cache.GetOrLoad(ctx, sportCachePrefix(sportID)+"live", s.ttl, func(ctx context.Context) (interface{}, error) {
		return s.base.GetLiveGames(ctx, sportID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*domain.Game), nil
}

func (s *CachedGameService) GetGames(ctx context.Context, sportID string) (*domain.GameListing, error) {
	return mergeListing(ctx, s, sportID)
}
