package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sportshub/internal/core/domain"
	"sportshub/internal/core/ports"
	"sportshub/pkg/validation"

	"github.com/jonboulle/clockwork"
)

type gameService struct {
	repo  ports.GameRepository
	clock clockwork.Clock
}

func NewGameService(repo ports.GameRepository, clock clockwork.Clock) ports.GameService {
	return &gameService{
		repo:  repo,
		clock: clock,
	}
}

func (s *gameService) UpsertGame(ctx context.Context, sportID string, data domain.GameData) (*domain.Game, domain.UpsertResult, error) {
	if err := validation.ValidateIdentifier(sportID, "sportId"); err != nil {
		return nil, domain.UpsertResult{}, err
	}
	if err := validation.ValidateIdentifier(data.ExternalID, "externalId"); err != nil {
		return nil, domain.UpsertResult{}, err
	}
	if !data.Status.Valid() {
		return nil, domain.UpsertResult{}, fmt.Errorf("invalid game status %q", data.Status)
	}

	game, res, err := s.repo.Upsert(ctx, sportID, data)
	if err != nil {
		return nil, domain.UpsertResult{}, fmt.Errorf("failed to upsert game %s/%s: %w", sportID, data.ExternalID, err)
	}
	return game, res, nil
}

// GetTodaysGames returns every game on the next game day, looking from the
// start of the current local day.
func (s *gameService) GetTodaysGames(ctx context.Context, sportID string) ([]*domain.Game, error) {
	now := s.clock.Now()
	startOfToday := startOfDay(now, now.Location())

	next, err := s.repo.FindFirstFrom(ctx, sportID, startOfToday)
	if errors.Is(err, domain.ErrGameNotFound) {
		return []*domain.Game{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find next game day: %w", err)
	}

	day := startOfDay(next.StartTime, now.Location())
	return s.repo.ListBetween(ctx, sportID, day, day.AddDate(0, 0, 1))
}

func (s *gameService) GetLiveGames(ctx context.Context, sportID string) ([]*domain.Game, error) {
	return s.repo.ListByStatus(ctx, sportID, domain.GameStatusInProgress)
}

func (s *gameService) GetGames(ctx context.Context, sportID string) (*domain.GameListing, error) {
	return mergeListing(ctx, s, sportID)
}

// mergeListing combines today's and live games, keeping today's order and
// appending live games that are not already listed.
func mergeListing(ctx context.Context, s ports.GameService, sportID string) (*domain.GameListing, error) {
	today, err := s.GetTodaysGames(ctx, sportID)
	if err != nil {
		return nil, err
	}
	live, err := s.GetLiveGames(ctx, sportID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(today))
	games := make([]*domain.Game, 0, len(today)+len(live))
	for _, g := range today {
		seen[g.ID] = struct{}{}
		games = append(games, g)
	}
	for _, g := range live {
		if _, ok := seen[g.ID]; !ok {
			games = append(games, g)
		}
	}

	return &domain.GameListing{Games: games, Today: today, Live: live}, nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
