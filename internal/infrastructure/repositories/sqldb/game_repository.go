package sqldb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sportshub/internal/core/domain"
	"sportshub/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

type GormGameRepository struct {
	db    *gorm.DB
	clock clockwork.Clock
}

func NewGormGameRepository(db *gorm.DB, clock clockwork.Clock) ports.GameRepository {
	return &GormGameRepository{db: db, clock: clock}
}

func (r *GormGameRepository) Upsert(ctx context.Context, sportID string, data domain.GameData) (*domain.Game, domain.UpsertResult, error) {
	game, res, err := r.upsert(ctx, sportID, data)
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		// A concurrent insert won; the retry takes the update path.
		game, res, err = r.upsert(ctx, sportID, data)
	}
	return game, res, err
}

func (r *GormGameRepository) upsert(ctx context.Context, sportID string, data domain.GameData) (*domain.Game, domain.UpsertResult, error) {
	var (
		game *domain.Game
		res  domain.UpsertResult
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := r.clock.Now()

		var model GameModel
		err := tx.Where("sport_id = ? AND external_id = ?", sportID, data.ExternalID).First(&model).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			game = domain.NewGame(uuid.New().String(), sportID, data, now)
			res = domain.UpsertResult{Created: true}
			return tx.Create(GameToModel(game)).Error
		case err != nil:
			return err
		}

		game = model.ToDomain()
		res = game.Apply(data, now)
		return tx.Save(GameToModel(game)).Error
	})
	if err != nil {
		return nil, domain.UpsertResult{}, fmt.Errorf("failed to upsert game: %w", err)
	}
	return game, res, nil
}

func (r *GormGameRepository) GetByID(ctx context.Context, id string) (*domain.Game, error) {
	var model GameModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormGameRepository) FindFirstFrom(ctx context.Context, sportID string, from time.Time) (*domain.Game, error) {
	var model GameModel
	err := r.db.WithContext(ctx).
		Where("sport_id = ? AND start_time >= ?", sportID, from).
		Order("start_time ASC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormGameRepository) ListBetween(ctx context.Context, sportID string, from, to time.Time) ([]*domain.Game, error) {
	return r.find(r.db.WithContext(ctx).
		Where("sport_id = ? AND start_time >= ? AND start_time < ?", sportID, from, to))
}

func (r *GormGameRepository) ListByStatus(ctx context.Context, sportID string, status domain.GameStatus) ([]*domain.Game, error) {
	return r.find(r.db.WithContext(ctx).
		Where("sport_id = ? AND status = ?", sportID, string(status)))
}

func (r *GormGameRepository) find(query *gorm.DB) ([]*domain.Game, error) {
	var models []GameModel
	if err := query.Order("start_time ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	games := make([]*domain.Game, len(models))
	for i := range models {
		games[i] = models[i].ToDomain()
	}
	return games, nil
}
