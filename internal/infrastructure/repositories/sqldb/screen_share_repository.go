package sqldb

import (
	"context"
	"errors"
	"fmt"

	"sportshub/internal/core/domain"
	"sportshub/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

type GormScreenShareRepository struct {
	db    *gorm.DB
	clock clockwork.Clock
}

func NewGormScreenShareRepository(db *gorm.DB, clock clockwork.Clock) ports.ScreenShareRepository {
	return &GormScreenShareRepository{db: db, clock: clock}
}

func (r *GormScreenShareRepository) CreateSession(ctx context.Context, session *domain.ScreenShareSession) error {
	if err := r.db.WithContext(ctx).Create(SessionToModel(session)).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *GormScreenShareRepository) GetSession(ctx context.Context, id domain.SessionID) (*domain.ScreenShareSession, error) {
	return getSession(r.db.WithContext(ctx), id)
}

func getSession(db *gorm.DB, id domain.SessionID) (*domain.ScreenShareSession, error) {
	var model SessionModel
	err := db.First(&model, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormScreenShareRepository) UpdateSession(ctx context.Context, session *domain.ScreenShareSession) error {
	result := r.db.WithContext(ctx).Model(&SessionModel{}).
		Where("id = ?", string(session.ID)).
		Updates(map[string]interface{}{
			"title":       session.Title,
			"description": session.Description,
			"status":      string(session.Status),
			"is_public":   session.IsPublic,
			"max_viewers": session.MaxViewers,
			"ended_at":    session.EndedAt,
			"updated_at":  session.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *GormScreenShareRepository) ListSessions(ctx context.Context, filter ports.SessionFilter) ([]*domain.ScreenShareSession, error) {
	query := r.db.WithContext(ctx).Model(&SessionModel{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.PublicOnly {
		query = query.Where("is_public = ?", true)
	}
	if filter.GameID != "" {
		query = query.Where("game_id = ?", filter.GameID)
	}
	if filter.HostUserID != "" {
		query = query.Where("host_user_id = ?", string(filter.HostUserID))
	}
	if !filter.CreatedBefore.IsZero() {
		query = query.Where("created_at < ?", filter.CreatedBefore)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var models []SessionModel
	if err := query.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]*domain.ScreenShareSession, len(models))
	for i := range models {
		sessions[i] = models[i].ToDomain()
	}
	return sessions, nil
}

func (r *GormScreenShareRepository) AdjustViewerCounts(ctx context.Context, id domain.SessionID, currentDelta, totalDelta int) (*domain.ScreenShareSession, error) {
	var session *domain.ScreenShareSession
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&SessionModel{}).
			Where("id = ?", string(id)).
			Updates(map[string]interface{}{
				"current_viewers": gorm.Expr("CASE WHEN current_viewers + ? < 0 THEN 0 ELSE current_viewers + ? END", currentDelta, currentDelta),
				"total_views":     gorm.Expr("total_views + ?", totalDelta),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrSessionNotFound
		}

		var err error
		session, err = getSession(tx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to adjust viewer counts: %w", err)
	}
	return session, nil
}

func (r *GormScreenShareRepository) ActivateViewer(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) (*domain.Viewer, bool, error) {
	var (
		viewer    *domain.Viewer
		activated bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getSession(tx, sessionID); err != nil {
			return err
		}
		now := r.clock.Now()

		if userID != "" {
			var model ViewerModel
			err := tx.Where("session_id = ? AND user_id = ?", string(sessionID), string(userID)).First(&model).Error
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if err == nil {
				if model.IsActive {
					viewer = model.ToDomain()
					return nil
				}
				model.IsActive = true
				model.JoinedAt = now
				model.LeftAt = nil
				if err := tx.Save(&model).Error; err != nil {
					return err
				}
				viewer, activated = model.ToDomain(), true
				return nil
			}
		}

		model := ViewerModel{
			ID:        uuid.New().String(),
			SessionID: string(sessionID),
			UserID:    string(userID),
			IsActive:  true,
			JoinedAt:  now,
		}
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		viewer, activated = model.ToDomain(), true
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("failed to activate viewer: %w", err)
	}
	return viewer, activated, nil
}

func (r *GormScreenShareRepository) DeactivateViewer(ctx context.Context, sessionID domain.SessionID, req domain.LeaveRequest) (bool, error) {
	query := r.db.WithContext(ctx).Model(&ViewerModel{}).
		Where("session_id = ? AND is_active = ?", string(sessionID), true)
	switch {
	case req.UserID != "":
		query = query.Where("user_id = ?", string(req.UserID))
	case req.ViewerID != "":
		query = query.Where("id = ?", req.ViewerID)
	default:
		return false, nil
	}

	now := r.clock.Now()
	result := query.Updates(map[string]interface{}{"is_active": false, "left_at": now})
	if result.Error != nil {
		return false, fmt.Errorf("failed to deactivate viewer: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *GormScreenShareRepository) DeactivateAllViewers(ctx context.Context, sessionID domain.SessionID) (int, error) {
	now := r.clock.Now()
	result := r.db.WithContext(ctx).Model(&ViewerModel{}).
		Where("session_id = ? AND is_active = ?", string(sessionID), true).
		Updates(map[string]interface{}{"is_active": false, "left_at": now})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to deactivate viewers: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}
