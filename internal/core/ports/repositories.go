package ports

import (
	"context"
	"time"

	"sportshub/internal/core/domain"
)

type GameRepository interface {
	// Upsert inserts or updates the game keyed by (sportID, data.ExternalID).
	Upsert(ctx context.Context, sportID string, data domain.GameData) (*domain.Game, domain.UpsertResult, error)
	GetByID(ctx context.Context, id string) (*domain.Game, error)
	// FindFirstFrom returns the earliest game starting at or after from,
	// or domain.ErrGameNotFound.
	FindFirstFrom(ctx context.Context, sportID string, from time.Time) (*domain.Game, error)
	ListBetween(ctx context.Context, sportID string, from, to time.Time) ([]*domain.Game, error)
	ListByStatus(ctx context.Context, sportID string, status domain.GameStatus) ([]*domain.Game, error)
}

type SessionFilter struct {
	Status        domain.SessionStatus
	PublicOnly    bool
	GameID        string
	HostUserID    domain.UserID
	CreatedBefore time.Time
	Limit         int
}

type ScreenShareRepository interface {
	CreateSession(ctx context.Context, session *domain.ScreenShareSession) error
	GetSession(ctx context.Context, id domain.SessionID) (*domain.ScreenShareSession, error)
	// UpdateSession persists metadata and status. Viewer counters are only
	// changed through AdjustViewerCounts.
	UpdateSession(ctx context.Context, session *domain.ScreenShareSession) error
	// ListSessions returns matches newest first.
	ListSessions(ctx context.Context, filter SessionFilter) ([]*domain.ScreenShareSession, error)
	// AdjustViewerCounts adds the deltas atomically. The current count never
	// drops below zero.
	AdjustViewerCounts(ctx context.Context, id domain.SessionID, currentDelta, totalDelta int) (*domain.ScreenShareSession, error)

	// ActivateViewer marks the user's viewer record active, creating it when
	// needed. Anonymous viewers always get a fresh record. activated is false
	// when the record was already active.
	ActivateViewer(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) (viewer *domain.Viewer, activated bool, err error)
	// DeactivateViewer reports whether an active record was deactivated.
	DeactivateViewer(ctx context.Context, sessionID domain.SessionID, req domain.LeaveRequest) (bool, error)
	DeactivateAllViewers(ctx context.Context, sessionID domain.SessionID) (int, error)
}

// Matches reports whether s passes every set field of the filter.
func (f SessionFilter) Matches(s *domain.ScreenShareSession) bool {
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.PublicOnly && !s.IsPublic {
		return false
	}
	if f.GameID != "" && s.GameID != f.GameID {
		return false
	}
	if f.HostUserID != "" && s.HostUserID != f.HostUserID {
		return false
	}
	if !f.CreatedBefore.IsZero() && !s.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	return true
}
