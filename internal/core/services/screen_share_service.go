package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sportshub/internal/core/domain"
	"sportshub/internal/core/ports"
	apperrors "sportshub/pkg/errors"
	"sportshub/pkg/validation"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

const listLimit = 20

type ScreenShareConfig struct {
	DefaultMaxViewers    int
	MaxViewersPerSession int
	SessionTimeout       time.Duration
	ICEServers           []webrtc.ICEServer
}

// ScreenShareService manages session lifecycle and viewer bookkeeping.
// Room notices go out through the SessionNotifier; delivery problems are
// logged and never fail the request.
type ScreenShareService struct {
	repo     ports.ScreenShareRepository
	notifier ports.SessionNotifier
	cfg      ScreenShareConfig
	clock    clockwork.Clock
	logger   *zap.SugaredLogger
}

func NewScreenShareService(
	repo ports.ScreenShareRepository,
	notifier ports.SessionNotifier,
	cfg ScreenShareConfig,
	clock clockwork.Clock,
	logger *zap.SugaredLogger,
) *ScreenShareService {
	return &ScreenShareService{
		repo:     repo,
		notifier: notifier,
		cfg:      cfg,
		clock:    clock,
		logger:   logger,
	}
}

func invalidInput(err error) error {
	return apperrors.NewInvalidInputError(err.Error())
}

func (s *ScreenShareService) CreateSession(ctx context.Context, host domain.UserID, input domain.CreateSessionInput) (*domain.ScreenShareSession, error) {
	if host == "" {
		return nil, ErrUnauthorized
	}
	if err := validation.ValidateSessionTitle(input.Title); err != nil {
		return nil, invalidInput(err)
	}
	if err := validation.ValidateSessionDescription(input.Description); err != nil {
		return nil, invalidInput(err)
	}
	if input.GameID != "" {
		if err := validation.ValidateIdentifier(input.GameID, "gameId"); err != nil {
			return nil, invalidInput(err)
		}
	}

	maxViewers := input.MaxViewers
	if maxViewers == 0 {
		maxViewers = s.cfg.DefaultMaxViewers
	}
	if err := validation.ValidateMaxViewers(maxViewers); err != nil {
		return nil, invalidInput(err)
	}

	now := s.clock.Now()
	session := &domain.ScreenShareSession{
		ID:          domain.SessionID(uuid.New().String()),
		HostUserID:  host,
		GameID:      input.GameID,
		Title:       input.Title,
		Description: input.Description,
		Status:      domain.SessionStatusActive,
		IsPublic:    input.IsPublic,
		MaxViewers:  s.capViewers(maxViewers),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Infow("screen share session created",
		"session_id", session.ID,
		"host_user_id", host,
		"game_id", session.GameID,
	)
	return session, nil
}

func (s *ScreenShareService) capViewers(n int) int {
	if s.cfg.MaxViewersPerSession > 0 && n > s.cfg.MaxViewersPerSession {
		return s.cfg.MaxViewersPerSession
	}
	return n
}

func (s *ScreenShareService) GetActiveSessions(ctx context.Context) ([]*domain.ScreenShareSession, error) {
	return s.repo.ListSessions(ctx, ports.SessionFilter{
		Status:     domain.SessionStatusActive,
		PublicOnly: true,
		Limit:      listLimit,
	})
}

func (s *ScreenShareService) GetSession(ctx context.Context, id domain.SessionID) (*domain.ScreenShareSession, error) {
	return s.repo.GetSession(ctx, id)
}

func (s *ScreenShareService) UpdateSession(ctx context.Context, id domain.SessionID, host domain.UserID, input domain.UpdateSessionInput) (*domain.ScreenShareSession, error) {
	session, err := s.ownedSession(ctx, id, host)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		if err := validation.ValidateSessionTitle(*input.Title); err != nil {
			return nil, invalidInput(err)
		}
		session.Title = *input.Title
	}
	if input.Description != nil {
		if err := validation.ValidateSessionDescription(*input.Description); err != nil {
			return nil, invalidInput(err)
		}
		session.Description = *input.Description
	}
	if input.IsPublic != nil {
		session.IsPublic = *input.IsPublic
	}
	if input.MaxViewers != nil {
		if err := validation.ValidateMaxViewers(*input.MaxViewers); err != nil {
			return nil, invalidInput(err)
		}
		session.MaxViewers = s.capViewers(*input.MaxViewers)
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, apperrors.NewInvalidInputError(fmt.Sprintf("invalid status %q", *input.Status))
		}
		if session.Status == domain.SessionStatusEnded && *input.Status != domain.SessionStatusEnded {
			return nil, domain.ErrSessionNotActive
		}
		if *input.Status == domain.SessionStatusEnded && session.EndedAt == nil {
			now := s.clock.Now()
			session.EndedAt = &now
		}
		session.Status = *input.Status
	}

	return s.save(ctx, session)
}

func (s *ScreenShareService) save(ctx context.Context, session *domain.ScreenShareSession) (*domain.ScreenShareSession, error) {
	session.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	s.notify(ctx, session.ID, domain.EventSessionUpdated, session)
	return session, nil
}

func (s *ScreenShareService) ownedSession(ctx context.Context, id domain.SessionID, host domain.UserID) (*domain.ScreenShareSession, error) {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if host == "" || session.HostUserID != host {
		return nil, domain.ErrNotSessionHost
	}
	return session, nil
}

// EndSession ends a session on behalf of its host. Ending an ended session
// returns it unchanged.
func (s *ScreenShareService) EndSession(ctx context.Context, id domain.SessionID, host domain.UserID) (*domain.ScreenShareSession, error) {
	session, err := s.ownedSession(ctx, id, host)
	if err != nil {
		return nil, err
	}
	return s.end(ctx, session)
}

func (s *ScreenShareService) end(ctx context.Context, session *domain.ScreenShareSession) (*domain.ScreenShareSession, error) {
	if session.Status == domain.SessionStatusEnded {
		return session, nil
	}

	now := s.clock.Now()
	session.Status = domain.SessionStatusEnded
	session.EndedAt = &now
	session, err := s.save(ctx, session)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, session.ID, domain.EventSessionEnded, domain.SessionEnded{SessionID: session.ID})

	deactivated, err := s.repo.DeactivateAllViewers(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to release viewers: %w", err)
	}
	if deactivated > 0 {
		if updated, err := s.repo.AdjustViewerCounts(ctx, session.ID, -deactivated, 0); err == nil {
			session = updated
		}
	}

	s.logger.Infow("screen share session ended",
		"session_id", session.ID,
		"viewers_released", deactivated,
	)
	return session, nil
}

func (s *ScreenShareService) JoinSession(ctx context.Context, id domain.SessionID, userID domain.UserID) (*domain.JoinResult, error) {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.SessionStatusActive {
		return nil, domain.ErrSessionNotActive
	}
	if session.IsFull() {
		return nil, domain.ErrSessionFull
	}

	viewer, activated, err := s.repo.ActivateViewer(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to record viewer: %w", err)
	}

	delta := 0
	if activated {
		delta = 1
	}
	session, err = s.repo.AdjustViewerCounts(ctx, id, delta, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to count viewer: %w", err)
	}

	s.logger.Debugw("viewer joined session",
		"session_id", id,
		"viewer_id", viewer.ID,
		"user_id", userID,
	)
	return &domain.JoinResult{
		Session:    session,
		ViewerID:   viewer.ID,
		ICEServers: s.ICEServers(),
	}, nil
}

// LeaveSession deactivates the viewer named by req. The live count only
// drops when a record actually went inactive.
func (s *ScreenShareService) LeaveSession(ctx context.Context, id domain.SessionID, req domain.LeaveRequest) error {
	if _, err := s.repo.GetSession(ctx, id); err != nil {
		return err
	}

	left, err := s.repo.DeactivateViewer(ctx, id, req)
	if err != nil {
		return fmt.Errorf("failed to release viewer: %w", err)
	}
	if !left {
		return nil
	}
	if _, err := s.repo.AdjustViewerCounts(ctx, id, -1, 0); err != nil {
		return fmt.Errorf("failed to count viewer: %w", err)
	}
	return nil
}

// ViewerDisconnected releases an authenticated viewer whose realtime
// connection dropped while in the session room.
func (s *ScreenShareService) ViewerDisconnected(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) error {
	if userID == "" {
		return nil
	}
	err := s.LeaveSession(ctx, sessionID, domain.LeaveRequest{UserID: userID})
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	return err
}

func (s *ScreenShareService) GetSessionsForGame(ctx context.Context, gameID string) ([]*domain.ScreenShareSession, error) {
	return s.repo.ListSessions(ctx, ports.SessionFilter{
		Status:     domain.SessionStatusActive,
		PublicOnly: true,
		GameID:     gameID,
	})
}

func (s *ScreenShareService) GetUserSessions(ctx context.Context, userID domain.UserID) ([]*domain.ScreenShareSession, error) {
	return s.repo.ListSessions(ctx, ports.SessionFilter{
		HostUserID: userID,
		Limit:      listLimit,
	})
}

// CleanupExpiredSessions ends active sessions older than the configured
// timeout and reports how many were ended.
func (s *ScreenShareService) CleanupExpiredSessions(ctx context.Context) (int, error) {
	if s.cfg.SessionTimeout <= 0 {
		return 0, nil
	}
	cutoff := s.clock.Now().Add(-s.cfg.SessionTimeout)
	expired, err := s.repo.ListSessions(ctx, ports.SessionFilter{
		Status:        domain.SessionStatusActive,
		CreatedBefore: cutoff,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list expired sessions: %w", err)
	}

	ended := 0
	for _, session := range expired {
		if _, err := s.end(ctx, session); err != nil {
			s.logger.Warnw("failed to end expired session",
				"session_id", session.ID,
				"error", err,
			)
			continue
		}
		ended++
	}
	if ended > 0 {
		s.logger.Infow("cleaned up expired screen share sessions", "count", ended)
	}
	return ended, nil
}

func (s *ScreenShareService) ICEServers() []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, len(s.cfg.ICEServers))
	copy(out, s.cfg.ICEServers)
	return out
}

func (s *ScreenShareService) notify(ctx context.Context, id domain.SessionID, event string, payload interface{}) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifySession(ctx, id, event, payload); err != nil {
		s.logger.Warnw("failed to notify session room",
			"session_id", id,
			"event", event,
			"error", err,
		)
	}
}
