package ports

import (
	"context"
	"time"

	"sportshub/internal/core/domain"

	"github.com/pion/webrtc/v3"
)

type GameService interface {
	UpsertGame(ctx context.Context, sportID string, data domain.GameData) (*domain.Game, domain.UpsertResult, error)
	GetTodaysGames(ctx context.Context, sportID string) ([]*domain.Game, error)
	GetLiveGames(ctx context.Context, sportID string) ([]*domain.Game, error)
	GetGames(ctx context.Context, sportID string) (*domain.GameListing, error)
}

type ScreenShareService interface {
	CreateSession(ctx context.Context, host domain.UserID, input domain.CreateSessionInput) (*domain.ScreenShareSession, error)
	GetActiveSessions(ctx context.Context) ([]*domain.ScreenShareSession, error)
	GetSession(ctx context.Context, id domain.SessionID) (*domain.ScreenShareSession, error)
	UpdateSession(ctx context.Context, id domain.SessionID, host domain.UserID, input domain.UpdateSessionInput) (*domain.ScreenShareSession, error)
	EndSession(ctx context.Context, id domain.SessionID, host domain.UserID) (*domain.ScreenShareSession, error)
	JoinSession(ctx context.Context, id domain.SessionID, userID domain.UserID) (*domain.JoinResult, error)
	LeaveSession(ctx context.Context, id domain.SessionID, req domain.LeaveRequest) error
	GetSessionsForGame(ctx context.Context, gameID string) ([]*domain.ScreenShareSession, error)
	GetUserSessions(ctx context.Context, userID domain.UserID) ([]*domain.ScreenShareSession, error)
	CleanupExpiredSessions(ctx context.Context) (int, error)
	ICEServers() []webrtc.ICEServer
}

type RateLimitInfo struct {
	Remaining int
	ResetAt   time.Time
}

type AdapterResponse struct {
	Games     []domain.GameData
	FetchedAt time.Time
	RateLimit *RateLimitInfo
}

type AdapterHealth struct {
	Healthy     bool
	Message     string
	LastChecked time.Time
}

// SportAdapter fetches games from one third-party data provider.
type SportAdapter interface {
	Name() string
	FetchTodaysGames(ctx context.Context) (*AdapterResponse, error)
	FetchLiveGames(ctx context.Context) (*AdapterResponse, error)
	Health(ctx context.Context) AdapterHealth
}

// GameEventPublisher fans game events out to realtime subscribers.
type GameEventPublisher interface {
	PublishGameUpdate(ctx context.Context, event domain.GameUpdateEvent) error
}

// SessionNotifier delivers session lifecycle notices to a signaling room.
type SessionNotifier interface {
	NotifySession(ctx context.Context, sessionID domain.SessionID, event string, payload interface{}) error
}

// ViewerPresence is told when an authenticated viewer's realtime
// connection drops while joined to a session room.
type ViewerPresence interface {
	ViewerDisconnected(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) error
}
