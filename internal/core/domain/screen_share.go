package domain

import (
	"time"

	"github.com/pion/webrtc/v3"
)

type SessionID string

type SessionStatus string

const (
	SessionStatusActive SessionStatus = "ACTIVE"
	SessionStatusPaused SessionStatus = "PAUSED"
	SessionStatusEnded  SessionStatus = "ENDED"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusActive, SessionStatusPaused, SessionStatusEnded:
		return true
	}
	return false
}

type ScreenShareSession struct {
	ID             SessionID     `json:"id"`
	HostUserID     UserID        `json:"hostUserId"`
	GameID         string        `json:"gameId,omitempty"`
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	Status         SessionStatus `json:"status"`
	IsPublic       bool          `json:"isPublic"`
	MaxViewers     int           `json:"maxViewers"`
	CurrentViewers int           `json:"currentViewers"`
	TotalViews     int           `json:"totalViews"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	EndedAt        *time.Time    `json:"endedAt,omitempty"`
}

func (s *ScreenShareSession) IsFull() bool {
	return s.MaxViewers > 0 && s.CurrentViewers >= s.MaxViewers
}

type Viewer struct {
	ID        string     `json:"id"`
	SessionID SessionID  `json:"sessionId"`
	UserID    UserID     `json:"userId,omitempty"`
	IsActive  bool       `json:"isActive"`
	JoinedAt  time.Time  `json:"joinedAt"`
	LeftAt    *time.Time `json:"leftAt,omitempty"`
}

type CreateSessionInput struct {
	Title       string
	Description string
	GameID      string
	IsPublic    bool
	MaxViewers  int
}

// UpdateSessionInput holds optional changes; nil fields are left untouched.
type UpdateSessionInput struct {
	Title       *string
	Description *string
	Status      *SessionStatus
	IsPublic    *bool
	MaxViewers  *int
}

type JoinResult struct {
	Session    *ScreenShareSession `json:"session"`
	ViewerID   string              `json:"viewerId"`
	ICEServers []webrtc.ICEServer  `json:"iceServers"`
}

// LeaveRequest identifies the viewer record to deactivate. UserID wins
// when both are set.
type LeaveRequest struct {
	UserID   UserID
	ViewerID string
}
