package sqldb

import (
	"time"

	"sportshub/internal/core/domain"
)

type GameModel struct {
	ID               string    `gorm:"type:varchar(36);primaryKey"`
	SportID          string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_game_external;index:idx_game_schedule"`
	ExternalID       string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_game_external"`
	HomeExternalID   string    `gorm:"type:varchar(128)"`
	HomeName         string    `gorm:"type:varchar(200)"`
	HomeAbbreviation string    `gorm:"type:varchar(16)"`
	HomeCity         string    `gorm:"type:varchar(100)"`
	HomeLogo         string    `gorm:"type:text"`
	AwayExternalID   string    `gorm:"type:varchar(128)"`
	AwayName         string    `gorm:"type:varchar(200)"`
	AwayAbbreviation string    `gorm:"type:varchar(16)"`
	AwayCity         string    `gorm:"type:varchar(100)"`
	AwayLogo         string    `gorm:"type:text"`
	StartTime        time.Time `gorm:"not null;index:idx_game_schedule"`
	Status           string    `gorm:"type:varchar(20);not null;index"`
	Period           *int      `gorm:"column:period"`
	Clock            string    `gorm:"type:varchar(16)"`
	Venue            string    `gorm:"type:varchar(200)"`
	League           string    `gorm:"type:varchar(100)"`
	HomeScore        *int      `gorm:"column:home_score"`
	AwayScore        *int      `gorm:"column:away_score"`
	CreatedAt        time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime:false"`
}

func (GameModel) TableName() string {
	return "games"
}

func (m *GameModel) ToDomain() *domain.Game {
	game := &domain.Game{
		ID:         m.ID,
		SportID:    m.SportID,
		ExternalID: m.ExternalID,
		HomeTeam: domain.Team{
			ExternalID:   m.HomeExternalID,
			Name:         m.HomeName,
			Abbreviation: m.HomeAbbreviation,
			City:         m.HomeCity,
			Logo:         m.HomeLogo,
		},
		AwayTeam: domain.Team{
			ExternalID:   m.AwayExternalID,
			Name:         m.AwayName,
			Abbreviation: m.AwayAbbreviation,
			City:         m.AwayCity,
			Logo:         m.AwayLogo,
		},
		StartTime: m.StartTime,
		Status:    domain.GameStatus(m.Status),
		Period:    m.Period,
		Clock:     m.Clock,
		Venue:     m.Venue,
		League:    m.League,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.HomeScore != nil && m.AwayScore != nil {
		game.Score = &domain.Score{Home: *m.HomeScore, Away: *m.AwayScore}
	}
	return game
}

func GameToModel(g *domain.Game) *GameModel {
	m := &GameModel{
		ID:               g.ID,
		SportID:          g.SportID,
		ExternalID:       g.ExternalID,
		HomeExternalID:   g.HomeTeam.ExternalID,
		HomeName:         g.HomeTeam.Name,
		HomeAbbreviation: g.HomeTeam.Abbreviation,
		HomeCity:         g.HomeTeam.City,
		HomeLogo:         g.HomeTeam.Logo,
		AwayExternalID:   g.AwayTeam.ExternalID,
		AwayName:         g.AwayTeam.Name,
		AwayAbbreviation: g.AwayTeam.Abbreviation,
		AwayCity:         g.AwayTeam.City,
		AwayLogo:         g.AwayTeam.Logo,
		StartTime:        g.StartTime,
		Status:           string(g.Status),
		Period:           g.Period,
		Clock:            g.Clock,
		Venue:            g.Venue,
		League:           g.League,
		CreatedAt:        g.CreatedAt,
		UpdatedAt:        g.UpdatedAt,
	}
	if g.Score != nil {
		home, away := g.Score.Home, g.Score.Away
		m.HomeScore = &home
		m.AwayScore = &away
	}
	return m
}

type SessionModel struct {
	ID             string     `gorm:"type:varchar(36);primaryKey"`
	HostUserID     string     `gorm:"type:varchar(64);not null;index"`
	GameID         string     `gorm:"type:varchar(64);index"`
	Title          string     `gorm:"type:varchar(100);not null"`
	Description    string     `gorm:"type:text"`
	Status         string     `gorm:"type:varchar(20);not null;index"`
	IsPublic       bool       `gorm:"not null"`
	MaxViewers     int        `gorm:"not null"`
	CurrentViewers int        `gorm:"not null;default:0"`
	TotalViews     int        `gorm:"not null;default:0"`
	CreatedAt      time.Time  `gorm:"index;autoCreateTime:false"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime:false"`
	EndedAt        *time.Time `gorm:"column:ended_at"`
}

func (SessionModel) TableName() string {
	return "screen_share_sessions"
}

func (m *SessionModel) ToDomain() *domain.ScreenShareSession {
	return &domain.ScreenShareSession{
		ID:             domain.SessionID(m.ID),
		HostUserID:     domain.UserID(m.HostUserID),
		GameID:         m.GameID,
		Title:          m.Title,
		Description:    m.Description,
		Status:         domain.SessionStatus(m.Status),
		IsPublic:       m.IsPublic,
		MaxViewers:     m.MaxViewers,
		CurrentViewers: m.CurrentViewers,
		TotalViews:     m.TotalViews,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		EndedAt:        m.EndedAt,
	}
}

func SessionToModel(s *domain.ScreenShareSession) *SessionModel {
	return &SessionModel{
		ID:             string(s.ID),
		HostUserID:     string(s.HostUserID),
		GameID:         s.GameID,
		Title:          s.Title,
		Description:    s.Description,
		Status:         string(s.Status),
		IsPublic:       s.IsPublic,
		MaxViewers:     s.MaxViewers,
		CurrentViewers: s.CurrentViewers,
		TotalViews:     s.TotalViews,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		EndedAt:        s.EndedAt,
	}
}

type ViewerModel struct {
	ID        string     `gorm:"type:varchar(36);primaryKey"`
	SessionID string     `gorm:"type:varchar(36);not null;index:idx_viewer_session_user"`
	UserID    string     `gorm:"type:varchar(64);index:idx_viewer_session_user"`
	IsActive  bool       `gorm:"not null;index"`
	JoinedAt  time.Time  `gorm:"not null"`
	LeftAt    *time.Time `gorm:"column:left_at"`
}

func (ViewerModel) TableName() string {
	return "screen_share_viewers"
}

func (m *ViewerModel) ToDomain() *domain.Viewer {
	return &domain.Viewer{
		ID:        m.ID,
		SessionID: domain.SessionID(m.SessionID),
		UserID:    domain.UserID(m.UserID),
		IsActive:  m.IsActive,
		JoinedAt:  m.JoinedAt,
		LeftAt:    m.LeftAt,
	}
}
