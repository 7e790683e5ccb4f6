package domain

import "time"

type GameStatus string

const (
	GameStatusScheduled  GameStatus = "SCHEDULED"
	GameStatusInProgress GameStatus = "IN_PROGRESS"
	GameStatusFinal      GameStatus = "FINAL"
	GameStatusCancelled  GameStatus = "CANCELLED"
	GameStatusDelayed    GameStatus = "DELAYED"
)

func (s GameStatus) Valid() bool {
	switch s {
	case GameStatusScheduled, GameStatusInProgress, GameStatusFinal, GameStatusCancelled, GameStatusDelayed:
		return true
	}
	return false
}

type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

type Team struct {
	ExternalID   string `json:"externalId"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation,omitempty"`
	City         string `json:"city,omitempty"`
	Logo         string `json:"logo,omitempty"`
}

// GameData is a game as reported by a sports adapter, before persistence.
type GameData struct {
	ExternalID string
	HomeTeam   Team
	AwayTeam   Team
	StartTime  time.Time
	Status     GameStatus
	Period     *int
	Clock      string
	Venue      string
	League     string
	Score      *Score
}

type Game struct {
	ID         string     `json:"id"`
	SportID    string     `json:"sportId"`
	ExternalID string     `json:"externalId"`
	HomeTeam   Team       `json:"homeTeam"`
	AwayTeam   Team       `json:"awayTeam"`
	StartTime  time.Time  `json:"startTime"`
	Status     GameStatus `json:"status"`
	Period     *int       `json:"period,omitempty"`
	Clock      string     `json:"clock,omitempty"`
	Venue      string     `json:"venue,omitempty"`
	League     string     `json:"league,omitempty"`
	Score      *Score     `json:"score,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// UpsertResult describes what changed when a game was written.
type UpsertResult struct {
	Created       bool
	ScoreChanged  bool
	StatusChanged bool
}

type GameEventKind string

const (
	EventGameUpdate  GameEventKind = "game_update"
	EventGameNew     GameEventKind = "game_new"
	EventScoreUpdate GameEventKind = "score_update"
)

// GamePayload is the client-facing body of a game event.
type GamePayload struct {
	ID        string     `json:"id"`
	SportID   string     `json:"sportId"`
	HomeTeam  string     `json:"homeTeam"`
	AwayTeam  string     `json:"awayTeam"`
	Score     *Score     `json:"score,omitempty"`
	Status    GameStatus `json:"status"`
	Period    *int       `json:"period,omitempty"`
	Clock     string     `json:"clock,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type GameUpdateEvent struct {
	Kind    GameEventKind `json:"kind"`
	GameID  string        `json:"gameId"`
	SportID string        `json:"sportId"`
	Payload GamePayload   `json:"payload"`
}

// NewGameUpdateEvent builds an event from a stored game.
func NewGameUpdateEvent(kind GameEventKind, game *Game) GameUpdateEvent {
	return GameUpdateEvent{
		Kind:    kind,
		GameID:  game.ID,
		SportID: game.SportID,
		Payload: GamePayload{
			ID:        game.ID,
			SportID:   game.SportID,
			HomeTeam:  game.HomeTeam.Name,
			AwayTeam:  game.AwayTeam.Name,
			Score:     game.Score,
			Status:    game.Status,
			Period:    game.Period,
			Clock:     game.Clock,
			UpdatedAt: game.UpdatedAt,
		},
	}
}

// Topics returns the full topic set a game event is published to.
// It is always all three scopes.
func (e GameUpdateEvent) Topics() []Topic {
	return []Topic{TopicAll, SportTopic(e.SportID), GameTopic(e.GameID)}
}

// EventKindFor picks the event to emit for an upsert, or "" when nothing
// client-visible changed.
func EventKindFor(game *Game, res UpsertResult) GameEventKind {
	switch {
	case res.Created:
		return EventGameNew
	case res.ScoreChanged:
		return EventScoreUpdate
	case res.StatusChanged, game.Status == GameStatusInProgress:
		return EventGameUpdate
	default:
		return ""
	}
}

type Sport struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	League string `json:"league"`
}

// GameListing is the merged games view for one sport.
type GameListing struct {
	Games []*Game `json:"games"`
	Today []*Game `json:"today"`
	Live  []*Game `json:"live"`
}

// NewGame builds a stored game from adapter data.
func NewGame(id, sportID string, data GameData, now time.Time) *Game {
	g := &Game{ID: id, SportID: sportID, ExternalID: data.ExternalID, CreatedAt: now}
	g.Apply(data, now)
	return g
}

// Apply overwrites the game's mutable fields with data and reports what
// changed.
func (g *Game) Apply(data GameData, now time.Time) UpsertResult {
	res := UpsertResult{
		ScoreChanged:  !sameScore(g.Score, data.Score),
		StatusChanged: g.Status != data.Status,
	}

	g.HomeTeam = data.HomeTeam
	g.AwayTeam = data.AwayTeam
	g.StartTime = data.StartTime
	g.Status = data.Status
	g.Period = data.Period
	g.Clock = data.Clock
	g.Venue = data.Venue
	g.League = data.League
	if data.Score != nil {
		score := *data.Score
		g.Score = &score
	} else {
		g.Score = nil
	}
	g.UpdatedAt = now
	return res
}

func sameScore(a, b *Score) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
