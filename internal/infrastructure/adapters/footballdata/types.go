package footballdata

import (
	"math"
	"strconv"
	"time"

	"sportshub/internal/core/domain"
)

type apiTeam struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
	TLA       string `json:"tla"`
	Crest     string `json:"crest"`
}

type apiScorePair struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

type apiMatch struct {
	ID       int       `json:"id"`
	UTCDate  time.Time `json:"utcDate"`
	Status   string    `json:"status"`
	Minute   *int      `json:"minute"`
	Venue    string    `json:"venue"`
	HomeTeam apiTeam   `json:"homeTeam"`
	AwayTeam apiTeam   `json:"awayTeam"`
	Score    struct {
		FullTime apiScorePair `json:"fullTime"`
		HalfTime apiScorePair `json:"halfTime"`
	} `json:"score"`
}

type apiMatches struct {
	Count   int        `json:"count"`
	Matches []apiMatch `json:"matches"`
}

// mapStatus folds the provider's match states into game statuses.
func mapStatus(status string) domain.GameStatus {
	switch status {
	case "LIVE", "IN_PLAY", "PAUSED":
		return domain.GameStatusInProgress
	case "FINISHED":
		return domain.GameStatusFinal
	case "POSTPONED", "SUSPENDED":
		return domain.GameStatusDelayed
	case "CANCELLED":
		return domain.GameStatusCancelled
	default:
		return domain.GameStatusScheduled
	}
}

func toTeam(t apiTeam) domain.Team {
	abbreviation := t.TLA
	if abbreviation == "" {
		abbreviation = t.ShortName
	}
	return domain.Team{
		ExternalID:   strconv.Itoa(t.ID),
		Name:         t.Name,
		Abbreviation: abbreviation,
		Logo:         t.Crest,
	}
}

func toGameData(m apiMatch, league string) domain.GameData {
	data := domain.GameData{
		ExternalID: strconv.Itoa(m.ID),
		HomeTeam:   toTeam(m.HomeTeam),
		AwayTeam:   toTeam(m.AwayTeam),
		StartTime:  m.UTCDate,
		Status:     mapStatus(m.Status),
		Venue:      m.Venue,
		League:     league,
	}

	if m.Minute != nil && *m.Minute > 0 {
		period := int(math.Ceil(float64(*m.Minute) / 45))
		data.Period = &period
		data.Clock = strconv.Itoa(*m.Minute) + "'"
	}

	if m.Score.FullTime.Home != nil {
		score := domain.Score{Home: *m.Score.FullTime.Home}
		if m.Score.FullTime.Away != nil {
			score.Away = *m.Score.FullTime.Away
		}
		data.Score = &score
	}
	return data
}
