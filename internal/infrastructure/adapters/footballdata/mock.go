package footballdata

import "time"

func intPtr(v int) *int { return &v }

// mockMatches is served when no API key is configured: one fixture later
// today and one match in the second half.
func mockMatches(now time.Time) []apiMatch {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	scheduled := apiMatch{
		ID:       12345,
		UTCDate:  today.Add(19*time.Hour + 30*time.Minute),
		Status:   "SCHEDULED",
		Venue:    "Emirates Stadium",
		HomeTeam: apiTeam{ID: 57, Name: "Arsenal FC", ShortName: "Arsenal", TLA: "ARS"},
		AwayTeam: apiTeam{ID: 61, Name: "Chelsea FC", ShortName: "Chelsea", TLA: "CHE"},
	}

	live := apiMatch{
		ID:       12346,
		UTCDate:  now.Add(-75 * time.Minute).Truncate(time.Minute),
		Status:   "IN_PLAY",
		Minute:   intPtr(67),
		Venue:    "Etihad Stadium",
		HomeTeam: apiTeam{ID: 65, Name: "Manchester City FC", ShortName: "Man City", TLA: "MCI"},
		AwayTeam: apiTeam{ID: 66, Name: "Manchester United FC", ShortName: "Man United", TLA: "MUN"},
	}
	live.Score.FullTime = apiScorePair{Home: intPtr(2), Away: intPtr(1)}
	live.Score.HalfTime = apiScorePair{Home: intPtr(1), Away: intPtr(0)}

	return []apiMatch{scheduled, live}
}
