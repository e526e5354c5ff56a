package football

import (
	"fmt"
	"strings"
	"time"
)

// TeamTotals are season aggregate figures for one team
type TeamTotals struct {
	TeamID        string `json:"teamId"`
	GoalsScored   int    `json:"goalsScored"`
	GoalsConceded int    `json:"goalsConceded"`
	Wins          int    `json:"wins"`
	Draws         int    `json:"draws"`
	Losses        int    `json:"losses"`
	Matches       int    `json:"matches"`
}

// SeasonTotals aggregates a team's played matches
func SeasonTotals(matches []*Match, teamID string) *TeamTotals {
	t := &TeamTotals{TeamID: teamID}
	for _, m := range matches {
		if !m.HasBeenPlayed() || !m.Involves(teamID) {
			continue
		}
		t.Matches++
		t.GoalsScored += m.GoalsFor(teamID)
		t.GoalsConceded += m.GoalsAgainst(teamID)
		switch {
		case m.Won(teamID):
			t.Wins++
		case m.Result() == OutcomeDraw:
			t.Draws++
		default:
			t.Losses++
		}
	}
	return t
}

// SeasonStartYear returns the first calendar year of the season running at t.
// Seasons are taken to start in July.
func SeasonStartYear(t time.Time) int {
	if t.Month() >= time.July {
		return t.Year()
	}
	return t.Year() - 1
}

// ParseDate accepts an RFC 3339 timestamp or a plain YYYY-MM-DD date.
// An empty string gives the zero time, which callers read as now.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}

// SeasonLabel formats a season start year as "2024/2025"
func SeasonLabel(startYear int) string {
	return fmt.Sprintf("%d/%d", startYear, startYear+1)
}
