package football

import (
	"sort"
)

// Standing is one row of a league table
type Standing struct {
	Position       int      `json:"position"`
	TeamID         string   `json:"teamId"`
	TeamName       string   `json:"teamName"`
	Played         int      `json:"played"`
	Won            int      `json:"won"`
	Drawn          int      `json:"drawn"`
	Lost           int      `json:"lost"`
	GoalsFor       int      `json:"goalsFor"`
	GoalsAgainst   int      `json:"goalsAgainst"`
	GoalDifference int      `json:"goalDifference"`
	Points         int      `json:"points"`
	Form           []string `json:"form"` // up to the last five results, oldest first

	// Set by ProjectStandings only
	PredictedPoints   float64 `json:"predictedPoints,omitempty"`
	PredictedPosition int     `json:"predictedPosition,omitempty"`
}

const formLength = 5

// Standings builds the league table from played matches.
// Teams are ordered by points, goal difference, goals scored and then name.
func Standings(matches []*Match) []*Standing {
	played := Finished(matches)
	SortMatches(played)
	names := TeamNames(matches)

	rows := make(map[string]*Standing)
	row := func(id string) *Standing {
		r, ok := rows[id]
		if !ok {
			r = &Standing{TeamID: id, TeamName: names[id], Form: []string{}}
			if r.TeamName == "" {
				r.TeamName = id
			}
			rows[id] = r
		}
		return r
	}

	for _, m := range played {
		for _, id := range []string{m.HomeID, m.AwayID} {
			r := row(id)
			r.Played++
			r.GoalsFor += m.GoalsFor(id)
			r.GoalsAgainst += m.GoalsAgainst(id)
			var letter string
			switch {
			case m.Won(id):
				r.Won++
				r.Points += 3
				letter = "W"
			case m.Result() == OutcomeDraw:
				r.Drawn++
				r.Points++
				letter = "D"
			default:
				r.Lost++
				letter = "L"
			}
			r.Form = append(r.Form, letter)
			if len(r.Form) > formLength {
				r.Form = r.Form[1:]
			}
		}
	}

	table := make([]*Standing, 0, len(rows))
	for _, r := range rows {
		r.GoalDifference = r.GoalsFor - r.GoalsAgainst
		table = append(table, r)
	}
	sort.Slice(table, func(i, j int) bool {
		a, b := table[i], table[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.GoalDifference != b.GoalDifference {
			return a.GoalDifference > b.GoalDifference
		}
		if a.GoalsFor != b.GoalsFor {
			return a.GoalsFor > b.GoalsFor
		}
		return a.TeamName < b.TeamName
	})
	for i, r := range table {
		r.Position = i + 1
	}
	return table
}

// FixtureOdds are the outcome probabilities of a match still to be played
type FixtureOdds struct {
	HomeID   string
	AwayID   string
	HomeName string
	AwayName string
	HomeWin  float64
	Draw     float64
	AwayWin  float64
}

// ProjectStandings adds the expected points of the remaining fixtures to the table.
// A win is worth three points and a draw one. The returned rows are copies ordered by
// predicted points, ties keeping the current order.
func ProjectStandings(table []*Standing, fixtures []FixtureOdds) []*Standing {
	rows := make(map[string]*Standing, len(table))
	projected := make([]*Standing, 0, len(table))
	for _, st := range table {
		r := *st
		r.Form = append([]string(nil), st.Form...)
		r.PredictedPoints = float64(st.Points)
		rows[r.TeamID] = &r
		projected = append(projected, &r)
	}
	row := func(id, name string) *Standing {
		if r, ok := rows[id]; ok {
			return r
		}
		if name == "" {
			name = id
		}
		r := &Standing{Position: len(projected) + 1, TeamID: id, TeamName: name, Form: []string{}}
		rows[id] = r
		projected = append(projected, r)
		return r
	}

	for _, f := range fixtures {
		row(f.HomeID, f.HomeName).PredictedPoints += 3*f.HomeWin + f.Draw
		row(f.AwayID, f.AwayName).PredictedPoints += 3*f.AwayWin + f.Draw
	}

	sort.SliceStable(projected, func(i, j int) bool {
		return projected[i].PredictedPoints > projected[j].PredictedPoints
	})
	for i, r := range projected {
		r.PredictedPosition = i + 1
	}
	return projected
}
