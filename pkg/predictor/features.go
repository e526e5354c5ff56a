package predictor

import (
	"time"

	"github.com/richard-senior/matchpredictor/internal/logger"
	"github.com/richard-senior/matchpredictor/pkg/football"
)

// Feature names in vector order
const (
	FeatureAvgGoalsScored   = "avg_goals_scored"
	FeatureAvgGoalsConceded = "avg_goals_conceded"
	FeatureForm             = "form"
	FeatureIsHome           = "is_home"
)

var TeamFeatureNames = []string{FeatureAvgGoalsScored, FeatureAvgGoalsConceded, FeatureForm, FeatureIsHome}

// MatchFeatureNames is the layout of a match row: home vector then away vector
var MatchFeatureNames = func() []string {
	names := make([]string, 0, 2*len(TeamFeatureNames))
	for _, n := range TeamFeatureNames {
		names = append(names, "home_"+n)
	}
	for _, n := range TeamFeatureNames {
		names = append(names, "away_"+n)
	}
	return names
}()

// Options controls the trailing window
type Options struct {
	WindowSize int `json:"windowSize"`
	MinHistory int `json:"minHistory"`
}

func DefaultOptions() Options {
	return Options{WindowSize: 5, MinHistory: 3}
}

// TeamStats are a team's per-match averages. They are the inputs to a prediction
// and the first three components of a feature vector.
type TeamStats struct {
	AvgGoalsScored   float64 `json:"avg_goals_scored"`
	AvgGoalsConceded float64 `json:"avg_goals_conceded"`
	Form             float64 `json:"form"`
}

// FeatureVector is the fixed schema describing one side of a match
type FeatureVector struct {
	TeamStats
	IsHome float64 `json:"is_home"`
}

// Vector builds a feature vector for the given side
func (s TeamStats) Vector(home bool) FeatureVector {
	v := FeatureVector{TeamStats: s}
	if home {
		v.IsHome = 1
	}
	return v
}

// Values returns the vector in TeamFeatureNames order
func (f FeatureVector) Values() []float64 {
	return []float64{f.AvgGoalsScored, f.AvgGoalsConceded, f.Form, f.IsHome}
}

// Map returns the vector keyed by feature name
func (f FeatureVector) Map() map[string]float64 {
	vals := f.Values()
	m := make(map[string]float64, len(vals))
	for i, n := range TeamFeatureNames {
		m[n] = vals[i]
	}
	return m
}

// TeamRow is one team's view of one match
type TeamRow struct {
	MatchID  string        `json:"matchId"`
	TeamID   string        `json:"teamId"`
	Kickoff  time.Time     `json:"kickoff"`
	Features FeatureVector `json:"features"`
	Won      bool          `json:"won"`
}

// Label is 1 when the team won the match
func (r TeamRow) Label() int {
	if r.Won {
		return 1
	}
	return 0
}

// FeatureTable holds per-team rows in (kickoff, match id, home first) order
type FeatureTable struct {
	Rows []TeamRow
}

func (t *FeatureTable) Len() int { return len(t.Rows) }

// BuildStats counts what the builder did with its input
type BuildStats struct {
	Matches  int `json:"matches"`  // played matches considered
	Rows     int `json:"rows"`     // team rows emitted
	Excluded int `json:"excluded"` // team-match pairs lacking history
}

// BuildTeamFeatures derives one row per team per played match from the team's trailing window
// of strictly earlier matches. Pairs with fewer than MinHistory prior matches are skipped.
func BuildTeamFeatures(matches []*football.Match, opts Options) (*FeatureTable, BuildStats) {
	played := football.Finished(matches)
	football.SortMatches(played)

	stats := BuildStats{Matches: len(played)}
	table := &FeatureTable{Rows: make([]TeamRow, 0, 2*len(played))}
	history := make(map[string][]*football.Match)

	for _, m := range played {
		for _, teamID := range []string{m.HomeID, m.AwayID} {
			window := trailingWindow(history[teamID], m.Kickoff, opts.WindowSize)
			if len(window) < opts.MinHistory {
				stats.Excluded++
				logger.Debug("Excluding row", (&InsufficientHistoryError{TeamID: teamID, MatchID: m.ID, Have: len(window), Need: opts.MinHistory}).Error())
				continue
			}
			table.Rows = append(table.Rows, TeamRow{
				MatchID:  m.ID,
				TeamID:   teamID,
				Kickoff:  m.Kickoff,
				Features: windowStats(teamID, window).Vector(m.IsHome(teamID)),
				Won:      m.Won(teamID),
			})
		}
		history[m.HomeID] = append(history[m.HomeID], m)
		history[m.AwayID] = append(history[m.AwayID], m)
	}
	stats.Rows = len(table.Rows)
	return table, stats
}

// MatchRow is a match seen from both sides, labelled with its three-way outcome
type MatchRow struct {
	MatchID string           `json:"matchId"`
	Kickoff time.Time        `json:"kickoff"`
	Home    FeatureVector    `json:"home"`
	Away    FeatureVector    `json:"away"`
	Outcome football.Outcome `json:"outcome"`
}

// Values returns the home vector followed by the away vector
func (r MatchRow) Values() []float64 {
	return append(r.Home.Values(), r.Away.Values()...)
}

// MatchValues builds a match row from two sets of team stats
func MatchValues(home, away TeamStats) []float64 {
	return MatchRow{Home: home.Vector(true), Away: away.Vector(false)}.Values()
}

// BuildMatchRows pairs the team rows of each match. Matches where either side
// lacked history are skipped.
func BuildMatchRows(matches []*football.Match, opts Options) ([]MatchRow, BuildStats) {
	table, stats := BuildTeamFeatures(matches, opts)

	byID := make(map[string]*football.Match, len(matches))
	for _, m := range matches {
		byID[m.ID] = m
	}

	rows := make([]MatchRow, 0, table.Len()/2)
	for i := 0; i+1 < len(table.Rows); i++ {
		h, a := table.Rows[i], table.Rows[i+1]
		if h.MatchID != a.MatchID {
			continue
		}
		m := byID[h.MatchID]
		rows = append(rows, MatchRow{
			MatchID: h.MatchID,
			Kickoff: h.Kickoff,
			Home:    h.Features,
			Away:    a.Features,
			Outcome: m.Result(),
		})
		i++
	}
	return rows, stats
}

// TeamForm returns the team's trailing-window stats as of the given instant,
// using only matches that kicked off strictly before it
func TeamForm(matches []*football.Match, teamID string, asOf time.Time, opts Options) (TeamStats, error) {
	var prior []*football.Match
	for _, m := range matches {
		if m.HasBeenPlayed() && m.Involves(teamID) {
			prior = append(prior, m)
		}
	}
	football.SortMatches(prior)
	window := trailingWindow(prior, asOf, opts.WindowSize)
	if len(window) < opts.MinHistory {
		return TeamStats{}, &InsufficientHistoryError{TeamID: teamID, Have: len(window), Need: opts.MinHistory}
	}
	return windowStats(teamID, window), nil
}

// StatsFromTotals converts season totals to per-match averages
func StatsFromTotals(t *football.TeamTotals) (TeamStats, error) {
	if t == nil || t.Matches <= 0 {
		id := ""
		if t != nil {
			id = t.TeamID
		}
		return TeamStats{}, &InsufficientHistoryError{TeamID: id, Have: 0, Need: 1}
	}
	n := float64(t.Matches)
	return TeamStats{
		AvgGoalsScored:   float64(t.GoalsScored) / n,
		AvgGoalsConceded: float64(t.GoalsConceded) / n,
		Form:             float64(t.Wins) / n,
	}, nil
}

// trailingWindow returns up to size of the latest matches that kicked off strictly before
// the cutoff. history must be sorted by kickoff.
func trailingWindow(history []*football.Match, cutoff time.Time, size int) []*football.Match {
	end := len(history)
	for end > 0 && !history[end-1].Kickoff.Before(cutoff) {
		end--
	}
	start := end - size
	if start < 0 {
		start = 0
	}
	return history[start:end]
}

func windowStats(teamID string, window []*football.Match) TeamStats {
	var scored, conceded, wins int
	for _, m := range window {
		scored += m.GoalsFor(teamID)
		conceded += m.GoalsAgainst(teamID)
		if m.Won(teamID) {
			wins++
		}
	}
	n := float64(len(window))
	return TeamStats{
		AvgGoalsScored:   float64(scored) / n,
		AvgGoalsConceded: float64(conceded) / n,
		Form:             float64(wins) / n,
	}
}
