package football

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Status is the lifecycle state of a fixture
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusInPlay    Status = "in_play"
	StatusFinished  Status = "finished"
	StatusPostponed Status = "postponed"
	StatusCancelled Status = "cancelled"
)

// Outcome is the result of a finished match from the home side's perspective
type Outcome string

const (
	OutcomeUnknown Outcome = ""
	OutcomeHomeWin Outcome = "home_win"
	OutcomeDraw    Outcome = "draw"
	OutcomeAwayWin Outcome = "away_win"
)

// Outcomes lists the three results in class order
var Outcomes = []Outcome{OutcomeHomeWin, OutcomeDraw, OutcomeAwayWin}

// Class returns the index of the outcome in Outcomes, or -1
func (o Outcome) Class() int {
	for i, c := range Outcomes {
		if c == o {
			return i
		}
	}
	return -1
}

// Match represents a single fixture. Records are never mutated once fetched,
// the persistence tags let the store create and fill the matches table.
type Match struct {
	ID        string    `json:"id" column:"id" dbtype:"TEXT" primary:"true"`
	Season    int       `json:"season" column:"season" dbtype:"INTEGER DEFAULT -1" index:"true"`
	Kickoff   time.Time `json:"date" column:"kickoff" dbtype:"TIMESTAMP" index:"true"`
	Status    Status    `json:"status" column:"status" dbtype:"TEXT NOT NULL"`
	HomeID    string    `json:"homeTeamId" column:"home_id" dbtype:"TEXT NOT NULL" index:"true"`
	AwayID    string    `json:"awayTeamId" column:"away_id" dbtype:"TEXT NOT NULL" index:"true"`
	HomeName  string    `json:"homeTeamName,omitempty" column:"home_name" dbtype:"TEXT"`
	AwayName  string    `json:"awayTeamName,omitempty" column:"away_name" dbtype:"TEXT"`
	HomeGoals int       `json:"homeGoals" column:"home_goals" dbtype:"INTEGER DEFAULT -1"`
	AwayGoals int       `json:"awayGoals" column:"away_goals" dbtype:"INTEGER DEFAULT -1"`
	Outcome   Outcome   `json:"outcome,omitempty" column:"outcome" dbtype:"TEXT"`
}

// NewMatch returns a match with unknown scores
func NewMatch() *Match {
	return &Match{
		Season:    -1,
		Status:    StatusScheduled,
		HomeGoals: -1,
		AwayGoals: -1,
	}
}

func (m *Match) GetTableName() string {
	return "matches"
}

func (m *Match) GetPrimaryKey() map[string]interface{} {
	return map[string]interface{}{"id": m.ID}
}

func (m *Match) SetPrimaryKey(pk map[string]interface{}) error {
	id, ok := pk["id"]
	if !ok {
		return fmt.Errorf("primary key 'id' missing")
	}
	m.ID = fmt.Sprint(id)
	return nil
}

// BeforeSave rejects records that cannot be keyed and fills in a missing outcome
func (m *Match) BeforeSave() error {
	if m.ID == "" {
		return fmt.Errorf("match ID cannot be empty")
	}
	if m.HomeID == "" || m.AwayID == "" {
		return fmt.Errorf("match %s is missing a team id", m.ID)
	}
	if m.Outcome == OutcomeUnknown && m.HasBeenPlayed() {
		m.Outcome = m.DeriveOutcome()
	}
	return nil
}

func (m *Match) AfterSave() error    { return nil }
func (m *Match) BeforeDelete() error { return nil }
func (m *Match) AfterDelete() error  { return nil }

func (m *Match) IsFinished() bool {
	return m.Status == StatusFinished
}

func (m *Match) IsScheduled() bool {
	return m.Status == StatusScheduled
}

// HasBeenPlayed is true for finished matches with a known score
func (m *Match) HasBeenPlayed() bool {
	return m.IsFinished() && m.HomeGoals >= 0 && m.AwayGoals >= 0
}

// DeriveOutcome computes the outcome from the score
func (m *Match) DeriveOutcome() Outcome {
	if !m.HasBeenPlayed() {
		return OutcomeUnknown
	}
	switch {
	case m.HomeGoals > m.AwayGoals:
		return OutcomeHomeWin
	case m.HomeGoals < m.AwayGoals:
		return OutcomeAwayWin
	default:
		return OutcomeDraw
	}
}

// Result returns the stored outcome, falling back to the score
func (m *Match) Result() Outcome {
	if m.Outcome != OutcomeUnknown {
		return m.Outcome
	}
	return m.DeriveOutcome()
}

// Involves reports whether the team played in the match
func (m *Match) Involves(teamID string) bool {
	return m.HomeID == teamID || m.AwayID == teamID
}

// IsHome reports whether the team was the home side
func (m *Match) IsHome(teamID string) bool {
	return m.HomeID == teamID
}

// GoalsFor returns the goals scored by the team in this match
func (m *Match) GoalsFor(teamID string) int {
	if m.IsHome(teamID) {
		return m.HomeGoals
	}
	return m.AwayGoals
}

// GoalsAgainst returns the goals conceded by the team in this match
func (m *Match) GoalsAgainst(teamID string) int {
	if m.IsHome(teamID) {
		return m.AwayGoals
	}
	return m.HomeGoals
}

// Won reports whether the team won the match
func (m *Match) Won(teamID string) bool {
	switch m.Result() {
	case OutcomeHomeWin:
		return m.HomeID == teamID
	case OutcomeAwayWin:
		return m.AwayID == teamID
	}
	return false
}

// ParseScore reads a "2 - 1" style score string into the goal fields
func (m *Match) ParseScore(score string) error {
	parts := strings.Split(score, "-")
	if len(parts) != 2 {
		return fmt.Errorf("invalid score string %q", score)
	}
	home, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return fmt.Errorf("invalid home score in %q: %w", score, err)
	}
	away, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return fmt.Errorf("invalid away score in %q: %w", score, err)
	}
	m.HomeGoals = home
	m.AwayGoals = away
	return nil
}

func (m *Match) String() string {
	if m.HasBeenPlayed() {
		return fmt.Sprintf("%s %s %d-%d %s", m.Kickoff.Format("2006-01-02"), m.HomeLabel(), m.HomeGoals, m.AwayGoals, m.AwayLabel())
	}
	return fmt.Sprintf("%s %s v %s (%s)", m.Kickoff.Format("2006-01-02"), m.HomeLabel(), m.AwayLabel(), m.Status)
}

// HomeLabel is the home team name, or its id when the name is unknown
func (m *Match) HomeLabel() string {
	if m.HomeName != "" {
		return m.HomeName
	}
	return m.HomeID
}

// AwayLabel is the away team name, or its id when the name is unknown
func (m *Match) AwayLabel() string {
	if m.AwayName != "" {
		return m.AwayName
	}
	return m.AwayID
}

// SortMatches orders matches by kickoff then id so that same-day fixtures sort deterministically
func SortMatches(matches []*Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		return Before(matches[i], matches[j])
	})
}

// Before is the (kickoff, id) ordering used throughout
func Before(a, b *Match) bool {
	if !a.Kickoff.Equal(b.Kickoff) {
		return a.Kickoff.Before(b.Kickoff)
	}
	return a.ID < b.ID
}

// Finished returns the matches that have been played, in input order
func Finished(matches []*Match) []*Match {
	out := make([]*Match, 0, len(matches))
	for _, m := range matches {
		if m.HasBeenPlayed() {
			out = append(out, m)
		}
	}
	return out
}

// Scheduled returns the matches that are yet to be played, sorted by kickoff
func Scheduled(matches []*Match) []*Match {
	out := make([]*Match, 0)
	for _, m := range matches {
		if m.IsScheduled() {
			out = append(out, m)
		}
	}
	SortMatches(out)
	return out
}

// TeamNames maps team ids to names for every team appearing in matches
func TeamNames(matches []*Match) map[string]string {
	names := make(map[string]string)
	for _, m := range matches {
		if m.HomeName != "" {
			names[m.HomeID] = m.HomeName
		}
		if m.AwayName != "" {
			names[m.AwayID] = m.AwayName
		}
	}
	return names
}
