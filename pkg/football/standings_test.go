package football

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandings(t *testing.T) {
	matches := []*Match{
		played("4", 4, "a", "c", 1, 0),
		played("1", 1, "a", "b", 2, 0),
		played("2", 2, "c", "a", 1, 1),
		played("3", 3, "b", "c", 3, 0),
		NewMatch(),
	}
	matches[1].HomeName = "Alpha"

	table := Standings(matches)
	require.Len(t, table, 3)

	a := table[0]
	assert.Equal(t, 1, a.Position)
	assert.Equal(t, "Alpha", a.TeamName)
	assert.Equal(t, 3, a.Played)
	assert.Equal(t, 7, a.Points)
	assert.Equal(t, 3, a.GoalDifference)
	assert.Equal(t, []string{"W", "D", "W"}, a.Form)

	assert.Equal(t, "b", table[1].TeamID)
	assert.Equal(t, "b", table[1].TeamName)
	assert.Equal(t, 3, table[1].Points)
	assert.Equal(t, 1, table[1].Won)
	assert.Equal(t, 1, table[1].Lost)

	c := table[2]
	assert.Equal(t, 1, c.Points)
	assert.Equal(t, 1, c.Drawn)
	assert.Equal(t, -4, c.GoalDifference)
	assert.Equal(t, []string{"D", "L", "L"}, c.Form)
}

func TestStandingsFormKeepsLastFive(t *testing.T) {
	var matches []*Match
	for day := 1; day <= 7; day++ {
		hg := 1
		if day > 5 {
			hg = 0
		}
		matches = append(matches, played(string(rune('0'+day)), day, "a", "b", hg, 0))
	}
	table := Standings(matches)
	require.Len(t, table, 2)
	assert.Equal(t, []string{"W", "W", "W", "D", "D"}, table[0].Form)
	assert.Equal(t, 17, table[0].Points)
}

func TestProjectStandings(t *testing.T) {
	table := Standings([]*Match{
		played("4", 4, "a", "c", 1, 0),
		played("1", 1, "a", "b", 2, 0),
		played("2", 2, "c", "a", 1, 1),
		played("3", 3, "b", "c", 3, 0),
	})
	fixtures := []FixtureOdds{
		{HomeID: "b", AwayID: "a", HomeWin: 0.9, Draw: 0.1},
		{HomeID: "c", AwayID: "d", AwayName: "Delta", HomeWin: 0.2, Draw: 0.2, AwayWin: 0.6},
	}

	projected := ProjectStandings(table, fixtures)
	require.Len(t, projected, 4)

	var ids []string
	for _, r := range projected {
		ids = append(ids, r.TeamID)
	}
	assert.Equal(t, []string{"a", "b", "d", "c"}, ids)
	assert.InDelta(t, 7.1, projected[0].PredictedPoints, 1e-9)
	assert.InDelta(t, 5.8, projected[1].PredictedPoints, 1e-9)
	assert.InDelta(t, 2.0, projected[2].PredictedPoints, 1e-9)
	assert.InDelta(t, 1.8, projected[3].PredictedPoints, 1e-9)
	for i, r := range projected {
		assert.Equal(t, i+1, r.PredictedPosition)
	}

	d := projected[2]
	assert.Equal(t, "Delta", d.TeamName)
	assert.Equal(t, 4, d.Position)
	assert.Equal(t, 0, d.Played)
	assert.Equal(t, 3, projected[3].Position)

	// the current table is left alone
	assert.Zero(t, table[0].PredictedPoints)
	assert.Zero(t, table[0].PredictedPosition)
}

func TestProjectStandingsWithoutFixtures(t *testing.T) {
	table := Standings([]*Match{
		played("1", 1, "a", "b", 1, 1),
		played("2", 2, "c", "d", 2, 0),
	})
	projected := ProjectStandings(table, nil)
	require.Len(t, projected, len(table))
	for i, r := range projected {
		assert.Equal(t, table[i].TeamID, r.TeamID)
		assert.Equal(t, float64(r.Points), r.PredictedPoints)
		assert.Equal(t, r.Position, r.PredictedPosition)
	}
}
