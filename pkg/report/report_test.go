package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/richard-senior/matchpredictor/pkg/football"
	"github.com/richard-senior/matchpredictor/pkg/predictor"
	"github.com/richard-senior/matchpredictor/pkg/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upcoming() []*service.MatchPrediction {
	return []*service.MatchPrediction{
		{
			MatchID:  "1",
			HomeTeam: "Liverpool",
			AwayTeam: "Chelsea",
			Date:     time.Date(2025, 1, 4, 17, 30, 0, 0, time.UTC),
			Prediction: &predictor.Prediction{
				HomeWinProbability: 0.55, DrawProbability: 0.25, AwayWinProbability: 0.20,
				PredictedHomeGoals: 3, PredictedAwayGoals: 1,
			},
		},
		{
			MatchID:  "2",
			HomeTeam: "Brighton & Hove Albion",
			AwayTeam: "Arsenal",
			Date:     time.Date(2025, 1, 5, 14, 0, 0, 0, time.UTC),
			Prediction: &predictor.Prediction{
				HomeWinProbability: 0.35, DrawProbability: 0.33, AwayWinProbability: 0.32,
				PredictedHomeGoals: 1, PredictedAwayGoals: 1,
			},
		},
		{MatchID: "3"},
	}
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, ConfidenceHigh, Confidence(&predictor.Prediction{HomeWinProbability: 0.61, DrawProbability: 0.2, AwayWinProbability: 0.19}))
	assert.Equal(t, ConfidenceMedium, Confidence(&predictor.Prediction{HomeWinProbability: 0.3, DrawProbability: 0.2, AwayWinProbability: 0.5}))
	assert.Equal(t, ConfidenceMedium, Confidence(&predictor.Prediction{HomeWinProbability: 0.6, DrawProbability: 0.2, AwayWinProbability: 0.2}))
	assert.Equal(t, ConfidenceLow, Confidence(&predictor.Prediction{HomeWinProbability: 0.4, DrawProbability: 0.3, AwayWinProbability: 0.3}))
}

func TestRows(t *testing.T) {
	rows := Rows(upcoming())
	require.Len(t, rows, 2)
	assert.Equal(t, Row{
		MatchID:    "1",
		Date:       "Sat 04 Jan 2025 17:30",
		HomeTeam:   "Liverpool",
		AwayTeam:   "Chelsea",
		HomeWin:    55,
		Draw:       25,
		AwayWin:    20,
		Score:      "3 - 1",
		Confidence: ConfidenceMedium,
	}, rows[0])
	assert.Equal(t, ConfidenceLow, rows[1].Confidence)
}

func TestWriteHTML(t *testing.T) {
	standings := []*football.Standing{{Position: 1, TeamName: "Liverpool", Played: 2, Won: 2, Points: 6, Form: []string{"W", "W"}}}
	page := NewPage("Premier League predictions", "abc123", upcoming(), standings)

	var buf bytes.Buffer
	require.NoError(t, page.WriteHTML(&buf))
	html := buf.String()
	assert.Contains(t, html, "<!DOCTYPE html>")
	assert.Contains(t, html, "<title>Premier League predictions</title>")
	assert.Contains(t, html, "<code>abc123</code>")
	assert.Contains(t, html, "Brighton &amp; Hove Albion")
	assert.Contains(t, html, "<td>55%</td>")
	assert.Contains(t, html, "League table")
	assert.Contains(t, html, "W W")
}

func TestWriteHTMLWithoutMatches(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPage("Empty", "", nil, nil).WriteHTML(&buf))
	assert.Contains(t, buf.String(), "No upcoming matches.")
	assert.Contains(t, buf.String(), "untrained")
	assert.NotContains(t, buf.String(), "League table")
	assert.NotContains(t, buf.String(), "Predicted final standings")
}

func TestMarkdown(t *testing.T) {
	md, err := NewPage("Upcoming", "abc123", upcoming(), nil).Markdown()
	require.NoError(t, err)
	assert.Contains(t, md, "# Upcoming")
	assert.Contains(t, md, "Liverpool")
	assert.Contains(t, md, "Chelsea")
	assert.Contains(t, md, "55%")
	assert.Contains(t, md, "abc123")
	assert.NotContains(t, md, "<td>")
}

func projected() []*football.Standing {
	return football.ProjectStandings(
		[]*football.Standing{
			{Position: 1, TeamID: "1", TeamName: "Liverpool", Played: 2, Won: 2, Points: 6, Form: []string{"W", "W"}},
			{Position: 2, TeamID: "2", TeamName: "Arsenal", Played: 2, Won: 1, Drawn: 1, Points: 4, Form: []string{"W", "D"}},
		},
		[]football.FixtureOdds{
			{HomeID: "2", AwayID: "3", HomeWin: 0.8, Draw: 0.2},
			{HomeID: "2", AwayID: "1", HomeWin: 0.7, Draw: 0.1, AwayWin: 0.2},
		},
	)
}

func TestStandingsMarkdown(t *testing.T) {
	md, err := StandingsMarkdown([]*football.Standing{
		{Position: 1, TeamName: "Liverpool", Played: 2, Won: 2, GoalsFor: 5, GoalsAgainst: 1, GoalDifference: 4, Points: 6, Form: []string{"W", "W"}},
	})
	require.NoError(t, err)
	assert.Contains(t, md, "## League table")
	assert.Contains(t, md, "Liverpool")
	assert.Contains(t, md, "W W")
	assert.Contains(t, md, "|")
	assert.NotContains(t, md, "<td>")
	assert.NotContains(t, md, "Upcoming matches")
}

func TestProjection(t *testing.T) {
	rows := projected()
	require.Len(t, rows, 3)
	assert.Equal(t, "Arsenal", rows[0].TeamName)
	assert.InDelta(t, 8.8, rows[0].PredictedPoints, 1e-9)

	md, err := ProjectionMarkdown(rows)
	require.NoError(t, err)
	assert.Contains(t, md, "## Predicted final standings")
	assert.Contains(t, md, "8.8")
	assert.Contains(t, md, "6.7")
	assert.Less(t, strings.Index(md, "Arsenal"), strings.Index(md, "Liverpool"))

	page := NewPage("Premier League predictions", "abc123", upcoming(), nil)
	page.Projected = rows
	var buf bytes.Buffer
	require.NoError(t, page.WriteHTML(&buf))
	assert.Contains(t, buf.String(), "Predicted final standings")
	assert.Contains(t, buf.String(), "<td>8.8</td>")
	assert.NotContains(t, buf.String(), "League table")
}
