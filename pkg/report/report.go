package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"math"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/richard-senior/matchpredictor/pkg/football"
	"github.com/richard-senior/matchpredictor/pkg/predictor"
	"github.com/richard-senior/matchpredictor/pkg/service"
)

const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Confidence grades a prediction by its most likely outcome: above 0.6 is high, above 0.4 medium
func Confidence(p *predictor.Prediction) string {
	best := math.Max(p.HomeWinProbability, math.Max(p.DrawProbability, p.AwayWinProbability))
	switch {
	case best > 0.6:
		return ConfidenceHigh
	case best > 0.4:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Row is a display friendly prediction
type Row struct {
	MatchID    string
	Date       string
	HomeTeam   string
	AwayTeam   string
	HomeWin    int
	Draw       int
	AwayWin    int
	Score      string
	Confidence string
}

func percent(p float64) int {
	return int(math.Round(p * 100))
}

// Rows formats predictions for display
func Rows(predictions []*service.MatchPrediction) []Row {
	rows := make([]Row, 0, len(predictions))
	for _, p := range predictions {
		if p == nil || p.Prediction == nil {
			continue
		}
		rows = append(rows, Row{
			MatchID:    p.MatchID,
			Date:       p.Date.UTC().Format("Mon 02 Jan 2006 15:04"),
			HomeTeam:   p.HomeTeam,
			AwayTeam:   p.AwayTeam,
			HomeWin:    percent(p.HomeWinProbability),
			Draw:       percent(p.DrawProbability),
			AwayWin:    percent(p.AwayWinProbability),
			Score:      fmt.Sprintf("%d - %d", p.PredictedHomeGoals, p.PredictedAwayGoals),
			Confidence: Confidence(p.Prediction),
		})
	}
	return rows
}

// Page is everything the upcoming predictions page shows
type Page struct {
	Title        string
	ModelVersion string
	Generated    string
	Rows         []Row
	Standings    []*football.Standing
	Projected    []*football.Standing // ordered by predicted position, may be nil
}

// NewPage assembles a page. standings may be nil.
func NewPage(title, modelVersion string, predictions []*service.MatchPrediction, standings []*football.Standing) *Page {
	return &Page{
		Title:        title,
		ModelVersion: modelVersion,
		Generated:    time.Now().UTC().Format(time.RFC1123),
		Rows:         Rows(predictions),
		Standings:    standings,
	}
}

var funcs = template.FuncMap{
	"join": strings.Join,
	"points": func(p float64) string {
		return fmt.Sprintf("%.1f", p)
	},
}

const sections = `{{define "predictions"}}<h2>Upcoming matches</h2>
{{if .}}<table>
<thead><tr><th>Date</th><th>Home</th><th>Away</th><th>Home win</th><th>Draw</th><th>Away win</th><th>Score</th><th>Confidence</th></tr></thead>
<tbody>
{{range .}}<tr><td>{{.Date}}</td><td>{{.HomeTeam}}</td><td>{{.AwayTeam}}</td><td>{{.HomeWin}}%</td><td>{{.Draw}}%</td><td>{{.AwayWin}}%</td><td>{{.Score}}</td><td class="{{.Confidence}}">{{.Confidence}}</td></tr>
{{end}}</tbody>
</table>{{else}}<p>No upcoming matches.</p>{{end}}{{end}}
{{define "standings"}}<h2>League table</h2>
<table>
<thead><tr><th>#</th><th>Team</th><th>P</th><th>W</th><th>D</th><th>L</th><th>GF</th><th>GA</th><th>GD</th><th>Pts</th><th>Form</th></tr></thead>
<tbody>
{{range .}}<tr><td>{{.Position}}</td><td>{{.TeamName}}</td><td>{{.Played}}</td><td>{{.Won}}</td><td>{{.Drawn}}</td><td>{{.Lost}}</td><td>{{.GoalsFor}}</td><td>{{.GoalsAgainst}}</td><td>{{.GoalDifference}}</td><td>{{.Points}}</td><td>{{join .Form " "}}</td></tr>
{{end}}</tbody>
</table>{{end}}
{{define "projection"}}<h2>Predicted final standings</h2>
<table>
<thead><tr><th>#</th><th>Team</th><th>Now</th><th>Pts</th><th>Predicted pts</th></tr></thead>
<tbody>
{{range .}}<tr><td>{{.PredictedPosition}}</td><td>{{.TeamName}}</td><td>{{.Position}}</td><td>{{.Points}}</td><td>{{points .PredictedPoints}}</td></tr>
{{end}}</tbody>
</table>{{end}}`

const body = `<h1>{{.Title}}</h1>
<p>Model {{if .ModelVersion}}<code>{{.ModelVersion}}</code>{{else}}untrained{{end}}, generated {{.Generated}}</p>
{{template "predictions" .Rows}}
{{if .Standings}}{{template "standings" .Standings}}{{end}}
{{if .Projected}}{{template "projection" .Projected}}{{end}}`

var (
	bodyTemplate = template.Must(template.Must(template.New("body").Funcs(funcs).Parse(body)).Parse(sections))
	pageTemplate = template.Must(template.Must(bodyTemplate.Clone()).New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { padding: 4px 10px; border-bottom: 1px solid #ddd; text-align: left; }
td.high { color: #1a7f37; } td.medium { color: #9a6700; } td.low { color: #cf222e; }
</style>
</head>
<body>
{{template "body" .}}
</body>
</html>`))
)

// WriteHTML renders the page as a standalone HTML document
func (p *Page) WriteHTML(w io.Writer) error {
	if err := pageTemplate.ExecuteTemplate(w, "page", p); err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}
	return nil
}

// Markdown renders the page body as Markdown for clients that cannot show HTML
func (p *Page) Markdown() (string, error) {
	return markdown("body", p)
}

// StandingsMarkdown renders a league table as Markdown
func StandingsMarkdown(standings []*football.Standing) (string, error) {
	return markdown("standings", standings)
}

// ProjectionMarkdown renders standings from ProjectStandings as Markdown
func ProjectionMarkdown(projected []*football.Standing) (string, error) {
	return markdown("projection", projected)
}

func markdown(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := bodyTemplate.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	md, err := conv.ConvertString(buf.String())
	if err != nil {
		return "", fmt.Errorf("failed to convert %s to markdown: %w", name, err)
	}
	return md, nil
}
