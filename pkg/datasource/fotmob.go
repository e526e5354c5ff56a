package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/richard-senior/matchpredictor/internal/logger"
	"github.com/richard-senior/matchpredictor/pkg/config"
	"github.com/richard-senior/matchpredictor/pkg/football"
	"github.com/richard-senior/matchpredictor/pkg/transport"
)

// Fotmob scrapes the league overview page, whose __NEXT_DATA__ script carries every fixture
type Fotmob struct {
	baseURL  string
	leagueID int
	season   int
	client   *transport.Client
	cache    *Cache
	now      func() time.Time
}

func NewFotmob(cfg config.SourceConfig, client *transport.Client, cache *Cache) *Fotmob {
	base := cfg.BaseURL
	if base == "" || strings.Contains(base, "football-data.org") {
		base = "https://www.fotmob.com"
	}
	return &Fotmob{
		baseURL:  strings.TrimRight(base, "/"),
		leagueID: cfg.LeagueID,
		season:   cfg.Season,
		client:   client,
		cache:    cache,
		now:      time.Now,
	}
}

func (f *Fotmob) Name() string { return config.ProviderFotmob }

// SeasonMatches reads props.pageProps.matches.allMatches from the overview page
func (f *Fotmob) SeasonMatches(ctx context.Context) ([]*football.Match, error) {
	if f.leagueID <= 0 {
		return nil, fmt.Errorf("must supply a valid fotmob league id")
	}
	year := seasonYear(f.season, f.now())
	season := football.SeasonLabel(year)
	pageURL := fmt.Sprintf("%s/en-GB/leagues/%d/overview?season=%s", f.baseURL, f.leagueID, url.QueryEscape(season))
	key := fmt.Sprintf("fotmob-%d-%d-league", f.leagueID, year)

	pageProps, ok := f.cache.Get(key)
	if !ok {
		logger.Warn("league/season not in cache: ", f.leagueID, season)
		html, err := f.client.GetHTML(ctx, pageURL)
		if err != nil {
			return nil, fetchError(f.Name(), pageURL, err)
		}
		pageProps, err = extractPageProps(html)
		if err != nil {
			return nil, fetchError(f.Name(), pageURL, err)
		}
	}

	matches, err := parseFotmobMatches(pageProps, year)
	if err != nil {
		return nil, fetchError(f.Name(), pageURL, err)
	}
	if !ok {
		if err := f.cache.Put(key, pageProps); err != nil {
			logger.Warn("Failed to cache league page", err)
		}
	}
	logger.Info("Loaded matches", len(matches), "league", f.leagueID, "season", season)
	return matches, nil
}

func (f *Fotmob) TeamTotals(ctx context.Context, teamID string) (*football.TeamTotals, error) {
	matches, err := f.SeasonMatches(ctx)
	if err != nil {
		return nil, err
	}
	return football.SeasonTotals(matches, teamID), nil
}

// extractPageProps finds the script tag with id "__NEXT_DATA__" and returns its props.pageProps
func extractPageProps(html []byte) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}
	scriptData := doc.Find("script#__NEXT_DATA__").First().Text()
	if scriptData == "" {
		return nil, fmt.Errorf("could not find __NEXT_DATA__ script tag")
	}

	var data struct {
		Props struct {
			PageProps json.RawMessage `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal([]byte(scriptData), &data); err != nil {
		return nil, fmt.Errorf("error parsing __NEXT_DATA__: %w", err)
	}
	if len(data.Props.PageProps) == 0 {
		return nil, fmt.Errorf("could not find 'pageProps' in props")
	}
	return data.Props.PageProps, nil
}

func parseFotmobMatches(pageProps []byte, season int) ([]*football.Match, error) {
	var props struct {
		Matches struct {
			AllMatches []map[string]any `json:"allMatches"`
		} `json:"matches"`
	}
	if err := json.Unmarshal(pageProps, &props); err != nil {
		return nil, fmt.Errorf("invalid pageProps: %w", err)
	}

	matches := make([]*football.Match, 0, len(props.Matches.AllMatches))
	for i, data := range props.Matches.AllMatches {
		m := football.NewMatch()
		m.Season = season
		m.ID = stringValue(data["id"])
		if home, ok := data["home"].(map[string]any); ok {
			m.HomeID = stringValue(home["id"])
			m.HomeName, _ = home["shortName"].(string)
		}
		if away, ok := data["away"].(map[string]any); ok {
			m.AwayID = stringValue(away["id"])
			m.AwayName, _ = away["shortName"].(string)
		}
		if m.ID == "" || m.HomeID == "" || m.AwayID == "" {
			logger.Warn("Skipping fotmob match without ids", i)
			continue
		}
		processFotmobStatus(m, data)
		matches = append(matches, m)
	}
	return matches, nil
}

// processFotmobStatus compresses the status object into status, kickoff and score
func processFotmobStatus(m *football.Match, data map[string]any) {
	status, ok := data["status"].(map[string]any)
	if !ok {
		return
	}
	if utcTime, ok := status["utcTime"].(string); ok {
		if t, err := time.Parse(time.RFC3339, utcTime); err == nil {
			m.Kickoff = t.UTC()
		}
	}
	if finished, ok := status["finished"].(bool); ok && finished {
		m.Status = football.StatusFinished
		if scoreStr, ok := status["scoreStr"].(string); ok {
			if err := m.ParseScore(strings.ReplaceAll(scoreStr, ":", "-")); err != nil {
				logger.Warn("Unreadable score for match", m.ID, scoreStr)
			}
		}
		m.Outcome = m.DeriveOutcome()
	} else if started, ok := status["started"].(bool); ok && started {
		m.Status = football.StatusInPlay
	}
	if cancelled, ok := status["cancelled"].(bool); ok && cancelled {
		m.Status = football.StatusCancelled
		m.Outcome = football.OutcomeUnknown
	}
}
