package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/richard-senior/matchpredictor/internal/logger"
	"github.com/richard-senior/matchpredictor/pkg/config"
	"github.com/richard-senior/matchpredictor/pkg/football"
	"github.com/richard-senior/matchpredictor/pkg/transport"
)

// FootballData reads the football-data.org v4 REST API
type FootballData struct {
	baseURL     string
	apiKey      string
	competition string
	season      int
	client      *transport.Client
	cache       *Cache
	now         func() time.Time
}

func NewFootballData(cfg config.SourceConfig, client *transport.Client, cache *Cache) *FootballData {
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.football-data.org/v4"
	}
	if cfg.APIKey == "" {
		logger.Warn("No football-data.org API key configured, requests will probably be rejected")
	}
	return &FootballData{
		baseURL:     strings.TrimRight(base, "/"),
		apiKey:      cfg.APIKey,
		competition: cfg.Competition,
		season:      cfg.Season,
		client:      client,
		cache:       cache,
		now:         time.Now,
	}
}

func (f *FootballData) Name() string { return config.ProviderFootballData }

type fdTeam struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
}

type fdMatch struct {
	ID       int    `json:"id"`
	UTCDate  string `json:"utcDate"`
	Status   string `json:"status"`
	HomeTeam fdTeam `json:"homeTeam"`
	AwayTeam fdTeam `json:"awayTeam"`
	Score    struct {
		Winner   string `json:"winner"`
		FullTime struct {
			Home *int `json:"home"`
			Away *int `json:"away"`
		} `json:"fullTime"`
	} `json:"score"`
}

type fdMatches struct {
	Matches []fdMatch `json:"matches"`
}

// SeasonMatches fetches /competitions/{code}/matches for the season
func (f *FootballData) SeasonMatches(ctx context.Context) ([]*football.Match, error) {
	year := seasonYear(f.season, f.now())
	url := fmt.Sprintf("%s/competitions/%s/matches?season=%d", f.baseURL, f.competition, year)
	key := fmt.Sprintf("football-data-%s-%d", f.competition, year)

	data, ok := f.cache.Get(key)
	if !ok {
		logger.Info("Fetching season matches", url)
		var err error
		data, err = f.client.GetJSON(ctx, url, map[string]string{"X-Auth-Token": f.apiKey})
		if err != nil {
			return nil, fetchError(f.Name(), url, err)
		}
	}

	matches, err := parseFootballData(data, year)
	if err != nil {
		return nil, fetchError(f.Name(), url, err)
	}
	if !ok {
		if err := f.cache.Put(key, data); err != nil {
			logger.Warn("Failed to cache season matches", err)
		}
	}
	logger.Info("Loaded matches", len(matches), "season", football.SeasonLabel(year))
	return matches, nil
}

// TeamTotals aggregates from the season's matches, the /teams resource carries no results
func (f *FootballData) TeamTotals(ctx context.Context, teamID string) (*football.TeamTotals, error) {
	matches, err := f.SeasonMatches(ctx)
	if err != nil {
		return nil, err
	}
	return football.SeasonTotals(matches, teamID), nil
}

func parseFootballData(data []byte, season int) ([]*football.Match, error) {
	var payload fdMatches
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid matches payload: %w", err)
	}
	matches := make([]*football.Match, 0, len(payload.Matches))
	for _, raw := range payload.Matches {
		m := football.NewMatch()
		m.ID = fmt.Sprint(raw.ID)
		m.Season = season
		m.HomeID = fmt.Sprint(raw.HomeTeam.ID)
		m.AwayID = fmt.Sprint(raw.AwayTeam.ID)
		m.HomeName = firstNonEmpty(raw.HomeTeam.ShortName, raw.HomeTeam.Name)
		m.AwayName = firstNonEmpty(raw.AwayTeam.ShortName, raw.AwayTeam.Name)
		m.Status = footballDataStatus(raw.Status)
		kickoff, err := time.Parse(time.RFC3339, raw.UTCDate)
		if err != nil {
			return nil, fmt.Errorf("match %d has invalid utcDate %q: %w", raw.ID, raw.UTCDate, err)
		}
		m.Kickoff = kickoff.UTC()

		if m.IsFinished() && raw.Score.FullTime.Home != nil && raw.Score.FullTime.Away != nil {
			m.HomeGoals = *raw.Score.FullTime.Home
			m.AwayGoals = *raw.Score.FullTime.Away
			switch raw.Score.Winner {
			case "HOME_TEAM":
				m.Outcome = football.OutcomeHomeWin
			case "AWAY_TEAM":
				m.Outcome = football.OutcomeAwayWin
			case "DRAW":
				m.Outcome = football.OutcomeDraw
			default:
				m.Outcome = m.DeriveOutcome()
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func footballDataStatus(s string) football.Status {
	switch s {
	case "FINISHED", "AWARDED":
		return football.StatusFinished
	case "IN_PLAY", "PAUSED", "LIVE":
		return football.StatusInPlay
	case "POSTPONED", "SUSPENDED":
		return football.StatusPostponed
	case "CANCELLED":
		return football.StatusCancelled
	default:
		return football.StatusScheduled
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
