package datasource

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/richard-senior/matchpredictor/pkg/config"
	"github.com/richard-senior/matchpredictor/pkg/football"
	"github.com/richard-senior/matchpredictor/pkg/transport"
)

// Source provides the matches of one league season
type Source interface {
	// Name identifies the provider in logs and cache keys
	Name() string
	// SeasonMatches returns every match of the season whatever its status
	SeasonMatches(ctx context.Context) ([]*football.Match, error)
	// TeamTotals aggregates a team's finished matches of the season
	TeamTotals(ctx context.Context, teamID string) (*football.TeamTotals, error)
}

var ErrDataFetch = errors.New("data fetch failed")

// DataFetchError is returned when the provider is unreachable, answers with a
// non-200 status or sends a payload that cannot be understood
type DataFetchError struct {
	Provider   string
	URL        string
	StatusCode int
	Err        error
}

func (e *DataFetchError) Error() string {
	msg := fmt.Sprintf("%s: failed to fetch %s", e.Provider, e.URL)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataFetchError) Unwrap() error { return e.Err }

func (e *DataFetchError) Is(target error) bool { return target == ErrDataFetch }

func fetchError(provider, url string, err error) error {
	fe := &DataFetchError{Provider: provider, URL: url, Err: err}
	var se *transport.StatusError
	if errors.As(err, &se) {
		fe.StatusCode = se.StatusCode
	}
	return fe
}

// New builds the configured provider
func New(cfg *config.PredictorConfig) (Source, error) {
	client := transport.NewClient(transport.ClientOptions{
		Timeout:   cfg.Source.Timeout,
		Retries:   cfg.Source.Retries,
		Backoff:   cfg.Source.RetryBackoff,
		UserAgent: cfg.Source.UserAgent,
	})
	cache := NewCache(cfg.Source.CacheDir, cfg.Source.CacheTTL)
	switch cfg.Source.Provider {
	case config.ProviderFootballData:
		return NewFootballData(cfg.Source, client, cache), nil
	case config.ProviderFotmob:
		return NewFotmob(cfg.Source, client, cache), nil
	}
	return nil, fmt.Errorf("unknown source provider %q", cfg.Source.Provider)
}

// CurrentSeasonData returns the season's finished matches sorted by kickoff
func CurrentSeasonData(ctx context.Context, src Source) ([]*football.Match, error) {
	all, err := src.SeasonMatches(ctx)
	if err != nil {
		return nil, err
	}
	finished := football.Finished(all)
	football.SortMatches(finished)
	return finished, nil
}

// UpcomingMatches returns the season's scheduled matches sorted by kickoff
func UpcomingMatches(ctx context.Context, src Source) ([]*football.Match, error) {
	all, err := src.SeasonMatches(ctx)
	if err != nil {
		return nil, err
	}
	return football.Scheduled(all), nil
}

// seasonYear resolves a configured season, 0 meaning the one running now
func seasonYear(configured int, now time.Time) int {
	if configured > 0 {
		return configured
	}
	return football.SeasonStartYear(now)
}

// stringValue reads ids that providers send either as strings or numbers
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	case int:
		return strconv.Itoa(t)
	}
	return ""
}
