package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/richard-senior/matchpredictor/internal/logger"
	"github.com/richard-senior/matchpredictor/pkg/config"
	"github.com/richard-senior/matchpredictor/pkg/datasource"
	"github.com/richard-senior/matchpredictor/pkg/football"
	"github.com/richard-senior/matchpredictor/pkg/predictor"
	"github.com/richard-senior/matchpredictor/pkg/store"
)

// Service wires the data source, the predictor and the stores together.
// The store is optional, without it only the model file is used.
type Service struct {
	cfg       *config.PredictorConfig
	source    datasource.Source
	store     *store.Store
	artifacts *store.ArtifactStore
	predictor *predictor.Predictor
	now       func() time.Time
}

// TrainResult summarises a training run
type TrainResult struct {
	Status       string    `json:"status"`
	ModelVersion string    `json:"model_version"`
	RunID        string    `json:"run_id"`
	TrainingRows int       `json:"training_rows"`
	Matches      int       `json:"matches"`
	ClassCounts  []int     `json:"class_counts"`
	CreatedAt    time.Time `json:"created_at"`
}

// MatchPrediction is a prediction for a scheduled fixture
type MatchPrediction struct {
	MatchID    string    `json:"match_id"`
	HomeTeamID string    `json:"home_team_id"`
	AwayTeamID string    `json:"away_team_id"`
	HomeTeam   string    `json:"home_team"`
	AwayTeam   string    `json:"away_team"`
	Date       time.Time `json:"date"`
	*predictor.Prediction `json:"prediction"`
}

// ModelInfo describes a stored model
type ModelInfo struct {
	Version      string    `json:"version"`
	RunID        string    `json:"run_id"`
	CreatedAt    time.Time `json:"created_at"`
	TrainingRows int       `json:"training_rows"`
	Active       bool      `json:"active"`
}

func New(cfg *config.PredictorConfig, src datasource.Source, st *store.Store) *Service {
	s := &Service{
		cfg:       cfg,
		source:    src,
		store:     st,
		predictor: predictor.New(predictor.NewTrainer(cfg)),
		now:       time.Now,
	}
	if st != nil {
		s.artifacts = store.NewArtifactStore(st)
	}
	return s
}

// Snapshot returns the model currently used for predictions, nil when untrained
func (s *Service) Snapshot() *predictor.Snapshot {
	return s.predictor.Snapshot()
}

// Bootstrap loads the committed head model, else the model file, else leaves the service untrained
func (s *Service) Bootstrap() error {
	if s.artifacts != nil {
		snap, err := s.artifacts.Head()
		if err == nil {
			s.predictor.Use(snap)
			logger.Info("Loaded model from store", snap.ShortVersion())
			return nil
		}
		if !errors.Is(err, predictor.ErrModelNotFound) {
			return err
		}
		logger.Debug("No committed model in store", err)
	}
	if s.cfg.Model.Path != "" {
		snap, err := s.predictor.LoadModel(s.cfg.Model.Path)
		if err == nil {
			logger.Info("Loaded model from file", s.cfg.Model.Path, snap.ShortVersion())
			return nil
		}
		logger.Debug("No usable model file", err)
	}
	logger.Warn("No trained model available, train before predicting")
	return nil
}

// Train fetches the season's finished matches, trains a new snapshot and commits it.
// The served snapshot only changes when every step succeeds.
func (s *Service) Train(ctx context.Context) (*TrainResult, error) {
	matches, err := s.trainingMatches(ctx)
	if err != nil {
		return nil, err
	}

	snap, err := s.predictor.Train(matches)
	if err != nil {
		return nil, err
	}

	if s.artifacts != nil {
		if err := s.artifacts.Commit(snap); err != nil {
			logger.Error("Failed to commit model to store", err)
		}
	}
	if s.cfg.Model.Path != "" {
		if err := snap.Save(s.cfg.Model.Path); err != nil {
			logger.Error("Failed to save model file", s.cfg.Model.Path, err)
		}
	}

	return &TrainResult{
		Status:       "Model trained successfully",
		ModelVersion: snap.Version,
		RunID:        snap.RunID,
		TrainingRows: snap.TrainingRows,
		Matches:      len(matches),
		ClassCounts:  snap.ClassCounts,
		CreatedAt:    snap.CreatedAt,
	}, nil
}

// trainingMatches fetches from the source, falling back to stored history when the source is down
func (s *Service) trainingMatches(ctx context.Context) ([]*football.Match, error) {
	finished, err := datasource.CurrentSeasonData(ctx, s.source)
	if err == nil {
		if s.store != nil {
			if err := s.store.SaveMatches(finished); err != nil {
				logger.Warn("Failed to store fetched matches", err)
			}
		}
		return finished, nil
	}
	if s.store == nil || !errors.Is(err, datasource.ErrDataFetch) {
		return nil, err
	}

	stored, serr := s.store.SeasonMatches(s.season())
	if serr != nil || len(football.Finished(stored)) == 0 {
		return nil, err
	}
	logger.Warn("Data source unavailable, training from stored matches", err)
	return football.Finished(stored), nil
}

func (s *Service) season() int {
	if s.cfg.Source.Season > 0 {
		return s.cfg.Source.Season
	}
	return football.SeasonStartYear(s.now())
}

// PredictStats scores a fixture from caller supplied stats
func (s *Service) PredictStats(home, away predictor.TeamStats) (*predictor.Prediction, error) {
	return s.predictor.PredictMatch(home, away)
}

// PredictTeams scores a fixture between two teams as of the given date.
// A zero date means now.
func (s *Service) PredictTeams(ctx context.Context, homeID, awayID string, date time.Time) (*predictor.Prediction, error) {
	snap := s.predictor.Snapshot()
	if snap == nil {
		return nil, &predictor.ModelNotFoundError{}
	}
	if homeID == "" || awayID == "" {
		return nil, fmt.Errorf("both team ids are required")
	}
	if date.IsZero() {
		date = s.now()
	}

	var matches []*football.Match
	if s.cfg.Features.ServingStats == config.ServingWindow {
		played, err := datasource.CurrentSeasonData(ctx, s.source)
		if err != nil {
			return nil, err
		}
		matches = played
	}

	home, err := s.teamStats(ctx, matches, homeID, date, snap.Options)
	if err != nil {
		return nil, err
	}
	away, err := s.teamStats(ctx, matches, awayID, date, snap.Options)
	if err != nil {
		return nil, err
	}
	return snap.PredictMatch(home, away)
}

// teamStats derives a team's serving stats. Window mode uses the trailing window as of the
// date and falls back to season totals when the window is too short.
func (s *Service) teamStats(ctx context.Context, matches []*football.Match, teamID string, date time.Time, opts predictor.Options) (predictor.TeamStats, error) {
	if matches != nil {
		stats, err := predictor.TeamForm(matches, teamID, date, opts)
		if err == nil {
			return stats, nil
		}
		if !errors.Is(err, predictor.ErrInsufficientHistory) {
			return predictor.TeamStats{}, err
		}
		logger.Debug("Falling back to season totals", teamID, err)
		return predictor.StatsFromTotals(football.SeasonTotals(matches, teamID))
	}

	totals, err := s.source.TeamTotals(ctx, teamID)
	if err != nil {
		if s.store == nil || !errors.Is(err, datasource.ErrDataFetch) {
			return predictor.TeamStats{}, err
		}
		stored, serr := s.store.TeamMatches(s.season(), teamID)
		if serr != nil || len(football.Finished(stored)) == 0 {
			return predictor.TeamStats{}, err
		}
		logger.Warn("Data source unavailable, using stored matches for", teamID, err)
		totals = football.SeasonTotals(stored, teamID)
	}
	return predictor.StatsFromTotals(totals)
}

// Upcoming predicts every scheduled match of the season using one snapshot for the whole list
func (s *Service) Upcoming(ctx context.Context) ([]*MatchPrediction, error) {
	snap := s.predictor.Snapshot()
	if snap == nil {
		return nil, &predictor.ModelNotFoundError{}
	}
	played, err := datasource.CurrentSeasonData(ctx, s.source)
	if err != nil {
		return nil, err
	}
	scheduled, err := datasource.UpcomingMatches(ctx, s.source)
	if err != nil {
		return nil, err
	}

	results := make([]*MatchPrediction, 0, len(scheduled))
	for _, m := range scheduled {
		p, err := s.predictFixture(played, m, snap)
		if err != nil {
			if errors.Is(err, predictor.ErrInsufficientHistory) {
				logger.Warn("Skipping fixture without enough history", m.String(), err)
				continue
			}
			return nil, err
		}
		results = append(results, &MatchPrediction{
			MatchID:    m.ID,
			HomeTeamID: m.HomeID,
			AwayTeamID: m.AwayID,
			HomeTeam:   m.HomeLabel(),
			AwayTeam:   m.AwayLabel(),
			Date:       m.Kickoff,
			Prediction: p,
		})
	}
	logger.Info("Predicted upcoming matches", len(results), "model", snap.ShortVersion())
	return results, nil
}

// predictFixture scores a scheduled match from the stats as they stand now. A stored
// prediction is reused only when the same model made it from the same stats.
func (s *Service) predictFixture(played []*football.Match, m *football.Match, snap *predictor.Snapshot) (*predictor.Prediction, error) {
	home, err := s.fixtureStats(played, m.HomeID, m.Kickoff, snap.Options)
	if err != nil {
		return nil, err
	}
	away, err := s.fixtureStats(played, m.AwayID, m.Kickoff, snap.Options)
	if err != nil {
		return nil, err
	}

	key := predictor.InputsKey(home, away)
	if p := s.cachedPrediction(m, snap.Version, key); p != nil {
		return p, nil
	}
	p, err := snap.PredictMatch(home, away)
	if err != nil {
		return nil, err
	}
	if s.store != nil {
		if err := s.store.CachePrediction(store.NewPredictionRecord(m, p, key)); err != nil {
			logger.Warn("Failed to cache prediction", m.ID, err)
		}
	}
	return p, nil
}

// fixtureStats uses the trailing window when configured and available, else season totals
func (s *Service) fixtureStats(played []*football.Match, teamID string, kickoff time.Time, opts predictor.Options) (predictor.TeamStats, error) {
	if s.cfg.Features.ServingStats == config.ServingWindow {
		if st, err := predictor.TeamForm(played, teamID, kickoff, opts); err == nil {
			return st, nil
		}
	}
	return predictor.StatsFromTotals(football.SeasonTotals(played, teamID))
}

// cachedPrediction returns the stored prediction for these inputs, nil when there is none
func (s *Service) cachedPrediction(m *football.Match, version, statsKey string) *predictor.Prediction {
	if s.store == nil {
		return nil
	}
	r, err := s.store.CachedPrediction(m.ID, version, statsKey)
	if err != nil {
		logger.Warn("Failed to read cached prediction", m.ID, err)
		return nil
	}
	if r == nil {
		return nil
	}
	return r.Prediction()
}

// Standings builds the league table of the season so far
func (s *Service) Standings(ctx context.Context) ([]*football.Standing, error) {
	all, err := s.source.SeasonMatches(ctx)
	if err != nil {
		return nil, err
	}
	return football.Standings(all), nil
}

// ProjectedStandings adds the expected points of every predicted fixture to the current table
func (s *Service) ProjectedStandings(ctx context.Context) ([]*football.Standing, error) {
	table, err := s.Standings(ctx)
	if err != nil {
		return nil, err
	}
	upcoming, err := s.Upcoming(ctx)
	if err != nil {
		return nil, err
	}
	odds := make([]football.FixtureOdds, len(upcoming))
	for i, u := range upcoming {
		odds[i] = football.FixtureOdds{
			HomeID:   u.HomeTeamID,
			AwayID:   u.AwayTeamID,
			HomeName: u.HomeTeam,
			AwayName: u.AwayTeam,
			HomeWin:  u.HomeWinProbability,
			Draw:     u.DrawProbability,
			AwayWin:  u.AwayWinProbability,
		}
	}
	return football.ProjectStandings(table, odds), nil
}

// Models lists the committed models
func (s *Service) Models() ([]*ModelInfo, error) {
	if s.artifacts == nil {
		return nil, fmt.Errorf("no model store configured")
	}
	artifacts, err := s.artifacts.List()
	if err != nil {
		return nil, err
	}
	infos := make([]*ModelInfo, len(artifacts))
	for i, a := range artifacts {
		infos[i] = &ModelInfo{
			Version:      a.Version,
			RunID:        a.RunID,
			CreatedAt:    a.CreatedAt,
			TrainingRows: a.TrainingRows,
			Active:       a.Active,
		}
	}
	return infos, nil
}

// Activate serves a previously committed model
func (s *Service) Activate(version string) (*predictor.Snapshot, error) {
	if s.artifacts == nil {
		return nil, fmt.Errorf("no model store configured")
	}
	snap, err := s.artifacts.Activate(version)
	if err != nil {
		return nil, err
	}
	s.predictor.Use(snap)
	return snap, nil
}
