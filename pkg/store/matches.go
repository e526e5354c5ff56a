package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/richard-senior/matchpredictor/internal/logger"
	"github.com/richard-senior/matchpredictor/pkg/football"
	"github.com/richard-senior/matchpredictor/pkg/predictor"
)

// SaveMatches upserts fetched matches so the season can be retrained offline
func (s *Store) SaveMatches(matches []*football.Match) error {
	objects := make([]Persistable, len(matches))
	for i, m := range matches {
		objects[i] = m
	}
	if err := s.BulkSave(objects); err != nil {
		return fmt.Errorf("failed to save matches: %w", err)
	}
	return nil
}

// SeasonMatches returns the stored matches of a season sorted by kickoff then id
func (s *Store) SeasonMatches(season int) ([]*football.Match, error) {
	results, err := s.FindWhere(&football.Match{}, "season = ? ORDER BY kickoff, id", season)
	if err != nil {
		return nil, err
	}
	return toMatches(results), nil
}

// TeamMatches returns the stored matches of a season involving a team
func (s *Store) TeamMatches(season int, teamID string) ([]*football.Match, error) {
	results, err := s.FindWhere(&football.Match{}, "season = ? AND (home_id = ? OR away_id = ?) ORDER BY kickoff, id", season, teamID, teamID)
	if err != nil {
		return nil, err
	}
	return toMatches(results), nil
}

func toMatches(results []interface{}) []*football.Match {
	matches := make([]*football.Match, len(results))
	for i, r := range results {
		m := r.(*football.Match)
		m.Kickoff = m.Kickoff.UTC()
		matches[i] = m
	}
	return matches
}

// PredictionRecord caches the prediction made for a fixture by a model version from
// one set of team stats, identified by StatsKey
type PredictionRecord struct {
	MatchID            string    `json:"match_id" column:"match_id" dbtype:"TEXT" primary:"true"`
	ModelVersion       string    `json:"model_version" column:"model_version" dbtype:"TEXT" primary:"true"`
	StatsKey           string    `json:"stats_key" column:"stats_key" dbtype:"TEXT" primary:"true"`
	HomeTeamID         string    `json:"home_team_id" column:"home_id" dbtype:"TEXT"`
	AwayTeamID         string    `json:"away_team_id" column:"away_id" dbtype:"TEXT"`
	HomeTeam           string    `json:"home_team" column:"home_name" dbtype:"TEXT"`
	AwayTeam           string    `json:"away_team" column:"away_name" dbtype:"TEXT"`
	Date               time.Time `json:"date" column:"kickoff" dbtype:"TIMESTAMP" index:"true"`
	HomeWinProbability float64   `json:"home_win_probability" column:"home_win" dbtype:"DOUBLE PRECISION"`
	DrawProbability    float64   `json:"draw_probability" column:"draw" dbtype:"DOUBLE PRECISION"`
	AwayWinProbability float64   `json:"away_win_probability" column:"away_win" dbtype:"DOUBLE PRECISION"`
	PredictedHomeGoals int       `json:"predicted_home_goals" column:"home_goals" dbtype:"INTEGER"`
	PredictedAwayGoals int       `json:"predicted_away_goals" column:"away_goals" dbtype:"INTEGER"`
	CreatedAt          time.Time `json:"created_at" column:"created_at" dbtype:"TIMESTAMP"`
}

// NewPredictionRecord joins a fixture with its prediction and the key of the stats behind it
func NewPredictionRecord(m *football.Match, p *predictor.Prediction, statsKey string) *PredictionRecord {
	return &PredictionRecord{
		MatchID:            m.ID,
		ModelVersion:       p.ModelVersion,
		StatsKey:           statsKey,
		HomeTeamID:         m.HomeID,
		AwayTeamID:         m.AwayID,
		HomeTeam:           m.HomeLabel(),
		AwayTeam:           m.AwayLabel(),
		Date:               m.Kickoff.UTC(),
		HomeWinProbability: p.HomeWinProbability,
		DrawProbability:    p.DrawProbability,
		AwayWinProbability: p.AwayWinProbability,
		PredictedHomeGoals: p.PredictedHomeGoals,
		PredictedAwayGoals: p.PredictedAwayGoals,
		CreatedAt:          time.Now().UTC(),
	}
}

// Prediction strips the fixture details again
func (r *PredictionRecord) Prediction() *predictor.Prediction {
	return &predictor.Prediction{
		HomeWinProbability: r.HomeWinProbability,
		DrawProbability:    r.DrawProbability,
		AwayWinProbability: r.AwayWinProbability,
		PredictedHomeGoals: r.PredictedHomeGoals,
		PredictedAwayGoals: r.PredictedAwayGoals,
		ModelVersion:       r.ModelVersion,
	}
}

func (r *PredictionRecord) GetTableName() string { return "predictions" }

func (r *PredictionRecord) GetPrimaryKey() map[string]interface{} {
	return map[string]interface{}{"match_id": r.MatchID, "model_version": r.ModelVersion, "stats_key": r.StatsKey}
}

func (r *PredictionRecord) SetPrimaryKey(pk map[string]interface{}) error {
	matchID, ok1 := pk["match_id"].(string)
	version, ok2 := pk["model_version"].(string)
	key, ok3 := pk["stats_key"].(string)
	if !ok1 || !ok2 || !ok3 {
		return fmt.Errorf("primary key needs 'match_id', 'model_version' and 'stats_key'")
	}
	r.MatchID, r.ModelVersion, r.StatsKey = matchID, version, key
	return nil
}

func (r *PredictionRecord) BeforeSave() error {
	if r.MatchID == "" || r.ModelVersion == "" || r.StatsKey == "" {
		return fmt.Errorf("prediction needs a match id, a model version and a stats key")
	}
	return nil
}

func (r *PredictionRecord) AfterSave() error { return nil }

func (r *PredictionRecord) BeforeDelete() error {
	logger.Debug("Dropping stale prediction", r.MatchID, r.ModelVersion, r.StatsKey)
	return nil
}

func (r *PredictionRecord) AfterDelete() error { return nil }

// CachePrediction stores the prediction and drops the ones this model made for the
// fixture from stats that have since changed
func (s *Store) CachePrediction(r *PredictionRecord) error {
	return s.Transaction(func(tx *Session) error {
		stored, err := tx.FindWhere(&PredictionRecord{}, "match_id = ? AND model_version = ?", r.MatchID, r.ModelVersion)
		if err != nil {
			return err
		}
		for _, o := range stored {
			if old := o.(*PredictionRecord); old.StatsKey != r.StatsKey {
				if err := tx.Delete(old); err != nil {
					return err
				}
			}
		}
		return tx.Save(r)
	})
}

// CachedPrediction returns the prediction stored for exactly these inputs, or nil when there is none
func (s *Store) CachedPrediction(matchID, version, statsKey string) (*PredictionRecord, error) {
	r := &PredictionRecord{}
	err := s.FindByPrimaryKey(r, map[string]interface{}{"match_id": matchID, "model_version": version, "stats_key": statsKey})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	r.Date = r.Date.UTC()
	return r, nil
}
