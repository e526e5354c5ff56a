package predictor

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/richard-senior/matchpredictor/pkg/football"
)

const snapshotFormat = "matchpredictor/snapshot/v1"

// Snapshot is an immutable trained model: the scaler and forest are always stored,
// loaded and queried together. Version is derived from the model content.
type Snapshot struct {
	Version       string             `json:"version"`
	RunID         string             `json:"runId,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	FeatureNames  []string           `json:"featureNames"`
	Classes       []football.Outcome `json:"classes"`
	Options       Options            `json:"options"`
	Params        ForestParams       `json:"params"`
	AttackWeight  float64            `json:"attackWeight"`
	DefenceWeight float64            `json:"defenceWeight"`
	TrainingRows  int                `json:"trainingRows"`
	ClassCounts   []int              `json:"classCounts"`
	Scaler        *StandardScaler    `json:"scaler"`
	Forest        *Forest            `json:"forest"`
}

// Prediction is the response for a single fixture. The three probabilities sum to one.
type Prediction struct {
	HomeWinProbability float64 `json:"home_win_probability"`
	DrawProbability    float64 `json:"draw_probability"`
	AwayWinProbability float64 `json:"away_win_probability"`
	PredictedHomeGoals int     `json:"predicted_home_goals"`
	PredictedAwayGoals int     `json:"predicted_away_goals"`
	ModelVersion       string  `json:"model_version,omitempty"`
}

// MostLikely returns the outcome with the highest probability, home win first on ties
func (p *Prediction) MostLikely() football.Outcome {
	best, outcome := p.HomeWinProbability, football.OutcomeHomeWin
	if p.DrawProbability > best {
		best, outcome = p.DrawProbability, football.OutcomeDraw
	}
	if p.AwayWinProbability > best {
		outcome = football.OutcomeAwayWin
	}
	return outcome
}

// PredictMatch scores a fixture from the two teams' stats.
// Calling it on a nil or untrained snapshot returns a ModelNotFoundError.
func (s *Snapshot) PredictMatch(home, away TeamStats) (*Prediction, error) {
	if s == nil || s.Scaler == nil || s.Forest == nil {
		return nil, &ModelNotFoundError{}
	}
	for _, v := range []float64{home.AvgGoalsScored, home.AvgGoalsConceded, home.Form, away.AvgGoalsScored, away.AvgGoalsConceded, away.Form} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("team stats must be finite")
		}
	}

	row, err := s.Scaler.Transform(MatchValues(home, away))
	if err != nil {
		return nil, fmt.Errorf("failed to scale features: %w", err)
	}
	proba, err := s.Forest.PredictProba(row)
	if err != nil {
		return nil, fmt.Errorf("failed to score features: %w", err)
	}

	p := &Prediction{ModelVersion: s.Version}
	for i, c := range s.Classes {
		switch c {
		case football.OutcomeHomeWin:
			p.HomeWinProbability = proba[i]
		case football.OutcomeDraw:
			p.DrawProbability = proba[i]
		case football.OutcomeAwayWin:
			p.AwayWinProbability = proba[i]
		}
	}
	p.PredictedHomeGoals = PredictGoals(home.AvgGoalsScored, away.AvgGoalsConceded, s.AttackWeight, s.DefenceWeight)
	p.PredictedAwayGoals = PredictGoals(away.AvgGoalsScored, home.AvgGoalsConceded, s.AttackWeight, s.DefenceWeight)
	return p, nil
}

// PredictGoals blends a side's scoring rate with the opponent's conceding rate
func PredictGoals(scored, opponentConceded, attackWeight, defenceWeight float64) int {
	return RoundGoals(attackWeight*scored + defenceWeight*opponentConceded)
}

// RoundGoals rounds half away from zero, so 0.5 becomes 1 and 2.5 becomes 3
func RoundGoals(x float64) int {
	return int(math.Round(x))
}

// Validate checks that the scaler and forest agree with each other and the feature layout
func (s *Snapshot) Validate() error {
	if s.Scaler == nil || s.Forest == nil {
		return fmt.Errorf("snapshot is missing its scaler or forest")
	}
	if err := s.Forest.Validate(); err != nil {
		return err
	}
	if s.Scaler.Width() != s.Forest.NumFeatures || len(s.Scaler.Scale) != s.Scaler.Width() {
		return fmt.Errorf("scaler width %d does not match forest width %d", s.Scaler.Width(), s.Forest.NumFeatures)
	}
	if len(s.FeatureNames) != s.Forest.NumFeatures {
		return fmt.Errorf("%d feature names for %d features", len(s.FeatureNames), s.Forest.NumFeatures)
	}
	if len(s.Classes) != s.Forest.NumClasses {
		return fmt.Errorf("%d classes for a %d class forest", len(s.Classes), s.Forest.NumClasses)
	}
	for _, v := range s.Scaler.Scale {
		if v == 0 || math.IsNaN(v) {
			return fmt.Errorf("scaler has a zero or NaN scale")
		}
	}
	return nil
}

// ComputeVersion hashes the parts of the snapshot that affect predictions
func (s *Snapshot) ComputeVersion() (string, error) {
	content := struct {
		FeatureNames  []string           `json:"featureNames"`
		Classes       []football.Outcome `json:"classes"`
		Options       Options            `json:"options"`
		AttackWeight  float64            `json:"attackWeight"`
		DefenceWeight float64            `json:"defenceWeight"`
		Scaler        *StandardScaler    `json:"scaler"`
		Forest        *Forest            `json:"forest"`
	}{s.FeatureNames, s.Classes, s.Options, s.AttackWeight, s.DefenceWeight, s.Scaler, s.Forest}
	data, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot content: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// InputsKey fingerprints the stats a match prediction is made from, so a stored
// prediction can be matched against the stats as they stand now
func InputsKey(home, away TeamStats) string {
	h := sha256.New()
	for _, v := range MatchValues(home, away) {
		binary.Write(h, binary.LittleEndian, math.Float64bits(v))
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}

// ShortVersion is the first 12 characters of the version
func (s *Snapshot) ShortVersion() string {
	if len(s.Version) > 12 {
		return s.Version[:12]
	}
	return s.Version
}

type envelope struct {
	Format   string          `json:"format"`
	Checksum string          `json:"checksum"`
	Payload  json.RawMessage `json:"payload"`
}

// Encode serialises the snapshot inside a checksummed envelope
func (s *Snapshot) Encode() ([]byte, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	sum := sha256.Sum256(payload)
	return json.Marshal(envelope{Format: snapshotFormat, Checksum: hex.EncodeToString(sum[:]), Payload: payload})
}

// DecodeSnapshot reverses Encode. Any damage to the data yields a ModelNotFoundError.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &ModelNotFoundError{Err: fmt.Errorf("artifact is not valid JSON: %w", err)}
	}
	if env.Format != snapshotFormat {
		return nil, &ModelNotFoundError{Err: fmt.Errorf("unsupported artifact format %q", env.Format)}
	}
	sum := sha256.Sum256(env.Payload)
	if hex.EncodeToString(sum[:]) != env.Checksum {
		return nil, &ModelNotFoundError{Err: errors.New("artifact checksum mismatch")}
	}
	var s Snapshot
	if err := json.Unmarshal(env.Payload, &s); err != nil {
		return nil, &ModelNotFoundError{Err: fmt.Errorf("artifact payload is invalid: %w", err)}
	}
	if err := s.Validate(); err != nil {
		return nil, &ModelNotFoundError{Err: err}
	}
	return &s, nil
}

// Save writes the snapshot to path atomically: the file is either the previous
// content or the complete new snapshot, never a partial write
func (s *Snapshot) Save(path string) error {
	data, err := s.Encode()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".model-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary model file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write model: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close model: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move model into place: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot written by Save
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ModelNotFoundError{Path: path, Err: err}
	}
	s, err := DecodeSnapshot(data)
	if err != nil {
		var mnf *ModelNotFoundError
		if errors.As(err, &mnf) {
			mnf.Path = path
		}
		return nil, err
	}
	return s, nil
}
