package predictor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/richard-senior/matchpredictor/internal/logger"
	"github.com/richard-senior/matchpredictor/pkg/config"
	"github.com/richard-senior/matchpredictor/pkg/football"
)

// Trainer turns played matches into a Snapshot
type Trainer struct {
	Options       Options
	Params        ForestParams
	MinRows       int
	AttackWeight  float64
	DefenceWeight float64
	Now           func() time.Time
}

// NewTrainer builds a trainer from configuration
func NewTrainer(cfg *config.PredictorConfig) *Trainer {
	return &Trainer{
		Options: Options{
			WindowSize: cfg.Features.WindowSize,
			MinHistory: cfg.Features.MinHistory,
		},
		Params: ForestParams{
			Trees:           cfg.Model.Trees,
			Seed:            cfg.Model.Seed,
			MaxDepth:        cfg.Model.MaxDepth,
			MinSamplesSplit: cfg.Model.MinSamplesSplit,
		},
		MinRows:       cfg.Model.MinTrainingRows,
		AttackWeight:  cfg.Model.AttackWeight,
		DefenceWeight: cfg.Model.DefenceWeight,
		Now:           time.Now,
	}
}

// DefaultTrainer uses the standard window, forest and score weights
func DefaultTrainer() *Trainer {
	return NewTrainer(config.Default())
}

// Train builds match rows, fits the scaler on them and fits the forest on the scaled rows
func (t *Trainer) Train(matches []*football.Match) (*Snapshot, error) {
	rows, stats := BuildMatchRows(matches, t.Options)
	logger.Info("Built training rows", len(rows), "from matches", stats.Matches, "excluded team rows", stats.Excluded)

	minRows := t.MinRows
	if minRows < 1 {
		minRows = 1
	}
	if len(rows) < minRows {
		return nil, &TrainingError{Reason: fmt.Sprintf("need at least %d usable rows", minRows), Rows: len(rows)}
	}

	x := make([][]float64, len(rows))
	y := make([]int, len(rows))
	counts := make([]int, len(football.Outcomes))
	for i, r := range rows {
		cls := r.Outcome.Class()
		if cls < 0 {
			return nil, &TrainingError{Reason: fmt.Sprintf("match %s has no outcome", r.MatchID), Rows: len(rows)}
		}
		x[i] = r.Values()
		y[i] = cls
		counts[cls]++
	}

	scaler, err := FitScaler(x)
	if err != nil {
		return nil, &TrainingError{Reason: "scaler fit failed", Rows: len(rows), Err: err}
	}
	scaled, err := scaler.TransformAll(x)
	if err != nil {
		return nil, &TrainingError{Reason: "scaling failed", Rows: len(rows), Err: err}
	}
	forest, err := FitForest(scaled, y, len(football.Outcomes), t.Params)
	if err != nil {
		return nil, &TrainingError{Reason: "forest fit failed", Rows: len(rows), Err: err}
	}

	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	s := &Snapshot{
		RunID:         uuid.NewString(),
		CreatedAt:     now().UTC(),
		FeatureNames:  append([]string(nil), MatchFeatureNames...),
		Classes:       append([]football.Outcome(nil), football.Outcomes...),
		Options:       t.Options,
		Params:        t.Params,
		AttackWeight:  t.AttackWeight,
		DefenceWeight: t.DefenceWeight,
		TrainingRows:  len(rows),
		ClassCounts:   counts,
		Scaler:        scaler,
		Forest:        forest,
	}
	if s.Version, err = s.ComputeVersion(); err != nil {
		return nil, &TrainingError{Reason: "versioning failed", Rows: len(rows), Err: err}
	}
	logger.Highlight("Trained model", s.ShortVersion(), "rows", len(rows), "home/draw/away", fmt.Sprint(counts))
	return s, nil
}

// Predictor holds the current snapshot. Reads are lock free, training is serialised
// and only replaces the snapshot when it succeeds.
type Predictor struct {
	trainer *Trainer
	current atomic.Pointer[Snapshot]
	trainMu sync.Mutex
}

func New(trainer *Trainer) *Predictor {
	if trainer == nil {
		trainer = DefaultTrainer()
	}
	return &Predictor{trainer: trainer}
}

// Train fits a new snapshot and makes it current
func (p *Predictor) Train(matches []*football.Match) (*Snapshot, error) {
	p.trainMu.Lock()
	defer p.trainMu.Unlock()
	s, err := p.trainer.Train(matches)
	if err != nil {
		return nil, err
	}
	p.current.Store(s)
	return s, nil
}

// Snapshot returns the current snapshot, or nil before any train or load
func (p *Predictor) Snapshot() *Snapshot {
	return p.current.Load()
}

// Use makes s the current snapshot
func (p *Predictor) Use(s *Snapshot) {
	p.current.Store(s)
}

// PredictMatch scores a fixture against the current snapshot
func (p *Predictor) PredictMatch(home, away TeamStats) (*Prediction, error) {
	return p.Snapshot().PredictMatch(home, away)
}

// SaveModel writes the current snapshot to path
func (p *Predictor) SaveModel(path string) error {
	s := p.Snapshot()
	if s == nil {
		return &ModelNotFoundError{}
	}
	return s.Save(path)
}

// LoadModel replaces the current snapshot with the one stored at path.
// On failure the current snapshot is left untouched.
func (p *Predictor) LoadModel(path string) (*Snapshot, error) {
	s, err := LoadSnapshot(path)
	if err != nil {
		return nil, err
	}
	p.current.Store(s)
	return s, nil
}
