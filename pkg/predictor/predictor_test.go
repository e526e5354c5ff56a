package predictor

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/richard-senior/matchpredictor/pkg/football"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	strongHome = TeamStats{AvgGoalsScored: 2, AvgGoalsConceded: 0, Form: 1}
	weakAway   = TeamStats{AvgGoalsScored: 1, AvgGoalsConceded: 1, Form: 0.3}
)

func TestPredictBeforeTrainIsModelNotFound(t *testing.T) {
	p := New(smallTrainer())
	_, err := p.PredictMatch(strongHome, weakAway)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelNotFound))
	var mnf *ModelNotFoundError
	assert.ErrorAs(t, err, &mnf)

	var nilSnapshot *Snapshot
	_, err = nilSnapshot.PredictMatch(strongHome, weakAway)
	assert.ErrorIs(t, err, ErrModelNotFound)

	assert.ErrorIs(t, p.SaveModel(filepath.Join(t.TempDir(), "m.json")), ErrModelNotFound)
}

func TestTrainOnEmptyTableFails(t *testing.T) {
	p := New(smallTrainer())
	_, err := p.Train(nil)
	var te *TrainingError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 0, te.Rows)
	assert.True(t, errors.Is(err, ErrTraining))

	// matches exist but nobody has three prior games
	_, err = p.Train(syntheticSeason()[:6])
	assert.ErrorIs(t, err, ErrTraining)
	assert.Nil(t, p.Snapshot())
}

func TestTrainAndPredict(t *testing.T) {
	p := New(smallTrainer())
	s, err := p.Train(syntheticSeason())
	require.NoError(t, err)
	require.NoError(t, s.Validate())
	assert.Len(t, s.Version, 64)
	assert.NotEmpty(t, s.RunID)
	assert.Equal(t, MatchFeatureNames, s.FeatureNames)
	assert.Equal(t, football.Outcomes, s.Classes)
	assert.Positive(t, s.TrainingRows)

	pred, err := p.PredictMatch(strongHome, weakAway)
	require.NoError(t, err)
	for _, v := range []float64{pred.HomeWinProbability, pred.DrawProbability, pred.AwayWinProbability} {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		assert.GreaterOrEqual(t, v, 0.0)
	}
	assert.InDelta(t, 1, pred.HomeWinProbability+pred.DrawProbability+pred.AwayWinProbability, 1e-9)
	assert.Equal(t, 2, pred.PredictedHomeGoals, "round(0.6*2 + 0.4*1) = round(1.6)")
	assert.Equal(t, 1, pred.PredictedAwayGoals, "round(0.6*1 + 0.4*0) = round(0.6)")
	assert.Equal(t, s.Version, pred.ModelVersion)
}

func TestTrainingIsDeterministic(t *testing.T) {
	a, err := smallTrainer().Train(syntheticSeason())
	require.NoError(t, err)
	b, err := smallTrainer().Train(syntheticSeason())
	require.NoError(t, err)
	assert.Equal(t, a.Version, b.Version)
	assert.NotEqual(t, a.RunID, b.RunID)

	pa, err := a.PredictMatch(strongHome, weakAway)
	require.NoError(t, err)
	pb, err := b.PredictMatch(strongHome, weakAway)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestRoundGoals(t *testing.T) {
	assert.Equal(t, 2, RoundGoals(1.6))
	assert.Equal(t, 1, RoundGoals(0.6))
	assert.Equal(t, 3, RoundGoals(2.5), "halves round away from zero")
	assert.Equal(t, 1, RoundGoals(0.5))
	assert.Equal(t, 1, RoundGoals(1.4))
	assert.Equal(t, 0, RoundGoals(0))
	assert.Equal(t, 2, PredictGoals(2, 1, 0.6, 0.4))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "model.json")
	p := New(smallTrainer())
	s, err := p.Train(syntheticSeason())
	require.NoError(t, err)
	require.NoError(t, p.SaveModel(path))

	fresh := New(smallTrainer())
	loaded, err := fresh.LoadModel(path)
	require.NoError(t, err)
	assert.Equal(t, s.Version, loaded.Version)

	want, err := p.PredictMatch(strongHome, weakAway)
	require.NoError(t, err)
	got, err := fresh.PredictMatch(strongHome, weakAway)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestLoadMissingOrCorruptModel(t *testing.T) {
	dir := t.TempDir()
	p := New(smallTrainer())

	_, err := p.LoadModel(filepath.Join(dir, "absent.json"))
	var mnf *ModelNotFoundError
	require.ErrorAs(t, err, &mnf)
	assert.Equal(t, filepath.Join(dir, "absent.json"), mnf.Path)

	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("not json"), 0644))
	_, err = p.LoadModel(garbage)
	assert.ErrorIs(t, err, ErrModelNotFound)

	s, err := smallTrainer().Train(syntheticSeason())
	require.NoError(t, err)
	data, err := s.Encode()
	require.NoError(t, err)

	tampered := []byte(string(data))
	idx := len(tampered) - 10
	tampered[idx] = '9'
	if tampered[idx] == data[idx] {
		tampered[idx] = '8'
	}
	path := filepath.Join(dir, "tampered.json")
	require.NoError(t, os.WriteFile(path, tampered, 0644))
	_, err = p.LoadModel(path)
	assert.ErrorIs(t, err, ErrModelNotFound)
	assert.Nil(t, p.Snapshot(), "failed loads leave the predictor untouched")
}

func TestDecodeRejectsMismatchedScaler(t *testing.T) {
	s, err := smallTrainer().Train(syntheticSeason())
	require.NoError(t, err)
	broken := *s
	broken.Scaler = &StandardScaler{Mean: []float64{0}, Scale: []float64{1}}
	data, err := broken.Encode()
	require.NoError(t, err)
	_, err = DecodeSnapshot(data)
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestConcurrentPredictDuringTraining(t *testing.T) {
	p := New(smallTrainer())
	_, err := p.Train(syntheticSeason())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				pred, err := p.PredictMatch(strongHome, weakAway)
				if assert.NoError(t, err) {
					assert.InDelta(t, 1, pred.HomeWinProbability+pred.DrawProbability+pred.AwayWinProbability, 1e-9)
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := p.Train(syntheticSeason())
		assert.NoError(t, err)
	}()
	wg.Wait()
}

func TestMostLikely(t *testing.T) {
	assert.Equal(t, football.OutcomeDraw, (&Prediction{HomeWinProbability: 0.3, DrawProbability: 0.4, AwayWinProbability: 0.3}).MostLikely())
	assert.Equal(t, football.OutcomeHomeWin, (&Prediction{HomeWinProbability: 0.4, DrawProbability: 0.2, AwayWinProbability: 0.4}).MostLikely())
	assert.Equal(t, football.OutcomeAwayWin, (&Prediction{HomeWinProbability: 0.1, DrawProbability: 0.2, AwayWinProbability: 0.7}).MostLikely())
}
