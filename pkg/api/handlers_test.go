package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/richard-senior/matchpredictor/pkg/config"
	"github.com/richard-senior/matchpredictor/pkg/datasource"
	"github.com/richard-senior/matchpredictor/pkg/football"
	"github.com/richard-senior/matchpredictor/pkg/predictor"
	"github.com/richard-senior/matchpredictor/pkg/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	snap        *predictor.Snapshot
	err         error
	prediction  *predictor.Prediction
	upcoming    []*service.MatchPrediction
	models      []*service.ModelInfo
	gotHome     string
	gotAway     string
	gotDate     time.Time
	gotVersion  string
	gotStatsArg [2]predictor.TeamStats
}

func (s *stubService) Snapshot() *predictor.Snapshot { return s.snap }

func (s *stubService) Train(ctx context.Context) (*service.TrainResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &service.TrainResult{ModelVersion: "v1", RunID: "run", TrainingRows: 30, Matches: 36}, nil
}

func (s *stubService) PredictTeams(ctx context.Context, homeID, awayID string, date time.Time) (*predictor.Prediction, error) {
	s.gotHome, s.gotAway, s.gotDate = homeID, awayID, date
	return s.prediction, s.err
}

func (s *stubService) PredictStats(home, away predictor.TeamStats) (*predictor.Prediction, error) {
	s.gotStatsArg = [2]predictor.TeamStats{home, away}
	return s.prediction, s.err
}

func (s *stubService) Upcoming(ctx context.Context) ([]*service.MatchPrediction, error) {
	return s.upcoming, s.err
}

func (s *stubService) Standings(ctx context.Context) ([]*football.Standing, error) {
	return []*football.Standing{{Position: 1, TeamName: "Liverpool", Form: []string{"W"}}}, nil
}

func (s *stubService) ProjectedStandings(ctx context.Context) ([]*football.Standing, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []*football.Standing{{Position: 2, TeamName: "Liverpool", Points: 3, PredictedPoints: 5.5, PredictedPosition: 1}}, nil
}

func (s *stubService) Models() ([]*service.ModelInfo, error) { return s.models, s.err }

func (s *stubService) Activate(version string) (*predictor.Snapshot, error) {
	s.gotVersion = version
	if s.err != nil {
		return nil, s.err
	}
	return &predictor.Snapshot{Version: version}, nil
}

func samplePrediction() *predictor.Prediction {
	return &predictor.Prediction{
		HomeWinProbability: 0.5, DrawProbability: 0.3, AwayWinProbability: 0.2,
		PredictedHomeGoals: 2, PredictedAwayGoals: 1, ModelVersion: "v1",
	}
}

func do(t *testing.T, svc Predictions, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewAPIHandler(svc, "Predictions").SetupRoutes()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&predictor.ModelNotFoundError{}, http.StatusBadRequest},
		{&predictor.TrainingError{Reason: "no rows"}, http.StatusUnprocessableEntity},
		{&predictor.InsufficientHistoryError{TeamID: "1"}, http.StatusUnprocessableEntity},
		{&datasource.DataFetchError{Provider: "p", URL: "u"}, http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", &datasource.DataFetchError{}), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestPredictAcceptsNumericAndStringIDs(t *testing.T) {
	svc := &stubService{prediction: samplePrediction()}
	rec := do(t, svc, "POST", "/predict", `{"home_team_id": 57, "away_team_id": "61", "date": "2024-09-01"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "57", svc.gotHome)
	assert.Equal(t, "61", svc.gotAway)
	assert.Equal(t, time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC), svc.gotDate)

	body := decode(t, rec)
	assert.Equal(t, 0.5, body["home_win_probability"])
	assert.Equal(t, 0.3, body["draw_probability"])
	assert.Equal(t, 0.2, body["away_win_probability"])
	assert.Equal(t, float64(2), body["predicted_home_goals"])
	assert.Equal(t, float64(1), body["predicted_away_goals"])
}

func TestPredictRejectsBadRequests(t *testing.T) {
	svc := &stubService{prediction: samplePrediction()}
	for _, body := range []string{
		`not json`,
		`{"home_team_id": 1}`,
		`{"home_team_id": 1.5, "away_team_id": 2}`,
		`{"home_team_id": 1, "away_team_id": 2, "date": "next tuesday"}`,
	} {
		rec := do(t, svc, "POST", "/predict", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestPredictBeforeTraining(t *testing.T) {
	svc := &stubService{err: &predictor.ModelNotFoundError{}}
	rec := do(t, svc, "POST", "/predict", `{"home_team_id": 1, "away_team_id": 2, "date": "2024-09-01T15:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Model not trained yet", decode(t, rec)["detail"])
}

func TestPredictStats(t *testing.T) {
	svc := &stubService{prediction: samplePrediction()}
	rec := do(t, svc, "POST", "/predict/stats", `{
		"home": {"avg_goals_scored": 2.2, "avg_goals_conceded": 0.8, "form": 0.6},
		"away": {"avg_goals_scored": 1.0, "avg_goals_conceded": 1.6, "form": 0.2}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2.2, svc.gotStatsArg[0].AvgGoalsScored)
	assert.Equal(t, 1.6, svc.gotStatsArg[1].AvgGoalsConceded)

	rec = do(t, svc, "POST", "/predict/stats", `{"home": {"form": 1}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrainErrors(t *testing.T) {
	rec := do(t, &stubService{}, "POST", "/train", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Model trained successfully", body["message"])
	assert.Equal(t, "v1", body["model_version"])

	rec = do(t, &stubService{err: &predictor.TrainingError{Reason: "need at least 1 usable rows"}}, "POST", "/train", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode(t, rec)["detail"], "usable rows")

	rec = do(t, &stubService{err: &datasource.DataFetchError{Provider: "football-data", URL: "x", StatusCode: 429}}, "POST", "/train", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = do(t, &stubService{err: errors.New("disk on fire")}, "POST", "/train", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do(t, &stubService{}, "GET", "/train", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestUpcoming(t *testing.T) {
	svc := &stubService{
		snap: &predictor.Snapshot{Version: "0123456789abcdef"},
		upcoming: []*service.MatchPrediction{{
			MatchID:    "1",
			HomeTeam:   "Liverpool",
			AwayTeam:   "Chelsea",
			Date:       time.Date(2025, 1, 4, 17, 30, 0, 0, time.UTC),
			Prediction: samplePrediction(),
		}},
	}
	rec := do(t, svc, "GET", "/predictions/upcoming", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "1", list[0]["match_id"])
	assert.Equal(t, "Liverpool", list[0]["home_team"])
	assert.Equal(t, "2025-01-04T17:30:00Z", list[0]["date"])
	prediction, ok := list[0]["prediction"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.5, prediction["home_win_probability"])

	rec = do(t, svc, "GET", "/predictions/upcoming.html", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Liverpool")
	assert.Contains(t, rec.Body.String(), "0123456789ab")
	assert.Contains(t, rec.Body.String(), "Predicted final standings")
	assert.Contains(t, rec.Body.String(), "<td>5.5</td>")

	rec = do(t, &stubService{err: &predictor.ModelNotFoundError{}}, "GET", "/predictions/upcoming", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModelsAndActivate(t *testing.T) {
	svc := &stubService{models: []*service.ModelInfo{{Version: "v1", Active: true}, {Version: "v0"}}}
	rec := do(t, svc, "GET", "/models", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var models []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &models))
	assert.Len(t, models, 2)
	assert.Equal(t, true, models[0]["active"])

	rec = do(t, svc, "POST", "/models/v0/activate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v0", svc.gotVersion)
	assert.Equal(t, "v0", decode(t, rec)["model_version"])

	rec = do(t, &stubService{err: &predictor.ModelNotFoundError{}}, "POST", "/models/nope/activate", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndStandings(t *testing.T) {
	body := decode(t, do(t, &stubService{}, "GET", "/healthz", ""))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["trained"])

	body = decode(t, do(t, &stubService{snap: &predictor.Snapshot{Version: "v9"}}, "GET", "/healthz", ""))
	assert.Equal(t, true, body["trained"])
	assert.Equal(t, "v9", body["model_version"])

	rec := do(t, &stubService{}, "GET", "/standings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Liverpool")

	rec = do(t, &stubService{}, "GET", "/standings/projected", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var projected []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &projected))
	require.Len(t, projected, 1)
	assert.Equal(t, 5.5, projected[0]["predictedPoints"])
	assert.Equal(t, float64(1), projected[0]["predictedPosition"])

	rec = do(t, &stubService{err: &predictor.ModelNotFoundError{}}, "GET", "/standings/projected", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type emptySource struct{}

func (emptySource) Name() string { return "empty" }

func (emptySource) SeasonMatches(ctx context.Context) ([]*football.Match, error) {
	return nil, nil
}

func (emptySource) TeamTotals(ctx context.Context, teamID string) (*football.TeamTotals, error) {
	return &football.TeamTotals{TeamID: teamID}, nil
}

func TestRealServiceErrorMapping(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Path = filepath.Join(t.TempDir(), "model.json")
	svc := service.New(cfg, emptySource{}, nil)

	rec := do(t, svc, "POST", "/predict", `{"home_team_id": 1, "away_team_id": 2, "date": "2024-09-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, svc, "POST", "/train", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Nil(t, svc.Snapshot())
}
