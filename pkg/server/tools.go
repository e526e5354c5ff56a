package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/richard-senior/matchpredictor/pkg/football"
	"github.com/richard-senior/matchpredictor/pkg/predictor"
	"github.com/richard-senior/matchpredictor/pkg/protocol"
	"github.com/richard-senior/matchpredictor/pkg/report"
	"github.com/richard-senior/matchpredictor/pkg/service"
)

// Predictions is the part of the service the tools use
type Predictions interface {
	Snapshot() *predictor.Snapshot
	Train(ctx context.Context) (*service.TrainResult, error)
	PredictTeams(ctx context.Context, homeID, awayID string, date time.Time) (*predictor.Prediction, error)
	Upcoming(ctx context.Context) ([]*service.MatchPrediction, error)
	Standings(ctx context.Context) ([]*football.Standing, error)
	ProjectedStandings(ctx context.Context) ([]*football.Standing, error)
}

func TrainModelTool() protocol.Tool {
	return protocol.Tool{
		Name:        "train_model",
		Description: "Fetches the current season's finished matches and retrains the match outcome model",
		InputSchema: protocol.InputSchema{
			Type:       "object",
			Properties: map[string]protocol.ToolProperty{},
			Required:   []string{},
		},
	}
}

func PredictMatchTool() protocol.Tool {
	return protocol.Tool{
		Name:        "predict_match",
		Description: "Predicts win, draw and loss probabilities and a score for a fixture between two teams",
		InputSchema: protocol.InputSchema{
			Type: "object",
			Properties: map[string]protocol.ToolProperty{
				"home_team_id": {Type: "string", Description: "Provider id of the home team"},
				"away_team_id": {Type: "string", Description: "Provider id of the away team"},
				"date":         {Type: "string", Description: "Kickoff date, YYYY-MM-DD or RFC 3339. Defaults to now"},
			},
			Required: []string{"home_team_id", "away_team_id"},
		},
	}
}

func UpcomingPredictionsTool() protocol.Tool {
	return protocol.Tool{
		Name:        "upcoming_predictions",
		Description: "Returns predictions for every scheduled fixture as a Markdown table",
		InputSchema: protocol.InputSchema{
			Type:       "object",
			Properties: map[string]protocol.ToolProperty{},
			Required:   []string{},
		},
	}
}

func LeagueTableTool() protocol.Tool {
	return protocol.Tool{
		Name:        "league_table",
		Description: "Returns the current league table derived from finished matches as a Markdown table, or the predicted final standings",
		InputSchema: protocol.InputSchema{
			Type: "object",
			Properties: map[string]protocol.ToolProperty{
				"projected": {Type: "boolean", Description: "Add the expected points of the predicted fixtures"},
			},
			Required: []string{},
		},
	}
}

func (s *Server) handleTrainModel(ctx context.Context, args map[string]any) (any, error) {
	result, err := s.svc.Train(ctx)
	if err != nil {
		return nil, err
	}
	return protocol.TextResult(fmt.Sprintf(
		"Model trained successfully. Version %s, %d training rows from %d matches.",
		result.ModelVersion, result.TrainingRows, result.Matches,
	)), nil
}

func (s *Server) handlePredictMatch(ctx context.Context, args map[string]any) (any, error) {
	home, err := teamArg(args, "home_team_id")
	if err != nil {
		return nil, err
	}
	away, err := teamArg(args, "away_team_id")
	if err != nil {
		return nil, err
	}
	raw, _ := args["date"].(string)
	date, err := football.ParseDate(raw)
	if err != nil {
		return nil, &protocol.JsonRpcError{Code: protocol.ErrInvalidParams, Message: err.Error()}
	}

	p, err := s.svc.PredictTeams(ctx, home, away, date)
	if err != nil {
		return nil, err
	}
	out, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, err
	}
	return protocol.TextResult(string(out)), nil
}

func (s *Server) handleUpcomingPredictions(ctx context.Context, args map[string]any) (any, error) {
	predictions, err := s.svc.Upcoming(ctx)
	if err != nil {
		return nil, err
	}
	version := ""
	if snap := s.svc.Snapshot(); snap != nil {
		version = snap.ShortVersion()
	}
	md, err := report.NewPage(s.title, version, predictions, nil).Markdown()
	if err != nil {
		return nil, err
	}
	return protocol.TextResult(md), nil
}

func (s *Server) handleLeagueTable(ctx context.Context, args map[string]any) (any, error) {
	if projected, _ := args["projected"].(bool); projected {
		standings, err := s.svc.ProjectedStandings(ctx)
		if err != nil {
			return nil, err
		}
		md, err := report.ProjectionMarkdown(standings)
		if err != nil {
			return nil, err
		}
		return protocol.TextResult(md), nil
	}

	standings, err := s.svc.Standings(ctx)
	if err != nil {
		return nil, err
	}
	md, err := report.StandingsMarkdown(standings)
	if err != nil {
		return nil, err
	}
	return protocol.TextResult(md), nil
}

// teamArg reads a team id given either as a string or a whole number
func teamArg(args map[string]any, key string) (string, error) {
	switch v := args[key].(type) {
	case string:
		if v = strings.TrimSpace(v); v != "" {
			return v, nil
		}
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10), nil
		}
	}
	return "", &protocol.JsonRpcError{Code: protocol.ErrInvalidParams, Message: "missing or invalid " + key}
}
