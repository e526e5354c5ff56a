package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/richard-senior/matchpredictor/internal/logger"
	"github.com/richard-senior/matchpredictor/pkg/datasource"
	"github.com/richard-senior/matchpredictor/pkg/football"
	"github.com/richard-senior/matchpredictor/pkg/predictor"
	"github.com/richard-senior/matchpredictor/pkg/report"
	"github.com/richard-senior/matchpredictor/pkg/service"
)

// Predictions is the part of the service the handlers use
type Predictions interface {
	Snapshot() *predictor.Snapshot
	Train(ctx context.Context) (*service.TrainResult, error)
	PredictTeams(ctx context.Context, homeID, awayID string, date time.Time) (*predictor.Prediction, error)
	PredictStats(home, away predictor.TeamStats) (*predictor.Prediction, error)
	Upcoming(ctx context.Context) ([]*service.MatchPrediction, error)
	Standings(ctx context.Context) ([]*football.Standing, error)
	ProjectedStandings(ctx context.Context) ([]*football.Standing, error)
	Models() ([]*service.ModelInfo, error)
	Activate(version string) (*predictor.Snapshot, error)
}

// APIHandler handles HTTP requests for the predictor
type APIHandler struct {
	svc   Predictions
	title string
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(svc Predictions, title string) *APIHandler {
	return &APIHandler{svc: svc, title: title}
}

// SetupRoutes configures the HTTP routes
func (h *APIHandler) SetupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.Use(logRequests)

	r.HandleFunc("/healthz", h.handleHealth).Methods("GET")
	r.HandleFunc("/train", h.handleTrain).Methods("POST")
	r.HandleFunc("/predict", h.handlePredict).Methods("POST")
	r.HandleFunc("/predict/stats", h.handlePredictStats).Methods("POST")
	r.HandleFunc("/predictions/upcoming", h.handleUpcoming).Methods("GET")
	r.HandleFunc("/predictions/upcoming.html", h.handleUpcomingHTML).Methods("GET")
	r.HandleFunc("/standings", h.handleStandings).Methods("GET")
	r.HandleFunc("/standings/projected", h.handleProjectedStandings).Methods("GET")
	r.HandleFunc("/models", h.handleModels).Methods("GET")
	r.HandleFunc("/models/{version}/activate", h.handleActivate).Methods("POST")

	return r
}

// TeamID accepts both JSON numbers and strings, football-data ids are numeric
type TeamID string

func (id *TeamID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TeamID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("team id must be a string or a number")
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("team id must be an integer: %s", n)
	}
	*id = TeamID(n.String())
	return nil
}

// PredictRequest is the body of POST /predict
type PredictRequest struct {
	HomeTeamID TeamID `json:"home_team_id"`
	AwayTeamID TeamID `json:"away_team_id"`
	Date       string `json:"date"`
}

// StatsRequest is the body of POST /predict/stats
type StatsRequest struct {
	Home *predictor.TeamStats `json:"home"`
	Away *predictor.TeamStats `json:"away"`
}

// errorResponse is the {"detail": ...} error body
type errorResponse struct {
	Detail string `json:"detail"`
}

// StatusFor maps an error to the HTTP status returned to clients
func StatusFor(err error) int {
	switch {
	case errors.Is(err, predictor.ErrModelNotFound):
		return http.StatusBadRequest
	case errors.Is(err, predictor.ErrTraining), errors.Is(err, predictor.ErrInsufficientHistory):
		return http.StatusUnprocessableEntity
	case errors.Is(err, datasource.ErrDataFetch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to write response", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	detail := err.Error()
	if errors.Is(err, predictor.ErrModelNotFound) {
		detail = "Model not trained yet"
	}
	if status >= 500 {
		logger.Error("Request failed", err)
	} else {
		logger.Warn("Request rejected", err)
	}
	writeJSON(w, status, errorResponse{Detail: detail})
}

func (h *APIHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok", "trained": false}
	if s := h.svc.Snapshot(); s != nil {
		body["trained"] = true
		body["model_version"] = s.Version
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *APIHandler) handleTrain(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Train(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "Model trained successfully",
		"model_version": result.ModelVersion,
		"run_id":        result.RunID,
		"training_rows": result.TrainingRows,
		"matches":       result.Matches,
	})
}

func (h *APIHandler) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.HomeTeamID == "" || req.AwayTeamID == "" {
		http.Error(w, "Missing 'home_team_id' or 'away_team_id' field", http.StatusBadRequest)
		return
	}
	date, err := football.ParseDate(req.Date)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := h.svc.PredictTeams(r.Context(), string(req.HomeTeamID), string(req.AwayTeamID), date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *APIHandler) handlePredictStats(w http.ResponseWriter, r *http.Request) {
	var req StatsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Home == nil || req.Away == nil {
		http.Error(w, "Missing 'home' or 'away' field", http.StatusBadRequest)
		return
	}
	p, err := h.svc.PredictStats(*req.Home, *req.Away)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *APIHandler) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	predictions, err := h.svc.Upcoming(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, predictions)
}

func (h *APIHandler) handleUpcomingHTML(w http.ResponseWriter, r *http.Request) {
	predictions, err := h.svc.Upcoming(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	standings, err := h.svc.Standings(r.Context())
	if err != nil {
		logger.Warn("League table unavailable", err)
	}

	version := ""
	if s := h.svc.Snapshot(); s != nil {
		version = s.ShortVersion()
	}
	page := report.NewPage(h.title, version, predictions, standings)
	if page.Projected, err = h.svc.ProjectedStandings(r.Context()); err != nil {
		logger.Warn("Predicted standings unavailable", err)
	}
	var buf bytes.Buffer
	if err := page.WriteHTML(&buf); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (h *APIHandler) handleStandings(w http.ResponseWriter, r *http.Request) {
	standings, err := h.svc.Standings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, standings)
}

func (h *APIHandler) handleProjectedStandings(w http.ResponseWriter, r *http.Request) {
	projected, err := h.svc.ProjectedStandings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projected)
}

func (h *APIHandler) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.svc.Models()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models)
}

func (h *APIHandler) handleActivate(w http.ResponseWriter, r *http.Request) {
	version := mux.Vars(r)["version"]
	s, err := h.svc.Activate(version)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"model_version": s.Version,
	})
}

// logRequests logs each request with its duration
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("HTTP", r.Method, r.URL.Path, time.Since(start).String())
	})
}
