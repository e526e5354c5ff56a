package predictor

import (
	"errors"
	"fmt"
)

var (
	ErrTraining            = errors.New("training failed")
	ErrModelNotFound       = errors.New("model not found")
	ErrInsufficientHistory = errors.New("insufficient history")
)

// TrainingError is returned when no model can be fitted
type TrainingError struct {
	Reason string
	Rows   int
	Err    error
}

func (e *TrainingError) Error() string {
	msg := fmt.Sprintf("training failed: %s (rows=%d)", e.Reason, e.Rows)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TrainingError) Unwrap() error { return e.Err }

func (e *TrainingError) Is(target error) bool { return target == ErrTraining }

// ModelNotFoundError is returned when predicting without a trained model,
// or when a stored artifact is missing or unreadable
type ModelNotFoundError struct {
	Path string
	Err  error
}

func (e *ModelNotFoundError) Error() string {
	switch {
	case e.Path == "" && e.Err == nil:
		return "model not found: no model has been trained or loaded"
	case e.Err == nil:
		return fmt.Sprintf("model not found at %s", e.Path)
	case e.Path == "":
		return fmt.Sprintf("model not found: %v", e.Err)
	}
	return fmt.Sprintf("model not found at %s: %v", e.Path, e.Err)
}

func (e *ModelNotFoundError) Unwrap() error { return e.Err }

func (e *ModelNotFoundError) Is(target error) bool { return target == ErrModelNotFound }

// InsufficientHistoryError describes a team without enough prior matches.
// The feature builder never returns it, excluded rows are only counted.
type InsufficientHistoryError struct {
	TeamID  string
	MatchID string
	Have    int
	Need    int
}

func (e *InsufficientHistoryError) Error() string {
	if e.MatchID != "" {
		return fmt.Sprintf("team %s has %d prior matches before %s, need %d", e.TeamID, e.Have, e.MatchID, e.Need)
	}
	return fmt.Sprintf("team %s has %d prior matches, need %d", e.TeamID, e.Have, e.Need)
}

func (e *InsufficientHistoryError) Is(target error) bool { return target == ErrInsufficientHistory }
