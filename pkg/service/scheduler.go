package service

import (
	"context"
	"fmt"
	"time"

	"github.com/richard-senior/matchpredictor/internal/logger"
	"github.com/robfig/cron/v3"
)

// trainTimeout bounds one scheduled training run
const trainTimeout = 5 * time.Minute

// Scheduler retrains the service on a cron schedule
type Scheduler struct {
	svc  *Service
	cron *cron.Cron
}

// NewScheduler validates the cron expression and registers the training job
func NewScheduler(svc *Service, spec string) (*Scheduler, error) {
	c := cron.New(cron.WithLocation(time.UTC))
	s := &Scheduler{svc: svc, cron: c}
	if _, err := c.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid train schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), trainTimeout)
	defer cancel()

	result, err := s.svc.Train(ctx)
	if err != nil {
		logger.Error("Scheduled training failed", err)
		return
	}
	logger.Info("Scheduled training complete", result.ModelVersion, "rows", result.TrainingRows)
}

// Start runs the schedule in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		logger.Info("Training scheduled, next run at", e.Next.Format(time.RFC3339))
	}
}

// Stop halts the schedule and waits for a running job to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
