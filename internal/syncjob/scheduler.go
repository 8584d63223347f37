package syncjob

import (
	"context"
	"log"
	"time"
)

// Scheduler re-runs SyncAll on a fixed interval until its context ends.
// A failed run is logged and the timer re-arms regardless.
type Scheduler struct {
	Orchestrator *Orchestrator
	Interval     time.Duration
	Logger       *log.Logger
}

func NewScheduler(o *Orchestrator, interval time.Duration, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{Orchestrator: o, Interval: interval, Logger: logger}
}

func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Orchestrator.SyncAll(ctx); err != nil {
				s.Logger.Printf("scheduled sync: %v", err)
			}
		}
	}
}
