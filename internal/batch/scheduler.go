package batch

import (
	"github.com/robfig/cron/v3"

	"factorlab/internal/logger"
)

// Scheduler drives the daily append runs from a cron expression.
type Scheduler struct {
	cron *cron.Cron
	log  logger.Logger
}

func NewScheduler(log logger.Logger) *Scheduler {
	return &Scheduler{cron: cron.New(), log: log}
}

// Schedule registers a named job. The job's own logging carries its
// outcome; the scheduler only reports registration.
func (s *Scheduler) Schedule(spec, name string, job func()) error {
	if _, err := s.cron.AddFunc(spec, job); err != nil {
		return err
	}
	s.log.Info("job scheduled", "name", name, "cron", spec)
	return nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
