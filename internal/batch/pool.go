// Package batch runs pipeline units on a bounded worker pool with
// submit-all-then-join semantics: every unit runs to completion and a
// failing unit is logged and counted, never cancelling its siblings.
package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"factorlab/internal/logger"
)

// Task is one independent unit of work, e.g. one factor label over one
// date range.
type Task struct {
	Label string
	Run   func(ctx context.Context) error
}

// Pool bounds how many units run concurrently.
type Pool struct {
	workers int
	log     logger.Logger
}

func NewPool(workers int, log logger.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers, log: log}
}

// RunAll submits every task and joins. Failures and panics are logged
// with the run id and task label; the return value is the failed-task
// count, reported for the operator rather than control flow.
func (p *Pool) RunAll(ctx context.Context, stage string, tasks []Task) int {
	runID := uuid.New().String()
	p.log.Info("batch started", "run_id", runID, "stage", stage,
		"tasks", len(tasks), "workers", p.workers)

	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	var failures int64
	for _, task := range tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					atomic.AddInt64(&failures, 1)
					tasksTotal.WithLabelValues(stage, "panic").Inc()
					p.log.Error("task panicked", "run_id", runID,
						"stage", stage, "task", t.Label, "panic", r)
				}
			}()

			start := time.Now()
			err := t.Run(ctx)
			taskDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
			if err != nil {
				atomic.AddInt64(&failures, 1)
				tasksTotal.WithLabelValues(stage, "failed").Inc()
				p.log.Error("task failed", "run_id", runID,
					"stage", stage, "task", t.Label, "error", err)
				return
			}
			tasksTotal.WithLabelValues(stage, "ok").Inc()
		}(task)
	}
	wg.Wait()

	p.log.Info("batch finished", "run_id", runID, "stage", stage,
		"tasks", len(tasks), "failed", atomic.LoadInt64(&failures))
	return int(atomic.LoadInt64(&failures))
}
