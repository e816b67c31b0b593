package batch

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"factorlab/internal/logger"
)

func TestRunAllExecutesEveryTask(t *testing.T) {
	p := NewPool(4, logger.NewNop())
	var ran int64
	tasks := make([]Task, 16)
	for i := range tasks {
		tasks[i] = Task{
			Label: fmt.Sprintf("unit-%02d", i),
			Run: func(context.Context) error {
				atomic.AddInt64(&ran, 1)
				return nil
			},
		}
	}
	failed := p.RunAll(context.Background(), "factors", tasks)
	assert.Zero(t, failed)
	assert.EqualValues(t, 16, ran)
}

func TestRunAllFailureDoesNotCancelSiblings(t *testing.T) {
	p := NewPool(2, logger.NewNop())
	var ran int64
	tasks := []Task{
		{Label: "bad", Run: func(context.Context) error { return fmt.Errorf("boom") }},
		{Label: "worse", Run: func(context.Context) error { panic("kaboom") }},
		{Label: "good", Run: func(context.Context) error {
			atomic.AddInt64(&ran, 1)
			return nil
		}},
	}
	failed := p.RunAll(context.Background(), "factors", tasks)
	assert.Equal(t, 2, failed)
	assert.EqualValues(t, 1, ran)
}

func TestPoolClampsWorkers(t *testing.T) {
	p := NewPool(0, logger.NewNop())
	assert.Equal(t, 1, p.workers)
}
