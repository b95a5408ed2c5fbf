// Package jobs queues workflow runs and executes them on an in-process
// worker, with per-resource mutual exclusion.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmarianski/polytrans/pkg/eventbus"
	"github.com/jmarianski/polytrans/pkg/events"
	"github.com/jmarianski/polytrans/pkg/models"
	"github.com/jmarianski/polytrans/pkg/workflow"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var ErrQueueFull = errors.New("job queue is full")

// Job is one requested workflow run.
type Job struct {
	Workflow  *models.Workflow
	Context   models.ExecutionContext
	PostID    string
	TestMode  bool
	Initiator string
}

// Execution is the observable state of a queued or finished run.
type Execution struct {
	ID         string                          `json:"id"`
	WorkflowID string                          `json:"workflow_id"`
	PostID     string                          `json:"post_id"`
	TestMode   bool                            `json:"test_mode"`
	Status     Status                          `json:"status"`
	Result     *models.WorkflowExecutionResult `json:"result,omitempty"`
	Error      string                          `json:"error,omitempty"`
	EnqueuedAt time.Time                       `json:"enqueued_at"`
	StartedAt  *time.Time                      `json:"started_at,omitempty"`
	FinishedAt *time.Time                      `json:"finished_at,omitempty"`
}

const (
	defaultQueueSize   = 64
	lockTTL            = 10 * time.Minute
	lockRetryInterval  = 500 * time.Millisecond
	executionRetention = time.Hour
)

// Runner owns the job queue and the worker goroutine. Execution records are
// kept in memory for polling and dropped after a retention window.
type Runner struct {
	executor *workflow.Executor
	lock     Lock
	bus      eventbus.EventPublisher
	logger   *slog.Logger

	queue chan string

	mu         sync.RWMutex
	executions map[string]*Execution
	jobs       map[string]*Job

	wg sync.WaitGroup
}

func NewRunner(executor *workflow.Executor, lock Lock, bus eventbus.EventPublisher, logger *slog.Logger) *Runner {
	if lock == nil {
		lock = NewMemoryLock()
	}

	return &Runner{
		executor:   executor,
		lock:       lock,
		bus:        bus,
		logger:     logger.With("module", "job_runner"),
		queue:      make(chan string, defaultQueueSize),
		executions: make(map[string]*Execution),
		jobs:       make(map[string]*Job),
	}
}

// Start launches the worker loop. It returns immediately; the loop stops
// when ctx is cancelled and Wait unblocks once in-flight work finishes.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		for {
			select {
			case <-ctx.Done():
				return
			case executionID := <-r.queue:
				r.run(ctx, executionID)
			}
		}
	}()
}

func (r *Runner) Wait() {
	r.wg.Wait()
}

// Enqueue registers the job and returns an execution id to poll. A full
// queue is reported to the caller instead of blocking the producer.
func (r *Runner) Enqueue(job *Job) (string, error) {
	if job.Workflow == nil {
		return "", errors.New("job has no workflow")
	}

	executionID := "job-" + uuid.New().String()[:8]

	execution := &Execution{
		ID:         executionID,
		WorkflowID: job.Workflow.ID,
		PostID:     job.PostID,
		TestMode:   job.TestMode,
		Status:     StatusQueued,
		EnqueuedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.executions[executionID] = execution
	r.jobs[executionID] = job
	r.mu.Unlock()

	select {
	case r.queue <- executionID:
	default:
		r.mu.Lock()
		delete(r.executions, executionID)
		delete(r.jobs, executionID)
		r.mu.Unlock()

		return "", ErrQueueFull
	}

	r.logger.Info("job enqueued",
		"execution_id", executionID,
		"workflow_id", job.Workflow.ID,
		"post_id", job.PostID,
		"test_mode", job.TestMode)

	return executionID, nil
}

// EnqueueRun adapts manager run requests onto the queue.
func (r *Runner) EnqueueRun(req workflow.RunRequest) (string, error) {
	return r.Enqueue(&Job{
		Workflow:  req.Workflow,
		Context:   req.Context,
		PostID:    req.PostID,
		TestMode:  req.TestMode,
		Initiator: req.Initiator,
	})
}

// Poll returns a snapshot of the execution state.
func (r *Runner) Poll(executionID string) (*Execution, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	execution, ok := r.executions[executionID]
	if !ok {
		return nil, false
	}

	snapshot := *execution

	return &snapshot, true
}

func (r *Runner) run(ctx context.Context, executionID string) {
	r.mu.Lock()
	execution, ok := r.executions[executionID]
	job := r.jobs[executionID]
	r.mu.Unlock()

	if !ok || job == nil {
		return
	}

	logger := r.logger.With(
		"execution_id", executionID,
		"workflow_id", job.Workflow.ID,
		"post_id", job.PostID,
	)

	release, err := r.acquireLock(ctx, job)
	if err != nil {
		r.finish(execution, nil, fmt.Errorf("failed to acquire lock: %w", err))
		logger.Error("lock acquisition failed", "error", err)

		return
	}

	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to release lock", "error", err)
		}
	}()

	now := time.Now().UTC()

	r.mu.Lock()
	execution.Status = StatusRunning
	execution.StartedAt = &now
	r.mu.Unlock()

	r.publish(ctx, executionID, events.WorkflowExecutionStarted{
		BaseEvent:    events.NewBaseEvent(events.WorkflowExecutionStartedEvent),
		ExecutionID:  executionID,
		WorkflowID:   job.Workflow.ID,
		WorkflowName: job.Workflow.Name,
		PostID:       job.PostID,
		TestMode:     job.TestMode,
		Initiator:    job.Initiator,
	})

	result := r.executor.Execute(ctx, job.Workflow, job.Context, job.TestMode)

	r.finish(execution, result, nil)

	if result.Success {
		logger.Info("job completed", "steps_executed", result.StepsExecuted)
		r.publish(ctx, executionID, events.WorkflowExecutionCompleted{
			BaseEvent:     events.NewBaseEvent(events.WorkflowExecutionCompletedEvent),
			ExecutionID:   executionID,
			WorkflowID:    job.Workflow.ID,
			StepsExecuted: result.StepsExecuted,
			DurationMs:    result.ExecutionTimeMs,
		})
	} else {
		logger.Warn("job failed", "error", result.Error)
		r.publish(ctx, executionID, events.WorkflowExecutionFailed{
			BaseEvent:     events.NewBaseEvent(events.WorkflowExecutionFailedEvent),
			ExecutionID:   executionID,
			WorkflowID:    job.Workflow.ID,
			StepsExecuted: result.StepsExecuted,
			DurationMs:    result.ExecutionTimeMs,
			Error:         result.Error,
		})
	}

	r.scheduleCleanup(executionID)
}

// acquireLock serializes runs per (workflow, post) pair. The TTL bounds how
// long a crashed holder can block the pair.
func (r *Runner) acquireLock(ctx context.Context, job *Job) (func(context.Context) error, error) {
	key := job.Workflow.ID + ":" + job.PostID

	for {
		release, acquired, err := r.lock.Acquire(ctx, key, lockTTL)
		if err != nil {
			return nil, err
		}

		if acquired {
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

func (r *Runner) finish(execution *Execution, result *models.WorkflowExecutionResult, err error) {
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	execution.FinishedAt = &now
	execution.Result = result

	switch {
	case err != nil:
		execution.Status = StatusFailed
		execution.Error = err.Error()
	case result != nil && result.Success:
		execution.Status = StatusCompleted
	default:
		execution.Status = StatusFailed
		if result != nil {
			execution.Error = result.Error
		}
	}

	delete(r.jobs, execution.ID)
}

func (r *Runner) publish(ctx context.Context, key string, event eventbus.Event) {
	if r.bus == nil {
		return
	}

	if err := r.bus.Publish(ctx, key, event); err != nil {
		r.logger.Warn("failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (r *Runner) scheduleCleanup(executionID string) {
	time.AfterFunc(executionRetention, func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		delete(r.executions, executionID)
	})
}
