package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	asynqx "bulkprice/pkg/asynq"
	"bulkprice/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	TaskApply  = taskname.ScheduleApply
	TaskRevert = taskname.ScheduleRevert
)

type taskPayload struct {
	ScheduleID string `json:"schedule_id"`
}

// Waker nudges the worker when a schedule phase becomes due. Wake-ups are a
// latency optimisation only; the poll loop finds every due schedule anyway.
type Waker interface {
	Wake(ctx context.Context, s *Schedule) error
}

type nopWaker struct{}

func (nopWaker) Wake(context.Context, *Schedule) error { return nil }

// NopWaker is used when no task queue is configured.
func NopWaker() Waker { return nopWaker{} }

type asynqWaker struct {
	enqueuer asynqx.Enqueuer
}

func NewAsynqWaker(enqueuer asynqx.Enqueuer) Waker {
	return &asynqWaker{enqueuer: enqueuer}
}

// Wake enqueues a task for the schedule's next due phase at its due time.
// Task ids include the attempt count so a retried schedule gets a fresh task.
func (w *asynqWaker) Wake(ctx context.Context, s *Schedule) error {
	due, ok := s.Due()
	if !ok {
		return nil
	}

	taskType := TaskApply
	if s.Status == StatusDone {
		taskType = TaskRevert
	}

	payload, err := json.Marshal(taskPayload{ScheduleID: s.ID})
	if err != nil {
		return err
	}

	_, err = w.enqueuer.Enqueue(ctx, asynq.NewTask(taskType, payload),
		asynq.Queue(asynqx.QueueCritical),
		asynq.ProcessAt(due),
		asynq.TaskID(fmt.Sprintf("%s:%s:%d", taskType, s.ID, s.Attempts)),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// TaskHandler runs executor phases from wake-up tasks.
type TaskHandler struct {
	exec   *Executor
	logger *zap.Logger
}

func NewTaskHandler(exec *Executor, logger *zap.Logger) *TaskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskHandler{exec: exec, logger: logger}
}

func (h *TaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskApply, h.HandleApply)
	mux.HandleFunc(TaskRevert, h.HandleRevert)
}

func (h *TaskHandler) HandleApply(ctx context.Context, t *asynq.Task) error {
	return h.handle(ctx, t, h.exec.Apply)
}

func (h *TaskHandler) HandleRevert(ctx context.Context, t *asynq.Task) error {
	return h.handle(ctx, t, h.exec.Revert)
}

// handle never asks asynq to retry: the executor owns retries and the poll
// loop picks up anything a failed task left behind.
func (h *TaskHandler) handle(ctx context.Context, t *asynq.Task, run func(context.Context, string) error) error {
	var p taskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil || p.ScheduleID == "" {
		return fmt.Errorf("invalid %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}

	if err := run(ctx, p.ScheduleID); err != nil {
		h.logger.Error("wake-up task failed",
			zap.String("task_type", t.Type()),
			zap.String("schedule_id", p.ScheduleID),
			zap.Error(err),
		)
		return fmt.Errorf("%s %s: %v: %w", t.Type(), p.ScheduleID, err, asynq.SkipRetry)
	}
	return nil
}
