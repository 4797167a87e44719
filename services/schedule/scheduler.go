package schedule

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type SchedulerOptions struct {
	PollInterval time.Duration
	BatchSize    int
	Workers      int
	StaleAfter   time.Duration
}

// Scheduler polls the store for due schedules and hands them to the
// executor. Several schedulers may poll the same store.
type Scheduler struct {
	repo    Repository
	exec    *Executor
	opts    SchedulerOptions
	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(repo Repository, exec *Executor, opts SchedulerOptions, metrics *Metrics, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Scheduler{
		repo:    repo,
		exec:    exec,
		opts:    opts,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
}

// Stop cancels the loop and waits for the current tick, or until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	s.logger.Info("[Scheduler] started", zap.Duration("poll_interval", s.opts.PollInterval))

	for {
		start := time.Now()
		if err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("[Scheduler] tick failed", zap.Error(err))
		}
		s.logger.Debug("[Scheduler] tick finished", zap.Duration("duration", time.Since(start)))

		select {
		case <-time.After(s.opts.PollInterval):
		case <-ctx.Done():
			s.logger.Warn("[Scheduler] stopped")
			return
		}
	}
}

// Tick runs one scan: interrupted executions are failed, then due applies
// and due reverts are executed.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.now()

	if err := s.failStuck(ctx, now); err != nil {
		return err
	}
	if err := s.runDue(ctx, now, StatusPending, phaseApply, s.exec.Apply); err != nil {
		return err
	}
	return s.runDue(ctx, now, StatusDone, phaseRevert, s.exec.Revert)
}

func (s *Scheduler) runDue(ctx context.Context, now time.Time, status Status, phase string, run func(context.Context, string) error) error {
	due, err := s.repo.ListDue(ctx, now, status, s.opts.BatchSize)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.DueSchedules.WithLabelValues(phase).Set(float64(len(due)))
	}
	if len(due) == 0 {
		return nil
	}

	s.logger.Info("[Scheduler] due schedules found", zap.String("phase", phase), zap.Int("count", len(due)))

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for _, sc := range due {
		g.Go(func() error {
			if err := run(ctx, sc.ID); err != nil {
				s.logger.Error("[Scheduler] execution failed",
					zap.String("phase", phase),
					zap.String("schedule_id", sc.ID),
					zap.String("tenant_id", sc.TenantID),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	return g.Wait()
}

// failStuck fails executions whose worker died mid-flight. They are not
// resumed: some items may already carry the new price. A live execution keeps
// its claim fresh through the executor heartbeat and is never matched.
func (s *Scheduler) failStuck(ctx context.Context, now time.Time) error {
	if s.opts.StaleAfter <= 0 {
		return nil
	}

	before := now.Add(-s.opts.StaleAfter)
	stuck, err := s.repo.ListStuck(ctx, before, s.opts.BatchSize)
	if err != nil {
		return err
	}

	for _, sc := range stuck {
		to := StatusFailed
		if sc.Status == StatusReverting {
			to = StatusRevertFailed
		}
		msg := "execution interrupted before completion; some items may already be updated and were not rolled back"

		err := s.repo.ExpireStale(ctx, sc.ID, sc.Status, to, before, msg)
		switch {
		case err == nil:
			if s.metrics != nil {
				s.metrics.Transitions.WithLabelValues(string(sc.Status), string(to)).Inc()
			}
			s.logger.Warn("[Scheduler] stuck schedule failed",
				zap.String("schedule_id", sc.ID),
				zap.String("from", string(sc.Status)),
				zap.String("to", string(to)),
			)
		case errors.Is(err, ErrStaleTransition):
		default:
			s.logger.Error("[Scheduler] failed to close stuck schedule", zap.String("schedule_id", sc.ID), zap.Error(err))
		}
	}
	return nil
}
