package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bulkprice/services/catalog"
	"bulkprice/services/plan"
	"bulkprice/services/pricing"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	finalizeTimeout  = 10 * time.Second
	defaultHeartbeat = time.Minute
)

type ExecutorOptions struct {
	Parallelism    int
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	AttemptTimeout time.Duration
	// Heartbeat is how often a running execution refreshes its claim. It
	// must stay well below the scheduler's StaleAfter.
	Heartbeat time.Duration
}

// Executor drives schedules through apply and revert. Every state change is a
// compare-and-swap on the store, so any number of executors may run at once.
type Executor struct {
	repo    Repository
	catalog catalog.Client
	lookup  plan.Lookup
	gate    *plan.Gate
	opts    ExecutorOptions
	metrics *Metrics
	logger  *zap.Logger
	tracer  trace.Tracer
}

func NewExecutor(repo Repository, client catalog.Client, lookup plan.Lookup, gate *plan.Gate, opts ExecutorOptions, metrics *Metrics, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = defaultHeartbeat
	}
	return &Executor{
		repo:    repo,
		catalog: client,
		lookup:  lookup,
		gate:    gate,
		opts:    opts,
		metrics: metrics,
		logger:  logger,
		tracer:  otel.Tracer("bulkprice/services/schedule"),
	}
}

// Apply claims a pending schedule and applies its new prices. Losing the
// claim to another worker is not an error.
func (e *Executor) Apply(ctx context.Context, id string) error {
	ctx, span := e.tracer.Start(ctx, "schedule.apply", trace.WithAttributes(attribute.String("schedule.id", id)))
	defer span.End()

	start := time.Now()
	claimed, err := e.transition(ctx, id, StatusPending, StatusRunning, "")
	if err != nil || !claimed {
		return e.spanErr(span, err)
	}
	defer e.observe(phaseApply, start)

	s, err := e.repo.GetByID(ctx, id)
	if err != nil {
		return e.finish(ctx, span, id, StatusRunning, StatusFailed, "load schedule: "+err.Error())
	}
	span.SetAttributes(attribute.String("tenant.id", s.TenantID), attribute.Int("schedule.items", len(s.Items)))

	if msg := e.reauthorize(ctx, s); msg != "" {
		return e.finish(ctx, span, id, StatusRunning, StatusFailed, msg)
	}

	_, err = e.applyClaimed(ctx, span, s)
	return err
}

// Revert claims a done, revert-enabled schedule and restores the original
// prices of every item that was applied.
func (e *Executor) Revert(ctx context.Context, id string) error {
	ctx, span := e.tracer.Start(ctx, "schedule.revert", trace.WithAttributes(attribute.String("schedule.id", id)))
	defer span.End()

	start := time.Now()
	claimed, err := e.transition(ctx, id, StatusDone, StatusReverting, "")
	if err != nil || !claimed {
		return e.spanErr(span, err)
	}
	defer e.observe(phaseRevert, start)

	s, err := e.repo.GetByID(ctx, id)
	if err != nil {
		return e.finish(ctx, span, id, StatusReverting, StatusRevertFailed, "load schedule: "+err.Error())
	}
	span.SetAttributes(attribute.String("tenant.id", s.TenantID), attribute.Int("schedule.items", len(s.Items)))

	todo := make([]*LineItem, 0, len(s.Items))
	for i := range s.Items {
		if st := s.Items[i].Status; st == ItemApplied || st == ItemRevertFailed {
			todo = append(todo, &s.Items[i])
		}
	}

	e.mutate(ctx, s.ID, StatusReverting, s.TenantID, todo, phaseRevert)

	if msg := failureSummary(phaseRevert, s.Items); msg != "" {
		return e.finish(ctx, span, id, StatusReverting, StatusRevertFailed, msg)
	}
	return e.finish(ctx, span, id, StatusReverting, StatusReverted, "")
}

// ApplyNow applies a schedule that Submit stored directly in StatusRunning.
// The stored record holds the claim, so a duplicate submission conflicts
// before any price is touched. The outcome is written back to s.
func (e *Executor) ApplyNow(ctx context.Context, s *Schedule) error {
	ctx, span := e.tracer.Start(ctx, "schedule.apply_now", trace.WithAttributes(
		attribute.String("schedule.id", s.ID),
		attribute.String("tenant.id", s.TenantID),
		attribute.Int("schedule.items", len(s.Items)),
	))
	defer span.End()
	defer e.observe(phaseApply, time.Now())

	status, err := e.applyClaimed(ctx, span, s)
	if status != "" {
		s.Status = status
		s.LastError = failureSummary(phaseApply, s.Items)
	}
	return err
}

// applyClaimed mutates every item not yet applied of a schedule this worker
// holds in StatusRunning, then records Done or Failed. The returned status
// is empty when the claim was lost before the terminal transition.
func (e *Executor) applyClaimed(ctx context.Context, span trace.Span, s *Schedule) (Status, error) {
	todo := make([]*LineItem, 0, len(s.Items))
	for i := range s.Items {
		if s.Items[i].Status != ItemApplied {
			todo = append(todo, &s.Items[i])
		}
	}

	e.mutate(ctx, s.ID, StatusRunning, s.TenantID, todo, phaseApply)

	to, msg := StatusDone, failureSummary(phaseApply, s.Items)
	if msg != "" {
		to = StatusFailed
	}
	won, err := e.finishClaim(ctx, span, s.ID, StatusRunning, to, msg)
	if !won {
		return "", err
	}
	return to, err
}

// reauthorize re-runs the plan gate against the tenant's current plan. The
// plan may have been downgraded since the schedule was created.
func (e *Executor) reauthorize(ctx context.Context, s *Schedule) string {
	tier, err := e.lookup.CurrentTier(ctx, s.TenantID)
	if err != nil {
		return "plan lookup failed: " + err.Error()
	}

	spec := s.Adjustment.Data()
	err = e.gate.Authorize(tier, plan.Request{
		ItemCount: len(s.Items),
		Increase:  spec.Direction == pricing.Increase,
		Scheduled: s.Mode == ModeLater || s.RevertEnabled,
	})
	if denied, ok := plan.IsDenied(err); ok {
		return fmt.Sprintf("plan no longer allows this schedule (%s on %s plan): %s", denied.Limit, denied.Plan, denied.Message)
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// mutate pushes the target price of each item to the catalog with bounded
// parallelism. Each outcome is stored as soon as the item finishes and the
// claim on scheduleID is refreshed until every item is done.
func (e *Executor) mutate(ctx context.Context, scheduleID string, claimed Status, tenantID string, items []*LineItem, phase string) {
	stop := e.heartbeat(ctx, scheduleID, claimed)
	defer stop()

	var g errgroup.Group
	g.SetLimit(e.opts.Parallelism)

	for _, item := range items {
		g.Go(func() error {
			target := item.NewPrice
			okStatus, failStatus := ItemApplied, ItemFailed
			if phase == phaseRevert {
				target = item.OldPrice
				okStatus, failStatus = ItemReverted, ItemRevertFailed
			}

			if err := e.updatePrice(ctx, tenantID, item.VariantID, target); err != nil {
				item.Status, item.Error = failStatus, err.Error()
				e.countItem(phase, "failure")
			} else {
				item.Status, item.Error = okStatus, ""
				e.countItem(phase, "success")
			}
			e.persistItem(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
}

// heartbeat touches the schedule every Heartbeat while it is in status. The
// returned func stops it and waits for the last touch to finish.
func (e *Executor) heartbeat(ctx context.Context, id string, status Status) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(e.opts.Heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := e.repo.Touch(ctx, id, status)
				switch {
				case err == nil, ctx.Err() != nil:
				case errors.Is(err, ErrStaleTransition):
					e.logger.Warn("execution claim lost while running", append(traceFields(ctx),
						zap.String("schedule_id", id),
						zap.String("status", string(status)),
					)...)
					return
				default:
					e.logger.Warn("execution heartbeat failed", zap.String("schedule_id", id), zap.Error(err))
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (e *Executor) updatePrice(ctx context.Context, tenantID, variantID string, price decimal.Decimal) error {
	return retry(ctx, e.opts,
		func(ctx context.Context) error {
			return e.catalog.UpdatePrice(ctx, tenantID, variantID, price)
		},
		func(err error, wait time.Duration) {
			e.logger.Warn("catalog update failed, retrying",
				zap.String("tenant_id", tenantID),
				zap.String("variant_id", variantID),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		},
	)
}

func (e *Executor) persistItem(ctx context.Context, item *LineItem) {
	ctx, cancel := detached(ctx)
	defer cancel()

	if err := e.repo.UpdateItem(ctx, item.ID, item.Status, item.Error); err != nil {
		e.logger.Error("failed to record item outcome",
			zap.String("schedule_id", item.ScheduleID),
			zap.String("variant_id", item.VariantID),
			zap.Error(err),
		)
	}
}

// transition performs a CAS and reports whether this worker won it.
func (e *Executor) transition(ctx context.Context, id string, from, to Status, lastError string) (bool, error) {
	err := e.repo.Transition(ctx, id, from, to, lastError)
	switch {
	case err == nil:
		e.countTransition(from, to)
		e.logger.Info("schedule transition", append(traceFields(ctx),
			zap.String("schedule_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.String("last_error", lastError),
		)...)
		return true, nil
	case errors.Is(err, ErrStaleTransition):
		e.countTransition(from, "stale")
		e.logger.Debug("schedule already claimed", append(traceFields(ctx),
			zap.String("schedule_id", id),
			zap.String("expected", string(from)),
		)...)
		return false, nil
	default:
		return false, fmt.Errorf("transition %s %s->%s: %w", id, from, to, err)
	}
}

// finish records the terminal status of an execution. It runs detached from
// ctx so a shutdown mid-execution still leaves the schedule in a visible state.
func (e *Executor) finish(ctx context.Context, span trace.Span, id string, from, to Status, lastError string) error {
	_, err := e.finishClaim(ctx, span, id, from, to, lastError)
	return err
}

// finishClaim is finish that also reports whether the transition was won.
func (e *Executor) finishClaim(ctx context.Context, span trace.Span, id string, from, to Status, lastError string) (bool, error) {
	dctx, cancel := detached(ctx)
	defer cancel()

	if lastError != "" {
		span.SetStatus(codes.Error, lastError)
	}
	won, err := e.transition(dctx, id, from, to, lastError)
	return won, e.spanErr(span, err)
}

func (e *Executor) spanErr(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (e *Executor) observe(phase string, start time.Time) {
	if e.metrics != nil {
		e.metrics.Execution.WithLabelValues(phase).Observe(time.Since(start).Seconds())
	}
}

func (e *Executor) countItem(phase, result string) {
	if e.metrics != nil {
		e.metrics.ItemMutations.WithLabelValues(phase, result).Inc()
	}
}

func (e *Executor) countTransition(from, to Status) {
	if e.metrics != nil {
		e.metrics.Transitions.WithLabelValues(string(from), string(to)).Inc()
	}
}

// failureSummary names every failed item of the phase. Items that succeeded
// are left as they are, which the message states explicitly.
func failureSummary(phase string, items []LineItem) string {
	failStatus, okStatus := ItemFailed, ItemApplied
	if phase == phaseRevert {
		failStatus, okStatus = ItemRevertFailed, ItemReverted
	}

	var failed []string
	succeeded := 0
	for _, it := range items {
		switch it.Status {
		case failStatus:
			failed = append(failed, fmt.Sprintf("%s: %s", it.VariantID, it.Error))
		case okStatus:
			succeeded++
		}
	}
	if len(failed) == 0 {
		return ""
	}

	msg := fmt.Sprintf("%s failed for %d of %d items: %s", phase, len(failed), len(items), strings.Join(failed, "; "))
	if succeeded > 0 {
		msg += fmt.Sprintf(". %d item(s) already updated were not rolled back", succeeded)
	}
	return msg
}

func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
}

func traceFields(ctx context.Context) []zap.Field {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
