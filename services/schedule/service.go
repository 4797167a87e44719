package schedule

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bulkprice/pkg/db/pagination"
	"bulkprice/services/catalog"
	"bulkprice/services/plan"
	"bulkprice/services/pricing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Placeholder shown when catalog details for an item cannot be loaded.
const Placeholder = "—"

type ItemsRequest struct {
	VariantIDs []string               `json:"variant_ids"`
	Adjustment pricing.AdjustmentSpec `json:"adjustment"`
}

type SubmitRequest struct {
	ItemsRequest
	Window         WindowInput `json:"window"`
	IdempotencyKey string      `json:"-"`
}

type Totals struct {
	OldTotal decimal.Decimal `json:"old_total"`
	NewTotal decimal.Decimal `json:"new_total"`
	Diff     decimal.Decimal `json:"diff"`
}

func newTotals(oldTotal, newTotal decimal.Decimal) Totals {
	return Totals{OldTotal: oldTotal, NewTotal: newTotal, Diff: newTotal.Sub(oldTotal)}
}

type DetailItem struct {
	VariantID    string          `json:"variant_id"`
	ProductTitle string          `json:"product_title"`
	VariantTitle string          `json:"variant_title"`
	SKU          string          `json:"sku"`
	OldPrice     decimal.Decimal `json:"old_price"`
	NewPrice     decimal.Decimal `json:"new_price"`
	Status       ItemStatus      `json:"status,omitempty"`
	Error        string          `json:"error,omitempty"`
}

type Preview struct {
	Label  string       `json:"label"`
	Items  []DetailItem `json:"items"`
	Totals Totals       `json:"totals"`
}

type Details struct {
	*Schedule
	Label  string       `json:"label"`
	Items  []DetailItem `json:"items"`
	Totals Totals       `json:"totals"`
}

type Summary struct {
	ID        string     `json:"id"`
	Status    Status     `json:"status"`
	Mode      Mode       `json:"mode"`
	RunAt     time.Time  `json:"run_at"`
	RevertAt  *time.Time `json:"revert_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ItemCount int        `json:"item_count"`
	LastError string     `json:"last_error,omitempty"`
	Label     string     `json:"label"`
	Totals    Totals     `json:"totals"`
}

type Service struct {
	repo      Repository
	validator *Validator
	gate      *plan.Gate
	lookup    plan.Lookup
	catalog   catalog.Client
	exec      *Executor
	waker     Waker
	node      *snowflake.Node
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(repo Repository, gate *plan.Gate, lookup plan.Lookup, client catalog.Client, exec *Executor, waker Waker, node *snowflake.Node, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if waker == nil {
		waker = NopWaker()
	}
	return &Service{
		repo:      repo,
		validator: NewValidator(gate),
		gate:      gate,
		lookup:    lookup,
		catalog:   client,
		exec:      exec,
		waker:     waker,
		node:      node,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Preview computes the new prices for the candidate variants. Nothing is
// persisted and the catalog is only read.
func (s *Service) Preview(ctx context.Context, tenantID string, req ItemsRequest) (*Preview, error) {
	if err := checkSpec(req.Adjustment); err != nil {
		return nil, err
	}
	if len(req.VariantIDs) == 0 {
		return nil, invalid(RuleItemsEmpty, "at least one variant is required")
	}

	ids := dedupe(req.VariantIDs)
	items, variants, err := s.lineItems(ctx, tenantID, ids, req.Adjustment)
	if err != nil {
		return nil, err
	}

	out := &Preview{Label: req.Adjustment.Label(), Items: make([]DetailItem, 0, len(items))}
	oldTotal, newTotal := decimal.Zero, decimal.Zero
	for _, it := range items {
		out.Items = append(out.Items, detailItem(it, variants))
		oldTotal = oldTotal.Add(it.OldPrice)
		newTotal = newTotal.Add(it.NewPrice)
	}
	out.Totals = newTotals(oldTotal, newTotal)
	return out, nil
}

// Submit validates, authorizes and persists a schedule. Mode now is applied
// synchronously before the record is written, so it is stored as Done or
// Failed and never enters Pending.
func (s *Service) Submit(ctx context.Context, tenantID string, req SubmitRequest) (*Schedule, error) {
	now := s.now()

	if err := checkSpec(req.Adjustment); err != nil {
		return nil, err
	}

	tier, err := s.lookup.CurrentTier(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("lookup plan: %w", err)
	}

	window, err := s.validator.Validate(now, tier, req.Window, req.VariantIDs)
	if err != nil {
		return nil, err
	}

	if err := s.gate.Authorize(tier, plan.Request{
		ItemCount: len(req.VariantIDs),
		Increase:  req.Adjustment.Direction == pricing.Increase,
		Scheduled: window.Scheduled(),
	}); err != nil {
		return nil, err
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		if key, err = submissionDigest(tenantID, req, window, now); err != nil {
			return nil, err
		}
	}
	existing, err := s.repo.FindByIdempotencyKey(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &ConflictError{ExistingID: existing.ID}
	}

	items, _, err := s.lineItems(ctx, tenantID, req.VariantIDs, req.Adjustment)
	if err != nil {
		return nil, err
	}

	sc := &Schedule{
		ID:             s.node.Generate().String(),
		TenantID:       tenantID,
		IdempotencyKey: key,
		Mode:           window.Mode,
		RunAt:          window.RunAt,
		RevertEnabled:  window.RevertEnabled,
		RevertAt:       window.RevertAt,
		Status:         StatusPending,
		Adjustment:     datatypes.NewJSONType(req.Adjustment),
		Items:          items,
	}

	if window.Mode == ModeNow {
		sc.Status = StatusRunning
		sc.Attempts = 1
	}

	if err := s.repo.Create(ctx, sc); err != nil {
		return nil, err
	}

	if window.Mode == ModeNow {
		// The record exists, so the apply outlives a dropped request.
		if err := s.exec.ApplyNow(context.WithoutCancel(ctx), sc); err != nil {
			s.logger.Error("failed to record schedule outcome",
				zap.String("tenant_id", tenantID),
				zap.String("schedule_id", sc.ID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("schedule created",
		zap.String("tenant_id", tenantID),
		zap.String("schedule_id", sc.ID),
		zap.String("mode", string(sc.Mode)),
		zap.String("status", string(sc.Status)),
		zap.Int("items", len(sc.Items)),
	)

	s.wake(ctx, sc)
	return sc, nil
}

// Get returns a tenant's schedule with catalog details for each item.
// Schedules of other tenants are reported as ErrNotFound.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*Details, error) {
	sc, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(sc.Items))
	for _, it := range sc.Items {
		ids = append(ids, it.VariantID)
	}

	variants := map[string]catalog.Variant{}
	if found, err := s.catalog.GetVariants(ctx, tenantID, ids); err != nil {
		s.logger.Warn("schedule details without catalog data", zap.String("schedule_id", id), zap.Error(err))
	} else {
		for _, v := range found {
			variants[v.ID] = v
		}
	}

	out := &Details{Schedule: sc, Label: sc.Adjustment.Data().Label(), Items: make([]DetailItem, 0, len(sc.Items))}
	oldTotal, newTotal := decimal.Zero, decimal.Zero
	for _, it := range sc.Items {
		out.Items = append(out.Items, detailItem(it, variants))
		oldTotal = oldTotal.Add(it.OldPrice)
		newTotal = newTotal.Add(it.NewPrice)
	}
	out.Totals = newTotals(oldTotal, newTotal)
	return out, nil
}

// List returns schedule summaries, newest first.
func (s *Service) List(ctx context.Context, tenantID string, p pagination.Pagination) ([]Summary, *pagination.PageInfo, error) {
	rows, info, err := s.repo.List(ctx, tenantID, p)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	totals, err := s.repo.Totals(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	out := make([]Summary, 0, len(rows))
	for _, r := range rows {
		t := totals[r.ID]
		out = append(out, Summary{
			ID:        r.ID,
			Status:    r.Status,
			Mode:      r.Mode,
			RunAt:     r.RunAt,
			RevertAt:  r.RevertAt,
			CreatedAt: r.CreatedAt,
			ItemCount: t.ItemCount,
			LastError: r.LastError,
			Label:     r.Adjustment.Data().Label(),
			Totals:    newTotals(t.OldTotal, t.NewTotal),
		})
	}
	return out, info, nil
}

// Retry re-attempts a failed phase: Failed goes back to Pending and
// RevertFailed back to Done. Items that already succeeded are skipped.
func (s *Service) Retry(ctx context.Context, tenantID, id string) (*Schedule, error) {
	sc, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	var next Status
	switch sc.Status {
	case StatusFailed:
		next = StatusPending
	case StatusRevertFailed:
		next = StatusDone
	default:
		return nil, fmt.Errorf("%w: status is %s", ErrNotRetryable, sc.Status)
	}

	if err := s.repo.Transition(ctx, sc.ID, sc.Status, next, ""); err != nil {
		if errors.Is(err, ErrStaleTransition) {
			return nil, fmt.Errorf("%w: status changed concurrently", ErrNotRetryable)
		}
		return nil, err
	}

	s.logger.Info("schedule retry requested",
		zap.String("tenant_id", tenantID),
		zap.String("schedule_id", sc.ID),
		zap.String("from", string(sc.Status)),
		zap.String("to", string(next)),
	)

	sc.Status, sc.LastError = next, ""
	s.wake(ctx, sc)
	return sc, nil
}

func (s *Service) wake(ctx context.Context, sc *Schedule) {
	if err := s.waker.Wake(ctx, sc); err != nil {
		s.logger.Warn("failed to enqueue wake-up, poll loop will pick it up",
			zap.String("schedule_id", sc.ID),
			zap.Error(err),
		)
	}
}

// lineItems reads current prices from the catalog and computes new ones in
// the order of ids. Unknown variants are rejected.
func (s *Service) lineItems(ctx context.Context, tenantID string, ids []string, spec pricing.AdjustmentSpec) ([]LineItem, map[string]catalog.Variant, error) {
	found, err := s.catalog.GetVariants(ctx, tenantID, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("read catalog: %w", err)
	}

	variants := make(map[string]catalog.Variant, len(found))
	for _, v := range found {
		variants[v.ID] = v
	}

	items := make([]LineItem, 0, len(ids))
	for _, id := range ids {
		v, ok := variants[id]
		if !ok {
			return nil, nil, invalid(RuleVariantUnknown, "variant %s was not found in the catalog", id)
		}

		newPrice, err := pricing.Compute(v.Price, spec)
		if err != nil {
			return nil, nil, invalid(RuleSpecInvalid, "variant %s: %v", id, err)
		}
		items = append(items, LineItem{
			VariantID: id,
			OldPrice:  v.Price.Round(2),
			NewPrice:  newPrice,
			Status:    ItemPending,
		})
	}
	return items, variants, nil
}

func checkSpec(spec pricing.AdjustmentSpec) error {
	if err := spec.Validate(); err != nil {
		return invalid(RuleSpecInvalid, "%v", err)
	}
	return nil
}

func detailItem(it LineItem, variants map[string]catalog.Variant) DetailItem {
	d := DetailItem{
		VariantID:    it.VariantID,
		ProductTitle: Placeholder,
		VariantTitle: Placeholder,
		SKU:          Placeholder,
		OldPrice:     it.OldPrice,
		NewPrice:     it.NewPrice,
		Status:       it.Status,
		Error:        it.Error,
	}
	if v, ok := variants[it.VariantID]; ok {
		d.ProductTitle = orPlaceholder(v.ProductTitle)
		d.VariantTitle = orPlaceholder(v.VariantTitle)
		d.SKU = orPlaceholder(v.SKU)
	}
	return d
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// submissionDigest derives an idempotency key from the tenant and the raw
// submission. Immediate submissions also bind the minute they arrive in, so
// an identical change can be repeated later on purpose.
func submissionDigest(tenantID string, req SubmitRequest, w Window, now time.Time) (string, error) {
	payload := struct {
		TenantID   string                 `json:"tenant_id"`
		VariantIDs []string               `json:"variant_ids"`
		Adjustment pricing.AdjustmentSpec `json:"adjustment"`
		Mode       Mode                   `json:"mode"`
		RunAt      string                 `json:"run_at,omitempty"`
		RevertAt   string                 `json:"revert_at,omitempty"`
	}{
		TenantID:   tenantID,
		VariantIDs: req.VariantIDs,
		Adjustment: req.Adjustment,
		Mode:       w.Mode,
	}

	if w.Mode == ModeLater {
		payload.RunAt = w.RunAt.Format(time.RFC3339)
	} else {
		payload.RunAt = now.Truncate(time.Minute).Format(time.RFC3339)
	}
	if w.RevertAt != nil {
		payload.RevertAt = w.RevertAt.Format(time.RFC3339)
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode submission digest: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
