package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bulkprice/pkg/db/pagination"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// itemTotals aggregates the line items of one schedule.
type itemTotals struct {
	ScheduleID string          `gorm:"column:schedule_id"`
	ItemCount  int             `gorm:"column:item_count"`
	OldTotal   decimal.Decimal `gorm:"column:old_total"`
	NewTotal   decimal.Decimal `gorm:"column:new_total"`
}

// Repository is the durable, tenant-scoped schedule store.
type Repository interface {
	Create(ctx context.Context, s *Schedule) error
	Get(ctx context.Context, tenantID, id string) (*Schedule, error)
	GetByID(ctx context.Context, id string) (*Schedule, error)
	FindByIdempotencyKey(ctx context.Context, tenantID, key string) (*Schedule, error)
	List(ctx context.Context, tenantID string, p pagination.Pagination) ([]Schedule, *pagination.PageInfo, error)
	Totals(ctx context.Context, ids []string) (map[string]itemTotals, error)
	ListDue(ctx context.Context, now time.Time, status Status, limit int) ([]Schedule, error)
	ListStuck(ctx context.Context, before time.Time, limit int) ([]Schedule, error)
	Transition(ctx context.Context, id string, expected, next Status, lastError string) error
	ExpireStale(ctx context.Context, id string, expected, next Status, before time.Time, lastError string) error
	Touch(ctx context.Context, id string, status Status) error
	UpdateItem(ctx context.Context, itemID uint64, status ItemStatus, errMsg string) error
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// Create inserts the schedule and its items atomically. A second submission
// with the same idempotency key fails with a *ConflictError.
func (r *gormRepository) Create(ctx context.Context, s *Schedule) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	for i := range s.Items {
		s.Items[i].ScheduleID = s.ID
		s.Items[i].Position = i
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(s).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, findErr := r.FindByIdempotencyKey(ctx, s.TenantID, s.IdempotencyKey)
		if findErr != nil || existing == nil {
			return ErrConflict
		}
		return &ConflictError{ExistingID: existing.ID}
	}
	return err
}

func (r *gormRepository) Get(ctx context.Context, tenantID, id string) (*Schedule, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}
	return r.first(ctx, r.db.Where("tenant_id = ? AND id = ?", tenantID, id))
}

// GetByID loads a schedule regardless of tenant. Only the executor uses it.
func (r *gormRepository) GetByID(ctx context.Context, id string) (*Schedule, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}
	return r.first(ctx, r.db.Where("id = ?", id))
}

func (r *gormRepository) first(ctx context.Context, query *gorm.DB) (*Schedule, error) {
	var s Schedule
	err := query.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *gormRepository) FindByIdempotencyKey(ctx context.Context, tenantID, key string) (*Schedule, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	s, err := r.first(ctx, r.db.Where("tenant_id = ? AND idempotency_key = ?", tenantID, key))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return s, err
}

// List returns the tenant's schedules, newest first, without items.
func (r *gormRepository) List(ctx context.Context, tenantID string, p pagination.Pagination) ([]Schedule, *pagination.PageInfo, error) {
	if r == nil || r.db == nil {
		return nil, nil, gorm.ErrInvalidDB
	}

	p = p.Normalize()
	query := r.db.WithContext(ctx).Model(&Schedule{}).Where("tenant_id = ?", tenantID)

	if p.Cursor != "" {
		cursor, err := pagination.DecodeCursor(p.Cursor)
		if err != nil {
			return nil, nil, err
		}
		createdAt := cursor.CreatedAt.UTC()
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", createdAt, createdAt, cursor.ID)
	}

	var rows []Schedule
	if err := query.Order("created_at DESC").Order("id DESC").Limit(p.Limit + 1).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	return pagination.BuildCursorPageInfo(rows, p.Limit, func(s Schedule) pagination.Cursor {
		return pagination.Cursor{CreatedAt: s.CreatedAt, ID: s.ID}
	})
}

func (r *gormRepository) Totals(ctx context.Context, ids []string) (map[string]itemTotals, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}
	if len(ids) == 0 {
		return map[string]itemTotals{}, nil
	}

	var rows []itemTotals
	err := r.db.WithContext(ctx).Model(&LineItem{}).
		Select("schedule_id, COUNT(*) AS item_count, SUM(old_price) AS old_total, SUM(new_price) AS new_total").
		Where("schedule_id IN ?", ids).
		Group("schedule_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]itemTotals, len(rows))
	for _, t := range rows {
		out[t.ScheduleID] = t
	}
	return out, nil
}

// ListDue returns schedules whose next phase is due at now: run_at for
// StatusPending, revert_at for StatusDone. Oldest due first.
func (r *gormRepository) ListDue(ctx context.Context, now time.Time, status Status, limit int) ([]Schedule, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	query := r.db.WithContext(ctx).Model(&Schedule{}).Where("status = ?", status)
	switch status {
	case StatusPending:
		query = query.Where("run_at <= ?", now.UTC()).Order("run_at ASC")
	case StatusDone:
		query = query.Where("revert_enabled = ? AND revert_at IS NOT NULL AND revert_at <= ?", true, now.UTC()).Order("revert_at ASC")
	default:
		return nil, fmt.Errorf("list due: status %q has no due time", status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []Schedule
	if err := query.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListStuck returns running or reverting schedules not touched since before,
// which means the worker executing them died.
func (r *gormRepository) ListStuck(ctx context.Context, before time.Time, limit int) ([]Schedule, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	query := r.db.WithContext(ctx).Model(&Schedule{}).
		Where("status IN ? AND updated_at < ?", []Status{StatusRunning, StatusReverting}, before.UTC()).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []Schedule
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Transition moves a schedule from expected to next only if it is still in
// expected. Losing that race yields ErrStaleTransition.
func (r *gormRepository) Transition(ctx context.Context, id string, expected, next Status, lastError string) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	updates := map[string]any{
		"status":     next,
		"last_error": lastError,
		"updated_at": time.Now().UTC(),
	}
	if next == StatusRunning || next == StatusReverting {
		updates["attempts"] = gorm.Expr("attempts + 1")
	}

	res := r.db.WithContext(ctx).Model(&Schedule{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&Schedule{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrStaleTransition
}

// ExpireStale is Transition for a schedule whose claim has not been touched
// since before. A heartbeat that lands first wins and yields ErrStaleTransition.
func (r *gormRepository) ExpireStale(ctx context.Context, id string, expected, next Status, before time.Time, lastError string) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	res := r.db.WithContext(ctx).Model(&Schedule{}).
		Where("id = ? AND status = ? AND updated_at < ?", id, expected, before.UTC()).
		Updates(map[string]any{
			"status":     next,
			"last_error": lastError,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

// Touch refreshes updated_at of a schedule still in status. It fails with
// ErrStaleTransition once the schedule has left that status.
func (r *gormRepository) Touch(ctx context.Context, id string, status Status) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	res := r.db.WithContext(ctx).Model(&Schedule{}).
		Where("id = ? AND status = ?", id, status).
		Update("updated_at", time.Now().UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

func (r *gormRepository) UpdateItem(ctx context.Context, itemID uint64, status ItemStatus, errMsg string) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	return r.db.WithContext(ctx).Model(&LineItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"status":     status,
			"error":      errMsg,
			"updated_at": time.Now().UTC(),
		}).Error
}
