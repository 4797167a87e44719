package plan

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists the plan billing last reported for each tenant.
type Repository interface {
	Get(ctx context.Context, tenantID string) (*TenantPlan, error)
	Upsert(ctx context.Context, plan *TenantPlan) error
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Get(ctx context.Context, tenantID string) (*TenantPlan, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var p TenantPlan
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) Upsert(ctx context.Context, p *TenantPlan) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"tier", "plan_name", "updated_at"}),
		}).
		Create(p).Error
}
