package schedule

import (
	"time"

	"bulkprice/services/pricing"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending      Status = "pending"
	StatusRunning      Status = "running"
	StatusDone         Status = "done"
	StatusFailed       Status = "failed"
	StatusReverting    Status = "reverting"
	StatusReverted     Status = "reverted"
	StatusRevertFailed Status = "revert_failed"
)

// Terminal reports whether no further transition will happen without an
// operator retry. Done is terminal only when no revert is configured.
func (s Status) Terminal(revertEnabled bool) bool {
	switch s {
	case StatusFailed, StatusReverted, StatusRevertFailed:
		return true
	case StatusDone:
		return !revertEnabled
	default:
		return false
	}
}

type Mode string

const (
	ModeNow   Mode = "now"
	ModeLater Mode = "later"
)

type ItemStatus string

const (
	ItemPending      ItemStatus = "pending"
	ItemApplied      ItemStatus = "applied"
	ItemFailed       ItemStatus = "failed"
	ItemReverted     ItemStatus = "reverted"
	ItemRevertFailed ItemStatus = "revert_failed"
)

// Schedule is a persisted bulk price change. RunAt is always set: for
// ModeNow it is the submission time.
type Schedule struct {
	ID             string                                     `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	TenantID       string                                     `gorm:"column:tenant_id;type:varchar(255);not null;index:idx_schedules_tenant_created,priority:1;uniqueIndex:idx_schedules_tenant_idempotency,priority:1" json:"tenant_id"`
	IdempotencyKey string                                     `gorm:"column:idempotency_key;type:varchar(128);not null;uniqueIndex:idx_schedules_tenant_idempotency,priority:2" json:"-"`
	Mode           Mode                                       `gorm:"column:mode;type:varchar(10);not null" json:"mode"`
	RunAt          time.Time                                  `gorm:"column:run_at;not null;index:idx_schedules_status_run_at,priority:2" json:"run_at"`
	RevertEnabled  bool                                       `gorm:"column:revert_enabled;not null;default:false" json:"revert_enabled"`
	RevertAt       *time.Time                                 `gorm:"column:revert_at;index:idx_schedules_status_revert_at,priority:2" json:"revert_at,omitempty"`
	Status         Status                                     `gorm:"column:status;type:varchar(20);not null;index:idx_schedules_status_run_at,priority:1;index:idx_schedules_status_revert_at,priority:1" json:"status"`
	LastError      string                                     `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	Adjustment     datatypes.JSONType[pricing.AdjustmentSpec] `gorm:"column:adjustment;not null" json:"adjustment"`
	Attempts       int                                        `gorm:"column:attempts;not null;default:0" json:"attempts"`
	CreatedAt      time.Time                                  `gorm:"column:created_at;index:idx_schedules_tenant_created,priority:2" json:"created_at"`
	UpdatedAt      time.Time                                  `gorm:"column:updated_at" json:"updated_at"`
	Items          []LineItem                                 `gorm:"foreignKey:ScheduleID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (Schedule) TableName() string { return "price_schedules" }

// Due returns the instant the next phase of the schedule becomes due, and
// false when nothing is left to run.
func (s *Schedule) Due() (time.Time, bool) {
	switch s.Status {
	case StatusPending:
		return s.RunAt, true
	case StatusDone:
		if s.RevertEnabled && s.RevertAt != nil {
			return *s.RevertAt, true
		}
	}
	return time.Time{}, false
}

// LineItem is one variant's price pair. Position keeps submission order.
type LineItem struct {
	ID         uint64          `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	ScheduleID string          `gorm:"column:schedule_id;type:varchar(32);not null;index" json:"-"`
	Position   int             `gorm:"column:position;not null" json:"-"`
	VariantID  string          `gorm:"column:variant_id;type:varchar(255);not null" json:"variant_id"`
	OldPrice   decimal.Decimal `gorm:"column:old_price;type:decimal(12,2);not null" json:"old_price"`
	NewPrice   decimal.Decimal `gorm:"column:new_price;type:decimal(12,2);not null" json:"new_price"`
	Status     ItemStatus      `gorm:"column:status;type:varchar(20);not null" json:"status"`
	Error      string          `gorm:"column:error;type:text" json:"error,omitempty"`
	UpdatedAt  time.Time       `gorm:"column:updated_at" json:"-"`
}

func (LineItem) TableName() string { return "price_schedule_items" }

// Models lists the tables owned by this package.
func Models() []any {
	return []any{&Schedule{}, &LineItem{}}
}
