package plan

import (
	"strings"
	"time"
)

type Tier string

const (
	TierFree Tier = "free"
	TierPlus Tier = "plus"
	TierPro  Tier = "pro"
)

func (t Tier) String() string {
	switch t {
	case TierFree, TierPlus, TierPro:
		return string(t)
	default:
		return ""
	}
}

// ParseTier derives the tier from a billing plan name. Billing providers may
// report a subscription object even for the free plan, so the name decides:
// anything mentioning "pro" is Pro, "plus" is Plus, everything else is Free.
func ParseTier(planName string) Tier {
	name := strings.ToLower(strings.TrimSpace(planName))
	switch {
	case strings.Contains(name, "pro"):
		return TierPro
	case strings.Contains(name, "plus"):
		return TierPlus
	default:
		return TierFree
	}
}

// Unlimited marks a limit that is not enforced.
const Unlimited = -1

type Limits struct {
	MaxItems          int  `json:"max_items"`
	IncreaseAllowed   bool `json:"increase_allowed"`
	SchedulingAllowed bool `json:"scheduling_allowed"`
}

// Table maps each tier to its limits. Unknown tiers resolve to Free.
type Table map[Tier]Limits

// DefaultTable mirrors the published plans: Free (decrease only, no
// scheduling), Plus, and Pro (unlimited).
func DefaultTable(freeMaxItems, plusMaxItems int) Table {
	return Table{
		TierFree: {MaxItems: freeMaxItems, IncreaseAllowed: false, SchedulingAllowed: false},
		TierPlus: {MaxItems: plusMaxItems, IncreaseAllowed: true, SchedulingAllowed: true},
		TierPro:  {MaxItems: Unlimited, IncreaseAllowed: true, SchedulingAllowed: true},
	}
}

func (t Table) For(tier Tier) Limits {
	if l, ok := t[tier]; ok {
		return l
	}
	return t[TierFree]
}

// TenantPlan is the last plan reported by billing for a tenant.
type TenantPlan struct {
	TenantID  string    `gorm:"column:tenant_id;primaryKey;type:varchar(255)"`
	Tier      Tier      `gorm:"column:tier;type:varchar(20);not null"`
	PlanName  string    `gorm:"column:plan_name;type:varchar(255)"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (TenantPlan) TableName() string { return "tenant_plans" }
