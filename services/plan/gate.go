package plan

import (
	"errors"
	"fmt"
)

// Limit names the rule a request violated.
type Limit string

const (
	LimitMaxItems   Limit = "max_items"
	LimitIncrease   Limit = "increase"
	LimitScheduling Limit = "scheduling"
)

// DeniedError is returned by Authorize; Limit tells the caller which rule to
// surface to the merchant.
type DeniedError struct {
	Limit   Limit
	Plan    Tier
	Message string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("denied by %s plan (%s): %s", e.Plan, e.Limit, e.Message)
}

// IsDenied unwraps err into a *DeniedError.
func IsDenied(err error) (*DeniedError, bool) {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return denied, true
	}
	return nil, false
}

// Request describes a bulk price operation for authorization.
type Request struct {
	ItemCount int
	Increase  bool
	Scheduled bool
}

type Gate struct {
	table Table
}

func NewGate(table Table) *Gate {
	return &Gate{table: table}
}

// Limits returns the effective limits for tier.
func (g *Gate) Limits(tier Tier) Limits {
	return g.table.For(tier)
}

// Authorize checks req against the tier limits and returns a *DeniedError
// naming the first violated limit: increase, then scheduling, then item count.
func (g *Gate) Authorize(tier Tier, req Request) error {
	limits := g.table.For(tier)
	if tier.String() == "" {
		tier = TierFree
	}

	if req.Increase && !limits.IncreaseAllowed {
		return &DeniedError{
			Limit:   LimitIncrease,
			Plan:    tier,
			Message: "price increases are available on the Plus and Pro plans",
		}
	}

	if req.Scheduled && !limits.SchedulingAllowed {
		return &DeniedError{
			Limit:   LimitScheduling,
			Plan:    tier,
			Message: "price scheduling is available on the Plus and Pro plans",
		}
	}

	if limits.MaxItems != Unlimited && req.ItemCount > limits.MaxItems {
		return &DeniedError{
			Limit:   LimitMaxItems,
			Plan:    tier,
			Message: fmt.Sprintf("plan allows up to %d items per bulk update, got %d", limits.MaxItems, req.ItemCount),
		}
	}

	return nil
}
