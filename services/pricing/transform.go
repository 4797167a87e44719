// Package pricing computes bulk price adjustments.
//
// All arithmetic is done on decimal.Decimal so that a batch of thousands of
// variants never accumulates binary floating point error. Results are
// quantized to the currency minor unit (two places).
package pricing

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPrice = errors.New("invalid price")
	ErrInvalidSpec  = errors.New("invalid adjustment")
)

type Direction string

const (
	Increase Direction = "increase"
	Decrease Direction = "decrease"
)

type AmountKind string

const (
	Percentage AmountKind = "percentage"
	Fixed      AmountKind = "fixed"
)

type RoundingPolicy string

const (
	RoundNone         RoundingPolicy = "none"
	RoundNearestWhole RoundingPolicy = "nearest_whole"
	RoundDownWhole    RoundingPolicy = "down_whole"
	RoundUpToPoint99  RoundingPolicy = "up_99"
)

const minorUnitPlaces = 2

var (
	hundred  = decimal.NewFromInt(100)
	point99  = decimal.RequireFromString("0.99")
	oneWhole = decimal.NewFromInt(1)
)

type AdjustmentSpec struct {
	Direction   Direction       `json:"direction"`
	AmountKind  AmountKind      `json:"amount_kind"`
	Percentage  decimal.Decimal `json:"percentage"`
	FixedAmount decimal.Decimal `json:"fixed_amount"`
	Rounding    RoundingPolicy  `json:"rounding"`
}

// Validate reports ErrInvalidSpec for unknown enum values or negative amounts.
// An empty rounding policy is treated as RoundNone.
func (s AdjustmentSpec) Validate() error {
	switch s.Direction {
	case Increase, Decrease:
	default:
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidSpec, s.Direction)
	}

	switch s.AmountKind {
	case Percentage:
		if s.Percentage.IsNegative() {
			return fmt.Errorf("%w: percentage must be >= 0", ErrInvalidSpec)
		}
	case Fixed:
		if s.FixedAmount.IsNegative() {
			return fmt.Errorf("%w: fixed amount must be >= 0", ErrInvalidSpec)
		}
	default:
		return fmt.Errorf("%w: unknown amount kind %q", ErrInvalidSpec, s.AmountKind)
	}

	switch s.Rounding {
	case "", RoundNone, RoundNearestWhole, RoundDownWhole, RoundUpToPoint99:
	default:
		return fmt.Errorf("%w: unknown rounding %q", ErrInvalidSpec, s.Rounding)
	}

	return nil
}

// Label renders the adjustment the way merchants read it, e.g. "Decrease by 10%".
func (s AdjustmentSpec) Label() string {
	verb := "Increase"
	if s.Direction == Decrease {
		verb = "Decrease"
	}
	if s.AmountKind == Percentage {
		return fmt.Sprintf("%s by %s%%", verb, s.Percentage.String())
	}
	return fmt.Sprintf("%s by $%s", verb, s.FixedAmount.StringFixed(minorUnitPlaces))
}

// Compute returns the adjusted price. It is pure: the same inputs always
// produce the same output, and the result is never negative.
func Compute(oldPrice decimal.Decimal, spec AdjustmentSpec) (decimal.Decimal, error) {
	if oldPrice.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s is negative", ErrInvalidPrice, oldPrice)
	}
	if err := spec.Validate(); err != nil {
		return decimal.Zero, err
	}

	delta := spec.FixedAmount
	if spec.AmountKind == Percentage {
		delta = oldPrice.Mul(spec.Percentage).Div(hundred)
	}
	if spec.Direction == Decrease {
		delta = delta.Neg()
	}

	raw := oldPrice.Add(delta)
	if raw.IsNegative() {
		raw = decimal.Zero
	}

	return Round(raw, spec.Rounding), nil
}

// Round applies the rounding policy to a non-negative amount and quantizes
// the result to the currency minor unit. RoundUpToPoint99 always ends in .99,
// so an amount of 0 (a decrease clamped at zero) becomes 0.99.
func Round(amount decimal.Decimal, policy RoundingPolicy) decimal.Decimal {
	switch policy {
	case RoundNearestWhole:
		amount = amount.Round(0)
	case RoundDownWhole:
		amount = amount.Floor()
	case RoundUpToPoint99:
		candidate := amount.Floor().Add(point99)
		if candidate.LessThan(amount) {
			candidate = candidate.Add(oneWhole)
		}
		amount = candidate
	}
	return amount.Round(minorUnitPlaces)
}

// ParsePrice converts an untrusted float into a price, rejecting NaN,
// infinities and negative values.
func ParsePrice(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, fmt.Errorf("%w: %v is not finite", ErrInvalidPrice, v)
	}
	if v < 0 {
		return decimal.Zero, fmt.Errorf("%w: %v is negative", ErrInvalidPrice, v)
	}
	return decimal.NewFromFloat(v), nil
}

// ParsePriceString parses a price as returned by catalog APIs ("12.50").
func ParsePriceString(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrInvalidPrice, s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s is negative", ErrInvalidPrice, s)
	}
	return d, nil
}
