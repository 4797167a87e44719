package pricing

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

func genSpec() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf(Increase, Decrease),
		gen.OneConstOf(Percentage, Fixed),
		gen.Float64Range(0, 500),
		gen.OneConstOf(RoundNone, RoundNearestWhole, RoundDownWhole, RoundUpToPoint99),
	).Map(func(v []interface{}) AdjustmentSpec {
		amount := decimal.NewFromFloat(v[2].(float64)).Round(2)
		spec := AdjustmentSpec{
			Direction:  v[0].(Direction),
			AmountKind: v[1].(AmountKind),
			Rounding:   v[3].(RoundingPolicy),
		}
		if spec.AmountKind == Percentage {
			spec.Percentage = amount
		} else {
			spec.FixedAmount = amount
		}
		return spec
	})
}

func genPrice() gopter.Gen {
	return gen.Float64Range(0, 100000).Map(func(f float64) decimal.Decimal {
		return decimal.NewFromFloat(f).Round(2)
	})
}

func TestComputeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("price is never negative", prop.ForAll(
		func(old decimal.Decimal, spec AdjustmentSpec) bool {
			got, err := Compute(old, spec)
			return err == nil && !got.IsNegative()
		},
		genPrice(), genSpec(),
	))

	properties.Property("compute is deterministic", prop.ForAll(
		func(old decimal.Decimal, spec AdjustmentSpec) bool {
			a, errA := Compute(old, spec)
			b, errB := Compute(old, spec)
			return errA == nil && errB == nil && a.Equal(b)
		},
		genPrice(), genSpec(),
	))

	properties.Property("result has at most two decimal places", prop.ForAll(
		func(old decimal.Decimal, spec AdjustmentSpec) bool {
			got, err := Compute(old, spec)
			return err == nil && got.Equal(got.Round(2))
		},
		genPrice(), genSpec(),
	))

	properties.Property("up_99 always ends in .99", prop.ForAll(
		func(old decimal.Decimal, spec AdjustmentSpec) bool {
			spec.Rounding = RoundUpToPoint99
			got, err := Compute(old, spec)
			if err != nil {
				return false
			}
			return got.Sub(got.Floor()).Equal(decimal.RequireFromString("0.99"))
		},
		genPrice(), genSpec(),
	))

	properties.Property("decrease never raises the unrounded price", prop.ForAll(
		func(old decimal.Decimal, spec AdjustmentSpec) bool {
			spec.Direction = Decrease
			spec.Rounding = RoundNone
			got, err := Compute(old, spec)
			return err == nil && got.LessThanOrEqual(old)
		},
		genPrice(), genSpec(),
	))

	properties.TestingRun(t)
}
