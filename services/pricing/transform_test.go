package pricing

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name string
		old  string
		spec AdjustmentSpec
		want string
	}{
		{
			name: "percentage decrease without rounding",
			old:  "20.00",
			spec: AdjustmentSpec{Direction: Decrease, AmountKind: Percentage, Percentage: d("25"), Rounding: RoundNone},
			want: "15",
		},
		{
			name: "percentage increase keeps cents",
			old:  "19.99",
			spec: AdjustmentSpec{Direction: Increase, AmountKind: Percentage, Percentage: d("10")},
			want: "21.99",
		},
		{
			name: "fixed decrease clamps at zero",
			old:  "4.50",
			spec: AdjustmentSpec{Direction: Decrease, AmountKind: Fixed, FixedAmount: d("10")},
			want: "0",
		},
		{
			name: "fixed increase",
			old:  "4.50",
			spec: AdjustmentSpec{Direction: Increase, AmountKind: Fixed, FixedAmount: d("0.75")},
			want: "5.25",
		},
		{
			name: "ten percent decrease nearest whole",
			old:  "33.00",
			spec: AdjustmentSpec{Direction: Decrease, AmountKind: Percentage, Percentage: d("10"), Rounding: RoundNearestWhole},
			want: "30",
		},
		{
			name: "down whole",
			old:  "10.00",
			spec: AdjustmentSpec{Direction: Increase, AmountKind: Percentage, Percentage: d("9.9"), Rounding: RoundDownWhole},
			want: "10",
		},
		{
			name: "up to .99 after decrease",
			old:  "14.00",
			spec: AdjustmentSpec{Direction: Decrease, AmountKind: Fixed, FixedAmount: d("1.90"), Rounding: RoundUpToPoint99},
			want: "12.99",
		},
		{
			name: "zero price decreased to zero rounds up to .99",
			old:  "0",
			spec: AdjustmentSpec{Direction: Decrease, AmountKind: Percentage, Percentage: d("50"), Rounding: RoundUpToPoint99},
			want: "0.99",
		},
		{
			name: "decrease clamped at zero rounds up to .99",
			old:  "5.00",
			spec: AdjustmentSpec{Direction: Decrease, AmountKind: Fixed, FixedAmount: d("10.00"), Rounding: RoundUpToPoint99},
			want: "0.99",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(d(tt.old), tt.spec)
			require.NoError(t, err)
			require.True(t, d(tt.want).Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestRoundUpToPoint99(t *testing.T) {
	spec := AdjustmentSpec{Direction: Decrease, AmountKind: Fixed, FixedAmount: decimal.Zero, Rounding: RoundUpToPoint99}

	for in, want := range map[string]string{
		"12.10":  "12.99",
		"12.99":  "12.99",
		"13.00":  "13.99",
		"12.995": "13.99",
	} {
		got, err := Compute(d(in), spec)
		require.NoError(t, err)
		require.True(t, d(want).Equal(got), "%s: want %s got %s", in, want, got)
	}
}

func TestRoundNearestWhole(t *testing.T) {
	require.True(t, d("10").Equal(Round(d("10.40"), RoundNearestWhole)))
	require.True(t, d("11").Equal(Round(d("10.60"), RoundNearestWhole)))
	require.True(t, d("11").Equal(Round(d("10.50"), RoundNearestWhole)))
	require.True(t, d("10").Equal(Round(d("10.99"), RoundDownWhole)))
}

func TestComputeInvalidInput(t *testing.T) {
	_, err := Compute(d("-1"), AdjustmentSpec{Direction: Increase, AmountKind: Fixed})
	require.ErrorIs(t, err, ErrInvalidPrice)

	_, err = Compute(d("1"), AdjustmentSpec{Direction: "sideways", AmountKind: Fixed})
	require.ErrorIs(t, err, ErrInvalidSpec)

	_, err = Compute(d("1"), AdjustmentSpec{Direction: Increase, AmountKind: Percentage, Percentage: d("-5")})
	require.ErrorIs(t, err, ErrInvalidSpec)

	_, err = Compute(d("1"), AdjustmentSpec{Direction: Increase, AmountKind: Fixed, Rounding: "ceil"})
	require.ErrorIs(t, err, ErrInvalidSpec)
}

func TestParsePrice(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -0.01} {
		_, err := ParsePrice(v)
		require.ErrorIs(t, err, ErrInvalidPrice)
	}

	p, err := ParsePrice(12.5)
	require.NoError(t, err)
	require.True(t, d("12.5").Equal(p))

	_, err = ParsePriceString("abc")
	require.ErrorIs(t, err, ErrInvalidPrice)
	p, err = ParsePriceString("7.10")
	require.NoError(t, err)
	require.Equal(t, "7.10", p.StringFixed(2))
}

func TestLabel(t *testing.T) {
	require.Equal(t, "Decrease by 10%", AdjustmentSpec{Direction: Decrease, AmountKind: Percentage, Percentage: d("10")}.Label())
	require.Equal(t, "Increase by $5.00", AdjustmentSpec{Direction: Increase, AmountKind: Fixed, FixedAmount: d("5")}.Label())
}
