package plan

import (
	"context"
	"errors"
	"testing"

	"bulkprice/pkg/featureflags"
	"bulkprice/services/testutil"

	"github.com/Flagsmith/flagsmith-go-client/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestDatabaseLookup(t *testing.T) {
	db := testutil.NewTestDB(t, &TenantPlan{})
	lookup := NewDatabaseLookup(NewRepository(db), nil, 0, nil)
	ctx := context.Background()

	tier, err := lookup.CurrentTier(ctx, "shop-1")
	require.NoError(t, err)
	require.Equal(t, TierFree, tier)

	p, err := lookup.SetPlan(ctx, "shop-1", "Plus Annual")
	require.NoError(t, err)
	require.Equal(t, TierPlus, p.Tier)

	tier, err = lookup.CurrentTier(ctx, "shop-1")
	require.NoError(t, err)
	require.Equal(t, TierPlus, tier)

	_, err = lookup.SetPlan(ctx, "shop-1", "Pro")
	require.NoError(t, err)

	tier, err = lookup.CurrentTier(ctx, "shop-1")
	require.NoError(t, err)
	require.Equal(t, TierPro, tier)

	tier, err = lookup.CurrentTier(ctx, "shop-2")
	require.NoError(t, err)
	require.Equal(t, TierFree, tier)
}

type fakeFlags struct {
	value any
	err   error
}

func (f fakeFlags) Value(ctx context.Context, identifier, feature string, traits ...*flagsmith.Trait) (any, error) {
	return f.value, f.err
}

var _ featureflags.FeatureFlag = fakeFlags{}

func TestFlagsmithLookup(t *testing.T) {
	ctx := context.Background()

	tier, err := NewFlagsmithLookup(fakeFlags{value: "Shopify Plus"}).CurrentTier(ctx, "shop-1")
	require.NoError(t, err)
	require.Equal(t, TierPlus, tier)

	tier, err = NewFlagsmithLookup(fakeFlags{value: 42.0}).CurrentTier(ctx, "shop-1")
	require.NoError(t, err)
	require.Equal(t, TierFree, tier)

	_, err = NewFlagsmithLookup(fakeFlags{err: errors.New("boom")}).CurrentTier(ctx, "shop-1")
	require.Error(t, err)
}

func TestServiceSetPlanReadOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	lookup := NewMockLookup(ctrl)
	lookup.EXPECT().CurrentTier(gomock.Any(), "shop-1").Return(TierPro, nil)

	svc := NewService(lookup, NewGate(DefaultTable(50, 100)), nil)

	cur, err := svc.Current(context.Background(), "shop-1")
	require.NoError(t, err)
	require.Equal(t, Unlimited, cur.Limits.MaxItems)

	_, err = svc.SetPlan(context.Background(), "shop-1", "Free")
	require.ErrorIs(t, err, ErrReadOnly)
}
