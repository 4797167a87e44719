package plan

import (
	"context"
	"fmt"

	"bulkprice/pkg/featureflags"

	"github.com/Flagsmith/flagsmith-go-client/v2"
)

// PlanFeature is the Flagsmith remote config holding the billing plan name
// for an identity (the tenant id).
const PlanFeature = "plan_tier"

// FlagsmithLookup reads the plan from a Flagsmith identity flag. Billing
// integrations that already segment tenants in Flagsmith use this instead of
// the tenant_plans table.
type FlagsmithLookup struct {
	flags featureflags.FeatureFlag
}

func NewFlagsmithLookup(flags featureflags.FeatureFlag) *FlagsmithLookup {
	return &FlagsmithLookup{flags: flags}
}

func (l *FlagsmithLookup) CurrentTier(ctx context.Context, tenantID string) (Tier, error) {
	v, err := l.flags.Value(ctx, tenantID, PlanFeature, &flagsmith.Trait{TraitKey: "tenant_id", TraitValue: tenantID})
	if err != nil {
		return "", fmt.Errorf("flagsmith plan lookup: %w", err)
	}

	name, ok := v.(string)
	if !ok {
		return TierFree, nil
	}

	return ParseTier(name), nil
}
