package featureflags

import (
	"context"
	"errors"

	"bulkprice/pkg/config"

	"github.com/Flagsmith/flagsmith-go-client/v2"
	"go.uber.org/fx"
)

var Module = fx.Module("featureflags", fx.Provide(ProvideFeatureFlag))

// ErrDisabled is returned when no Flagsmith environment key is configured.
var ErrDisabled = errors.New("feature flags disabled")

type FeatureFlag interface {
	// Value returns the remote config value of feature for the identity.
	Value(ctx context.Context, identifier, feature string, traits ...*flagsmith.Trait) (any, error)
}

type featureflag struct {
	client *flagsmith.Client
}

type FeatureParams struct {
	fx.In
	Config *config.Config
}

func ProvideFeatureFlag(p FeatureParams) FeatureFlag {
	if p.Config.Flagsmith.ApiKey == "" {
		return &featureflag{}
	}

	opts := []flagsmith.Option{
		flagsmith.WithAnalytics(),
	}
	if p.Config.Flagsmith.Addr != "" {
		opts = append(opts, flagsmith.WithBaseURL(p.Config.Flagsmith.Addr))
	}

	return &featureflag{
		client: flagsmith.NewClient(p.Config.Flagsmith.ApiKey, opts...),
	}
}

func (s *featureflag) Value(ctx context.Context, identifier, feature string, traits ...*flagsmith.Trait) (any, error) {
	if s.client == nil {
		return nil, ErrDisabled
	}

	var traitSlice []*flagsmith.Trait
	if len(traits) > 0 {
		traitSlice = traits
	}

	flags, err := s.client.GetIdentityFlags(identifier, traitSlice)
	if err != nil {
		return nil, err
	}

	return flags.GetFeatureValue(feature)
}
