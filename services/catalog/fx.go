package catalog

import (
	"bulkprice/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("catalog",
	fx.Provide(ProvideClient),
)

func ProvideClient(cfg *config.Config) Client {
	if cfg.Catalog.Provider == "memory" {
		zap.L().Warn("[Catalog] using in-memory catalog, price updates are not persisted")
		return NewMemory()
	}

	return NewGraphQLClient(GraphQLOptions{
		Endpoint:    cfg.Catalog.Endpoint,
		AccessToken: cfg.Catalog.AccessToken,
		Timeout:     cfg.Catalog.Timeout,
		RateLimit:   cfg.Catalog.RateLimit,
		Burst:       cfg.Catalog.Burst,
	})
}
