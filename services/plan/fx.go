package plan

import (
	"bulkprice/pkg/config"
	"bulkprice/pkg/featureflags"
	"bulkprice/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("plan",
	fx.Provide(
		NewRepository,
		ProvideGate,
		ProvideLookup,
		ProvideService,
	),
)

var HTTPModule = fx.Module("plan.http",
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)

func ProvideGate(cfg *config.Config) *Gate {
	return NewGate(DefaultTable(cfg.Plans.FreeMaxItems, cfg.Plans.PlusMaxItems))
}

type LookupParams struct {
	fx.In

	Config *config.Config
	Repo   Repository
	Redis  *redis.Client            `optional:"true"`
	Flags  featureflags.FeatureFlag `optional:"true"`
	Logger *zap.Logger
}

func ProvideLookup(p LookupParams) Lookup {
	if p.Config.Plans.Provider == "flagsmith" && p.Flags != nil {
		return NewFlagsmithLookup(p.Flags)
	}
	return NewDatabaseLookup(p.Repo, p.Redis, p.Config.Plans.CacheTTL, p.Logger)
}

type ServiceParams struct {
	fx.In

	Lookup Lookup
	Gate   *Gate
	Logger *zap.Logger
}

func ProvideService(p ServiceParams) *Service {
	return NewService(p.Lookup, p.Gate, p.Logger)
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	h.Register(r.Group("/v1", middleware.Tenant()))
}

// AutoMigrate creates the tenant_plans table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&TenantPlan{})
}
