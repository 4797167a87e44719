package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	asynqx "bulkprice/pkg/asynq"
	"bulkprice/pkg/config"
	"bulkprice/pkg/db"
	"bulkprice/pkg/featureflags"
	"bulkprice/pkg/gen"
	"bulkprice/pkg/httpapi"
	"bulkprice/pkg/logger"
	"bulkprice/pkg/otelcol"
	"bulkprice/pkg/profiling"
	"bulkprice/pkg/redis"
	"bulkprice/pkg/server"
	"bulkprice/services/catalog"
	"bulkprice/services/plan"
	"bulkprice/services/schedule"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		asynqx.Client,
		gen.Module,
		featureflags.Module,
		server.ProvideHTTPServer,
		httpapi.Module,
		catalog.Module,
		plan.Module,
		plan.HTTPModule,
		schedule.Module,
		schedule.HTTPModule,
		fx.Invoke(migrate),
		fxLogger,
	)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.AppEnv == "production" {
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: logger}
})

func migrate(db *gorm.DB) error {
	if err := plan.AutoMigrate(db); err != nil {
		return err
	}
	if err := schedule.AutoMigrate(db); err != nil {
		return err
	}
	zap.L().Info("[DB] schema migrated")
	return nil
}
