package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	asynqx "bulkprice/pkg/asynq"
	"bulkprice/pkg/config"
	"bulkprice/pkg/db"
	"bulkprice/pkg/featureflags"
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

// The worker runs the poll loop and the asynq wake-up handlers. It serves
// only the health and metrics endpoints over HTTP.
func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		asynqx.Server,
		featureflags.Module,
		server.ProvideHTTPServer,
		httpapi.Module,
		catalog.Module,
		plan.Module,
		schedule.Module,
		schedule.WorkerModule,
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
