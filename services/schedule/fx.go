package schedule

import (
	"context"

	asynqx "bulkprice/pkg/asynq"
	"bulkprice/pkg/config"
	"bulkprice/pkg/middleware"
	"bulkprice/services/catalog"
	"bulkprice/services/plan"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module provides the store and the executor shared by the api and worker.
var Module = fx.Module("schedule",
	fx.Provide(
		NewRepository,
		ProvideMetrics,
		ProvideExecutor,
	),
)

// HTTPModule serves the schedule API.
var HTTPModule = fx.Module("schedule.http",
	fx.Provide(
		ProvideWaker,
		ProvideService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)

// WorkerModule runs the poll loop and the wake-up task handlers.
var WorkerModule = fx.Module("schedule.worker",
	fx.Provide(
		ProvideScheduler,
		NewTaskHandler,
	),
	fx.Invoke(
		RegisterTaskHandlers,
		StartScheduler,
	),
)

func ProvideMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}

type ExecutorParams struct {
	fx.In

	Config  *config.Config
	Repo    Repository
	Catalog catalog.Client
	Lookup  plan.Lookup
	Gate    *plan.Gate
	Metrics *Metrics
	Logger  *zap.Logger
}

func ProvideExecutor(p ExecutorParams) *Executor {
	cfg := p.Config.Executor
	return NewExecutor(p.Repo, p.Catalog, p.Lookup, p.Gate, ExecutorOptions{
		Parallelism:    cfg.Parallelism,
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
		AttemptTimeout: cfg.AttemptTimeout,
		Heartbeat:      cfg.Heartbeat,
	}, p.Metrics, p.Logger)
}

type WakerParams struct {
	fx.In

	Enqueuer asynqx.Enqueuer `optional:"true"`
}

func ProvideWaker(p WakerParams) Waker {
	if p.Enqueuer == nil {
		return NopWaker()
	}
	return NewAsynqWaker(p.Enqueuer)
}

type ServiceParams struct {
	fx.In

	Repo     Repository
	Gate     *plan.Gate
	Lookup   plan.Lookup
	Catalog  catalog.Client
	Executor *Executor
	Waker    Waker
	Node     *snowflake.Node
	Logger   *zap.Logger
}

func ProvideService(p ServiceParams) *Service {
	return NewService(p.Repo, p.Gate, p.Lookup, p.Catalog, p.Executor, p.Waker, p.Node, p.Logger)
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	h.Register(r.Group("/v1", middleware.Tenant()))
}

type SchedulerParams struct {
	fx.In

	Config   *config.Config
	Repo     Repository
	Executor *Executor
	Metrics  *Metrics
	Logger   *zap.Logger
}

func ProvideScheduler(p SchedulerParams) *Scheduler {
	cfg := p.Config.Scheduler
	return NewScheduler(p.Repo, p.Executor, SchedulerOptions{
		PollInterval: cfg.PollInterval,
		BatchSize:    cfg.BatchSize,
		Workers:      cfg.Workers,
		StaleAfter:   cfg.StaleAfter,
	}, p.Metrics, p.Logger)
}

func RegisterTaskHandlers(mux *asynq.ServeMux, h *TaskHandler) {
	h.Register(mux)
}

func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return s.Stop(ctx)
		},
	})
}

// AutoMigrate creates the schedule tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
