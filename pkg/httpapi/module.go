package httpapi

import (
	"bulkprice/pkg/health"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// Module exposes the operational endpoints shared by the api and worker.
var Module = fx.Module("httpapi",
	health.Module,
	fx.Invoke(registerOpsEndpoints),
)

func registerOpsEndpoints(r *gin.Engine, h health.HealthService) {
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
