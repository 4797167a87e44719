package plan

import (
	"errors"
	"net/http"

	"bulkprice/pkg/errutil"
	"bulkprice/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/plan", h.Get)
	r.PUT("/plan", h.Put)
}

func (h *Handler) Get(c *gin.Context) {
	cur, err := h.svc.Current(c.Request.Context(), middleware.TenantID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cur)
}

type setPlanRequest struct {
	PlanName string `json:"plan_name"`
}

func (h *Handler) Put(c *gin.Context) {
	var req setPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	cur, err := h.svc.SetPlan(c.Request.Context(), middleware.TenantID(c), req.PlanName)
	if errors.Is(err, ErrReadOnly) {
		_ = c.Error(errutil.Conflict(err.Error(), err))
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cur)
}
