package schedule

import (
	"errors"
	"net/http"

	"bulkprice/pkg/db/pagination"
	"bulkprice/pkg/errutil"
	"bulkprice/pkg/middleware"
	"bulkprice/services/catalog"
	"bulkprice/services/plan"

	"github.com/gin-gonic/gin"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r gin.IRouter) {
	r.POST("/prices/preview", h.Preview)
	r.POST("/schedules", h.Submit)
	r.GET("/schedules", h.List)
	r.GET("/schedules/:id", h.Get)
	r.POST("/schedules/:id/retry", h.Retry)
}

func (h *Handler) Preview(c *gin.Context) {
	var req ItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	out, err := h.svc.Preview(c.Request.Context(), middleware.TenantID(c), req)
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}
	req.IdempotencyKey = c.GetHeader(IdempotencyKeyHeader)

	sc, err := h.svc.Submit(c.Request.Context(), middleware.TenantID(c), req)
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}

	status := http.StatusAccepted
	if sc.Mode == ModeNow {
		status = http.StatusCreated
	}
	c.JSON(status, sc)
}

func (h *Handler) List(c *gin.Context) {
	var p pagination.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		_ = c.Error(errutil.BadRequest("invalid pagination", err))
		return
	}

	rows, info, err := h.svc.List(c.Request.Context(), middleware.TenantID(c), p)
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "page_info": info})
}

func (h *Handler) Get(c *gin.Context) {
	out, err := h.svc.Get(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Retry(c *gin.Context) {
	sc, err := h.svc.Retry(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}
	c.JSON(http.StatusAccepted, sc)
}

// toHTTPError maps domain errors onto the errutil taxonomy. Missing and
// foreign schedules produce the same response.
func toHTTPError(err error) error {
	var (
		verr     *ValidationError
		conflict *ConflictError
		apiErr   *catalog.APIError
	)

	if denied, ok := plan.IsDenied(err); ok {
		return errutil.Forbidden(denied.Message, err, errutil.WithDetails(
			errutil.Detail{Field: "limit", Message: string(denied.Limit)},
			errutil.Detail{Field: "plan", Message: string(denied.Plan)},
		))
	}

	switch {
	case errors.As(err, &verr):
		return errutil.ValidationFailed(verr.Message, err, errutil.WithDetails(errutil.Detail{Field: "rule", Message: string(verr.Rule)}))
	case errors.As(err, &conflict):
		return errutil.Conflict("a schedule with the same idempotency key already exists", err,
			errutil.WithDetails(errutil.Detail{Field: "schedule_id", Message: conflict.ExistingID}))
	case errors.Is(err, ErrConflict):
		return errutil.Conflict("a schedule with the same idempotency key already exists", err)
	case errors.Is(err, ErrNotFound):
		return errutil.NotFound("schedule not found", nil)
	case errors.Is(err, ErrNotRetryable):
		return errutil.Conflict(err.Error(), err)
	case errors.Is(err, pagination.ErrInvalidCursor):
		return errutil.BadRequest("invalid cursor", err)
	case errors.As(err, &apiErr):
		return errutil.BadGateway("catalog request failed", err)
	}
	return err
}
