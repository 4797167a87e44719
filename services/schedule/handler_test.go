package schedule

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bulkprice/pkg/middleware"
	"bulkprice/services/plan"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTestRouter(env *testEnv) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Error())
	NewHandler(env.svc).Register(r.Group("/v1", middleware.Tenant()))
	return r
}

func doRequest(r http.Handler, method, path, tenantID, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if tenantID != "" {
		req.Header.Set(middleware.TenantHeader, tenantID)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

const nowBody = `{
	"variant_ids": ["v1", "v2"],
	"adjustment": {"direction": "decrease", "amount_kind": "percentage", "percentage": "10", "rounding": "none"},
	"window": {"mode": "now"}
}`

func TestHandlerSubmitAndGet(t *testing.T) {
	env := newTestEnv(t)
	env.seed(map[string]string{"v1": "10.00", "v2": "20.00"})
	r := newTestRouter(env)

	w := doRequest(r, http.MethodPost, "/v1/schedules", tenant, nowBody, IdempotencyKeyHeader, "k-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Equal(t, string(StatusDone), created.Status)

	w = doRequest(r, http.MethodGet, "/v1/schedules/"+created.ID, tenant, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"label":"Decrease by 10%"`)

	w = doRequest(r, http.MethodPost, "/v1/schedules", tenant, nowBody, IdempotencyKeyHeader, "k-1")
	require.Equal(t, http.StatusConflict, w.Code)
	body := decodeError(t, w)
	require.Equal(t, "conflict", body.Error.Code)
	require.Equal(t, created.ID, body.Error.Details[0].Message)

	w = doRequest(r, http.MethodGet, "/v1/schedules?limit=10", tenant, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), created.ID)
	require.Contains(t, w.Body.String(), `"page_info"`)
}

func TestHandlerSubmitLaterIsAccepted(t *testing.T) {
	env := newTestEnv(t)
	env.seed(map[string]string{"v1": "10.00"})
	r := newTestRouter(env)

	body := `{
		"variant_ids": ["v1"],
		"adjustment": {"direction": "decrease", "amount_kind": "fixed", "fixed_amount": "1"},
		"window": {"mode": "later", "run_at": "` + time.Now().Add(time.Hour).UTC().Format(time.RFC3339) + `"}
	}`
	w := doRequest(r, http.MethodPost, "/v1/schedules", tenant, body)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), `"status":"pending"`)
}

func TestHandlerForeignAndMissingSchedulesLookAlike(t *testing.T) {
	env := newTestEnv(t)
	r := newTestRouter(env)
	require.NoError(t, env.repo.Create(context.Background(), newSchedule("s1", "other-shop", time.Now().Add(time.Hour), StatusPending)))

	foreign := doRequest(r, http.MethodGet, "/v1/schedules/s1", tenant, "")
	missing := doRequest(r, http.MethodGet, "/v1/schedules/nope", tenant, "")

	require.Equal(t, http.StatusNotFound, foreign.Code)
	require.Equal(t, http.StatusNotFound, missing.Code)
	require.JSONEq(t, missing.Body.String(), foreign.Body.String())

	retry := doRequest(r, http.MethodPost, "/v1/schedules/s1/retry", tenant, "")
	require.Equal(t, http.StatusNotFound, retry.Code)
	require.JSONEq(t, missing.Body.String(), retry.Body.String())
}

func TestHandlerValidationFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seed(map[string]string{"v1": "10.00"})
	r := newTestRouter(env)

	body := `{
		"variant_ids": ["v1"],
		"adjustment": {"direction": "decrease", "amount_kind": "percentage", "percentage": "10"},
		"window": {"mode": "later", "run_at": "tomorrow"}
	}`
	w := doRequest(r, http.MethodPost, "/v1/schedules", tenant, body)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	e := decodeError(t, w)
	require.Equal(t, "validation_failed", e.Error.Code)
	require.Equal(t, "rule", e.Error.Details[0].Field)
	require.Equal(t, string(RuleRunAtInvalid), e.Error.Details[0].Message)
}

func TestHandlerPlanDenied(t *testing.T) {
	env := newTestEnv(t)
	env.seed(map[string]string{"v1": "10.00", "v2": "20.00"})
	env.lookup.set(plan.TierFree)
	r := newTestRouter(env)

	body := `{
		"variant_ids": ["v1"],
		"adjustment": {"direction": "increase", "amount_kind": "percentage", "percentage": "10"},
		"window": {"mode": "now"}
	}`
	w := doRequest(r, http.MethodPost, "/v1/schedules", tenant, body)
	require.Equal(t, http.StatusForbidden, w.Code)

	e := decodeError(t, w)
	require.Equal(t, "forbidden", e.Error.Code)
	require.Equal(t, "limit", e.Error.Details[0].Field)
	require.Equal(t, string(plan.LimitIncrease), e.Error.Details[0].Message)
	require.Equal(t, string(plan.TierFree), e.Error.Details[1].Message)
	require.Equal(t, 0, env.catalog.Updates())
}

func TestHandlerPreview(t *testing.T) {
	env := newTestEnv(t)
	env.seed(map[string]string{"v1": "10.00", "v2": "20.00"})
	r := newTestRouter(env)

	body := `{"variant_ids": ["v1", "v2"], "adjustment": {"direction": "decrease", "amount_kind": "percentage", "percentage": "50"}}`
	w := doRequest(r, http.MethodPost, "/v1/prices/preview", tenant, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var p struct {
		Totals struct {
			OldTotal string `json:"old_total"`
			NewTotal string `json:"new_total"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	requireDecimal(t, "30", dec(p.Totals.OldTotal))
	requireDecimal(t, "15", dec(p.Totals.NewTotal))
}

func TestHandlerRequiresTenant(t *testing.T) {
	env := newTestEnv(t)
	r := newTestRouter(env)

	w := doRequest(r, http.MethodGet, "/v1/schedules", "", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandlerRetryNotRetryable(t *testing.T) {
	env := newTestEnv(t)
	r := newTestRouter(env)
	require.NoError(t, env.repo.Create(context.Background(), newSchedule("s1", tenant, time.Now().Add(time.Hour), StatusPending)))

	w := doRequest(r, http.MethodPost, "/v1/schedules/s1/retry", tenant, "")
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestHandlerInvalidCursor(t *testing.T) {
	env := newTestEnv(t)
	r := newTestRouter(env)

	w := doRequest(r, http.MethodGet, "/v1/schedules?cursor=!!!", tenant, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}
