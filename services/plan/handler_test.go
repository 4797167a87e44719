package plan

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bulkprice/pkg/middleware"
	"bulkprice/services/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestHandlerGetAndPut(t *testing.T) {
	db := testutil.NewTestDB(t, &TenantPlan{})
	svc := NewService(NewDatabaseLookup(NewRepository(db), nil, 0, nil), NewGate(DefaultTable(50, 100)), nil)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Error())
	NewHandler(svc).Register(r.Group("/v1", middleware.Tenant()))

	do := func(method, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/v1/plan", strings.NewReader(body))
		req.Header.Set(middleware.TenantHeader, "shop-1")
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodGet, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"tenant_id":"shop-1","tier":"free","limits":{"max_items":50,"increase_allowed":false,"scheduling_allowed":false}}`, w.Body.String())

	w = do(http.MethodPut, `{"plan_name":"Pro Monthly"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"tier":"pro"`)
	require.Contains(t, w.Body.String(), `"max_items":-1`)

	w = do(http.MethodPut, `not json`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
