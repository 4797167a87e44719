package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *GraphQLClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return NewGraphQLClient(GraphQLOptions{
		Endpoint:    srv.URL + "/" + TenantPlaceholder + "/graphql.json",
		AccessToken: "token",
		Timeout:     time.Second,
	})
}

func TestGetVariants(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/shop-1/graphql.json", r.URL.Path)
		require.Equal(t, "token", r.Header.Get(accessTokenHdr))

		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Contains(t, req.Query, "nodes(ids: $ids)")

		_, _ = w.Write([]byte(`{"data":{"nodes":[
			{"id":"v1","title":"Small","sku":"TS-S","price":"12.50","product":{"title":"T-Shirt"}},
			null,
			{}
		]}}`))
	})

	variants, err := c.GetVariants(context.Background(), "shop-1", []string{"v1", "v2", "p1"})
	require.NoError(t, err)
	require.Len(t, variants, 1)
	require.Equal(t, "T-Shirt", variants[0].ProductTitle)
	require.Equal(t, "Small", variants[0].VariantTitle)
	require.Equal(t, "TS-S", variants[0].SKU)
	require.True(t, decimal.RequireFromString("12.50").Equal(variants[0].Price))
}

func TestUpdatePriceSendsFixedPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		input := req.Variables["input"].(map[string]any)
		require.Equal(t, "v1", input["id"])
		require.Equal(t, "9.90", input["price"])

		_, _ = w.Write([]byte(`{"data":{"productVariantUpdate":{"productVariant":{"id":"v1","price":"9.90"},"userErrors":[]}}}`))
	})

	require.NoError(t, c.UpdatePrice(context.Background(), "shop-1", "v1", decimal.RequireFromString("9.9")))
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		header     string
		body       string
		retryable  bool
		retryAfter time.Duration
	}{
		{name: "rate limited with hint", status: http.StatusTooManyRequests, header: "2", body: "slow down", retryable: true, retryAfter: 2 * time.Second},
		{name: "server error", status: http.StatusBadGateway, body: "upstream", retryable: true},
		{name: "client error", status: http.StatusForbidden, body: "no scope"},
		{name: "throttled graphql error", status: http.StatusOK, body: `{"errors":[{"message":"Throttled","extensions":{"code":"THROTTLED"}}]}`, retryable: true},
		{name: "other graphql error", status: http.StatusOK, body: `{"errors":[{"message":"Invalid id"}]}`},
		{name: "user errors", status: http.StatusOK, body: `{"data":{"productVariantUpdate":{"userErrors":[{"field":["price"],"message":"Price is invalid"}]}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.header != "" {
					w.Header().Set("Retry-After", tt.header)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			err := c.UpdatePrice(context.Background(), "shop-1", "v1", decimal.NewFromInt(1))
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, "v1", apiErr.VariantID)
			require.Equal(t, tt.retryable, IsRetryable(err))
			require.Equal(t, tt.retryAfter, RetryAfter(err))
		})
	}
}

func TestIsRetryableContext(t *testing.T) {
	require.False(t, IsRetryable(context.Canceled))
	require.True(t, IsRetryable(context.DeadlineExceeded))
	require.False(t, IsRetryable(nil))
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	require.Equal(t, 1500*time.Millisecond, parseRetryAfter("1.5", now))
	require.Equal(t, time.Duration(0), parseRetryAfter("", now))
	require.Equal(t, time.Duration(0), parseRetryAfter("garbage", now))
	require.Equal(t, 30*time.Second, parseRetryAfter(now.Add(30*time.Second).Format(http.TimeFormat), now))
}
