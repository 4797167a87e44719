package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const (
	variantsQuery = `query VariantsByIds($ids: [ID!]!) {
  nodes(ids: $ids) {
    ... on ProductVariant {
      id
      title
      sku
      price
      product { title }
    }
  }
}`

	updatePriceMutation = `mutation VariantPriceUpdate($input: ProductVariantInput!) {
  productVariantUpdate(input: $input) {
    productVariant { id price }
    userErrors { field message }
  }
}`

	// TenantPlaceholder in the endpoint is replaced with the tenant id, so a
	// single deployment can address per-shop admin endpoints.
	TenantPlaceholder = "{tenant}"

	throttledCode  = "THROTTLED"
	accessTokenHdr = "X-Shopify-Access-Token"
)

type GraphQLOptions struct {
	Endpoint    string
	AccessToken string
	Timeout     time.Duration
	RateLimit   float64
	Burst       int
	Transport   http.RoundTripper
}

// GraphQLClient talks to a GraphQL admin API. Calls are rate limited per
// tenant before they leave the process.
type GraphQLClient struct {
	endpoint    string
	accessToken string
	httpClient  *http.Client
	limit       rate.Limit
	burst       int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewGraphQLClient(opts GraphQLOptions) *GraphQLClient {
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &GraphQLClient{
		endpoint:    opts.Endpoint,
		accessToken: opts.AccessToken,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

type variantNode struct {
	ID      string          `json:"id"`
	Title   string          `json:"title"`
	SKU     string          `json:"sku"`
	Price   decimal.Decimal `json:"price"`
	Product struct {
		Title string `json:"title"`
	} `json:"product"`
}

func (c *GraphQLClient) GetVariants(ctx context.Context, tenantID string, ids []string) ([]Variant, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var data struct {
		Nodes []*variantNode `json:"nodes"`
	}
	if err := c.do(ctx, "get_variants", tenantID, "", variantsQuery, map[string]any{"ids": ids}, &data); err != nil {
		return nil, err
	}

	variants := make([]Variant, 0, len(data.Nodes))
	for _, n := range data.Nodes {
		if n == nil || n.ID == "" {
			continue
		}
		variants = append(variants, Variant{
			ID:           n.ID,
			ProductTitle: n.Product.Title,
			VariantTitle: n.Title,
			SKU:          n.SKU,
			Price:        n.Price,
		})
	}
	return variants, nil
}

func (c *GraphQLClient) UpdatePrice(ctx context.Context, tenantID, variantID string, price decimal.Decimal) error {
	var data struct {
		ProductVariantUpdate struct {
			UserErrors []struct {
				Field   []string `json:"field"`
				Message string   `json:"message"`
			} `json:"userErrors"`
		} `json:"productVariantUpdate"`
	}

	vars := map[string]any{
		"input": map[string]any{
			"id":    variantID,
			"price": price.StringFixed(2),
		},
	}
	if err := c.do(ctx, "update_price", tenantID, variantID, updatePriceMutation, vars, &data); err != nil {
		return err
	}

	if errs := data.ProductVariantUpdate.UserErrors; len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Message)
		}
		return &APIError{Op: "update_price", VariantID: variantID, Message: strings.Join(msgs, "; ")}
	}
	return nil
}

func (c *GraphQLClient) do(ctx context.Context, op, tenantID, variantID, query string, vars map[string]any, out any) error {
	if err := c.limiter(tenantID).Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("catalog %s: marshal request: %w", op, err)
	}

	endpoint := strings.ReplaceAll(c.endpoint, TenantPlaceholder, tenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("catalog %s: create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.accessToken != "" {
		req.Header.Set(accessTokenHdr, c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &APIError{Op: op, VariantID: variantID, Retryable: true, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{
			Op:         op,
			VariantID:  variantID,
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			Message:    strings.TrimSpace(string(msg)),
		}
	}

	var gr graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return &APIError{Op: op, VariantID: variantID, StatusCode: resp.StatusCode, Message: "decode response: " + err.Error()}
	}

	if len(gr.Errors) > 0 {
		apiErr := &APIError{Op: op, VariantID: variantID, StatusCode: resp.StatusCode}
		msgs := make([]string, 0, len(gr.Errors))
		for _, e := range gr.Errors {
			if e.Extensions.Code == throttledCode {
				apiErr.Retryable = true
			}
			msgs = append(msgs, e.Message)
		}
		apiErr.Message = strings.Join(msgs, "; ")
		return apiErr
	}

	if out != nil && len(gr.Data) > 0 {
		if err := json.Unmarshal(gr.Data, out); err != nil {
			return &APIError{Op: op, VariantID: variantID, StatusCode: resp.StatusCode, Message: "decode data: " + err.Error()}
		}
	}
	return nil
}

func (c *GraphQLClient) limiter(tenantID string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[tenantID]
	if !ok {
		l = rate.NewLimiter(c.limit, c.burst)
		c.limiters[tenantID] = l
	}
	return l
}

// parseRetryAfter accepts both delay-seconds and HTTP-date forms.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

var _ Client = (*GraphQLClient)(nil)
