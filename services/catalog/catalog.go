package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=catalog.go -destination=mock_catalog.go -package=catalog

// Variant is the identity and current price of a catalog variant.
type Variant struct {
	ID           string          `json:"id"`
	ProductTitle string          `json:"product_title"`
	VariantTitle string          `json:"variant_title"`
	SKU          string          `json:"sku"`
	Price        decimal.Decimal `json:"price"`
}

// Client is the external catalog. GetVariants omits ids the catalog does not
// know; UpdatePrice is called once per line item for both apply and revert.
type Client interface {
	GetVariants(ctx context.Context, tenantID string, ids []string) ([]Variant, error)
	UpdatePrice(ctx context.Context, tenantID, variantID string, price decimal.Decimal) error
}

// APIError is a failed catalog call. Retryable errors (rate limiting,
// timeouts, 5xx) may succeed if repeated; RetryAfter is the delay the catalog
// asked for, zero when it gave none.
type APIError struct {
	Op         string
	VariantID  string
	StatusCode int
	Retryable  bool
	RetryAfter time.Duration
	Message    string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("catalog %s", e.Op)
	if e.VariantID != "" {
		msg += " " + e.VariantID
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	return msg + ": " + e.Message
}

// IsRetryable reports whether err is worth retrying. Context cancellation
// never is.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Retryable
}

// RetryAfter returns the delay hint carried by err, if any.
func RetryAfter(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}
