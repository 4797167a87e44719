package catalog

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// Memory is an in-process catalog for local development and tests. Failures
// can be injected per variant to exercise retry and partial failure paths.
type Memory struct {
	mu       sync.Mutex
	variants map[string]map[string]Variant
	failures map[string][]error
	updates  int
}

func NewMemory() *Memory {
	return &Memory{
		variants: make(map[string]map[string]Variant),
		failures: make(map[string][]error),
	}
}

func (m *Memory) Seed(tenantID string, variants ...Variant) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID, ok := m.variants[tenantID]
	if !ok {
		byID = make(map[string]Variant)
		m.variants[tenantID] = byID
	}
	for _, v := range variants {
		byID[v.ID] = v
	}
}

// FailNext queues errors returned, in order, by the next UpdatePrice calls
// for variantID.
func (m *Memory) FailNext(variantID string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[variantID] = append(m.failures[variantID], errs...)
}

// Price returns the current price of a variant.
func (m *Memory) Price(tenantID, variantID string) (decimal.Decimal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.variants[tenantID][variantID]
	return v.Price, ok
}

// Updates counts successful UpdatePrice calls.
func (m *Memory) Updates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}

func (m *Memory) GetVariants(ctx context.Context, tenantID string, ids []string) ([]Variant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Variant, 0, len(ids))
	for _, id := range ids {
		if v, ok := m.variants[tenantID][id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *Memory) UpdatePrice(ctx context.Context, tenantID, variantID string, price decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if queued := m.failures[variantID]; len(queued) > 0 {
		m.failures[variantID] = queued[1:]
		return queued[0]
	}

	v, ok := m.variants[tenantID][variantID]
	if !ok {
		return &APIError{Op: "update_price", VariantID: variantID, StatusCode: 404, Message: "variant not found"}
	}

	v.Price = price
	m.variants[tenantID][variantID] = v
	m.updates++
	return nil
}

var _ Client = (*Memory)(nil)
