package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"bulkprice/services/catalog"
	"bulkprice/services/plan"
	"bulkprice/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const tenant = "shop-1"

// staticLookup is a plan lookup whose tier can be changed mid-test.
type staticLookup struct {
	mu   sync.Mutex
	tier plan.Tier
}

func (l *staticLookup) CurrentTier(ctx context.Context, tenantID string) (plan.Tier, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tier, nil
}

func (l *staticLookup) set(t plan.Tier) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tier = t
}

type testEnv struct {
	repo      Repository
	catalog   *catalog.Memory
	lookup    *staticLookup
	gate      *plan.Gate
	exec      *Executor
	svc       *Service
	scheduler *Scheduler
}

// slowCatalog delays every price update.
type slowCatalog struct {
	*catalog.Memory
	delay time.Duration
}

func (c *slowCatalog) UpdatePrice(ctx context.Context, tenantID, variantID string, price decimal.Decimal) error {
	select {
	case <-time.After(c.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return c.Memory.UpdatePrice(ctx, tenantID, variantID, price)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil, nil)
}

// newTestEnvWith lets a test put a wrapper in front of the memory catalog
// and adjust the executor options.
func newTestEnvWith(t *testing.T, wrap func(*catalog.Memory) catalog.Client, tune func(*ExecutorOptions)) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t, Models()...)
	repo := NewRepository(db)
	mem := catalog.NewMemory()
	lookup := &staticLookup{tier: plan.TierPro}
	gate := plan.NewGate(plan.DefaultTable(50, 100))
	metrics := NewMetrics(prometheus.NewRegistry())

	var client catalog.Client = mem
	if wrap != nil {
		client = wrap(mem)
	}

	opts := ExecutorOptions{
		Parallelism:    3,
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  5 * time.Millisecond,
		AttemptTimeout: time.Second,
	}
	if tune != nil {
		tune(&opts)
	}
	exec := NewExecutor(repo, client, lookup, gate, opts, metrics, nil)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return &testEnv{
		repo:      repo,
		catalog:   mem,
		lookup:    lookup,
		gate:      gate,
		exec:      exec,
		svc:       NewService(repo, gate, lookup, client, exec, nil, node, nil),
		scheduler: NewScheduler(repo, exec, SchedulerOptions{BatchSize: 10, Workers: 2, StaleAfter: 15 * time.Minute}, metrics, nil),
	}
}

func (e *testEnv) seed(prices map[string]string) {
	for id, p := range prices {
		e.catalog.Seed(tenant, catalog.Variant{
			ID:           id,
			ProductTitle: "Product " + id,
			VariantTitle: "Default",
			SKU:          "SKU-" + id,
			Price:        decimal.RequireFromString(p),
		})
	}
}

func (e *testEnv) price(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	p, ok := e.catalog.Price(tenant, id)
	require.True(t, ok)
	return p
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, dec(want).Equal(got), "want %s got %s", want, got)
}
