package plan

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// ErrReadOnly is returned by SetPlan when plans come from an external provider.
var ErrReadOnly = errors.New("plan is managed by an external provider")

// Writer is implemented by lookups that own the plan record.
type Writer interface {
	SetPlan(ctx context.Context, tenantID, planName string) (*TenantPlan, error)
}

type Current struct {
	TenantID string `json:"tenant_id"`
	Tier     Tier   `json:"tier"`
	Limits   Limits `json:"limits"`
}

type Service struct {
	lookup Lookup
	gate   *Gate
	logger *zap.Logger
}

func NewService(lookup Lookup, gate *Gate, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{lookup: lookup, gate: gate, logger: logger}
}

func (s *Service) Current(ctx context.Context, tenantID string) (*Current, error) {
	tier, err := s.lookup.CurrentTier(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &Current{TenantID: tenantID, Tier: tier, Limits: s.gate.Limits(tier)}, nil
}

func (s *Service) SetPlan(ctx context.Context, tenantID, planName string) (*Current, error) {
	w, ok := s.lookup.(Writer)
	if !ok {
		return nil, ErrReadOnly
	}

	p, err := w.SetPlan(ctx, tenantID, strings.TrimSpace(planName))
	if err != nil {
		return nil, err
	}

	return &Current{TenantID: tenantID, Tier: p.Tier, Limits: s.gate.Limits(p.Tier)}, nil
}
