package schedule

import (
	"strings"
	"time"

	"bulkprice/services/plan"
)

// WindowInput is the timing part of a submission as sent by the caller.
// Times are RFC3339 strings and are parsed here, never trusted pre-parsed.
type WindowInput struct {
	Mode          string `json:"mode"`
	RunAt         string `json:"run_at"`
	RevertEnabled bool   `json:"revert_enabled"`
	RevertAt      string `json:"revert_at"`
}

// Window is a validated WindowInput. RunAt is the submission time for ModeNow.
type Window struct {
	Mode          Mode
	RunAt         time.Time
	RevertEnabled bool
	RevertAt      *time.Time
}

// Scheduled reports whether the window defers any work.
func (w Window) Scheduled() bool {
	return w.Mode == ModeLater || w.RevertEnabled
}

type Validator struct {
	gate *plan.Gate
}

func NewValidator(gate *plan.Gate) *Validator {
	return &Validator{gate: gate}
}

// Validate checks, in order: items, mode, runAt, revertAt and finally the
// plan's scheduling capability. It stops at the first failure.
func (v *Validator) Validate(now time.Time, tier plan.Tier, in WindowInput, variantIDs []string) (Window, error) {
	if len(variantIDs) == 0 {
		return Window{}, invalid(RuleItemsEmpty, "at least one variant is required")
	}
	seen := make(map[string]struct{}, len(variantIDs))
	for _, id := range variantIDs {
		if strings.TrimSpace(id) == "" {
			return Window{}, invalid(RuleItemsEmpty, "variant id must not be blank")
		}
		if _, dup := seen[id]; dup {
			return Window{}, invalid(RuleItemsDuplicate, "variant %s is listed more than once", id)
		}
		seen[id] = struct{}{}
	}

	w := Window{
		Mode:          Mode(strings.ToLower(strings.TrimSpace(in.Mode))),
		RevertEnabled: in.RevertEnabled,
	}

	switch w.Mode {
	case ModeNow:
		w.RunAt = now
	case ModeLater:
		if strings.TrimSpace(in.RunAt) == "" {
			return Window{}, invalid(RuleRunAtMissing, "run_at is required when mode is later")
		}
		runAt, err := time.Parse(time.RFC3339, strings.TrimSpace(in.RunAt))
		if err != nil {
			return Window{}, invalid(RuleRunAtInvalid, "run_at %q is not an RFC3339 timestamp", in.RunAt)
		}
		if !runAt.After(now) {
			return Window{}, invalid(RuleRunAtNotFuture, "run_at must be in the future")
		}
		w.RunAt = runAt.UTC()
	default:
		return Window{}, invalid(RuleModeInvalid, "mode must be %q or %q", ModeNow, ModeLater)
	}

	if w.RevertEnabled {
		if strings.TrimSpace(in.RevertAt) == "" {
			return Window{}, invalid(RuleRevertAtMissing, "revert_at is required when revert is enabled")
		}
		revertAt, err := time.Parse(time.RFC3339, strings.TrimSpace(in.RevertAt))
		if err != nil {
			return Window{}, invalid(RuleRevertAtInvalid, "revert_at %q is not an RFC3339 timestamp", in.RevertAt)
		}
		if !revertAt.After(w.RunAt) {
			return Window{}, invalid(RuleRevertAtNotAfterRunAt, "revert_at must be after run_at")
		}
		revertAt = revertAt.UTC()
		w.RevertAt = &revertAt
	}

	if w.Scheduled() {
		if err := v.gate.Authorize(tier, plan.Request{Scheduled: true}); err != nil {
			return Window{}, err
		}
	}

	return w, nil
}
