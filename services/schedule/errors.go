package schedule

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("schedule not found")
	ErrConflict        = errors.New("schedule already exists")
	ErrStaleTransition = errors.New("schedule status changed concurrently")
	ErrNotRetryable    = errors.New("schedule is not in a retryable state")
)

// Rule identifies the validation check that rejected a submission.
type Rule string

const (
	RuleItemsEmpty            Rule = "items_empty"
	RuleItemsDuplicate        Rule = "items_duplicate"
	RuleModeInvalid           Rule = "mode_invalid"
	RuleRunAtMissing          Rule = "run_at_missing"
	RuleRunAtInvalid          Rule = "run_at_invalid"
	RuleRunAtNotFuture        Rule = "run_at_not_future"
	RuleRevertAtMissing       Rule = "revert_at_missing"
	RuleRevertAtInvalid       Rule = "revert_at_invalid"
	RuleRevertAtNotAfterRunAt Rule = "revert_at_not_after_run_at"
	RuleVariantUnknown        Rule = "variant_unknown"
	RuleSpecInvalid           Rule = "spec_invalid"
)

type ValidationError struct {
	Rule    Rule
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

func invalid(rule Rule, format string, args ...any) *ValidationError {
	return &ValidationError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// ConflictError carries the id of the schedule that already holds the
// idempotency key.
type ConflictError struct {
	ExistingID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConflict, e.ExistingID)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }
