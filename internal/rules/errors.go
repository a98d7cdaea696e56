package rules

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig marks a rule whose config is missing a key or holds a bad value.
	ErrInvalidConfig = errors.New("invalid rule config")
	// ErrUnknownKind marks a rule whose type is not supported.
	ErrUnknownKind = errors.New("unknown rule type")
	// ErrNotFound is returned when a rule id does not exist.
	ErrNotFound = errors.New("rule not found")
	// ErrInactive is returned when an inactive rule is asked to evaluate.
	ErrInactive = errors.New("rule is inactive")
	// ErrUnknownRecipe is returned when a planned or cooked entry refers to a
	// recipe missing from the catalog.
	ErrUnknownRecipe = errors.New("ledger entry refers to an unknown recipe")
)

// ConfigError describes a rule configuration problem precisely enough to fix it.
type ConfigError struct {
	RuleID int64
	Kind   Kind
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	var where string
	if e.RuleID != 0 {
		where = fmt.Sprintf("rule %d (%s)", e.RuleID, e.Kind)
	} else {
		where = fmt.Sprintf("rule type %q", e.Kind)
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s: %s", e.Err, where, e.Reason)
	}
	return fmt.Sprintf("%s: %s: field %q %s", e.Err, where, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// withRuleID stamps a rule id onto a ConfigError, leaving other errors alone.
func withRuleID(err error, id int64) error {
	var ce *ConfigError
	if errors.As(err, &ce) {
		cp := *ce
		cp.RuleID = id
		return &cp
	}
	return err
}
