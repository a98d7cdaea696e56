package rules

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind is the type of a dietary rule.
type Kind string

const (
	KindProteinMax Kind = "protein_max_per_week"
	KindProteinMin Kind = "protein_min_per_period"
	KindNoRepeat   Kind = "no_repeat_within_days"
	KindTagMin     Kind = "min_tag_per_week"
	KindTagMax     Kind = "max_tag_per_week"
)

// Kinds lists every supported rule type.
var Kinds = []Kind{KindProteinMax, KindProteinMin, KindNoRepeat, KindTagMin, KindTagMax}

// IsMin reports whether the kind sets a floor that a candidate can help meet.
func (k Kind) IsMin() bool {
	return k == KindProteinMin || k == KindTagMin
}

// Config is the typed configuration of one rule kind.
type Config interface {
	Kind() Kind
	// Summary is a short human description, e.g. "no repeat within 14 days".
	Summary() string
	sealed()
}

// ProteinMax caps how often a protein appears in a window.
type ProteinMax struct {
	Protein    string `json:"protein" validate:"required"`
	Max        int    `json:"max" validate:"gt=0"`
	PeriodDays int    `json:"period_days" validate:"gt=0"`
}

// ProteinMin requires a protein to appear at least Min times in a window.
type ProteinMin struct {
	Protein    string `json:"protein" validate:"required"`
	Min        int    `json:"min" validate:"gt=0"`
	PeriodDays int    `json:"period_days" validate:"gt=0"`
}

// NoRepeat forbids the same recipe twice within MinDaysBetweenRepeat days.
type NoRepeat struct {
	MinDaysBetweenRepeat int `json:"min_days_between_repeat" validate:"gt=0"`
}

// TagMin requires a tag to appear at least Min times in a window.
type TagMin struct {
	Tag        string `json:"tag" validate:"required"`
	Min        int    `json:"min" validate:"gt=0"`
	PeriodDays int    `json:"period_days" validate:"gt=0"`
}

// TagMax caps how often a tag appears in a window.
type TagMax struct {
	Tag        string `json:"tag" validate:"required"`
	Max        int    `json:"max" validate:"gt=0"`
	PeriodDays int    `json:"period_days" validate:"gt=0"`
}

func (ProteinMax) Kind() Kind { return KindProteinMax }
func (ProteinMin) Kind() Kind { return KindProteinMin }
func (NoRepeat) Kind() Kind   { return KindNoRepeat }
func (TagMin) Kind() Kind     { return KindTagMin }
func (TagMax) Kind() Kind     { return KindTagMax }

func (c ProteinMax) Summary() string {
	return fmt.Sprintf("%s max %d per %d days", c.Protein, c.Max, c.PeriodDays)
}

func (c ProteinMin) Summary() string {
	return fmt.Sprintf("%s at least %d per %d days", c.Protein, c.Min, c.PeriodDays)
}

func (c NoRepeat) Summary() string {
	return fmt.Sprintf("no repeat within %d days", c.MinDaysBetweenRepeat)
}

func (c TagMin) Summary() string {
	return fmt.Sprintf("'%s' at least %d per %d days", c.Tag, c.Min, c.PeriodDays)
}

func (c TagMax) Summary() string {
	return fmt.Sprintf("'%s' max %d per %d days", c.Tag, c.Max, c.PeriodDays)
}

func (ProteinMax) sealed() {}
func (ProteinMin) sealed() {}
func (NoRepeat) sealed()   {}
func (TagMin) sealed()     {}
func (TagMax) sealed()     {}

// Rule is a validated dietary rule.
type Rule struct {
	ID        int64
	Name      string
	Kind      Kind
	Config    Config
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Summary describes the rule's constraint.
func (r Rule) Summary() string {
	if r.Config == nil {
		return string(r.Kind)
	}
	return r.Config.Summary()
}

// Reach is the number of days either side of a date the rule looks at.
func (r Rule) Reach() int {
	switch c := r.Config.(type) {
	case ProteinMax:
		return c.PeriodDays
	case ProteinMin:
		return c.PeriodDays
	case TagMax:
		return c.PeriodDays
	case TagMin:
		return c.PeriodDays
	case NoRepeat:
		return c.MinDaysBetweenRepeat
	}
	return 0
}

// Validate checks that the rule carries a well-formed config for its kind.
func (r Rule) Validate() error {
	if !knownKind(r.Kind) {
		return &ConfigError{RuleID: r.ID, Kind: r.Kind, Reason: "is not supported", Err: ErrUnknownKind}
	}
	if r.Config == nil {
		return &ConfigError{RuleID: r.ID, Kind: r.Kind, Field: "config", Reason: "is required", Err: ErrInvalidConfig}
	}
	if r.Config.Kind() != r.Kind {
		return &ConfigError{RuleID: r.ID, Kind: r.Kind, Field: "config",
			Reason: fmt.Sprintf("holds a %s config", r.Config.Kind()), Err: ErrInvalidConfig}
	}
	return withRuleID(validateConfig(r.Config), r.ID)
}

type ruleJSON struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Kind      Kind            `json:"rule_type"`
	Config    json.RawMessage `json:"config"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
}

func (r Rule) MarshalJSON() ([]byte, error) {
	cfg, err := json.Marshal(r.Config)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ruleJSON{
		ID: r.ID, Name: r.Name, Kind: r.Kind, Config: cfg, Active: r.Active,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	})
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw ruleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cfg, err := DecodeConfig(raw.Kind, raw.Config)
	if err != nil {
		return withRuleID(err, raw.ID)
	}
	*r = Rule{
		ID: raw.ID, Name: raw.Name, Kind: raw.Kind, Config: cfg, Active: raw.Active,
		CreatedAt: raw.CreatedAt, UpdatedAt: raw.UpdatedAt,
	}
	return nil
}
