package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"meal-scheduler/internal/recipe"
)

// Default window lengths applied when a config omits period_days.
const (
	DefaultWeekPeriodDays = 7
	DefaultMinPeriodDays  = 14
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// Report fields by their JSON key so errors point at the stored config.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

func knownKind(k Kind) bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// DecodeConfig parses and validates the stored JSON config of a rule kind.
// Required keys are protein or tag, max or min (threshold is accepted as an
// alias) and min_days_between_repeat. period_days defaults to 7 for the
// weekly kinds and 14 for protein_min_per_period.
func DecodeConfig(kind Kind, raw []byte) (Config, error) {
	if !knownKind(kind) {
		return nil, &ConfigError{Kind: kind, Reason: "is not supported", Err: ErrUnknownKind}
	}

	f := fields{kind: kind, values: map[string]json.RawMessage{}}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &f.values); err != nil {
			return nil, &ConfigError{Kind: kind, Field: "config", Reason: "must be a JSON object", Err: ErrInvalidConfig}
		}
	}

	var cfg Config
	switch kind {
	case KindProteinMax:
		c := ProteinMax{PeriodDays: DefaultWeekPeriodDays}
		f.name("protein", &c.Protein)
		f.threshold("max", &c.Max)
		f.optionalInt("period_days", &c.PeriodDays)
		cfg = c
	case KindProteinMin:
		c := ProteinMin{PeriodDays: DefaultMinPeriodDays}
		f.name("protein", &c.Protein)
		f.threshold("min", &c.Min)
		f.optionalInt("period_days", &c.PeriodDays)
		cfg = c
	case KindNoRepeat:
		c := NoRepeat{}
		f.requiredInt("min_days_between_repeat", &c.MinDaysBetweenRepeat)
		cfg = c
	case KindTagMin:
		c := TagMin{PeriodDays: DefaultWeekPeriodDays}
		f.name("tag", &c.Tag)
		f.threshold("min", &c.Min)
		f.optionalInt("period_days", &c.PeriodDays)
		cfg = c
	case KindTagMax:
		c := TagMax{PeriodDays: DefaultWeekPeriodDays}
		f.name("tag", &c.Tag)
		f.threshold("max", &c.Max)
		f.optionalInt("period_days", &c.PeriodDays)
		cfg = c
	}
	if f.err != nil {
		return nil, f.err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EncodeConfig renders a config in its stored JSON form.
func EncodeConfig(c Config) ([]byte, error) {
	if c == nil {
		return nil, errors.New("nil rule config")
	}
	return json.Marshal(c)
}

func validateConfig(c Config) error {
	err := configValidator().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ConfigError{Kind: c.Kind(), Reason: err.Error(), Err: ErrInvalidConfig}
	}
	fe := verrs[0]
	reason := "is invalid"
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "gt":
		reason = fmt.Sprintf("must be greater than %s", fe.Param())
	}
	return &ConfigError{Kind: c.Kind(), Field: fe.Field(), Reason: reason, Err: ErrInvalidConfig}
}

// fields decodes config keys one at a time, keeping the first error.
type fields struct {
	kind   Kind
	values map[string]json.RawMessage
	err    error
}

func (f *fields) fail(key, reason string) {
	if f.err == nil {
		f.err = &ConfigError{Kind: f.kind, Field: key, Reason: reason, Err: ErrInvalidConfig}
	}
}

func (f *fields) name(key string, dst *string) {
	raw, ok := f.values[key]
	if !ok {
		f.fail(key, "is required")
		return
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		f.fail(key, "must be a string")
		return
	}
	*dst = recipe.Normalize(s)
}

func (f *fields) integer(key string, raw json.RawMessage, dst *int) {
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		f.fail(key, "must be an integer")
		return
	}
	*dst = n
}

func (f *fields) requiredInt(key string, dst *int) {
	raw, ok := f.values[key]
	if !ok {
		f.fail(key, "is required")
		return
	}
	f.integer(key, raw, dst)
}

func (f *fields) optionalInt(key string, dst *int) {
	if raw, ok := f.values[key]; ok {
		f.integer(key, raw, dst)
	}
}

func (f *fields) threshold(key string, dst *int) {
	if raw, ok := f.values[key]; ok {
		f.integer(key, raw, dst)
		return
	}
	if raw, ok := f.values["threshold"]; ok {
		f.integer("threshold", raw, dst)
		return
	}
	f.fail(key, "is required")
}
