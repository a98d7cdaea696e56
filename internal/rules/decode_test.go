package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeConfig(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		tests := []struct {
			kind Kind
			raw  string
			want Config
		}{
			{KindProteinMax, `{"protein":"Chicken","max":2,"period_days":7}`, ProteinMax{Protein: "chicken", Max: 2, PeriodDays: 7}},
			{KindProteinMax, `{"protein":"chicken","max":2}`, ProteinMax{Protein: "chicken", Max: 2, PeriodDays: 7}},
			{KindProteinMin, `{"protein":"salmon","min":1}`, ProteinMin{Protein: "salmon", Min: 1, PeriodDays: 14}},
			{KindProteinMin, `{"protein":"salmon","threshold":1,"period_days":10}`, ProteinMin{Protein: "salmon", Min: 1, PeriodDays: 10}},
			{KindNoRepeat, `{"min_days_between_repeat":14}`, NoRepeat{MinDaysBetweenRepeat: 14}},
			{KindTagMin, `{"tag":"vegetarian","min":2}`, TagMin{Tag: "vegetarian", Min: 2, PeriodDays: 7}},
			{KindTagMax, `{"tag":"pasta","max":2,"period_days":7,"note":"ignored"}`, TagMax{Tag: "pasta", Max: 2, PeriodDays: 7}},
		}
		for _, tt := range tests {
			t.Run(string(tt.kind), func(t *testing.T) {
				got, err := DecodeConfig(tt.kind, []byte(tt.raw))
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				assert.Equal(t, tt.kind, got.Kind())
			})
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		tests := []struct {
			name  string
			kind  Kind
			raw   string
			field string
			is    error
		}{
			{"UnknownKind", Kind("calorie_cap"), `{}`, "", ErrUnknownKind},
			{"NotAnObject", KindProteinMax, `[1,2]`, "config", ErrInvalidConfig},
			{"MissingProtein", KindProteinMax, `{"max":2}`, "protein", ErrInvalidConfig},
			{"EmptyProtein", KindProteinMax, `{"protein":" ","max":2}`, "protein", ErrInvalidConfig},
			{"MissingMax", KindProteinMax, `{"protein":"chicken"}`, "max", ErrInvalidConfig},
			{"ZeroMax", KindProteinMax, `{"protein":"chicken","max":0}`, "max", ErrInvalidConfig},
			{"NegativePeriod", KindTagMin, `{"tag":"veg","min":1,"period_days":-7}`, "period_days", ErrInvalidConfig},
			{"ZeroPeriod", KindProteinMin, `{"protein":"salmon","min":1,"period_days":0}`, "period_days", ErrInvalidConfig},
			{"MissingGap", KindNoRepeat, `{}`, "min_days_between_repeat", ErrInvalidConfig},
			{"StringThreshold", KindTagMax, `{"tag":"pasta","max":"two"}`, "max", ErrInvalidConfig},
			{"NullConfig", KindNoRepeat, `null`, "min_days_between_repeat", ErrInvalidConfig},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := DecodeConfig(tt.kind, []byte(tt.raw))
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.is)

				var ce *ConfigError
				require.True(t, errors.As(err, &ce))
				assert.Equal(t, tt.field, ce.Field)
				assert.Equal(t, tt.kind, ce.Kind)
			})
		}
	})
}

func TestRuleValidate(t *testing.T) {
	t.Run("MismatchedConfig", func(t *testing.T) {
		r := Rule{ID: 3, Kind: KindProteinMax, Config: NoRepeat{MinDaysBetweenRepeat: 3}}
		err := r.Validate()
		require.Error(t, err)
		var ce *ConfigError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, int64(3), ce.RuleID)
	})

	t.Run("NilConfig", func(t *testing.T) {
		assert.ErrorIs(t, Rule{Kind: KindNoRepeat}.Validate(), ErrInvalidConfig)
	})

	t.Run("InvalidValueNamesRule", func(t *testing.T) {
		err := Rule{ID: 9, Kind: KindTagMax, Config: TagMax{Tag: "pasta", Max: -1, PeriodDays: 7}}.Validate()
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "rule 9"))
		assert.True(t, strings.Contains(err.Error(), `"max"`))
	})

	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, Rule{Kind: KindNoRepeat, Config: NoRepeat{MinDaysBetweenRepeat: 14}}.Validate())
	})
}

func TestRuleJSON(t *testing.T) {
	in := Rule{ID: 1, Name: "Salmon fortnightly", Kind: KindProteinMin, Config: ProteinMin{Protein: "salmon", Min: 1, PeriodDays: 14}, Active: true}
	data, err := in.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rule_type":"protein_min_per_period"`)

	var out Rule
	require.NoError(t, out.UnmarshalJSON(data))
	assert.Equal(t, in.Config, out.Config)
	assert.Equal(t, in.Name, out.Name)

	bad := []byte(`{"id":5,"rule_type":"protein_min_per_period","config":{"protein":"salmon"}}`)
	err = out.UnmarshalJSON(bad)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int64(5), ce.RuleID)
}

func TestRuleReach(t *testing.T) {
	assert.Equal(t, 7, Rule{Kind: KindProteinMax, Config: ProteinMax{Protein: "chicken", Max: 2, PeriodDays: 7}}.Reach())
	assert.Equal(t, 21, Rule{Kind: KindTagMin, Config: TagMin{Tag: "veg", Min: 1, PeriodDays: 21}}.Reach())
	assert.Equal(t, 14, Rule{Kind: KindNoRepeat, Config: NoRepeat{MinDaysBetweenRepeat: 14}}.Reach())
	assert.Equal(t, 0, Rule{Kind: KindNoRepeat}.Reach())
}
