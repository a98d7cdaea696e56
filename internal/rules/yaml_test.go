package rules

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadYAML(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		doc := `
rules:
  - name: Chicken max 2x/week
    rule_type: protein_max_per_week
    config: {protein: chicken, max: 2, period_days: 7}
  - name: Salmon every 2 weeks
    rule_type: protein_min_per_period
    config:
      protein: salmon
      min: 1
  - name: Variety
    rule_type: no_repeat_within_days
    active: false
    config: {min_days_between_repeat: 14}
`
		rs, err := LoadYAML(strings.NewReader(doc))
		require.NoError(t, err)
		require.Len(t, rs, 3)
		assert.Equal(t, ProteinMax{Protein: "chicken", Max: 2, PeriodDays: 7}, rs[0].Config)
		assert.Equal(t, ProteinMin{Protein: "salmon", Min: 1, PeriodDays: 14}, rs[1].Config)
		assert.True(t, rs[0].Active)
		assert.False(t, rs[2].Active)
	})

	t.Run("InvalidRuleFailsLoad", func(t *testing.T) {
		doc := `
rules:
  - name: Mystery
    rule_type: calorie_cap
    config: {max: 2000}
`
		_, err := LoadYAML(strings.NewReader(doc))
		assert.ErrorIs(t, err, ErrUnknownKind)
		assert.Contains(t, err.Error(), "Mystery")
	})

	t.Run("UnknownField", func(t *testing.T) {
		_, err := LoadYAML(strings.NewReader("rules:\n  - name: x\n    kind: no_repeat_within_days\n"))
		assert.Error(t, err)
	})

	t.Run("Empty", func(t *testing.T) {
		rs, err := LoadYAML(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, rs)
	})
}
