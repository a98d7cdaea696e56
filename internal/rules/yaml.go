package rules

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk shape of a rule set:
//
//	rules:
//	  - name: Chicken max 2x/week
//	    rule_type: protein_max_per_week
//	    config: {protein: chicken, max: 2, period_days: 7}
type ruleFile struct {
	Rules []struct {
		Name   string         `yaml:"name"`
		Kind   string         `yaml:"rule_type"`
		Config map[string]any `yaml:"config"`
		Active *bool          `yaml:"active"`
	} `yaml:"rules"`
}

// LoadYAML parses a rule set. Every rule is validated; the first invalid one
// fails the load. Rules are active unless they say otherwise.
func LoadYAML(r io.Reader) ([]Rule, error) {
	var f ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	out := make([]Rule, 0, len(f.Rules))
	for i, item := range f.Rules {
		if item.Name == "" {
			return nil, fmt.Errorf("rule #%d: name is required", i+1)
		}
		raw, err := json.Marshal(item.Config)
		if err != nil {
			return nil, fmt.Errorf("rule %q: failed to encode config: %w", item.Name, err)
		}
		cfg, err := DecodeConfig(Kind(item.Kind), raw)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", item.Name, err)
		}
		active := true
		if item.Active != nil {
			active = *item.Active
		}
		out = append(out, Rule{Name: item.Name, Kind: Kind(item.Kind), Config: cfg, Active: active})
	}
	return out, nil
}
