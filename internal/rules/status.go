package rules

// Status is the compliance classification of one rule.
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusViolated Status = "violated"
)

// Severity orders statuses: violated > warning > ok.
func (s Status) Severity() int {
	switch s {
	case StatusViolated:
		return 2
	case StatusWarning:
		return 1
	}
	return 0
}

// RuleStatus is the outcome of evaluating one rule. It is derived on every
// evaluation and never stored.
type RuleStatus struct {
	RuleID       int64  `json:"rule_id"`
	RuleName     string `json:"rule_name"`
	Kind         Kind   `json:"rule_type"`
	Status       Status `json:"status"`
	Message      string `json:"message"`
	CurrentCount int    `json:"current_count"`
	Threshold    int    `json:"threshold"`
	// Fulfilling is set when an unmet minimum is met by the candidate itself.
	Fulfilling bool `json:"fulfilling,omitempty"`
}

// worse reports whether a should replace b as the worst observed status.
// Ties on status go to the higher count.
func worse(a, b RuleStatus) bool {
	if a.Status.Severity() != b.Status.Severity() {
		return a.Status.Severity() > b.Status.Severity()
	}
	return a.CurrentCount > b.CurrentCount
}
