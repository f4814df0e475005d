package analysis

import "fmt"

// ComputationError reports a degenerate aggregate input: an empty group, a
// zero denominator or a result that is not a finite number. It carries the
// offending group key instead of letting a NaN reach a report.
type ComputationError struct {
	Op     string
	Group  GroupKey
	Metric string
	Reason string
}

func (e *ComputationError) Error() string {
	if e.Metric != "" {
		return fmt.Sprintf("%s %s for group %s: %s", e.Op, e.Metric, e.Group, e.Reason)
	}
	return fmt.Sprintf("%s for group %s: %s", e.Op, e.Group, e.Reason)
}
