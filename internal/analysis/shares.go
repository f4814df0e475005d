package analysis

import (
	"errors"
	"sort"

	"github.com/KaramelBytes/cohortscope-cli/internal/dataset"
)

// CategoryShare is one category's count and percentage within a group.
type CategoryShare struct {
	Value   string
	Count   int
	Percent float64
}

// ShareGroup holds the distribution of a categorical column in one group.
// Shares covers every category seen anywhere in the table, so groups line up
// when rendered side by side; the percentages sum to 100.
type ShareGroup struct {
	Key    GroupKey
	Total  int
	Shares []CategoryShare
}

// Percent returns the share of value, 0 if it never occurs.
func (s ShareGroup) Percent(value string) float64 {
	for _, c := range s.Shares {
		if c.Value == value {
			return c.Percent
		}
	}
	return 0
}

// Categories lists the distinct values of column, sorted.
func Categories(t *dataset.Table, column string) []string {
	seen := map[string]bool{}
	var cats []string
	for _, r := range t.Records {
		if v, ok := r.Value(column); ok && !seen[v] {
			seen[v] = true
			cats = append(cats, v)
		}
	}
	sort.Slice(cats, func(i, j int) bool { return compareValues(cats[i], cats[j]) < 0 })
	return cats
}

// Shares computes the percentage distribution of column per group. Records
// without a value for column are not counted. A group whose total is zero is
// reported as a *ComputationError.
func Shares(t *dataset.Table, g Grouping, column string) ([]ShareGroup, error) {
	return SharesOf(t, g, column, nil)
}

// SharesOf is Shares with extra categories that must appear even when
// unobserved, such as every position level.
func SharesOf(t *dataset.Table, g Grouping, column string, want []string) ([]ShareGroup, error) {
	cats := Categories(t, column)
	for _, w := range want {
		if !contains(cats, w) {
			cats = append(cats, w)
		}
	}
	sort.Slice(cats, func(i, j int) bool { return compareValues(cats[i], cats[j]) < 0 })
	var out []ShareGroup
	var errs []error
	for _, gr := range groupBy(t, g) {
		counts := map[string]int{}
		total := 0
		for _, r := range gr.Records {
			if v, ok := r.Value(column); ok {
				counts[v]++
				total++
			}
		}
		if total == 0 {
			errs = append(errs, &ComputationError{Op: "share", Group: gr.Key, Metric: column, Reason: "group has no values (division by zero)"})
			continue
		}
		sg := ShareGroup{Key: gr.Key, Total: total, Shares: make([]CategoryShare, len(cats))}
		for i, c := range cats {
			sg.Shares[i] = CategoryShare{Value: c, Count: counts[c], Percent: float64(counts[c]) * 100 / float64(total)}
		}
		out = append(out, sg)
	}
	return out, errors.Join(errs...)
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
