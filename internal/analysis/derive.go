package analysis

import (
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/cohortscope-cli/internal/dataset"
)

// ColTotalGrowth is the derived salary growth from the starting salary to
// the last age observation.
const ColTotalGrowth = "Total_Growth"

// AgeColumns returns the Age_N salary columns of t ordered by age.
func AgeColumns(t *dataset.Table) []string {
	type ac struct {
		col string
		age int
	}
	var cols []ac
	for _, c := range t.Columns {
		n, ok := strings.CutPrefix(c, "Age_")
		if !ok {
			continue
		}
		if age, err := strconv.Atoi(n); err == nil {
			cols = append(cols, ac{c, age})
		}
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].age < cols[j].age })
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.col
	}
	return out
}

// GrowthColumn names the derived column for an age column, e.g. Growth_28.
func GrowthColumn(ageCol string) string {
	return "Growth_" + strings.TrimPrefix(ageCol, "Age_")
}

// DeriveSalaryGrowth adds Growth_N = Age_N - Starting_Salary for every age
// column and Total_Growth for the last one. It returns the derived column
// names, Total_Growth first; none when the table has no age columns.
func DeriveSalaryGrowth(t *dataset.Table) []string {
	ages := AgeColumns(t)
	if len(ages) == 0 {
		return nil
	}
	diff := func(col string) func(*dataset.Record) (float64, bool) {
		return func(r *dataset.Record) (float64, bool) {
			start, ok := r.Number(dataset.ColStartingSalary)
			if !ok {
				return 0, false
			}
			v, ok := r.Number(col)
			return v - start, ok
		}
	}
	derived := []string{ColTotalGrowth}
	t.Derive(ColTotalGrowth, diff(ages[len(ages)-1]))
	for _, a := range ages {
		gc := GrowthColumn(a)
		t.Derive(gc, diff(a))
		derived = append(derived, gc)
	}
	return derived
}
