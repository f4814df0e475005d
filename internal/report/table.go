// Package report renders analysis results: console tables, a CSV growth
// summary, an XLSX workbook and PNG charts.
package report

import (
	"fmt"
	"strconv"

	"github.com/KaramelBytes/cohortscope-cli/internal/analysis"
)

// Table is the sink-neutral shape every analysis result is converted to
// before it is printed or written to the workbook.
type Table struct {
	Title  string
	Header []string
	Rows   [][]string
}

func f2(x float64) string { return strconv.FormatFloat(x, 'f', 2, 64) }

func keyHeader(k analysis.GroupKey) []string {
	h := make([]string, len(k.Keys))
	for i, key := range k.Keys {
		h[i] = string(key)
	}
	return h
}

// StatsTable lists mean, std, sem and n of each metric per group.
func StatsTable(title string, stats []analysis.GroupStats, metrics ...string) Table {
	t := Table{Title: title}
	if len(stats) == 0 {
		return t
	}
	t.Header = append(keyHeader(stats[0].Key), "n")
	for _, m := range metrics {
		t.Header = append(t.Header, m+" mean", m+" std", m+" sem")
	}
	for _, s := range stats {
		row := append(append([]string(nil), s.Key.Values...), strconv.Itoa(s.Size))
		for _, m := range metrics {
			ms := s.Metrics[m]
			row = append(row, f2(ms.Mean), f2(ms.Std), f2(ms.SEM))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// ShareTable lists percentage shares per group, one column per category.
func ShareTable(title string, groups []analysis.ShareGroup) Table {
	t := Table{Title: title}
	if len(groups) == 0 {
		return t
	}
	t.Header = append(keyHeader(groups[0].Key), "n")
	for _, c := range groups[0].Shares {
		t.Header = append(t.Header, c.Value+" %")
	}
	for _, g := range groups {
		row := append(append([]string(nil), g.Key.Values...), strconv.Itoa(g.Total))
		for _, c := range g.Shares {
			row = append(row, f2(c.Percent))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// GrowthTable lists growth between the reference years per group.
func GrowthTable(title string, res []analysis.GrowthResult) Table {
	t := Table{Title: title}
	if len(res) == 0 {
		return t
	}
	t.Header = append(keyHeader(res[0].Key), "Start Year", "End Year", "Periods", "Start Mean", "End Mean",
		"Absolute Growth", "Total Growth (%)", "Annual Growth (%)")
	for _, r := range res {
		row := append([]string(nil), r.Key.Values...)
		row = append(row, strconv.Itoa(r.StartYear), strconv.Itoa(r.EndYear), strconv.Itoa(r.Periods),
			f2(r.Start), f2(r.End), f2(r.Absolute), f2(r.TotalPct), f2(r.AnnualPct))
		t.Rows = append(t.Rows, row)
	}
	return t
}

// TrendTable lists every trend point, one row per group and year.
func TrendTable(title string, trends []analysis.Trend) Table {
	t := Table{Title: title}
	if len(trends) == 0 {
		return t
	}
	t.Header = append(keyHeader(trends[0].Key), "Year", "n", "mean", "sem", "change %")
	for _, tr := range trends {
		for _, p := range tr.Points {
			change := ""
			if p.HasPctChange {
				change = f2(p.PctChange)
			}
			row := append([]string(nil), tr.Key.Values...)
			row = append(row, strconv.Itoa(p.Year), strconv.Itoa(p.N), f2(p.Mean), f2(p.SEM), change)
			t.Rows = append(t.Rows, row)
		}
	}
	return t
}

// DifferenceTable lists Experimental minus Control gaps.
func DifferenceTable(title string, diffs []analysis.Difference) Table {
	t := Table{Title: title}
	if len(diffs) == 0 {
		return t
	}
	t.Header = append(keyHeader(diffs[0].Key), "Metric", "Experimental", "Control", "Difference")
	for _, d := range diffs {
		row := append([]string(nil), d.Key.Values...)
		row = append(row, d.Metric, f2(d.Experimental), f2(d.Control), f2(d.Diff))
		t.Rows = append(t.Rows, row)
	}
	return t
}

// CountTable lists value frequencies.
func CountTable(title, column string, counts []analysis.ValueCount) Table {
	t := Table{Title: title, Header: []string{column, "Count"}}
	for _, c := range counts {
		t.Rows = append(t.Rows, []string{c.Value, strconv.Itoa(c.Count)})
	}
	return t
}

// String is a one-line description used in logs.
func (t Table) String() string {
	return fmt.Sprintf("%s (%d rows)", t.Title, len(t.Rows))
}
