package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/cohortscope-cli/internal/dataset"
)

// ProfileOptions controls Profile.
type ProfileOptions struct {
	// SampleRows is how many leading rows to include.
	SampleRows int
	// GroupBy adds a per-group summary of every numeric column.
	GroupBy []Key
	// Correlations computes Pearson correlations among numeric columns.
	Correlations bool
	// MaxCategories is the cutoff between categorical and free-text columns.
	MaxCategories int
}

// DefaultProfileOptions returns the inspect defaults.
func DefaultProfileOptions() ProfileOptions {
	return ProfileOptions{SampleRows: 5, MaxCategories: 20, Correlations: true}
}

// Overview is a markdown-friendly profile of the unified table.
type Overview struct {
	Name     string
	Rows     int
	Cols     []ColumnSummary
	Samples  [][]string
	Groups   []GroupStats
	Pairs    []PairCorr
	Warnings []string
}

// ColumnSummary captures inferred kind and statistics per column.
type ColumnSummary struct {
	Name    string
	Kind    string // numeric|categorical|text
	NonNull int
	Missing int
	Unique  int
	Min     float64
	Max     float64
	Mean    float64
	Std     float64

	TopValues    []ValueCount
	ExampleTexts []string
}

// PairCorr is one correlation pair.
type PairCorr struct {
	A, B string
	R    float64
	N    int
}

// Profile summarizes every column of t, the leading rows and, optionally,
// per-group means and correlations.
func Profile(t *dataset.Table, name string, opt ProfileOptions) *Overview {
	if opt.MaxCategories <= 0 {
		opt.MaxCategories = 20
	}
	ov := &Overview{Name: name, Rows: t.Len()}
	var numeric []string
	for _, col := range t.Columns {
		cs := summarizeColumn(t, col, opt.MaxCategories)
		if cs.Kind == "numeric" {
			numeric = append(numeric, col)
		}
		if cs.NonNull == 0 {
			ov.Warnings = append(ov.Warnings, fmt.Sprintf("column %s has no values", col))
		}
		ov.Cols = append(ov.Cols, cs)
	}

	for i, r := range t.Records {
		if i >= opt.SampleRows {
			break
		}
		row := make([]string, len(t.Columns))
		for j, c := range t.Columns {
			row[j], _ = r.Value(c)
		}
		ov.Samples = append(ov.Samples, row)
	}

	if len(opt.GroupBy) > 0 {
		for _, gr := range groupBy(t, By(opt.GroupBy...)) {
			gs := GroupStats{Key: gr.Key, Size: len(gr.Records), Metrics: map[string]MetricStats{}}
			for _, m := range numeric {
				if xs := values(gr.Records, m); len(xs) > 0 {
					gs.Metrics[m] = summarize(xs)
				}
			}
			ov.Groups = append(ov.Groups, gs)
		}
	}
	if opt.Correlations {
		ov.Pairs = correlations(t, numeric)
	}
	return ov
}

func summarizeColumn(t *dataset.Table, col string, maxCats int) ColumnSummary {
	cs := ColumnSummary{Name: col}
	var nums []float64
	texts := map[string]int{}
	for _, r := range t.Records {
		if v, ok := r.Number(col); ok {
			nums = append(nums, v)
			continue
		}
		if v, ok := r.Value(col); ok {
			texts[v]++
		}
	}
	cs.NonNull = len(nums)
	for _, n := range texts {
		cs.NonNull += n
	}
	cs.Missing = t.Len() - cs.NonNull
	switch {
	case len(nums) > 0 && len(texts) == 0:
		cs.Kind = "numeric"
		s := summarize(nums)
		cs.Min, cs.Max, cs.Mean, cs.Std = s.Min, s.Max, s.Mean, s.Std
		uniq := map[float64]bool{}
		for _, x := range nums {
			uniq[x] = true
		}
		cs.Unique = len(uniq)
	case len(texts) <= maxCats:
		cs.Kind = "categorical"
		cs.Unique = len(texts)
		cs.TopValues = TopValues(t, col, 5)
	default:
		cs.Kind = "text"
		cs.Unique = len(texts)
		for _, r := range t.Records {
			if v, ok := r.Text(col); ok {
				cs.ExampleTexts = append(cs.ExampleTexts, v)
			}
			if len(cs.ExampleTexts) == 3 {
				break
			}
		}
	}
	return cs
}

// correlations pairs every numeric column over the records holding both.
func correlations(t *dataset.Table, cols []string) []PairCorr {
	var pairs []PairCorr
	for i := 0; i < len(cols); i++ {
		for j := i + 1; j < len(cols); j++ {
			var xs, ys []float64
			for _, r := range t.Records {
				x, okx := r.Number(cols[i])
				y, oky := r.Number(cols[j])
				if okx && oky {
					xs = append(xs, x)
					ys = append(ys, y)
				}
			}
			if len(xs) < 3 {
				continue
			}
			r := stat.Correlation(xs, ys, nil)
			if math.IsNaN(r) {
				continue
			}
			pairs = append(pairs, PairCorr{A: cols[i], B: cols[j], R: r, N: len(xs)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	return pairs
}

// Markdown renders a compact report for the terminal or a standalone doc.
func (o *Overview) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if o.Name != "" {
		b.WriteString(fmt.Sprintf("Source: %s\n", o.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", o.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(o.Cols)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range o.Cols {
		missPct := 0.0
		if total := c.NonNull + c.Missing; total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", c.Name, c.Kind, c.NonNull, missPct))
		switch c.Kind {
		case "numeric":
			b.WriteString(fmt.Sprintf(": min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std))
		case "categorical":
			if len(c.TopValues) > 0 {
				b.WriteString(": top ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
				}
				if c.Unique > len(c.TopValues) {
					b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
				}
			}
		case "text":
			if len(c.ExampleTexts) > 0 {
				b.WriteString(": e.g. ")
				for i, ex := range c.ExampleTexts {
					if i > 0 {
						b.WriteString(" | ")
					}
					b.WriteString(safeVal(ex))
				}
			}
		}
		b.WriteString("\n")
	}

	if len(o.Groups) > 0 {
		b.WriteString("\n[GROUP-BY SUMMARY]\n")
		for _, g := range o.Groups {
			b.WriteString(fmt.Sprintf("- %s (n=%d)\n", g.Key, g.Size))
			keys := make([]string, 0, len(g.Metrics))
			for k := range g.Metrics {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			if len(keys) > 6 {
				keys = keys[:6]
			}
			for _, k := range keys {
				m := g.Metrics[k]
				b.WriteString(fmt.Sprintf("  • %s: mean %.4g, std %.4g (min %.4g, max %.4g)\n", k, m.Mean, m.Std, m.Min, m.Max))
			}
		}
	}

	if len(o.Pairs) > 0 {
		b.WriteString("\n[CORRELATIONS]\n")
		lim := min(len(o.Pairs), 10)
		for _, p := range o.Pairs[:lim] {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f (n=%d)\n", p.A, p.B, p.R, p.N))
		}
	}

	if len(o.Samples) > 0 {
		b.WriteString("\n[HEAD]\n| ")
		for i, c := range o.Cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(c.Name)
		}
		b.WriteString(" |\n|")
		for range o.Cols {
			b.WriteString(" --- |")
		}
		b.WriteString("\n")
		for _, row := range o.Samples {
			b.WriteString("| ")
			for i, val := range row {
				if i > 0 {
					b.WriteString(" | ")
				}
				if utf8.RuneCountInString(val) > 80 {
					val = string([]rune(val)[:77]) + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}

	if len(o.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range o.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
