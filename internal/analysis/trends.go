package analysis

import (
	"errors"
	"sort"

	"github.com/KaramelBytes/cohortscope-cli/internal/dataset"
)

// TrendPoint is one year of a trend line.
type TrendPoint struct {
	Year int
	MetricStats
	// PctChange is the change of Mean against the previous point, in percent.
	PctChange    float64
	HasPctChange bool
}

// Trend is a metric's per-year series for one group.
type Trend struct {
	Key    GroupKey
	Metric string
	Points []TrendPoint
}

// Trends builds a per-year series of metric for each group of g, with SEM
// for error bands and year-over-year percent change. g must not include
// Year. A previous mean of zero leaves the change unset and is reported as a
// *ComputationError; the trend itself is kept.
func Trends(t *dataset.Table, g Grouping, metric string) ([]Trend, error) {
	if g.has(KeyYear) {
		return nil, errors.New("trends run over Year; do not group by it")
	}
	var out []Trend
	var errs []error
	for _, gr := range groupBy(t, g) {
		byYear := map[int][]float64{}
		for _, r := range gr.Records {
			if v, ok := r.Number(metric); ok {
				byYear[r.Year] = append(byYear[r.Year], v)
			}
		}
		if len(byYear) == 0 {
			continue
		}
		years := make([]int, 0, len(byYear))
		for y := range byYear {
			years = append(years, y)
		}
		sort.Ints(years)
		tr := Trend{Key: gr.Key, Metric: metric}
		for i, y := range years {
			p := TrendPoint{Year: y, MetricStats: summarize(byYear[y])}
			if i > 0 {
				prev := tr.Points[i-1].Mean
				if prev == 0 {
					errs = append(errs, &ComputationError{Op: "trend change", Group: gr.Key, Metric: metric, Reason: "previous year mean is zero"})
				} else {
					p.PctChange = (p.Mean - prev) / prev * 100
					p.HasPctChange = true
				}
			}
			tr.Points = append(tr.Points, p)
		}
		out = append(out, tr)
	}
	return out, errors.Join(errs...)
}
