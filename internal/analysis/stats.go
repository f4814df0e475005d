package analysis

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/cohortscope-cli/internal/dataset"
)

// MetricStats summarizes one numeric metric within a group. Std is the
// sample standard deviation and SEM is Std/sqrt(N); both are 0 when N < 2.
type MetricStats struct {
	N    int
	Mean float64
	Std  float64
	SEM  float64
	Min  float64
	Max  float64
}

// GroupStats is the Describe output for one group. Size counts the records in
// the group, including those missing some metric.
type GroupStats struct {
	Key     GroupKey
	Size    int
	Metrics map[string]MetricStats
}

func summarize(xs []float64) MetricStats {
	s := MetricStats{N: len(xs)}
	if len(xs) == 0 {
		return s
	}
	s.Min, s.Max = floats.Min(xs), floats.Max(xs)
	if len(xs) < 2 {
		s.Mean = xs[0]
		return s
	}
	s.Mean, s.Std = stat.MeanStdDev(xs, nil)
	s.SEM = s.Std / math.Sqrt(float64(len(xs)))
	return s
}

func values(recs []*dataset.Record, metric string) []float64 {
	var xs []float64
	for _, r := range recs {
		if v, ok := r.Number(metric); ok {
			xs = append(xs, v)
		}
	}
	return xs
}

// Describe computes mean, std, sem, min and max of each metric per group.
// A group with no observation of a metric is left out and reported as a
// *ComputationError; the remaining groups are still returned. Multiple
// failures are joined.
func Describe(t *dataset.Table, g Grouping, metrics ...string) ([]GroupStats, error) {
	var out []GroupStats
	var errs []error
	for _, gr := range groupBy(t, g) {
		gs := GroupStats{Key: gr.Key, Size: len(gr.Records), Metrics: map[string]MetricStats{}}
		ok := true
		for _, m := range metrics {
			xs := values(gr.Records, m)
			if len(xs) == 0 {
				errs = append(errs, &ComputationError{Op: "describe", Group: gr.Key, Metric: m, Reason: "no observations"})
				ok = false
				continue
			}
			gs.Metrics[m] = summarize(xs)
		}
		if ok {
			out = append(out, gs)
		}
	}
	return out, errors.Join(errs...)
}

// Difference is the Experimental minus Control gap of one metric in a group.
type Difference struct {
	Key          GroupKey
	Metric       string
	Experimental float64
	Control      float64
	Diff         float64
}

// GroupDifference compares group means of Experimental and Control records
// within each group of g. g must not include Group_Type.
func GroupDifference(t *dataset.Table, g Grouping, metrics ...string) ([]Difference, error) {
	if g.has(KeyGroupType) {
		return nil, errors.New("group difference cannot group by Group_Type")
	}
	var out []Difference
	var errs []error
	for _, gr := range groupBy(t, g) {
		for _, m := range metrics {
			var exp, ctl []float64
			for _, r := range gr.Records {
				v, ok := r.Number(m)
				if !ok {
					continue
				}
				if r.GroupType == dataset.Control {
					ctl = append(ctl, v)
				} else {
					exp = append(exp, v)
				}
			}
			if len(exp) == 0 || len(ctl) == 0 {
				errs = append(errs, &ComputationError{Op: "difference", Group: gr.Key, Metric: m, Reason: "needs both Experimental and Control observations"})
				continue
			}
			d := Difference{Key: gr.Key, Metric: m, Experimental: stat.Mean(exp, nil), Control: stat.Mean(ctl, nil)}
			d.Diff = d.Experimental - d.Control
			out = append(out, d)
		}
	}
	return out, errors.Join(errs...)
}
