package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/KaramelBytes/cohortscope-cli/internal/dataset"
)

// GrowthOptions selects the reference points. EndYear < 0 means the maximum
// observed year; Periods <= 0 means the number of distinct observed years
// after StartYear up to and including EndYear.
type GrowthOptions struct {
	StartYear int
	EndYear   int
	Periods   int
}

// DefaultGrowthOptions compares year 0 with the last observed year.
func DefaultGrowthOptions() GrowthOptions {
	return GrowthOptions{StartYear: 0, EndYear: -1}
}

// GrowthResult compares the group mean of a metric between two years.
// TotalPct is (end/start - 1) * 100 and AnnualPct the compounding rate
// ((end/start)^(1/periods) - 1) * 100.
type GrowthResult struct {
	Key       GroupKey
	Metric    string
	StartYear int
	EndYear   int
	Periods   int
	Start     float64
	End       float64
	Absolute  float64
	TotalPct  float64
	AnnualPct float64
}

// CompoundRate returns ((end/start)^(1/periods) - 1) * 100.
func CompoundRate(start, end float64, periods int) (float64, error) {
	switch {
	case start == 0:
		return 0, errors.New("start value is zero")
	case periods <= 0:
		return 0, fmt.Errorf("periods must be positive, got %d", periods)
	}
	r := (math.Pow(end/start, 1/float64(periods)) - 1) * 100
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, fmt.Errorf("rate is not finite (start %g, end %g)", start, end)
	}
	return r, nil
}

// ResolveYears applies the defaults of opt to the years present in t.
func (opt GrowthOptions) ResolveYears(t *dataset.Table) (start, end, periods int) {
	years := t.Years()
	start, end = opt.StartYear, opt.EndYear
	if end < 0 && len(years) > 0 {
		end = years[len(years)-1]
	}
	periods = opt.Periods
	if periods <= 0 {
		periods = 0
		for _, y := range years {
			if y > start && y <= end {
				periods++
			}
		}
	}
	return start, end, periods
}

// Growth compares each group's mean metric between the start and end years.
// g must not include Year. Groups with no observation in either year, a zero
// start mean or a non-finite rate are reported as *ComputationError.
func Growth(t *dataset.Table, g Grouping, metric string, opt GrowthOptions) ([]GrowthResult, error) {
	if g.has(KeyYear) {
		return nil, errors.New("growth compares years; do not group by Year")
	}
	start, end, periods := opt.ResolveYears(t)
	var out []GrowthResult
	var errs []error
	for _, gr := range groupBy(t, g) {
		fail := func(reason string) {
			errs = append(errs, &ComputationError{Op: "growth", Group: gr.Key, Metric: metric, Reason: reason})
		}
		var sv, ev []float64
		for _, r := range gr.Records {
			v, ok := r.Number(metric)
			if !ok {
				continue
			}
			switch r.Year {
			case start:
				sv = append(sv, v)
			case end:
				ev = append(ev, v)
			}
		}
		if len(sv) == 0 {
			fail(fmt.Sprintf("no observations in start year %d", start))
			continue
		}
		if len(ev) == 0 {
			fail(fmt.Sprintf("no observations in end year %d", end))
			continue
		}
		res := GrowthResult{
			Key: gr.Key, Metric: metric,
			StartYear: start, EndYear: end, Periods: periods,
			Start: summarize(sv).Mean, End: summarize(ev).Mean,
		}
		res.Absolute = res.End - res.Start
		if res.Start == 0 {
			fail("start mean is zero (division by zero)")
			continue
		}
		res.TotalPct = (res.End/res.Start - 1) * 100
		rate, err := CompoundRate(res.Start, res.End, periods)
		if err != nil {
			fail(err.Error())
			continue
		}
		res.AnnualPct = rate
		out = append(out, res)
	}
	return out, errors.Join(errs...)
}
