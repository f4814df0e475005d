package report

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/KaramelBytes/cohortscope-cli/internal/analysis"
	"github.com/KaramelBytes/cohortscope-cli/internal/dataset"
	"github.com/KaramelBytes/cohortscope-cli/internal/logging"
)

// Runner executes a set of analyses over one table and sends every result
// to the configured sinks. Computation errors are collected, not fatal.
type Runner struct {
	OutDir   string
	Console  io.Writer
	Workbook *Workbook
	Charts   bool
	// RunID tags every log record of the runner.
	RunID    string
	Log      *slog.Logger

	Artifacts []string
	Warnings  []error
}

// NewRunner writes charts and CSV files under outDir and prints tables to
// console when it is non-nil. Log records carry runID.
func NewRunner(outDir, runID string, console io.Writer, log *slog.Logger) *Runner {
	return &Runner{OutDir: outDir, Console: console, Charts: true, RunID: runID, Log: logging.ForRun(log, runID)}
}

func (r *Runner) emit(t Table) {
	if r.Console != nil {
		Print(r.Console, t)
	}
	if r.Workbook != nil && len(t.Rows) > 0 {
		if err := r.Workbook.Add(t); err != nil {
			r.Warnings = append(r.Warnings, fmt.Errorf("workbook sheet %q: %w", t.Title, err))
		}
	}
}

func (r *Runner) note(err error) {
	if err == nil {
		return
	}
	var errs []error
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		errs = j.Unwrap()
	} else {
		errs = []error{err}
	}
	for _, e := range errs {
		var ce *analysis.ComputationError
		if errors.As(e, &ce) {
			r.Log.Warn("computation skipped", "op", ce.Op, "group", ce.Group.String(), "metric", ce.Metric, "reason", ce.Reason)
		} else {
			r.Log.Warn("analysis step failed", "err", e)
		}
		r.Warnings = append(r.Warnings, e)
	}
}

func (r *Runner) chart(file string, draw func(path string) error) {
	if !r.Charts {
		return
	}
	path := filepath.Join(r.OutDir, file)
	if err := draw(path); err != nil {
		r.note(err)
		return
	}
	r.Artifacts = append(r.Artifacts, path)
	r.Log.Debug("chart written", "path", path)
}

// TaskAllocation covers the headered exports: task-allocation trends per
// (Group_Type, Gender), Performance distributions and the Experimental minus
// Control gap per (Gender, Year).
func (r *Runner) TaskAllocation(t *dataset.Table) error {
	var metrics []string
	for _, m := range dataset.TaskColumns {
		if t.HasColumn(m) {
			metrics = append(metrics, m)
		}
	}
	if len(metrics) == 0 && !t.HasColumn(dataset.ColPerformance) {
		return fmt.Errorf("table has neither task columns nor %s", dataset.ColPerformance)
	}

	cohort := analysis.By(analysis.KeyGroupType, analysis.KeyGender)
	if len(metrics) > 0 {
		stats, err := analysis.Describe(t, cohort, metrics...)
		r.note(err)
		r.emit(StatsTable("Task allocation by group and gender", stats, metrics...))

		for _, m := range metrics {
			trends, err := analysis.Trends(t, cohort, m)
			r.note(err)
			r.emit(TrendTable(m+" by year", trends))
			series := TrendSeries(trends)
			r.chart(m+"_trend.png", func(p string) error {
				return LineChart(p, m+" over time", "Year", m+" (mean ± SEM)", series)
			})
		}

		diffs, err := analysis.GroupDifference(t, analysis.By(analysis.KeyGender, analysis.KeyYear), metrics...)
		r.note(err)
		r.emit(DifferenceTable("Experimental minus Control", diffs))
	}

	if t.HasColumn(dataset.ColPerformance) {
		perf := t.Filter(func(rec *dataset.Record) bool {
			_, ok := rec.Text(dataset.ColPerformance)
			return ok
		})
		overall, err := analysis.Shares(perf, analysis.By(analysis.KeyGender, analysis.KeyGroupType), dataset.ColPerformance)
		r.note(err)
		r.emit(ShareTable("Performance distribution", overall))
		r.chart("performance_distribution.png", func(p string) error {
			return StackedShareChart(p, "Performance distribution", overall)
		})

		yearly, err := analysis.Shares(perf, analysis.By(analysis.KeyGroupType, analysis.KeyGender, analysis.KeyYear), dataset.ColPerformance)
		r.note(err)
		r.emit(ShareTable("Performance distribution by year", yearly))
		gradeA := ShareSeries(yearly, "A")
		r.chart("grade_a_share.png", func(p string) error {
			return LineChart(p, "Share of grade A over time", "Year", "Grade A (%)", gradeA)
		})
	}
	return nil
}

// SalaryOptions parameterizes the salary-tracking analyses.
type SalaryOptions struct {
	Growth         analysis.GrowthOptions
	Bins           []float64
	TopDepartments int
	Levels         []string
}

// DefaultSalaryOptions uses the default bins, the top five departments and
// position levels 1 to 5.
func DefaultSalaryOptions() SalaryOptions {
	return SalaryOptions{
		Growth:         analysis.DefaultGrowthOptions(),
		Bins:           analysis.DefaultSalaryBins,
		TopDepartments: 5,
		Levels:         []string{"1", "2", "3", "4", "5"},
	}
}

func (o SalaryOptions) by(keys ...analysis.Key) analysis.Grouping {
	g := analysis.By(keys...)
	if len(o.Bins) > 1 {
		g.Bins = o.Bins
	}
	return g
}

// Salary covers the salary-tracking exports: starting salary by year and
// position or gender, position distribution in the first and last year,
// year-over-year change, department trends, the growth summary and, when
// age columns exist, growth by gender, department and salary range.
//
// The Total_Growth and Growth_N columns are derived in place on t.
func (r *Runner) Salary(t *dataset.Table, opt SalaryOptions) error {
	derived := analysis.DeriveSalaryGrowth(t)
	t = analysis.Having(t, dataset.ColStartingSalary)
	if t.Len() == 0 {
		return fmt.Errorf("no row carries %s", dataset.ColStartingSalary)
	}
	salary := dataset.ColStartingSalary

	if t.HasColumn(dataset.ColPosition) {
		byPos, err := analysis.Describe(t, opt.by(analysis.KeyYear, analysis.KeyPosition), salary)
		r.note(err)
		r.emit(StatsTable("Starting salary by year and position", byPos, salary))

		posTrend, err := analysis.Trends(t, opt.by(analysis.KeyGender), dataset.ColPosition)
		r.note(err)
		r.emit(TrendTable("Mean position by gender", posTrend))
		series := TrendSeries(posTrend)
		r.chart("position_by_gender.png", func(p string) error {
			return LineChart(p, "Mean position level by gender", "Year", "Position (mean ± SEM)", series)
		})

		if years := t.Years(); len(years) > 0 {
			first, last := years[0], years[len(years)-1]
			edge := t.Filter(func(rec *dataset.Record) bool { return rec.Year == first || rec.Year == last })
			dist, err := analysis.SharesOf(edge, opt.by(analysis.KeyYear), dataset.ColPosition, opt.Levels)
			r.note(err)
			r.emit(ShareTable("Position distribution, first and last year", dist))
			cats, bars := positionBars(dist, opt.Levels)
			r.chart("position_distribution.png", func(p string) error {
				return BarChart(p, "Position distribution", "Employees", cats, bars)
			})
		}
	}

	byGender, err := analysis.Describe(t, opt.by(analysis.KeyYear, analysis.KeyGender), salary)
	r.note(err)
	r.emit(StatsTable("Starting salary by year and gender", byGender, salary))

	trends, err := analysis.Trends(t, opt.by(analysis.KeyGender), salary)
	r.note(err)
	r.emit(TrendTable("Starting salary by gender over time", trends))
	series := TrendSeries(trends)
	r.chart("salary_trend.png", func(p string) error {
		return LineChart(p, "Starting salary over time", "Year", "Starting salary (mean ± SEM)", series)
	})

	growth, err := analysis.Growth(t, opt.by(analysis.KeyGender), salary, opt.Growth)
	r.note(err)
	gt := GrowthTable("Starting salary growth by gender", growth)
	r.emit(gt)
	if len(growth) > 0 {
		path := filepath.Join(r.OutDir, GrowthSummaryFile)
		if err := WriteCSV(path, gt); err != nil {
			return err
		}
		r.Artifacts = append(r.Artifacts, path)
		cats, bars := GrowthSeries(growth, analysis.KeyGender, true)
		r.chart("salary_growth.png", func(p string) error {
			return BarChart(p, "Annual starting salary growth", "Annual growth (%)", cats, bars)
		})
	}

	if t.HasColumn(dataset.ColDepartment) && opt.TopDepartments > 0 {
		top := analysis.TopValues(t, dataset.ColDepartment, opt.TopDepartments)
		r.emit(CountTable("Largest departments", dataset.ColDepartment, top))
		keep := map[string]bool{}
		for _, v := range top {
			keep[v.Value] = true
		}
		dept := t.Filter(func(rec *dataset.Record) bool { return keep[rec.Texts[dataset.ColDepartment]] })
		dt, err := analysis.Trends(dept, opt.by(analysis.KeyDepartment), salary)
		r.note(err)
		r.emit(TrendTable("Starting salary by department over time", dt))
		ds := TrendSeries(dt)
		r.chart("department_trend.png", func(p string) error {
			return LineChart(p, "Starting salary by department", "Year", "Starting salary (mean ± SEM)", ds)
		})
	}

	if len(derived) > 0 {
		r.salaryGrowth(t, derived, opt)
	}
	return nil
}

func (r *Runner) salaryGrowth(t *dataset.Table, derived []string, opt SalaryOptions) {
	total := analysis.ColTotalGrowth
	for _, k := range []analysis.Key{analysis.KeyGender, analysis.KeyDepartment, analysis.KeySalaryRange} {
		if k == analysis.KeyDepartment && !t.HasColumn(dataset.ColDepartment) {
			continue
		}
		stats, err := analysis.Describe(analysis.Having(t, total), opt.by(k), derived...)
		r.note(err)
		r.emit(StatsTable("Salary growth by "+string(k), stats, derived...))
		cats := make([]string, len(stats))
		s := Series{Name: total, Y: make([]float64, len(stats))}
		for i, st := range stats {
			cats[i] = st.Key.Label()
			s.Y[i] = st.Metrics[total].Mean
		}
		if len(stats) > 0 {
			r.chart("total_growth_by_"+string(k)+".png", func(p string) error {
				return BarChart(p, "Total salary growth by "+string(k), total, cats, []Series{s})
			})
		}
	}
}

// positionBars turns per-year position shares into count bars, one series
// per year, categories the position levels.
func positionBars(dist []analysis.ShareGroup, levels []string) ([]string, []Series) {
	cats := make([]string, len(levels))
	for i, l := range levels {
		cats[i] = "Level " + l
	}
	var out []Series
	for _, g := range dist {
		y, _ := g.Key.Get(analysis.KeyYear)
		s := Series{Name: "Year " + y, Y: make([]float64, len(levels))}
		for i, l := range levels {
			for _, c := range g.Shares {
				if c.Value == l {
					s.Y[i] = float64(c.Count)
				}
			}
		}
		out = append(out, s)
	}
	return cats, out
}

// Summary reports what was written.
func (r *Runner) Summary() string {
	return fmt.Sprintf("%d artifact(s) written, %d computation(s) skipped", len(r.Artifacts), len(r.Warnings))
}
