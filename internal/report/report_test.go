package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/cohortscope-cli/internal/analysis"
	"github.com/KaramelBytes/cohortscope-cli/internal/dataset"
	"github.com/KaramelBytes/cohortscope-cli/internal/logging"
)

func rec(gt dataset.GroupType, g dataset.Gender, year int, nums map[string]float64, texts map[string]string) *dataset.Record {
	r := &dataset.Record{Source: "t.csv", Year: year, GroupType: gt, Gender: g,
		Numbers: map[string]float64{}, Texts: map[string]string{}}
	for k, v := range nums {
		r.Numbers[k] = v
	}
	for k, v := range texts {
		r.Texts[k] = v
	}
	return r
}

func salaryTable() *dataset.Table {
	var recs []*dataset.Record
	for _, year := range []int{0, 1, 2} {
		for i, g := range []dataset.Gender{dataset.Male, dataset.Female, dataset.Male, dataset.Female} {
			base := 3000.0 + float64(i)*500
			recs = append(recs, rec(dataset.Experimental, g, year, map[string]float64{
				dataset.ColStartingSalary: base * (1 + 0.1*float64(year)),
				dataset.ColPosition:       float64(1 + (i+year)%5),
				"Age_24":                  base + 1000,
				"Age_32":                  base + 4000,
			}, map[string]string{dataset.ColDepartment: []string{"Sales", "IT"}[i%2]}))
		}
	}
	return dataset.NewTable([]string{dataset.ColDepartment, dataset.ColPosition, dataset.ColStartingSalary, "Age_24", "Age_32"}, recs)
}

func taskTable() *dataset.Table {
	var recs []*dataset.Record
	grades := []string{"A", "B", "C"}
	for year := 1; year <= 2; year++ {
		for i, gt := range []dataset.GroupType{dataset.Experimental, dataset.Control, dataset.Experimental, dataset.Control} {
			g := dataset.Male
			if i >= 2 {
				g = dataset.Female
			}
			recs = append(recs, rec(gt, g, year, map[string]float64{
				dataset.ColLowValueTasks:   float64(10 - year - i),
				dataset.ColHighValueTasks:  float64(5 + year + i),
				dataset.ColLeadershipTasks: float64(year),
			}, map[string]string{dataset.ColPerformance: grades[(i+year)%3]}))
		}
	}
	cols := append(append([]string(nil), dataset.TaskColumns...), dataset.ColPerformance)
	return dataset.NewTable(cols, recs)
}

func TestStatsTableLayout(t *testing.T) {
	stats, err := analysis.Describe(salaryTable(), analysis.By(analysis.KeyGender), dataset.ColStartingSalary)
	require.NoError(t, err)

	tbl := StatsTable("salary", stats, dataset.ColStartingSalary)
	assert.Equal(t, []string{"Gender", "n", "Starting_Salary mean", "Starting_Salary std", "Starting_Salary sem"}, tbl.Header)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "Female", tbl.Rows[0][0])
	assert.Equal(t, "6", tbl.Rows[0][1])
	assert.Equal(t, "salary (2 rows)", tbl.String())
}

func TestGrowthTableRoundsToTwoDecimals(t *testing.T) {
	key := analysis.GroupKey{Keys: []analysis.Key{analysis.KeyGender}, Values: []string{"Male"}}
	tbl := GrowthTable("g", []analysis.GrowthResult{{
		Key: key, StartYear: 0, EndYear: 5, Periods: 5,
		Start: 1000, End: 1500, Absolute: 500, TotalPct: 50, AnnualPct: 8.447177,
	}})
	require.Len(t, tbl.Rows, 1)
	assert.Contains(t, tbl.Header, "Total Growth (%)")
	assert.Contains(t, tbl.Header, "Annual Growth (%)")
	assert.Equal(t, "8.45", tbl.Rows[0][len(tbl.Rows[0])-1])
	assert.Equal(t, "50.00", tbl.Rows[0][len(tbl.Rows[0])-2])
}

func TestEmptyTablesPrintPlaceholder(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, StatsTable("nothing", nil))
	assert.Contains(t, buf.String(), "nothing")
	assert.Contains(t, buf.String(), "(no rows)")
}

func TestPrintRendersHeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, Table{Title: "Counts", Header: []string{"Department", "Count"}, Rows: [][]string{{"Sales", "4"}}})
	out := buf.String()
	assert.Contains(t, out, "Department")
	assert.Contains(t, out, "Sales")
	assert.Contains(t, out, "4")
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	require.NoError(t, WriteCSV(path, Table{Header: []string{"a", "b"}, Rows: [][]string{{"1", "x,y"}}}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "x,y"}}, rows)
}

func TestWorkbookSheets(t *testing.T) {
	wb := NewWorkbook()
	require.NoError(t, wb.Add(Table{Title: "Growth: by/gender", Header: []string{"Gender", "Total"}, Rows: [][]string{{"Male", "12.5"}}}))
	require.NoError(t, wb.Add(Table{Title: "Growth: by/gender", Header: []string{"x"}, Rows: [][]string{{"y"}}}))
	require.NoError(t, wb.Add(Table{Title: strings.Repeat("long", 20), Header: []string{"x"}, Rows: [][]string{{"1"}}}))
	path := filepath.Join(t.TempDir(), "summary.xlsx")
	require.NoError(t, wb.SaveAs(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	sheets := f.GetSheetList()
	require.Len(t, sheets, 3)
	assert.Equal(t, "Growth  by gender", sheets[0])
	assert.Equal(t, "Growth  by gender 2", sheets[1])
	assert.Len(t, []rune(sheets[2]), 31)

	v, err := f.GetCellValue(sheets[0], "B2")
	require.NoError(t, err)
	assert.Equal(t, "12.5", v)
}

func TestEmptyWorkbookRefusesToSave(t *testing.T) {
	assert.Error(t, NewWorkbook().SaveAs(filepath.Join(t.TempDir(), "x.xlsx")))
}

func TestLineChartWritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trend.png")
	err := LineChart(path, "trend", "Year", "mean", []Series{
		{Name: "Male", X: []float64{1, 2, 3}, Y: []float64{3, 4, 5}, Err: []float64{0.5, 0.2, 0.1}},
		{Name: "Female", X: []float64{1, 2, 3}, Y: []float64{2, 3, 6}},
	})
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestChartsRejectEmptyInput(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, LineChart(filepath.Join(dir, "a.png"), "a", "", "", nil))
	assert.Error(t, BarChart(filepath.Join(dir, "b.png"), "b", "", nil, nil))
	assert.Error(t, StackedShareChart(filepath.Join(dir, "c.png"), "c", nil))
}

func TestShareSeriesFollowsYear(t *testing.T) {
	shares, err := analysis.Shares(taskTable(), analysis.By(analysis.KeyGender, analysis.KeyYear), dataset.ColPerformance)
	require.NoError(t, err)

	series := ShareSeries(shares, "A")
	require.Len(t, series, 2)
	assert.Equal(t, "Female", series[0].Name)
	assert.Equal(t, []float64{1, 2}, series[0].X)
	for _, s := range series {
		assert.Len(t, s.Y, 2)
	}
}

func TestGrowthSeriesByGender(t *testing.T) {
	res, err := analysis.Growth(salaryTable(), analysis.By(analysis.KeyGender), dataset.ColStartingSalary, analysis.DefaultGrowthOptions())
	require.NoError(t, err)

	cats, series := GrowthSeries(res, analysis.KeyGender, false)
	assert.Equal(t, []string{"Female", "Male"}, cats)
	require.Len(t, series, 1)
	assert.Equal(t, "all", series[0].Name)
	assert.InDelta(t, 20.0, series[0].Y[0], 1e-9)
}

func TestRunnerSalaryWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	r := NewRunner(dir, "", &console, nil)
	r.Workbook = NewWorkbook()

	require.NoError(t, r.Salary(salaryTable(), DefaultSalaryOptions()))
	require.NoError(t, r.Workbook.SaveAs(filepath.Join(dir, "summary.xlsx")))

	assert.Contains(t, r.Artifacts, filepath.Join(dir, GrowthSummaryFile))
	assert.Contains(t, r.Artifacts, filepath.Join(dir, "salary_trend.png"))
	assert.FileExists(t, filepath.Join(dir, "total_growth_by_Gender.png"))
	assert.Contains(t, console.String(), "Starting salary growth by gender")

	f, err := os.Open(filepath.Join(dir, GrowthSummaryFile))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Gender", rows[0][0])
	assert.Equal(t, "20.00", rows[1][len(rows[1])-2])
}

func TestRunnerSalaryNeedsStartingSalary(t *testing.T) {
	r := NewRunner(t.TempDir(), "", nil, nil)
	assert.Error(t, r.Salary(taskTable(), DefaultSalaryOptions()))
}

func TestRunnerTaskAllocation(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(dir, "", nil, nil)

	require.NoError(t, r.TaskAllocation(taskTable()))
	for _, m := range dataset.TaskColumns {
		assert.FileExists(t, filepath.Join(dir, m+"_trend.png"))
	}
	assert.FileExists(t, filepath.Join(dir, "performance_distribution.png"))
	assert.FileExists(t, filepath.Join(dir, "grade_a_share.png"))
}

func TestRunnerWithoutChartsOnlyPrints(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	r := NewRunner(dir, "", &console, nil)
	r.Charts = false

	require.NoError(t, r.TaskAllocation(taskTable()))
	assert.Empty(t, r.Artifacts)
	assert.Contains(t, console.String(), "Experimental minus Control")
}

func TestRunnerCollectsComputationErrors(t *testing.T) {
	tbl := taskTable().Filter(func(r *dataset.Record) bool { return r.GroupType == dataset.Experimental })
	r := NewRunner(t.TempDir(), "", nil, nil)
	r.Charts = false

	require.NoError(t, r.TaskAllocation(tbl))
	require.NotEmpty(t, r.Warnings)
	var ce *analysis.ComputationError
	assert.ErrorAs(t, r.Warnings[0], &ce)
	assert.Contains(t, r.Summary(), "computation(s) skipped")
}

func TestRunnerWarningsCarryRunID(t *testing.T) {
	tbl := taskTable().Filter(func(r *dataset.Record) bool { return r.GroupType == dataset.Experimental })
	var buf bytes.Buffer
	log, err := logging.New(&buf, logging.Options{Level: "warn"})
	require.NoError(t, err)
	r := NewRunner(t.TempDir(), "RUN-1", nil, log)
	r.Charts = false

	require.NoError(t, r.TaskAllocation(tbl))
	require.NotEmpty(t, r.Warnings)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.Contains(t, line, "level=WARN")
		assert.Contains(t, line, "run_id=RUN-1")
	}
	assert.Contains(t, buf.String(), `msg="computation skipped"`)
}

func TestRunnerSalaryDerivesOnCallerTable(t *testing.T) {
	tbl := salaryTable()
	r := NewRunner(t.TempDir(), "", nil, nil)
	r.Charts = false

	require.NoError(t, r.Salary(tbl, DefaultSalaryOptions()))
	assert.True(t, tbl.HasColumn(analysis.ColTotalGrowth))
	assert.True(t, tbl.HasColumn("Growth_24"))
	v, ok := tbl.Records[0].Number(analysis.ColTotalGrowth)
	require.True(t, ok)
	assert.Equal(t, 4000.0, v)
}
