package cmd

import (
	"github.com/KaramelBytes/cohortscope-cli/internal/report"
	"github.com/spf13/cobra"
)

var (
	salStartYear int
	salEndYear   int
	salPeriods   int
	salTopDepts  int
	salXLSX      bool
	salNoCharts  bool
)

var salaryCmd = &cobra.Command{
	Use:   "salary",
	Short: "Starting salary, position and growth by gender, department and year",
	Long: `Loads the salary-tracking exports and reports starting salary by year and position or gender,
position distribution in the first and last year, year-over-year change, department trends, the growth
summary (growth_rates_summary.csv) and, when age columns exist, salary growth by gender, department and
starting salary range.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		t, rep, err := loadTable(c, out)
		if err != nil {
			return err
		}

		opt := report.DefaultSalaryOptions()
		opt.Growth = c.GrowthOptions()
		opt.Bins = c.SalaryBins
		opt.TopDepartments = c.TopDepartments
		f := cmd.Flags()
		if f.Changed("start-year") {
			opt.Growth.StartYear = salStartYear
		}
		if f.Changed("end-year") {
			opt.Growth.EndYear = salEndYear
		}
		if f.Changed("periods") {
			opt.Growth.Periods = salPeriods
		}
		if f.Changed("top-departments") {
			opt.TopDepartments = salTopDepts
		}
		return runReports(c, "salary", rep, out, c.XLSX || salXLSX, c.Charts && !salNoCharts, func(r *report.Runner) error {
			return r.Salary(t, opt)
		})
	},
}

func init() {
	rootCmd.AddCommand(salaryCmd)
	salaryCmd.Flags().IntVar(&salStartYear, "start-year", 0, "reference start year for growth (overrides config)")
	salaryCmd.Flags().IntVar(&salEndYear, "end-year", -1, "reference end year for growth; -1 = last observed (overrides config)")
	salaryCmd.Flags().IntVar(&salPeriods, "periods", 0, "compounding periods; 0 = observed years after start (overrides config)")
	salaryCmd.Flags().IntVar(&salTopDepts, "top-departments", 5, "departments with the most rows to trend (overrides config)")
	salaryCmd.Flags().BoolVar(&salXLSX, "xlsx", false, "also write an XLSX workbook with one sheet per table")
	salaryCmd.Flags().BoolVar(&salNoCharts, "no-charts", false, "skip PNG charts")
}
