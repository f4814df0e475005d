package cmd

import (
	"github.com/KaramelBytes/cohortscope-cli/internal/report"
	"github.com/spf13/cobra"
)

var (
	anaXLSX     bool
	anaNoCharts bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Task allocation and performance by group, gender and year",
	Long: `Loads every export under the input directory and reports task-allocation trends with SEM bands,
summary statistics per (Group_Type, Gender), Performance distributions, the share of grade A over time
and the Experimental minus Control gap per (Gender, Year).`,
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
		xlsx := c.XLSX || anaXLSX
		return runReports(c, "analyze", rep, out, xlsx, c.Charts && !anaNoCharts, func(r *report.Runner) error {
			return r.TaskAllocation(t)
		})
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&anaXLSX, "xlsx", false, "also write an XLSX workbook with one sheet per table")
	analyzeCmd.Flags().BoolVar(&anaNoCharts, "no-charts", false, "skip PNG charts")
}
