package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/cohortscope-cli/internal/analysis"
	"github.com/spf13/cobra"
)

var (
	insOutputPath string
	insSampleRows int
	insGroupBy    []string
	insCorr       bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Summarize the unified table: columns, kinds, group sizes and sample rows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		t, _, err := loadTable(c, cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		opt := analysis.DefaultProfileOptions()
		if insSampleRows >= 0 {
			opt.SampleRows = insSampleRows
		}
		opt.Correlations = insCorr
		for _, k := range insGroupBy {
			opt.GroupBy = append(opt.GroupBy, analysis.Key(k))
		}
		md := analysis.Profile(t, filepath.Base(filepath.Clean(c.InputDir)), opt).Markdown()

		if insOutputPath != "" {
			if err := os.WriteFile(insOutputPath, []byte(md), 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(out, "%s Wrote overview to %s\n", okMark("✓"), insOutputPath)
			return nil
		}
		fmt.Fprintln(out, md)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&insOutputPath, "out", "", "optional path to write the overview (Markdown)")
	inspectCmd.Flags().IntVar(&insSampleRows, "sample-rows", 5, "number of sample rows to include")
	inspectCmd.Flags().StringSliceVar(&insGroupBy, "group-by", []string{"Group_Type", "Gender"}, "columns to group by (repeatable)")
	inspectCmd.Flags().BoolVar(&insCorr, "correlations", true, "compute Pearson correlations among numeric columns")
}
