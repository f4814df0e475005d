package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/KaramelBytes/cohortscope-cli/internal/predict"
	"github.com/KaramelBytes/cohortscope-cli/internal/report"
	"github.com/spf13/cobra"
)

var compareCmd = &cobra.Command{
	Use:   "compare <a.csv> <b.csv>",
	Short: "Compare the last value of each row across two extracted CSV files",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open %s: %w", args[0], err)
		}
		defer a.Close()
		b, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("open %s: %w", args[1], err)
		}
		defer b.Close()

		res, err := predict.CompareLastColumn(a, b)
		if err != nil {
			return err
		}
		na, nb := filepath.Base(args[0]), filepath.Base(args[1])
		report.Print(cmd.OutOrStdout(), report.Table{
			Title:  "Last-column comparison",
			Header: []string{"Outcome", "Rows"},
			Rows: [][]string{
				{na + " larger", strconv.Itoa(res.ABigger)},
				{nb + " larger", strconv.Itoa(res.BBigger)},
				{"equal", strconv.Itoa(res.Equal)},
				{"skipped", strconv.Itoa(res.Skipped)},
			},
		})
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d row pair(s) compared\n", okMark("✓"), res.Total())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)
}
