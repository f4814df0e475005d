package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/cohortscope-cli/internal/predict"
	"github.com/spf13/cobra"
)

var (
	extOutput  string
	extMarker  string
	extWidth   int
	extMaxRows int
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Pull marker-prefixed amounts out of free text into fixed-width CSV rows",
	Long: `Scans a prediction text file for every marker-prefixed integer (default "$4,200" style amounts),
in reading order, and groups them into rows of a fixed width. Values that do not fill a last row, rows past
the cap and markers without a number are reported, never silently dropped. The grouping is positional:
nothing checks that a row's values describe one person.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opt := predict.DefaultExtractOptions()
		if cfg != nil {
			opt = cfg.ExtractOptions()
		}
		f := cmd.Flags()
		if f.Changed("marker") {
			opt.Marker = extMarker
		}
		if f.Changed("width") {
			opt.Width = extWidth
		}
		if f.Changed("max-rows") {
			opt.MaxRows = extMaxRows
		}

		in, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer in.Close()
		res, err := predict.Extract(in, opt)
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if extOutput != "" {
			if err := os.MkdirAll(filepath.Dir(extOutput), 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			fo, err := os.Create(extOutput)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer fo.Close()
			w = fo
		}
		if err := predict.WriteRows(w, res.Rows); err != nil {
			return err
		}

		msg := cmd.ErrOrStderr()
		fmt.Fprintf(msg, "%s %d value(s) found, %d row(s) of %d written\n", okMark("✓"), len(res.Values), len(res.Rows), opt.Width)
		if len(res.Remainder) > 0 {
			fmt.Fprintf(msg, "%s %d trailing value(s) did not fill a row: %v\n", warnMark("⚠ Warning:"), len(res.Remainder), res.Remainder)
		}
		if res.Truncated > 0 {
			fmt.Fprintf(msg, "%s %d row(s) dropped past --max-rows %d\n", warnMark("⚠ Warning:"), res.Truncated, opt.MaxRows)
		}
		if res.Unmatched > 0 {
			fmt.Fprintf(msg, "%s %d %q marker(s) not followed by a number\n", warnMark("⚠ Warning:"), res.Unmatched, opt.Marker)
		}
		logger.Info("extraction finished", "file", filepath.Base(args[0]), "values", len(res.Values),
			"rows", len(res.Rows), "remainder", len(res.Remainder), "truncated", res.Truncated, "unmatched", res.Unmatched)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVar(&extOutput, "out", "", "CSV output path (default stdout)")
	extractCmd.Flags().StringVar(&extMarker, "marker", "$", "marker preceding each amount (overrides config)")
	extractCmd.Flags().IntVar(&extWidth, "width", 5, "values per output row (overrides config)")
	extractCmd.Flags().IntVar(&extMaxRows, "max-rows", 100, "maximum rows to keep; 0 = no cap (overrides config)")
}
