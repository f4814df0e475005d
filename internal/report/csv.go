package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// GrowthSummaryFile is the report written next to the charts.
const GrowthSummaryFile = "growth_rates_summary.csv"

// WriteCSV writes t with its header to path, creating parent directories.
func WriteCSV(path string, t Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if len(t.Header) > 0 {
		_ = w.Write(t.Header)
	}
	_ = w.WriteAll(t.Rows)
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
