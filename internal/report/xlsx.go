package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Workbook collects tables into one XLSX file, one sheet per table.
type Workbook struct {
	f      *excelize.File
	sheets int
	names  map[string]bool
}

// NewWorkbook returns an empty workbook.
func NewWorkbook() *Workbook {
	return &Workbook{f: excelize.NewFile(), names: map[string]bool{}}
}

// Add writes t to a new sheet named after its title. Numeric cells are
// stored as numbers.
func (wb *Workbook) Add(t Table) error {
	name := wb.sheetName(t.Title)
	if wb.sheets == 0 {
		if err := wb.f.SetSheetName("Sheet1", name); err != nil {
			return err
		}
	} else if _, err := wb.f.NewSheet(name); err != nil {
		return err
	}
	wb.sheets++

	for i, h := range t.Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := wb.f.SetCellValue(name, cell, h); err != nil {
			return err
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = wb.f.SetColWidth(name, col, col, float64(max(12, len(h)+2)))
	}
	for r, row := range t.Rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			var val any = v
			if x, err := strconv.ParseFloat(v, 64); err == nil {
				val = x
			}
			if err := wb.f.SetCellValue(name, cell, val); err != nil {
				return err
			}
		}
	}
	return nil
}

// SaveAs writes the workbook to path.
func (wb *Workbook) SaveAs(path string) error {
	if wb.sheets == 0 {
		return fmt.Errorf("workbook has no sheets")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := wb.f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return wb.f.Close()
}

var sheetReplacer = strings.NewReplacer(":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")")

// sheetName makes title a unique, valid sheet name (max 31 runes).
func (wb *Workbook) sheetName(title string) string {
	base := strings.TrimSpace(sheetReplacer.Replace(title))
	if base == "" {
		base = "Sheet"
	}
	name := truncateRunes(base, 31)
	for i := 2; wb.names[name]; i++ {
		suffix := fmt.Sprintf(" %d", i)
		name = truncateRunes(base, 31-len(suffix)) + suffix
	}
	wb.names[name] = true
	return name
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
