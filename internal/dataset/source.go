package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// rowSource yields the rows of one input file with their 1-based line.
type rowSource interface {
	Read() (rec []string, line int, err error)
	// Ragged sources drop trailing empty cells; the loader pads their rows.
	Ragged() bool
	Close() error
}

type sourceKind struct {
	exts []string
	open func(path string, opt Options) (rowSource, error)
}

var sourceKinds = []sourceKind{
	{exts: []string{".csv", ".tsv", ".txt"}, open: openCSV},
	{exts: []string{".xlsx", ".xlsm"}, open: openXLSX},
}

// openSource picks a reader by extension; unknown extensions are read as CSV.
func openSource(path string, opt Options) (rowSource, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, k := range sourceKinds {
		for _, e := range k.exts {
			if e == ext {
				return k.open(path, opt)
			}
		}
	}
	return openCSV(path, opt)
}

type csvSource struct {
	f *os.File
	r *csv.Reader
}

func openCSV(path string, opt Options) (rowSource, error) {
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	r.Comma = delim
	return &csvSource{f: f, r: r}, nil
}

func (s *csvSource) Read() ([]string, int, error) {
	rec, err := s.r.Read()
	if err != nil {
		return nil, 0, err
	}
	line, _ := s.r.FieldPos(0)
	return rec, line, nil
}

func (s *csvSource) Ragged() bool { return false }
func (s *csvSource) Close() error { return s.f.Close() }

// xlsxSource reads the first sheet of a workbook.
type xlsxSource struct {
	f    *excelize.File
	rows [][]string
	next int
}

func openXLSX(path string, _ Options) (rowSource, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return &xlsxSource{f: f, rows: rows}, nil
}

func (s *xlsxSource) Read() ([]string, int, error) {
	if s.next >= len(s.rows) {
		return nil, 0, io.EOF
	}
	s.next++
	return s.rows[s.next-1], s.next, nil
}

func (s *xlsxSource) Ragged() bool { return true }
func (s *xlsxSource) Close() error { return s.f.Close() }
