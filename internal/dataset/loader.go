package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// RowSkip records a row left out of the table.
type RowSkip struct {
	File   string
	Line   int
	Reason string
}

// RowResult is the outcome of normalizing one row: either a Record or a Skip.
type RowResult struct {
	Record *Record
	Skip   *RowSkip
}

// FileResult is one normalized source file.
type FileResult struct {
	Path   string
	Meta   FileMeta
	Schema Schema
	Table  *Table
	Skips  []RowSkip
	// CellWarnings counts optional numeric cells that failed to coerce and
	// were left missing.
	CellWarnings int
}

// LoadFile parses one source file and attaches meta to every row. Rows with
// the wrong field count, or with a required column that is empty or not
// numeric, are skipped. A file with no usable row is a *ParseError.
func LoadFile(path string, meta FileMeta, opt Options) (*FileResult, error) {
	name := filepath.Base(path)
	src, err := openSource(path, opt)
	if err != nil {
		return nil, &ParseError{File: name, Component: "file", Err: err}
	}
	defer src.Close()

	first, _, err := src.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{File: name, Component: "rows", Err: errors.New("file is empty")}
		}
		return nil, &ParseError{File: name, Component: "file", Err: err}
	}

	// Workbook rows drop trailing empty cells; a positional first row must be
	// measured at full width.
	positional := first
	if src.Ragged() {
		positional = padRow(first, len(opt.positionalColumns()))
	}

	schema := opt.Schema
	if schema == SchemaAuto {
		schema, err = detectSchema(positional, opt.positionalColumns())
		if err != nil {
			return nil, &ParseError{File: name, Component: "schema", Err: err}
		}
	}

	var cols []string
	var pending [][]string
	switch schema {
	case SchemaHeadered:
		cols = make([]string, len(first))
		for i, cell := range first {
			c := CanonicalColumn(cell)
			if c == "" {
				c = fmt.Sprintf("Unnamed_%d", i)
			}
			cols[i] = c
		}
	case SchemaPositional:
		cols = opt.positionalColumns()
		if !opt.SkipFirstRow {
			pending = append(pending, positional)
		}
	}

	res := &FileResult{Path: path, Meta: meta, Schema: schema}
	required := opt.requiredColumns(schema)
	var recs []*Record
	handle := func(rec []string, ln int) {
		rr := normalizeRow(name, ln, rec, cols, meta, required, &res.CellWarnings, opt.logger())
		if rr.Skip != nil {
			res.Skips = append(res.Skips, *rr.Skip)
			opt.logger().Warn("row skipped", "file", name, "line", ln, "reason", rr.Skip.Reason)
			return
		}
		recs = append(recs, rr.Record)
	}
	for _, rec := range pending {
		handle(rec, 1)
	}
	for {
		rec, line, err := src.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				res.Skips = append(res.Skips, RowSkip{File: name, Line: perr.Line, Reason: perr.Err.Error()})
				continue
			}
			return nil, &ParseError{File: name, Component: "row", Err: err}
		}
		if isBlank(rec) {
			continue
		}
		if src.Ragged() {
			rec = padRow(rec, len(cols))
		}
		handle(rec, line)
	}

	if len(recs) == 0 {
		return res, &ParseError{File: name, Component: "rows", Err: fmt.Errorf("no usable rows (%d skipped)", len(res.Skips))}
	}
	res.Table = NewTable(cols, recs)
	return res, nil
}

func padRow(rec []string, n int) []string {
	if len(rec) >= n {
		return rec
	}
	out := make([]string, n)
	copy(out, rec)
	return out
}

func normalizeRow(file string, line int, rec, cols []string, meta FileMeta, required map[string]bool, warnings *int, log *slog.Logger) RowResult {
	if len(rec) != len(cols) {
		return RowResult{Skip: &RowSkip{File: file, Line: line, Reason: fmt.Sprintf("expected %d fields, got %d", len(cols), len(rec))}}
	}
	out := newRecord(file, line, meta)
	for i, col := range cols {
		if isDerivedColumn(col) {
			// The file name is authoritative for these.
			continue
		}
		v := strings.TrimSpace(rec[i])
		if v == "" {
			if required[col] {
				return RowResult{Skip: &RowSkip{File: file, Line: line, Reason: fmt.Sprintf("required column %s is empty", col)}}
			}
			continue
		}
		if textColumns[col] {
			out.Texts[col] = v
			continue
		}
		x, ok := parseNumber(v)
		switch {
		case ok:
			out.Numbers[col] = x
		case required[col]:
			return RowResult{Skip: &RowSkip{File: file, Line: line, Reason: fmt.Sprintf("required column %s is not numeric: %q", col, v)}}
		case isNumericColumn(col):
			*warnings++
			log.Debug("non-numeric cell left missing", "file", file, "line", line, "column", col, "value", v)
		default:
			out.Texts[col] = v
		}
	}
	return RowResult{Record: out}
}

// parseNumber accepts plain numbers with optional currency sign and thousands
// commas, e.g. "3500", "3,500.5", "$4200".
func parseNumber(s string) (float64, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, false
	}
	return x, true
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
