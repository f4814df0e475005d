package predict

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
)

// ExtractOptions configures Extract.
type ExtractOptions struct {
	// Marker precedes every amount, e.g. "$".
	Marker string
	// Width is the number of values per output row.
	Width int
	// MaxRows caps the number of rows kept; 0 means no cap.
	MaxRows int
}

// DefaultExtractOptions groups dollar amounts five per row, at most 100 rows.
func DefaultExtractOptions() ExtractOptions {
	return ExtractOptions{Marker: "$", Width: 5, MaxRows: 100}
}

// Extraction is the result of scanning model output for marked amounts.
//
// It is lossy and best effort. Numbers without the marker are dropped, and
// rows are formed purely by position in the flat sequence: nothing checks
// that the third value of a row really is the salary at the third age. Treat
// Rows as untrusted until validated against the source text.
type Extraction struct {
	// Values is every extracted amount, left to right, top to bottom.
	Values []int64
	// Rows holds the complete rows of Width values, capped at MaxRows.
	Rows [][]int64
	// Remainder is the trailing values that did not fill a row.
	Remainder []int64
	// Truncated counts complete rows dropped by MaxRows.
	Truncated int
	// Unmatched counts markers not followed by a usable integer.
	Unmatched int
}

// Extract scans r for Marker followed by digits. Every occurrence counts, in
// reading order.
func Extract(r io.Reader, opt ExtractOptions) (*Extraction, error) {
	if opt.Marker == "" {
		return nil, errors.New("extraction marker cannot be empty")
	}
	if opt.Width < 1 {
		return nil, fmt.Errorf("row width must be at least 1, got %d", opt.Width)
	}
	marker := regexp.QuoteMeta(opt.Marker)
	amount := regexp.MustCompile(marker + `(\d+)`)
	bare := regexp.MustCompile(marker)

	out := &Extraction{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for sc.Scan() {
		line := sc.Text()
		matches := amount.FindAllStringSubmatch(line, -1)
		out.Unmatched += len(bare.FindAllStringIndex(line, -1)) - len(matches)
		for _, m := range matches {
			v, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				out.Unmatched++
				continue
			}
			out.Values = append(out.Values, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read extraction input: %w", err)
	}

	full := len(out.Values) / opt.Width
	for i := 0; i < full; i++ {
		if opt.MaxRows > 0 && len(out.Rows) >= opt.MaxRows {
			out.Truncated = full - i
			break
		}
		out.Rows = append(out.Rows, out.Values[i*opt.Width:(i+1)*opt.Width])
	}
	if rem := len(out.Values) % opt.Width; rem > 0 {
		out.Remainder = out.Values[len(out.Values)-rem:]
	}
	return out, nil
}

// WriteRows writes rows as CSV.
func WriteRows(w io.Writer, rows [][]int64) error {
	cw := csv.NewWriter(w)
	for _, row := range rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = strconv.FormatInt(v, 10)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
