package predict

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
)

// Comparison counts, row by row, how the last integer of A relates to B.
type Comparison struct {
	ABigger int
	BBigger int
	Equal   int
	// Skipped counts row pairs where either side had no integer last cell.
	Skipped int
}

// Total is the number of row pairs compared.
func (c Comparison) Total() int { return c.ABigger + c.BBigger + c.Equal }

// CompareLastColumn walks a and b in lockstep, stopping at the shorter one.
func CompareLastColumn(a, b io.Reader) (Comparison, error) {
	ra, rb := newLenientReader(a), newLenientReader(b)
	var c Comparison
	for {
		rowA, errA := ra.Read()
		rowB, errB := rb.Read()
		if errors.Is(errA, io.EOF) || errors.Is(errB, io.EOF) {
			return c, nil
		}
		if err := firstHardError(errA, errB); err != nil {
			return c, err
		}
		x, okA := lastInt(rowA, errA)
		y, okB := lastInt(rowB, errB)
		switch {
		case !okA || !okB:
			c.Skipped++
		case x > y:
			c.ABigger++
		case y > x:
			c.BBigger++
		default:
			c.Equal++
		}
	}
}

func newLenientReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

// firstHardError ignores per-row CSV syntax errors, which only skip the row.
func firstHardError(errs ...error) error {
	for _, err := range errs {
		var perr *csv.ParseError
		if err != nil && !errors.As(err, &perr) {
			return err
		}
	}
	return nil
}

func lastInt(row []string, err error) (int64, bool) {
	if err != nil || len(row) == 0 {
		return 0, false
	}
	v, perr := strconv.ParseInt(strings.TrimSpace(row[len(row)-1]), 10, 64)
	return v, perr == nil
}
