package dataset

import (
	"errors"
	"fmt"
)

// ErrEmptyTable is returned by Build when files were found but none of them
// produced a usable row.
var ErrEmptyTable = errors.New("no usable rows were loaded from the input files")

// DiscoveryError reports that no input file matched the configured pattern.
// It is fatal for a run.
type DiscoveryError struct {
	Dir     string
	Pattern string
	Err     error
}

func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("no input files found in %s matching %q: %v", e.Dir, e.Pattern, e.Err)
	}
	return fmt.Sprintf("no input files found in %s matching %q", e.Dir, e.Pattern)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// ParseError reports a file or row that could not be normalized. Line is 0 for
// file-level failures. Component names what could not be derived, e.g.
// "year", "schema", "rows" or a column name.
type ParseError struct {
	File      string
	Line      int
	Component string
	Err       error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s line %d: %s: %v", e.File, e.Line, e.Component, e.Err)
	}
	return fmt.Sprintf("parse %s: %s: %v", e.File, e.Component, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
