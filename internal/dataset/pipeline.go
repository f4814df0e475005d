package dataset

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/KaramelBytes/cohortscope-cli/internal/logging"
)

// Options configures one pipeline run. The zero value is not usable; start
// from DefaultOptions.
type Options struct {
	Dir     string
	Pattern string

	Schema Schema
	// PositionalColumns names the fields of positional files, in order.
	PositionalColumns []string
	// SkipFirstRow drops the first row of positional files, for exports that
	// carry a header that must be replaced rather than trusted.
	SkipFirstRow bool
	// Required columns must be present and numeric (or non-empty text) for a
	// row to be kept. Nil selects the schema default: none for headered
	// files, Starting_Salary for positional ones.
	Required []string
	// Delimiter overrides delimiter sniffing when non-zero.
	Delimiter rune

	Rules  FilenameRules
	Logger *slog.Logger
}

// DefaultOptions reads *.csv from the working directory with the standard
// naming rules and schema detection.
func DefaultOptions() Options {
	return Options{
		Dir:               ".",
		Pattern:           DefaultPattern,
		Schema:            SchemaAuto,
		PositionalColumns: append([]string(nil), DefaultPositionalColumns...),
		Rules:             DefaultFilenameRules(),
	}
}

func (o Options) positionalColumns() []string {
	if len(o.PositionalColumns) == 0 {
		return DefaultPositionalColumns
	}
	cols := make([]string, len(o.PositionalColumns))
	for i, c := range o.PositionalColumns {
		cols[i] = CanonicalColumn(c)
	}
	return cols
}

func (o Options) requiredColumns(s Schema) map[string]bool {
	req := o.Required
	if req == nil && s == SchemaPositional {
		req = []string{ColStartingSalary}
	}
	out := make(map[string]bool, len(req))
	for _, c := range req {
		out[CanonicalColumn(c)] = true
	}
	return out
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

// FileSkip records a discovered file left out of the table.
type FileSkip struct {
	Path string
	Err  error
}

// Report summarizes a run: what was discovered, what made it into the table
// and what was skipped with which cause.
type Report struct {
	RunID        string
	Discovered   int
	Normalized   int
	Rows         int
	CellWarnings int
	Files        []*FileResult
	Skipped      []FileSkip
	RowSkips     []RowSkip
}

// Summary renders the counts and every skip cause, one per line.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: discovered %d file(s), normalized %d, skipped %d; %d row(s) loaded, %d row(s) skipped",
		r.RunID, r.Discovered, r.Normalized, len(r.Skipped), r.Rows, len(r.RowSkips))
	if r.CellWarnings > 0 {
		fmt.Fprintf(&b, ", %d cell(s) left missing", r.CellWarnings)
	}
	b.WriteString("\n")
	for _, s := range r.Skipped {
		fmt.Fprintf(&b, "  - skipped %s: %v\n", filepath.Base(s.Path), s.Err)
	}
	for _, s := range r.RowSkips {
		fmt.Fprintf(&b, "  - %s line %d: %s\n", s.File, s.Line, s.Reason)
	}
	return b.String()
}

// Build runs discovery, normalization and concatenation. It returns a
// *DiscoveryError when nothing matches and ErrEmptyTable when no file yields a
// usable row; every other failure is recorded in the report and the run goes
// on. The report is returned alongside errors whenever one exists.
func Build(opt Options) (*Table, *Report, error) {
	log := opt.logger()
	rep := &Report{RunID: uuid.NewString()}
	log = logging.ForRun(log, rep.RunID)

	paths, err := Discover(opt.Dir, opt.Pattern)
	if err != nil {
		return nil, rep, err
	}
	rep.Discovered = len(paths)
	log.Info("input files discovered", "dir", opt.Dir, "pattern", opt.Pattern, "count", len(paths))

	opt.Logger = log
	var parts []*Table
	for _, p := range paths {
		fr, err := normalizeFile(p, opt)
		if fr != nil {
			rep.RowSkips = append(rep.RowSkips, fr.Skips...)
			rep.CellWarnings += fr.CellWarnings
		}
		if err != nil {
			rep.Skipped = append(rep.Skipped, FileSkip{Path: p, Err: err})
			log.Warn("file skipped", "file", filepath.Base(p), "err", err)
			continue
		}
		rep.Files = append(rep.Files, fr)
		rep.Normalized++
		rep.Rows += fr.Table.Len()
		log.Debug("file normalized", "file", filepath.Base(p), "schema", fr.Schema.String(),
			"group", fr.Meta.GroupType, "gender", fr.Meta.Gender, "year", fr.Meta.Year, "rows", fr.Table.Len())
		parts = append(parts, fr.Table)
	}
	if len(parts) == 0 {
		return nil, rep, ErrEmptyTable
	}
	t := Concat(parts...)
	log.Info("unified table built", "rows", t.Len(), "columns", len(t.Columns))
	return t, rep, nil
}

func normalizeFile(path string, opt Options) (*FileResult, error) {
	meta, err := opt.Rules.Parse(path)
	if err != nil {
		return nil, err
	}
	fr, err := LoadFile(path, meta, opt)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			return fr, err
		}
		return fr, &ParseError{File: filepath.Base(path), Component: "file", Err: err}
	}
	return fr, nil
}
