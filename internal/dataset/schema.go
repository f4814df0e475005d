package dataset

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Schema is the column convention of a source file.
type Schema int

const (
	// SchemaAuto detects the convention from the first row.
	SchemaAuto Schema = iota
	// SchemaHeadered files name their columns in the first row.
	SchemaHeadered
	// SchemaPositional files carry no usable header; columns come from
	// Options.PositionalColumns.
	SchemaPositional
)

func (s Schema) String() string {
	switch s {
	case SchemaHeadered:
		return "headered"
	case SchemaPositional:
		return "positional"
	default:
		return "auto"
	}
}

// ParseSchema maps a config value to a Schema.
func ParseSchema(s string) (Schema, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return SchemaAuto, nil
	case "headered", "header":
		return SchemaHeadered, nil
	case "positional", "fixed":
		return SchemaPositional, nil
	}
	return SchemaAuto, fmt.Errorf("unknown schema %q (use auto|headered|positional)", s)
}

// DefaultPositionalColumns is the layout of the salary-tracking exports.
var DefaultPositionalColumns = []string{
	ColName, ColGender, ColDepartment, ColAge, ColPosition, ColStartingSalary,
	"Age_24", "Age_26", "Age_28", "Age_30", "Age_32",
}

var knownColumns = []string{
	ColName, ColAge, ColDepartment, ColPosition, ColPerformance, ColStartingSalary,
	ColLowValueTasks, ColHighValueTasks, ColLeadershipTasks,
	ColYear, ColGroupType, ColGender,
}

var textColumns = map[string]bool{
	ColName:        true,
	ColDepartment:  true,
	ColPerformance: true,
}

var (
	separatorRun = regexp.MustCompile(`[\s\-]+`)
	ageColumn    = regexp.MustCompile(`(?i)^age_(\d+)$`)
)

// CanonicalColumn folds a header cell into its canonical column name. Unknown
// names are returned cleaned but otherwise unchanged.
func CanonicalColumn(raw string) string {
	s := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
	s = separatorRun.ReplaceAllString(s, "_")
	for _, k := range knownColumns {
		if strings.EqualFold(s, k) {
			return k
		}
	}
	if m := ageColumn.FindStringSubmatch(s); m != nil {
		return "Age_" + m[1]
	}
	return s
}

// isKnownColumn reports whether a canonical name is one the exports use.
func isKnownColumn(col string) bool {
	for _, k := range knownColumns {
		if k == col {
			return true
		}
	}
	return ageColumn.MatchString(col)
}

// isNumericColumn reports whether a known column must hold numbers.
func isNumericColumn(col string) bool {
	return isKnownColumn(col) && !textColumns[col] && !isDerivedColumn(col)
}

func isDerivedColumn(col string) bool {
	return col == ColYear || col == ColGroupType || col == ColGender
}

// detectSchema decides the convention from the first row of a file.
func detectSchema(first []string, positional []string) (Schema, error) {
	for _, cell := range first {
		if isKnownColumn(CanonicalColumn(cell)) {
			return SchemaHeadered, nil
		}
	}
	if len(positional) > 0 && len(first) == len(positional) {
		return SchemaPositional, nil
	}
	return SchemaAuto, fmt.Errorf("first row has %d fields and no known column name; cannot tell the schema", len(first))
}

// sniffDelimiter picks the most frequent of ',', ';' and tab in the first line.
func sniffDelimiter(path string) rune {
	f, err := os.Open(path)
	if err != nil {
		return ','
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	if !sc.Scan() {
		return ','
	}
	line := sc.Text()
	best, bestN := ',', strings.Count(line, ",")
	for _, d := range []rune{';', '\t'} {
		if n := strings.Count(line, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}
