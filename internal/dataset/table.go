package dataset

import (
	"sort"
	"strconv"
)

// Canonical column names. Header cells are matched against these
// case-insensitively after spaces and dashes are folded into underscores.
const (
	ColName            = "Name"
	ColAge             = "Age"
	ColDepartment      = "Department"
	ColPosition        = "Position"
	ColPerformance     = "Performance"
	ColStartingSalary  = "Starting_Salary"
	ColLowValueTasks   = "Low_Value_Tasks"
	ColHighValueTasks  = "High_Value_Tasks"
	ColLeadershipTasks = "Leadership_Tasks"

	// Derived from the file name; always present after normalization.
	ColYear      = "Year"
	ColGroupType = "Group_Type"
	ColGender    = "Gender"
)

// TaskColumns are the task-allocation metrics of the headered exports.
var TaskColumns = []string{ColLowValueTasks, ColHighValueTasks, ColLeadershipTasks}

// Record is one normalized employee row. Numeric cells live in Numbers and
// text cells in Texts; a column absent from the source file, or a cell that
// failed to coerce, is simply missing from both maps.
type Record struct {
	Source string
	Line   int

	Year      int
	GroupType GroupType
	Gender    Gender

	Numbers map[string]float64
	Texts   map[string]string
}

func newRecord(source string, line int, meta FileMeta) *Record {
	return &Record{
		Source:    source,
		Line:      line,
		Year:      meta.Year,
		GroupType: meta.GroupType,
		Gender:    meta.Gender,
		Numbers:   map[string]float64{},
		Texts:     map[string]string{},
	}
}

// Number returns a numeric cell.
func (r *Record) Number(col string) (float64, bool) {
	if col == ColYear {
		return float64(r.Year), true
	}
	v, ok := r.Numbers[col]
	return v, ok
}

// Text returns a text cell.
func (r *Record) Text(col string) (string, bool) {
	v, ok := r.Texts[col]
	return v, ok
}

// Value returns any cell, including the derived ones, in string form.
func (r *Record) Value(col string) (string, bool) {
	switch col {
	case ColYear:
		return strconv.Itoa(r.Year), true
	case ColGroupType:
		return string(r.GroupType), true
	case ColGender:
		return string(r.Gender), true
	}
	if v, ok := r.Texts[col]; ok {
		return v, true
	}
	if v, ok := r.Numbers[col]; ok {
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}

// Table is the unified, in-memory concatenation of normalized records.
// Columns is the superset of every source's columns in first-seen order.
type Table struct {
	Records []*Record
	Columns []string
}

// NewTable builds a table over recs with the given column order. The derived
// columns are always appended.
func NewTable(cols []string, recs []*Record) *Table {
	t := &Table{Records: recs}
	t.addColumns(cols...)
	t.addColumns(ColYear, ColGroupType, ColGender)
	return t
}

func (t *Table) addColumns(cols ...string) {
	for _, c := range cols {
		if !t.HasColumn(c) {
			t.Columns = append(t.Columns, c)
		}
	}
}

// Len is the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// HasColumn reports whether any source contributed the column.
func (t *Table) HasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Concat returns a table holding every record of parts in order. Records are
// shared, not copied.
func Concat(parts ...*Table) *Table {
	out := &Table{}
	for _, p := range parts {
		if p == nil {
			continue
		}
		out.addColumns(p.Columns...)
		out.Records = append(out.Records, p.Records...)
	}
	out.addColumns(ColYear, ColGroupType, ColGender)
	return out
}

// Filter returns the records for which keep is true.
func (t *Table) Filter(keep func(*Record) bool) *Table {
	out := &Table{Columns: append([]string(nil), t.Columns...)}
	for _, r := range t.Records {
		if keep(r) {
			out.Records = append(out.Records, r)
		}
	}
	return out
}

// Derive adds a numeric column computed per record. Records for which fn
// reports false are left without the column. It returns how many records
// received a value.
func (t *Table) Derive(col string, fn func(*Record) (float64, bool)) int {
	t.addColumns(col)
	n := 0
	for _, r := range t.Records {
		if v, ok := fn(r); ok {
			r.Numbers[col] = v
			n++
		}
	}
	return n
}

// Years returns the distinct years present, ascending.
func (t *Table) Years() []int {
	seen := map[int]struct{}{}
	for _, r := range t.Records {
		seen[r.Year] = struct{}{}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Numbers collects every value present for col, skipping records without it.
func (t *Table) Numbers(col string) []float64 {
	var out []float64
	for _, r := range t.Records {
		if v, ok := r.Number(col); ok {
			out = append(out, v)
		}
	}
	return out
}
