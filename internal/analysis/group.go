package analysis

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/cohortscope-cli/internal/dataset"
)

// Key is a grouping dimension: any column of the unified table, or
// KeySalaryRange for the bucketed starting salary.
type Key string

const (
	KeyGroupType   Key = dataset.ColGroupType
	KeyGender      Key = dataset.ColGender
	KeyYear        Key = dataset.ColYear
	KeyDepartment  Key = dataset.ColDepartment
	KeyPosition    Key = dataset.ColPosition
	KeySalaryRange Key = "Starting_Salary_Range"
)

// DefaultSalaryBins are the right-inclusive starting salary bucket edges.
var DefaultSalaryBins = []float64{0, 2000, 4000, 6000, 8000, 10000, 12000}

// Grouping selects the key tuple. Bins are only used by KeySalaryRange.
type Grouping struct {
	Keys []Key
	Bins []float64
}

// By is shorthand for a Grouping over keys with the default salary bins.
func By(keys ...Key) Grouping {
	return Grouping{Keys: keys, Bins: DefaultSalaryBins}
}

func (g Grouping) has(k Key) bool {
	for _, x := range g.Keys {
		if x == k {
			return true
		}
	}
	return false
}

func (g Grouping) without(k Key) Grouping {
	out := Grouping{Bins: g.Bins}
	for _, x := range g.Keys {
		if x != k {
			out.Keys = append(out.Keys, x)
		}
	}
	return out
}

// GroupKey is one tuple of key values.
type GroupKey struct {
	Keys   []Key
	Values []string
}

// String renders "k=v | k=v", or "all" for the empty grouping.
func (k GroupKey) String() string {
	if len(k.Keys) == 0 {
		return "all"
	}
	parts := make([]string, len(k.Keys))
	for i, key := range k.Keys {
		parts[i] = fmt.Sprintf("%s=%s", key, k.Values[i])
	}
	return strings.Join(parts, " | ")
}

// Label renders the values only, e.g. "Experimental / Male".
func (k GroupKey) Label() string {
	if len(k.Values) == 0 {
		return "all"
	}
	return strings.Join(k.Values, " / ")
}

// Get returns the value for key.
func (k GroupKey) Get(key Key) (string, bool) {
	for i, x := range k.Keys {
		if x == key {
			return k.Values[i], true
		}
	}
	return "", false
}

func (k GroupKey) id() string { return strings.Join(k.Values, "\x00") }

type group struct {
	Key     GroupKey
	Records []*dataset.Record
}

// keyValue resolves one key for a record. Records without the column do
// not belong to any group of that key.
func keyValue(r *dataset.Record, k Key, bins []float64) (string, bool) {
	if k == KeySalaryRange {
		v, ok := r.Number(dataset.ColStartingSalary)
		if !ok {
			return "", false
		}
		label, _, ok := Bucket(bins, v)
		return label, ok
	}
	return r.Value(string(k))
}

// groupBy partitions records by g, in deterministic key order. Within a
// group, records keep table order.
func groupBy(t *dataset.Table, g Grouping) []*group {
	bins := g.Bins
	if len(bins) == 0 {
		bins = DefaultSalaryBins
	}
	byID := map[string]*group{}
	var groups []*group
	for _, r := range t.Records {
		vals := make([]string, len(g.Keys))
		ok := true
		for i, k := range g.Keys {
			if vals[i], ok = keyValue(r, k, bins); !ok {
				break
			}
		}
		if !ok {
			continue
		}
		key := GroupKey{Keys: g.Keys, Values: vals}
		gr, seen := byID[key.id()]
		if !seen {
			gr = &group{Key: key}
			byID[key.id()] = gr
			groups = append(groups, gr)
		}
		gr.Records = append(gr.Records, r)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return lessValues(groups[i].Key.Values, groups[j].Key.Values)
	})
	return groups
}

func lessValues(a, b []string) bool {
	for i := range a {
		if c := compareValues(a[i], b[i]); c != 0 {
			return c < 0
		}
	}
	return false
}

// compareValues orders numbers numerically, salary buckets by lower bound and
// anything else lexically.
func compareValues(a, b string) int {
	x, xok := sortValue(a)
	y, yok := sortValue(b)
	switch {
	case xok && yok:
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case xok:
		return -1
	case yok:
		return 1
	}
	return strings.Compare(a, b)
}

func sortValue(s string) (float64, bool) {
	if x, err := strconv.ParseFloat(s, 64); err == nil {
		return x, true
	}
	if strings.HasPrefix(s, "(") {
		lo, _, found := strings.Cut(strings.TrimPrefix(s, "("), ",")
		if !found {
			return 0, false
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
		return x, err == nil
	}
	return 0, false
}

// Bucket finds the right-inclusive bin (lo, hi] holding v. Values at or below
// the first edge or above the last are outside every bin.
func Bucket(bins []float64, v float64) (label string, lower float64, ok bool) {
	for i := 1; i < len(bins); i++ {
		if v > bins[i-1] && v <= bins[i] {
			return fmt.Sprintf("(%g, %g]", bins[i-1], bins[i]), bins[i-1], true
		}
	}
	return "", 0, false
}

// Having returns the records that carry a numeric value for every column.
func Having(t *dataset.Table, cols ...string) *dataset.Table {
	return t.Filter(func(r *dataset.Record) bool {
		for _, c := range cols {
			if _, ok := r.Number(c); !ok {
				return false
			}
		}
		return true
	})
}

// ValueCount is one category with its frequency.
type ValueCount struct {
	Value string
	Count int
}

// TopValues returns the n most frequent values of column, ties broken by
// value. n <= 0 returns all.
func TopValues(t *dataset.Table, column string, n int) []ValueCount {
	counts := map[string]int{}
	for _, r := range t.Records {
		if v, ok := r.Value(column); ok {
			counts[v]++
		}
	}
	out := make([]ValueCount, 0, len(counts))
	for v, c := range counts {
		out = append(out, ValueCount{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return compareValues(out[i].Value, out[j].Value) < 0
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
