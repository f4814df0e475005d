package dataset

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// GroupType is the cohort a file belongs to.
type GroupType string

const (
	Experimental GroupType = "Experimental"
	Control      GroupType = "Control"
)

// Gender of every employee in a file.
type Gender string

const (
	Male   Gender = "Male"
	Female Gender = "Female"
)

// DefaultYearPattern captures N in "第N年" ("year N").
const DefaultYearPattern = `第(\d+)年`

// FileMeta is the metadata encoded in a source file name.
type FileMeta struct {
	GroupType GroupType
	Gender    Gender
	Year      int
}

// FilenameRules decides FileMeta from a file name.
//
// The male marker depends on the group: control exports mark men with
// ControlMaleMarker, experimental exports with ExperimentalMaleMarker. The two
// exports were named independently; the asymmetry is kept as observed.
type FilenameRules struct {
	ControlMarker          string
	ControlMaleMarker      string
	ExperimentalMaleMarker string
	YearPattern            *regexp.Regexp
}

// DefaultFilenameRules returns the markers used by the cohort exports.
func DefaultFilenameRules() FilenameRules {
	return FilenameRules{
		ControlMarker:          "对照组",
		ControlMaleMarker:      "S_",
		ExperimentalMaleMarker: "男",
		YearPattern:            regexp.MustCompile(DefaultYearPattern),
	}
}

// NewFilenameRules builds rules from configured markers. yearPattern must
// contain exactly one capture group for the year digits.
func NewFilenameRules(controlMarker, controlMale, experimentalMale, yearPattern string) (FilenameRules, error) {
	if yearPattern == "" {
		yearPattern = DefaultYearPattern
	}
	re, err := regexp.Compile(yearPattern)
	if err != nil {
		return FilenameRules{}, fmt.Errorf("compile year pattern: %w", err)
	}
	if re.NumSubexp() != 1 {
		return FilenameRules{}, fmt.Errorf("year pattern %q must have exactly one capture group", yearPattern)
	}
	return FilenameRules{
		ControlMarker:          controlMarker,
		ControlMaleMarker:      controlMale,
		ExperimentalMaleMarker: experimentalMale,
		YearPattern:            re,
	}, nil
}

var (
	errNoYear        = errors.New("no year token in file name")
	errAmbiguousYear = errors.New("file name carries conflicting year tokens")
)

// Parse derives FileMeta from the base name of path. A name with no group or
// gender marker defaults to Experimental/Female; only the year token is
// mandatory.
func (r FilenameRules) Parse(path string) (FileMeta, error) {
	name := filepath.Base(path)
	var meta FileMeta

	if r.ControlMarker != "" && strings.Contains(name, r.ControlMarker) {
		meta.GroupType = Control
		meta.Gender = genderBy(name, r.ControlMaleMarker)
	} else {
		meta.GroupType = Experimental
		meta.Gender = genderBy(name, r.ExperimentalMaleMarker)
	}

	re := r.YearPattern
	if re == nil {
		re = regexp.MustCompile(DefaultYearPattern)
	}
	found := re.FindAllStringSubmatch(name, -1)
	if len(found) == 0 {
		return FileMeta{}, &ParseError{File: name, Component: "year", Err: errNoYear}
	}
	year := -1
	for _, m := range found {
		y, err := strconv.Atoi(m[1])
		if err != nil {
			return FileMeta{}, &ParseError{File: name, Component: "year", Err: err}
		}
		if year >= 0 && y != year {
			return FileMeta{}, &ParseError{File: name, Component: "year", Err: errAmbiguousYear}
		}
		year = y
	}
	meta.Year = year
	return meta, nil
}

func genderBy(name, maleMarker string) Gender {
	if maleMarker != "" && strings.Contains(name, maleMarker) {
		return Male
	}
	return Female
}
