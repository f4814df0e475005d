package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/fatih/color"

	cfgpkg "github.com/KaramelBytes/cohortscope-cli/internal/config"
	"github.com/KaramelBytes/cohortscope-cli/internal/dataset"
	"github.com/KaramelBytes/cohortscope-cli/internal/manifest"
	"github.com/KaramelBytes/cohortscope-cli/internal/report"
)

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	warnMark = color.New(color.FgYellow).SprintFunc()
)

// loadTable runs discovery and normalization with the effective config and
// prints the run summary to w.
func loadTable(c *cfgpkg.Global, w io.Writer) (*dataset.Table, *dataset.Report, error) {
	opt, err := c.DatasetOptions()
	if err != nil {
		return nil, nil, err
	}
	opt.Logger = logger
	t, rep, err := dataset.Build(opt)
	if rep != nil && rep.Discovered > 0 {
		fmt.Fprint(w, rep.Summary())
	}
	if err != nil {
		var derr *dataset.DiscoveryError
		if errors.As(err, &derr) {
			return nil, rep, fmt.Errorf("%w (set --input or input_dir)", err)
		}
		return nil, rep, err
	}
	fmt.Fprintf(w, "%s Loaded %d row(s) from %d file(s)\n", okMark("✓"), t.Len(), rep.Normalized)
	if len(rep.Skipped) > 0 {
		fmt.Fprintf(w, "%s %d file(s) skipped; see the log for causes\n", warnMark("⚠ Warning:"), len(rep.Skipped))
	}
	return t, rep, nil
}

// newManifest starts a manifest for command and records the inputs of rep.
func newManifest(c *cfgpkg.Global, command string, rep *dataset.Report) *manifest.Manifest {
	runID := ""
	if rep != nil {
		runID = rep.RunID
	}
	m := manifest.New(runID, command, c.OutputDir)
	m.Set("input_dir", c.InputDir)
	m.Set("pattern", c.Pattern)
	m.Set("schema", c.Schema)
	if rep == nil {
		return m
	}
	for _, f := range rep.Files {
		m.AddInput(manifest.Input{File: filepath.Base(f.Path), Status: "normalized", Schema: f.Schema.String(), Rows: f.Table.Len()})
	}
	for _, s := range rep.Skipped {
		m.AddInput(manifest.Input{File: filepath.Base(s.Path), Status: "skipped", Error: s.Err.Error()})
	}
	return m
}

// runReports executes fn with a runner wired to the config and writes the
// workbook and manifest afterwards.
func runReports(c *cfgpkg.Global, command string, rep *dataset.Report, w io.Writer, xlsx, charts bool, fn func(*report.Runner) error) error {
	runID := ""
	if rep != nil {
		runID = rep.RunID
	}
	r := report.NewRunner(c.OutputDir, runID, w, logger)
	r.Charts = charts
	if xlsx {
		r.Workbook = report.NewWorkbook()
	}
	if err := fn(r); err != nil {
		return err
	}
	if r.Workbook != nil {
		path := filepath.Join(c.OutputDir, command+"_summary.xlsx")
		if err := r.Workbook.SaveAs(path); err != nil {
			fmt.Fprintf(w, "%s workbook not written: %v\n", warnMark("⚠ Warning:"), err)
		} else {
			r.Artifacts = append(r.Artifacts, path)
		}
	}

	m := newManifest(c, command, rep)
	m.Set("charts", strconv.FormatBool(charts))
	m.AddArtifacts(r.Artifacts...)
	for _, e := range r.Warnings {
		m.Warn(e)
	}
	if err := m.Save(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%s %s; results in %s\n", okMark("✓"), r.Summary(), c.OutputDir)
	return nil
}
