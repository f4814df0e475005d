// Package manifest records what a command run read, produced and skipped.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/KaramelBytes/cohortscope-cli/internal/utils"
)

// FileName is written into the output directory of every run.
const FileName = "manifest.json"

// Input is one discovered source file.
type Input struct {
	File   string `json:"file"`
	Status string `json:"status"`
	Schema string `json:"schema,omitempty"`
	Rows   int    `json:"rows"`
	Error  string `json:"error,omitempty"`
}

// Artifact is one file the run wrote.
type Artifact struct {
	Path  string `json:"path"`
	Kind  string `json:"kind"`
	Bytes int64  `json:"bytes"`
}

// Manifest is persisted as manifest.json next to the artifacts it lists.
type Manifest struct {
	RunID      string            `json:"run_id"`
	Command    string            `json:"command"`
	Settings   map[string]string `json:"settings,omitempty"`
	Inputs     []Input           `json:"inputs,omitempty"`
	Artifacts  []Artifact        `json:"artifacts"`
	Warnings   []string          `json:"warnings,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`

	dir string
}

// New starts a manifest for a run writing into dir.
func New(runID, command, dir string) *Manifest {
	return &Manifest{
		RunID:     runID,
		Command:   command,
		Settings:  map[string]string{},
		StartedAt: time.Now(),
		dir:       dir,
	}
}

// Load reads manifest.json from dir.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("manifest not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	m.dir = dir
	return &m, nil
}

// Dir is where the manifest is written.
func (m *Manifest) Dir() string { return m.dir }

// Set records a setting the run used.
func (m *Manifest) Set(key, value string) { m.Settings[key] = value }

// AddInput records a source file.
func (m *Manifest) AddInput(in Input) { m.Inputs = append(m.Inputs, in) }

// AddArtifacts records written files; the kind is taken from the extension.
func (m *Manifest) AddArtifacts(paths ...string) {
	for _, p := range paths {
		kind := filepath.Ext(p)
		if kind != "" {
			kind = kind[1:]
		}
		m.Artifacts = append(m.Artifacts, Artifact{Path: p, Kind: kind, Bytes: utils.FileSize(p)})
	}
}

// Warn records a non-fatal problem.
func (m *Manifest) Warn(err error) {
	if err != nil {
		m.Warnings = append(m.Warnings, err.Error())
	}
}

// Save writes manifest.json atomically, artifacts in path order.
func (m *Manifest) Save() error {
	if m.dir == "" {
		return errors.New("manifest directory not set")
	}
	m.FinishedAt = time.Now()
	sort.SliceStable(m.Artifacts, func(i, j int) bool { return m.Artifacts[i].Path < m.Artifacts[j].Path })
	data, err := utils.PrettyJSON(m)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(m.dir, FileName), data)
}
