package dataset

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPattern matches every CSV export in the input directory.
const DefaultPattern = "*.csv"

// Discover returns the regular files in dir matching pattern, in the order the
// filesystem glob yields them. An empty result is a *DiscoveryError: the rest
// of the pipeline needs at least one table.
func Discover(dir, pattern string) ([]string, error) {
	if dir == "" {
		dir = "."
	}
	if pattern == "" {
		pattern = DefaultPattern
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
	}
	var files []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, m)
	}
	if len(files) == 0 {
		return nil, &DiscoveryError{Dir: dir, Pattern: pattern}
	}
	return files, nil
}
