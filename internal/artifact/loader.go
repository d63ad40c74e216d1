package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"dispatch-bench/internal/logging"
)

// ErrNotFound reports a missing or empty kernel binary. A benchmark cannot
// run without its device program, so callers treat this as a setup failure.
var ErrNotFound = errors.New("kernel artifact not found")

// KernelBinaryName is the precompiled busy-wait kernel the submission
// benchmark dispatches.
const KernelBinaryName = "dispatch_bench_eat_time.spv"

// Loader reads precompiled kernel binaries from an ordered list of search
// directories.
type Loader struct {
	dirs []string
}

// NewLoader builds a loader over the given directories. An empty list falls
// back to the current directory and the executable's directory.
func NewLoader(dirs ...string) *Loader {
	var searchDirs []string
	for _, d := range dirs {
		if d != "" {
			searchDirs = append(searchDirs, d)
		}
	}
	if len(searchDirs) == 0 {
		searchDirs = append(searchDirs, ".")
		if execPath, err := os.Executable(); err == nil {
			searchDirs = append(searchDirs, filepath.Dir(execPath))
		}
	}
	return &Loader{dirs: searchDirs}
}

// Load returns the contents of the named binary from the first search
// directory that holds a non-empty copy.
func (l *Loader) Load(name string) ([]byte, error) {
	logger := logging.GetLogger()

	for _, dir := range l.dirs {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if len(data) == 0 {
			logger.WithField("path", path).Warn("Ignoring empty kernel artifact")
			continue
		}
		logger.WithField("path", path).Debug("Loaded kernel artifact")
		return data, nil
	}

	return nil, fmt.Errorf("%w: %s (searched %v)", ErrNotFound, name, l.dirs)
}
