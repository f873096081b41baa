// Package interpreter provides PathEnumerator, the concrete
// InterpreterEnumerator that scans $PATH for Python interpreters.
package interpreter

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/skiffrun/skiff/internal/catalogue"
	"github.com/skiffrun/skiff/internal/version"
)

var interpreterName = regexp.MustCompile(`^python(3(\.\d+)?)?$`)

// PathEnumerator scans every directory on $PATH for executables matching
// "python3", "python3.N" or "python", probes each with "--version", and
// reports whether a sibling pip/pip3 is installed alongside it.
type PathEnumerator struct {
	// Path overrides $PATH for testing; empty means use the real
	// environment variable.
	Path string
}

func (e PathEnumerator) dirs() []string {
	path := e.Path
	if path == "" {
		path = os.Getenv("PATH")
	}
	return filepath.SplitList(path)
}

type candidate struct {
	executablePath string
	version        version.Version
	hasInstaller   bool
	installerVer   string
}

// Enumerate implements catalogue.InterpreterEnumerator. Results are sorted
// highest-version-first — "the enumerator is responsible for its own
// ordering."
func (e PathEnumerator) Enumerate(ctx context.Context) ([]catalogue.InterpreterCandidate, error) {
	seen := make(map[string]bool)
	var found []candidate

	for _, dir := range e.dirs() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !interpreterName.MatchString(entry.Name()) {
				continue
			}
			exePath := filepath.Join(dir, entry.Name())
			resolved, err := filepath.EvalSymlinks(exePath)
			if err != nil {
				resolved = exePath
			}
			if seen[resolved] {
				continue
			}
			seen[resolved] = true

			v, ok := probeVersion(ctx, exePath)
			if !ok {
				continue
			}

			hasInstaller, installerVer := probeInstaller(dir)
			found = append(found, candidate{
				executablePath: exePath,
				version:        v,
				hasInstaller:   hasInstaller,
				installerVer:   installerVer,
			})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return version.Compare(found[i].version, found[j].version) > 0
	})

	results := make([]catalogue.InterpreterCandidate, len(found))
	for i, c := range found {
		results[i] = catalogue.InterpreterCandidate{
			ExecutablePath:     c.executablePath,
			Version:            c.version.String(),
			HasUsableInstaller: c.hasInstaller,
			InstallerVersion:   c.installerVer,
		}
	}
	return results, nil
}

func probeVersion(ctx context.Context, exePath string) (version.Version, bool) {
	out, err := exec.CommandContext(ctx, exePath, "--version").CombinedOutput()
	if err != nil {
		return version.Version{}, false
	}
	// "Python 3.12.5\n"
	fields := strings.Fields(string(out))
	if len(fields) < 2 {
		return version.Version{}, false
	}
	return version.Parse(fields[len(fields)-1])
}

func probeInstaller(dir string) (bool, string) {
	for _, name := range []string{"pip3", "pip"} {
		pipPath := filepath.Join(dir, name)
		if info, err := os.Stat(pipPath); err == nil && !info.IsDir() {
			return true, pipVersion(pipPath)
		}
	}
	return false, ""
}

func pipVersion(pipPath string) string {
	out, err := exec.Command(pipPath, "--version").CombinedOutput()
	if err != nil {
		return ""
	}
	fields := strings.Fields(string(out))
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}
