package catalogue

import (
	"context"

	"github.com/skiffrun/skiff/internal/specparser"
)

// InterpreterCandidate is one entry yielded by an InterpreterEnumerator:
// an installed interpreter, its version, and whether it has a usable
// package installer alongside it.
type InterpreterCandidate struct {
	ExecutablePath     string
	Version            string
	HasUsableInstaller bool
	InstallerVersion   string
}

// InterpreterEnumerator yields candidate interpreters in priority order.
// The Catalogue never reorders the result; ordering is entirely the
// enumerator's responsibility.
type InterpreterEnumerator interface {
	Enumerate(ctx context.Context) ([]InterpreterCandidate, error)
}

// PackageInstaller performs install/freeze/lock operations against a
// target directory. EnvironmentBuilder does not assume which concrete
// backend (pip, uv, ...) is in use.
type PackageInstaller interface {
	// Install installs requirements (literal PEP 508 strings) into
	// targetDir.
	Install(ctx context.Context, targetDir string, requirements []string) error

	// InstallLocked installs a previously generated, pinned lockdata
	// document into targetDir.
	InstallLocked(ctx context.Context, targetDir string, lockdata string) error

	// Freeze reports the exact installed package set as "name==version"
	// lines.
	Freeze(ctx context.Context, targetDir string) ([]string, error)

	// Compile transitively resolves requirements into pinned, reproducible
	// lockdata. Backends without a native resolver return
	// skiffErrors.ErrLockUnsupported.
	Compile(ctx context.Context, requirements []string) (string, error)
}

// EnvironmentBuilder materializes a virtual environment from a validated
// Specification and a chosen interpreter, then reports the installed
// package set.
type EnvironmentBuilder interface {
	Build(ctx context.Context, spec *specparser.Specification, targetPath string, enumerator InterpreterEnumerator, installer PackageInstaller) (BuildResult, error)
}

// BuildResult is everything EnvironmentBuilder.Build learns about the
// environment it just materialized; Catalogue.Create turns it into a
// persisted Environment by attaching name/timestamps/fingerprint.
type BuildResult struct {
	InterpreterVersion string
	ParentInterpreter  string
	InstalledPackages  []string
}
