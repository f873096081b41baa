// Package builder implements EnvironmentBuilder: selecting an interpreter,
// materializing an isolated virtual environment for it, installing
// dependencies, and freezing the result.
package builder

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/skiffrun/skiff/internal/catalogue"
	"github.com/skiffrun/skiff/internal/lockfile"
	"github.com/skiffrun/skiff/internal/skiffErrors"
	"github.com/skiffrun/skiff/internal/specparser"
	"github.com/skiffrun/skiff/internal/version"
)

// Builder is the concrete catalogue.EnvironmentBuilder used by the CLI
// shell. VenvModule names the module used to create an isolated
// environment from a chosen interpreter (invoked as "<python> -m
// <VenvModule> <targetPath>"); New sets it to "venv".
type Builder struct {
	VenvModule string
}

// New returns a Builder using the standard library "venv" module.
func New() *Builder {
	return &Builder{VenvModule: "venv"}
}

// Build implements catalogue.EnvironmentBuilder.
func (b *Builder) Build(
	ctx context.Context,
	spec *specparser.Specification,
	targetPath string,
	enumerator catalogue.InterpreterEnumerator,
	installer catalogue.PackageInstaller,
) (catalogue.BuildResult, error) {
	candidate, err := b.selectInterpreter(ctx, spec, enumerator)
	if err != nil {
		return catalogue.BuildResult{}, err
	}

	if err := b.createVenv(ctx, candidate.ExecutablePath, targetPath); err != nil {
		os.RemoveAll(targetPath)
		return catalogue.BuildResult{}, fmt.Errorf("creating virtual environment: %w", err)
	}

	if ctx.Err() != nil {
		os.RemoveAll(targetPath)
		return catalogue.BuildResult{}, ctx.Err()
	}

	if len(spec.Dependencies) > 0 {
		if err := b.installDependencies(ctx, spec, targetPath, installer); err != nil {
			os.RemoveAll(targetPath)
			return catalogue.BuildResult{}, err
		}
	}

	if ctx.Err() != nil {
		os.RemoveAll(targetPath)
		return catalogue.BuildResult{}, ctx.Err()
	}

	installed, err := installer.Freeze(ctx, targetPath)
	if err != nil {
		os.RemoveAll(targetPath)
		return catalogue.BuildResult{}, fmt.Errorf("freezing environment: %w", err)
	}

	return catalogue.BuildResult{
		InterpreterVersion: candidate.Version,
		ParentInterpreter:  candidate.ExecutablePath,
		InstalledPackages:  installed,
	}, nil
}

// selectInterpreter picks the first enumerated candidate with a usable
// installer whose version (if spec constrains one) satisfies
// spec.PythonRequirement. Selection is deterministic given the
// enumerator's order; the builder performs no reordering of its own.
func (b *Builder) selectInterpreter(ctx context.Context, spec *specparser.Specification, enumerator catalogue.InterpreterEnumerator) (catalogue.InterpreterCandidate, error) {
	candidates, err := enumerator.Enumerate(ctx)
	if err != nil {
		return catalogue.InterpreterCandidate{}, fmt.Errorf("enumerating interpreters: %w", err)
	}

	for _, c := range candidates {
		if !c.HasUsableInstaller {
			fmt.Fprintf(os.Stderr, "skipping %s: no usable package installer\n", c.ExecutablePath)
			continue
		}
		if len(spec.PythonRequirement) == 0 {
			return c, nil
		}
		v, ok := version.Parse(c.Version)
		if !ok {
			fmt.Fprintf(os.Stderr, "skipping %s: unparsable version %q\n", c.ExecutablePath, c.Version)
			continue
		}
		if version.Satisfies(v, spec.PythonRequirement) {
			return c, nil
		}
	}

	return catalogue.InterpreterCandidate{}, skiffErrors.ErrInterpreterNotFound
}

func (b *Builder) createVenv(ctx context.Context, pythonExe, targetPath string) error {
	cmd := exec.CommandContext(ctx, pythonExe, "-m", b.VenvModule, targetPath)
	// Scrub PYTHONPATH so the new environment can't inadvertently pick up
	// packages installed into whatever environment invoked skiff.
	cmd.Env = append(os.Environ(), "PYTHONPATH=")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, output)
	}
	return nil
}

func (b *Builder) installDependencies(ctx context.Context, spec *specparser.Specification, targetPath string, installer catalogue.PackageInstaller) error {
	if spec.Lockdata != "" {
		if err := lockfile.VerifyHeader(spec.Lockdata, spec.Fingerprint()); err != nil {
			return err
		}
		return installer.InstallLocked(ctx, targetPath, spec.Lockdata)
	}

	requirements := make([]string, len(spec.Dependencies))
	for i, dep := range spec.Dependencies {
		requirements[i] = dep.String()
	}
	return installer.Install(ctx, targetPath, requirements)
}
