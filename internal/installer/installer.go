// Package installer provides concrete PackageInstaller backends shelling
// out to pip and uv.
package installer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/skiffrun/skiff/internal/skiffErrors"
)

// PipInstaller drives a venv's own pip binary. It has no native resolver
// lock step, so Compile always fails with skiffErrors.ErrLockUnsupported.
type PipInstaller struct{}

func pipPath(targetDir string) string {
	return filepath.Join(targetDir, "bin", "pip")
}

func (p PipInstaller) Install(ctx context.Context, targetDir string, requirements []string) error {
	if len(requirements) == 0 {
		return nil
	}
	args := append([]string{"install", "--no-input"}, requirements...)
	return run(ctx, pipPath(targetDir), targetDir, args...)
}

func (p PipInstaller) InstallLocked(ctx context.Context, targetDir string, lockdata string) error {
	tmp, err := os.CreateTemp("", "skiff-requirements-*.txt")
	if err != nil {
		return fmt.Errorf("writing temp requirements file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := tmp.WriteString(lockdata); err != nil {
		return fmt.Errorf("writing temp requirements file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing temp requirements file: %w", err)
	}

	return run(ctx, pipPath(targetDir), targetDir, "install", "--no-deps", "-r", tmp.Name())
}

func (p PipInstaller) Freeze(ctx context.Context, targetDir string) ([]string, error) {
	return freezeOutput(ctx, pipPath(targetDir), targetDir, "freeze", "--all")
}

func (p PipInstaller) Compile(ctx context.Context, requirements []string) (string, error) {
	return "", skiffErrors.ErrLockUnsupported
}

// UvInstaller drives the uv binary against the venv rooted at each call's
// targetDir, and additionally supports Compile via "uv pip compile".
type UvInstaller struct {
	// UvExe is the uv executable to invoke; defaults to "uv" on PATH.
	UvExe string
}

func (u UvInstaller) exe() string {
	if u.UvExe != "" {
		return u.UvExe
	}
	return "uv"
}

func (u UvInstaller) Install(ctx context.Context, targetDir string, requirements []string) error {
	if len(requirements) == 0 {
		return nil
	}
	args := append([]string{"pip", "install", "--python", pythonPath(targetDir)}, requirements...)
	return run(ctx, u.exe(), "", args...)
}

func (u UvInstaller) InstallLocked(ctx context.Context, targetDir string, lockdata string) error {
	cmd := exec.CommandContext(ctx, u.exe(), "pip", "install", "--python", pythonPath(targetDir), "-r", "-")
	cmd.Stdin = strings.NewReader(lockdata)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, output)
	}
	return nil
}

func (u UvInstaller) Freeze(ctx context.Context, targetDir string) ([]string, error) {
	return freezeOutput(ctx, u.exe(), "", "pip", "freeze", "--python", pythonPath(targetDir))
}

func (u UvInstaller) Compile(ctx context.Context, requirements []string) (string, error) {
	cmd := exec.CommandContext(ctx, u.exe(), "pip", "compile", "-", "--generate-hashes")
	cmd.Stdin = strings.NewReader(strings.Join(requirements, "\n") + "\n")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("uv pip compile: %w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

func pythonPath(targetDir string) string {
	return filepath.Join(targetDir, "bin", "python")
}

func run(ctx context.Context, exe, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "PYTHONPATH=")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", exe, strings.Join(args, " "), err, output)
	}
	return nil
}

func freezeOutput(ctx context.Context, exe, dir string, args ...string) ([]string, error) {
	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "PYTHONPATH=")

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", exe, strings.Join(args, " "), err)
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
