package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/skiffrun/skiff/internal/catalogue"
)

// execInEnvironment runs scriptPath with scriptArgs using env's python
// interpreter, replacing the process's own stdio and forwarding the exit
// code. It does not exec(2) in place — Go cannot replace the running image
// portably — so the subprocess's exit code becomes skiff's own exit code.
func execInEnvironment(env *catalogue.Environment, scriptPath string, scriptArgs []string) (int, error) {
	python := filepath.Join(env.Path, "bin", "python")
	args := append([]string{scriptPath}, scriptArgs...)

	cmd := exec.Command(python, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), "PYTHONPATH=")

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return 1, fmt.Errorf("running %s: %w", scriptPath, err)
	}
	return 0, nil
}
