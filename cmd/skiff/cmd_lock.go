package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/skiffrun/skiff/internal/installer"
	"github.com/skiffrun/skiff/internal/lockfile"
	"github.com/skiffrun/skiff/internal/specparser"
)

// cmdLock generates a lockfile pinning a script's resolved dependencies and
// writes it alongside the script as "<script>.lock".
func cmdLock(ctx context.Context, args []string) (int, error) {
	flagSet := pflag.NewFlagSet("lock", pflag.ContinueOnError)
	timeout := flagSet.Duration("timeout", 2*time.Minute, "compile timeout")
	if err := flagSet.Parse(args); err == pflag.ErrHelp {
		return 0, nil
	} else if err != nil {
		return 2, err
	}

	if flagSet.NArg() < 1 {
		fmt.Println("skiff lock: script path not provided")
		return 2, nil
	}
	scriptPath := flagSet.Arg(0)

	source, err := os.ReadFile(scriptPath)
	if err != nil {
		return 1, fmt.Errorf("reading script: %w", err)
	}

	spec, err := specparser.Parse(source)
	if err != nil {
		return 1, err
	}
	if problems := spec.Validate(); len(problems) > 0 {
		return 1, fmt.Errorf("invalid script metadata: %s", problems[0])
	}

	compileCtx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	lockdata, err := lockfile.Generate(compileCtx, spec, installer.UvInstaller{})
	if err != nil {
		return 1, fmt.Errorf("generating lockfile: %w", err)
	}
	if lockdata == "" {
		fmt.Println("skiff lock: script declares no dependencies, nothing to pin")
		return 0, nil
	}

	lockPath := scriptPath + ".lock"
	if err := os.WriteFile(lockPath, []byte(lockdata), 0o644); err != nil {
		return 1, fmt.Errorf("writing %s: %w", lockPath, err)
	}

	fmt.Printf("wrote %s\n", lockPath)
	return 0, nil
}
