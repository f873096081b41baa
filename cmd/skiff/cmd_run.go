package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/skiffrun/skiff/internal/builder"
	"github.com/skiffrun/skiff/internal/catalogue"
	"github.com/skiffrun/skiff/internal/installer"
	"github.com/skiffrun/skiff/internal/interpreter"
	"github.com/skiffrun/skiff/internal/specparser"
)

func cmdRun(ctx context.Context, args []string) (int, error) {
	flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
	root := rootFlag(flagSet)
	timeout := flagSet.Duration("timeout", 5*time.Minute, "environment build timeout")
	maxCount := flagSet.Int("max-environments", 16, "maximum cached environments retained")
	if err := flagSet.Parse(args); err == pflag.ErrHelp {
		return 0, nil
	} else if err != nil {
		return 2, err
	}

	if flagSet.NArg() < 1 {
		fmt.Println("skiff run: script path not provided")
		return 2, nil
	}
	scriptPath := flagSet.Arg(0)
	scriptArgs := flagSet.Args()[1:]

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

	cat, err := catalogue.Load(*root, catalogue.Config{MaxCount: *maxCount})
	if err != nil {
		return 1, fmt.Errorf("loading catalogue: %w", err)
	}

	buildCtx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	env, err := cat.FindOrCreate(buildCtx, spec, builder.New(), interpreter.PathEnumerator{}, installer.UvInstaller{})
	if err != nil {
		return 1, fmt.Errorf("preparing environment: %w", err)
	}

	return execInEnvironment(env, scriptPath, scriptArgs)
}
