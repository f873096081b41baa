// Command skiff runs standalone interpreter scripts that declare their
// dependencies inline, building or reusing a cached environment that
// satisfies those declarations.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

// Version identifies the version of skiff. This can be modified by CI
// during the release process.
var Version = "dev"

const defaultHelp = `skiff runs scripts that declare their own dependencies 🐚

Usage:

  skiff <command> [options]

The commands are:

  run      build or reuse an environment for a script and run it
  lock     generate a lockfile pinning a script's resolved dependencies
  cache    inspect or clear the environment catalogue
  version  show skiff version
`

func run(args []string) (int, error) {
	arg := ""
	if len(args) > 1 {
		arg = args[1]
	}

	switch arg {
	case "", "help", "--help", "-h":
		fmt.Print(defaultHelp)
		return 2, nil
	case "version", "--version":
		fmt.Printf("skiff version: %s\n", Version)
		return 0, nil
	case "run":
		return cmdRun(context.Background(), args[2:])
	case "lock":
		return cmdLock(context.Background(), args[2:])
	case "cache":
		return cmdCache(context.Background(), args[2:])
	default:
		fmt.Printf("skiff %s: unknown command\n", arg)
		return 2, nil
	}
}

func rootFlag(flagSet *pflag.FlagSet) *string {
	home, _ := os.UserHomeDir()
	return flagSet.String("root", home+"/.skiff/catalogue", "catalogue root directory")
}

func main() {
	exitCode, err := run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(exitCode)
}
