package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/skiffrun/skiff/internal/catalogue"
)

// cmdCache inspects or clears the environment catalogue. Subcommands:
//
//	list    print every cached environment
//	gc      evict down to --max-environments, then expire anything older
//	        than --max-age (evict-before-expire, per the recorded decision)
//	clear   remove every cached environment
func cmdCache(ctx context.Context, args []string) (int, error) {
	sub := ""
	if len(args) > 0 {
		sub = args[0]
	}

	flagSet := pflag.NewFlagSet("cache "+sub, pflag.ContinueOnError)
	root := rootFlag(flagSet)
	maxCount := flagSet.Int("max-environments", 16, "maximum cached environments retained")
	maxAge := flagSet.Duration("max-age", 30*24*time.Hour, "maximum environment age for gc")
	rest := args
	if len(args) > 0 {
		rest = args[1:]
	}
	if err := flagSet.Parse(rest); err == pflag.ErrHelp {
		return 0, nil
	} else if err != nil {
		return 2, err
	}

	switch sub {
	case "list":
		return cacheList(*root, *maxCount)
	case "gc":
		return cacheGC(*root, *maxCount, *maxAge)
	case "clear":
		return cacheClear(*root, *maxCount)
	default:
		fmt.Println("skiff cache: expected one of list, gc, clear")
		return 2, nil
	}
}

func cacheList(root string, maxCount int) (int, error) {
	cat, err := catalogue.Load(root, catalogue.Config{MaxCount: maxCount})
	if err != nil {
		return 1, fmt.Errorf("loading catalogue: %w", err)
	}

	envs := cat.Environments()
	if len(envs) == 0 {
		fmt.Println("no cached environments")
		return 0, nil
	}
	for _, env := range envs {
		fmt.Printf("%s\tpython %s\t%d packages\tlast used %s\n",
			env.Name, env.InterpreterVersion, len(env.InstalledPackages), env.LastUsedAt.String())
	}
	return 0, nil
}

func cacheGC(root string, maxCount int, maxAge time.Duration) (int, error) {
	cat, err := catalogue.Load(root, catalogue.Config{MaxCount: maxCount})
	if err != nil {
		return 1, fmt.Errorf("loading catalogue: %w", err)
	}

	err = cat.WithLock(func() error {
		if err := cat.EvictExcess(); err != nil {
			return err
		}
		return cat.Expire(maxAge)
	})
	if err != nil {
		return 1, fmt.Errorf("running gc: %w", err)
	}
	fmt.Println("gc complete")
	return 0, nil
}

func cacheClear(root string, maxCount int) (int, error) {
	cat, err := catalogue.Load(root, catalogue.Config{MaxCount: maxCount})
	if err != nil {
		return 1, fmt.Errorf("loading catalogue: %w", err)
	}

	if err := cat.WithLock(cat.Purge); err != nil {
		return 1, fmt.Errorf("clearing catalogue: %w", err)
	}
	fmt.Println("catalogue cleared")
	return 0, nil
}
