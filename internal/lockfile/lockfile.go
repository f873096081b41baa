// Package lockfile implements LockfileEngine: producing and consuming a
// reproducible, hash-verified pinned dependency set for a Specification.
package lockfile

import (
	"context"
	"fmt"
	"strings"

	"github.com/skiffrun/skiff/internal/skiffErrors"
	"github.com/skiffrun/skiff/internal/specparser"
)

const headerPrefix = "# Original Specification Hash: "

// Compiler is the subset of catalogue.PackageInstaller the LockfileEngine
// needs: the ability to transitively resolve and pin a requirement set.
// Defined separately here (rather than importing catalogue.PackageInstaller
// directly) so lockfile has no dependency on the catalogue package.
type Compiler interface {
	Compile(ctx context.Context, requirements []string) (string, error)
}

// Generate invokes compiler's resolver over spec.Dependencies and returns
// the resulting lockdata, prefixed with the originating-fingerprint header.
// A Specification with no dependencies has nothing to pin and Generate
// returns ("", nil).
func Generate(ctx context.Context, spec *specparser.Specification, compiler Compiler) (string, error) {
	if len(spec.Dependencies) == 0 {
		return "", nil
	}

	requirements := make([]string, len(spec.Dependencies))
	for i, dep := range spec.Dependencies {
		requirements[i] = dep.String()
	}

	pinned, err := compiler.Compile(ctx, requirements)
	if err != nil {
		return "", fmt.Errorf("compiling lockdata: %w", err)
	}

	return headerPrefix + spec.Fingerprint() + "\n" + pinned, nil
}

// Attach returns a copy of spec with lockdata attached. raw_text and
// fingerprint are unaffected.
func Attach(spec *specparser.Specification, lockdata string) *specparser.Specification {
	return spec.WithLockdata(lockdata)
}

// VerifyHeader checks that lockdata's header line names wantFingerprint,
// returning skiffErrors.ErrLockfileMismatch if the header is missing or
// names a different fingerprint.
func VerifyHeader(lockdata, wantFingerprint string) error {
	firstLine, _, _ := strings.Cut(lockdata, "\n")
	if !strings.HasPrefix(firstLine, headerPrefix) {
		return fmt.Errorf("%w: missing header", skiffErrors.ErrLockfileMismatch)
	}

	got := strings.TrimSpace(strings.TrimPrefix(firstLine, headerPrefix))
	if got != wantFingerprint {
		return fmt.Errorf("%w: lockfile was generated for %s, specification is %s", skiffErrors.ErrLockfileMismatch, got, wantFingerprint)
	}

	return nil
}

// Consume strips the header line from lockdata and returns the remaining
// installer-native pinned content, one requirement per line.
func Consume(lockdata string) []string {
	_, rest, found := strings.Cut(lockdata, "\n")
	if !found {
		return nil
	}

	var lines []string
	for _, line := range strings.Split(rest, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
