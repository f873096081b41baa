// Package skiffErrors collects the typed and sentinel errors surfaced across
// skiff's components so callers can errors.Is/errors.As on them regardless
// of which package produced the failure.
package skiffErrors

import (
	"errors"
	"fmt"
)

// ErrInterpreterNotFound is returned when no enumerated interpreter
// satisfies a specification's requires-python constraint.
var ErrInterpreterNotFound = errors.New("no interpreter satisfies the requested version")

// ErrBuildFailed is returned when environment construction fails.
// Catalogue.Create wraps every EnvironmentBuilder failure in it, including
// interpreter selection and lockfile verification, while keeping the
// underlying error reachable through errors.Is/errors.As.
var ErrBuildFailed = errors.New("environment build failed")

// ErrLockfileMismatch is returned when a lockfile's recorded specification
// fingerprint does not match the specification it is being consumed against.
var ErrLockfileMismatch = errors.New("lockfile does not match specification")

// ErrLockUnsupported is returned by a PackageInstaller.Compile
// implementation that has no native resolver-lock step, e.g. plain pip.
var ErrLockUnsupported = errors.New("installer backend does not support locking")

// SpecMalformedError reports that the inline metadata block itself could not
// be located or its body is not well-formed TOML.
type SpecMalformedError struct {
	Reason string
	Err    error
}

func (e *SpecMalformedError) Error() string {
	return fmt.Sprintf("malformed script metadata: %s", e.Reason)
}

func (e *SpecMalformedError) Unwrap() error {
	return e.Err
}

// SpecInvalidError reports that the metadata block parsed as TOML but one of
// its fields fails validation, e.g. an unparsable version specifier.
type SpecInvalidError struct {
	Field  string
	Reason string
	Err    error
}

func (e *SpecInvalidError) Error() string {
	return fmt.Sprintf("invalid script metadata field %q: %s", e.Field, e.Reason)
}

func (e *SpecInvalidError) Unwrap() error {
	return e.Err
}
