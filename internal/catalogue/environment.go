package catalogue

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayout renders ISO-8601 timestamps as UTC local-naive (no zone
// suffix) with microsecond precision, matching the catalogue JSON schema.
const timestampLayout = "2006-01-02T15:04:05.000000"

// Timestamp is a time.Time that (de)serializes in the catalogue's on-disk
// format rather than Go's default RFC3339Nano.
type Timestamp time.Time

func (t Timestamp) Time() time.Time { return time.Time(t) }

func (t Timestamp) String() string {
	return time.Time(t).UTC().Format(timestampLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := time.Parse(timestampLayout, s)
	if err != nil {
		return fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	*t = Timestamp(parsed.UTC())
	return nil
}

// Environment is a materialized, isolated interpreter installation with
// pinned packages, owned exclusively by the Catalogue that created it.
type Environment struct {
	Name               string    `json:"name"`
	Path               string    `json:"path"`
	InterpreterVersion string    `json:"interpreter_version"`
	ParentInterpreter  string    `json:"parent_interpreter"`
	CreatedAt          Timestamp `json:"created_at"`
	LastUsedAt         Timestamp `json:"last_used_at"`
	Fingerprints       []string  `json:"fingerprints"`
	InstalledPackages  []string  `json:"installed_packages"`
}

// addFingerprint appends fp to Fingerprints with set semantics: the slice
// stays insertion-ordered for stable serialization, but a fingerprint that
// is already present is never duplicated.
func (e *Environment) addFingerprint(fp string) {
	for _, existing := range e.Fingerprints {
		if existing == fp {
			return
		}
	}
	e.Fingerprints = append(e.Fingerprints, fp)
}

// installedVersions splits InstalledPackages ("name==version" lines) into a
// lookup keyed by lowercase package name.
func (e *Environment) installedVersions() map[string]string {
	installed := make(map[string]string, len(e.InstalledPackages))
	for _, line := range e.InstalledPackages {
		name, ver, ok := strings.Cut(line, "==")
		if !ok {
			continue
		}
		installed[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(ver)
	}
	return installed
}
