// Package specparser extracts the inline metadata block from a script file
// and parses it into a Specification: the version constraint, dependency
// list, and optional lockdata that drive the rest of the catalogue.
package specparser

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/skiffrun/skiff/internal/fingerprint"
	"github.com/skiffrun/skiff/internal/skiffErrors"
	"github.com/skiffrun/skiff/internal/version"
)

// blockType is the only inline-metadata block tag the core consumes; other
// tags (e.g. a future "pyproject") are recognized syntactically but ignored.
const blockType = "script"

var (
	startMarker = regexp.MustCompile(`^# /// (?P<type>[A-Za-z0-9-]+)\s*$`)
	endMarker   = regexp.MustCompile(`^# ///\s*$`)
)

// Specification is the immutable, eagerly-parsed result of reading a
// script's inline metadata block.
type Specification struct {
	// RawText is the original metadata block body, verbatim, with the
	// comment prefix already stripped from every line. It is the input to
	// Fingerprint and the value two Specifications are compared by.
	RawText string

	// PythonRequirement is the parsed "requires-python" specifier, or nil
	// if the key was absent.
	PythonRequirement version.SpecifierSet

	// Dependencies is the ordered list of parsed PEP 508 requirements.
	// Order is preserved for determinism but matching is set-equal.
	Dependencies []*version.Requirement

	// Tool holds the opaque tool.<vendor>.<subtable> tables, retained
	// verbatim and not interpreted by the core.
	Tool map[string]any

	// Lockdata is the optional pinned dependency set attached by
	// LockfileEngine.Attach. It does not affect RawText or Fingerprint.
	Lockdata string

	fingerprintOnce sync.Once
	fingerprint     string
}

type tomlBody struct {
	RequiresPython string   `toml:"requires-python"`
	Dependencies   []string `toml:"dependencies"`
	Tool           map[string]any
}

// ExtractBlock scans source for the inline "script" metadata block delimited
// by "# /// script" and "# ///" marker lines, stripping the "# " comment
// prefix from every line in between. It returns ("", false, nil) when no
// such block is present — a missing block is a valid, empty Specification.
func ExtractBlock(source []byte) (body string, found bool, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(source))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		inBlock    bool
		sawBlock   bool
		lines      []string
		lineNumber int
	)

	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()

		if !inBlock {
			if m := startMarker.FindStringSubmatch(line); m != nil {
				if m[1] != blockType {
					continue
				}
				if sawBlock {
					return "", false, fmt.Errorf("multiple %q metadata blocks found", blockType)
				}
				inBlock = true
			}
			continue
		}

		if endMarker.MatchString(line) {
			inBlock = false
			sawBlock = true
			continue
		}

		stripped, ok := stripCommentPrefix(line)
		if !ok {
			return "", false, fmt.Errorf("line %d: metadata block line must start with '#'", lineNumber)
		}
		lines = append(lines, stripped)
	}
	if err := scanner.Err(); err != nil {
		return "", false, fmt.Errorf("reading script source: %w", err)
	}
	if inBlock {
		return "", false, fmt.Errorf("unterminated %q metadata block", blockType)
	}
	if !sawBlock {
		return "", false, nil
	}

	return strings.Join(lines, "\n"), true, nil
}

func stripCommentPrefix(line string) (string, bool) {
	if line == "#" {
		return "", true
	}
	if strings.HasPrefix(line, "# ") {
		return line[2:], true
	}
	return "", false
}

// Parse extracts the inline metadata block from source and parses it into a
// Specification. Source with no metadata block yields a valid, empty
// Specification rather than an error.
func Parse(source []byte) (*Specification, error) {
	body, found, err := ExtractBlock(source)
	if err != nil {
		return nil, &skiffErrors.SpecMalformedError{Reason: err.Error(), Err: err}
	}
	if !found {
		return &Specification{RawText: ""}, nil
	}

	return ParseRawText(body)
}

// ParseRawText parses an already-extracted metadata block body (the TOML
// document, with comment prefixes already stripped) into a Specification.
func ParseRawText(rawText string) (*Specification, error) {
	spec := &Specification{RawText: rawText}

	if strings.TrimSpace(rawText) == "" {
		return spec, nil
	}

	var body tomlBody
	if _, err := toml.Decode(rawText, &body); err != nil {
		return nil, &skiffErrors.SpecMalformedError{
			Reason: fmt.Sprintf("metadata body is not valid TOML: %v", err),
			Err:    err,
		}
	}

	if body.RequiresPython != "" {
		ss, err := version.ParseSpecifierSet(body.RequiresPython)
		if err != nil {
			return nil, &skiffErrors.SpecInvalidError{
				Field:  "requires-python",
				Reason: err.Error(),
				Err:    err,
			}
		}
		spec.PythonRequirement = ss
	}

	deps := make([]*version.Requirement, 0, len(body.Dependencies))
	for _, raw := range body.Dependencies {
		req, err := version.ParseRequirement(raw)
		if err != nil {
			return nil, &skiffErrors.SpecInvalidError{
				Field:  "dependencies",
				Reason: fmt.Sprintf("%q: %v", raw, err),
				Err:    err,
			}
		}
		deps = append(deps, req)
	}
	spec.Dependencies = deps
	spec.Tool = body.Tool

	return spec, nil
}

// Fingerprint returns the lazily-computed, memoized content fingerprint of
// RawText. Safe for concurrent use.
func (s *Specification) Fingerprint() string {
	s.fingerprintOnce.Do(func() {
		s.fingerprint = fingerprint.Of(s.RawText)
	})
	return s.fingerprint
}

// Validate reports human-readable problems with the Specification without
// raising an error. An empty result means the Specification is usable.
// Parse already rejects syntactically invalid input, so in practice this
// only ever reports semantic concerns layered on top of a parsed spec (for
// example duplicate dependency names), but it exists as its own step
// because the Catalogue always calls it before creation regardless of how
// the Specification was constructed.
func (s *Specification) Validate() []string {
	var problems []string

	seen := make(map[string]bool, len(s.Dependencies))
	for _, dep := range s.Dependencies {
		key := strings.ToLower(dep.Name)
		if seen[key] {
			problems = append(problems, fmt.Sprintf("dependency %q listed more than once", dep.Name))
		}
		seen[key] = true
	}

	return problems
}

// WithLockdata returns a copy of s with Lockdata set to lockdata. RawText
// and the fingerprint (forced eagerly here to avoid copying the lazy-init
// guard) are unaffected.
func (s *Specification) WithLockdata(lockdata string) *Specification {
	return &Specification{
		RawText:           s.RawText,
		PythonRequirement: s.PythonRequirement,
		Dependencies:      s.Dependencies,
		Tool:              s.Tool,
		Lockdata:          lockdata,
		fingerprint:       s.Fingerprint(),
	}
}
