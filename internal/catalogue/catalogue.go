// Package catalogue implements the persistent, content-addressed cache of
// built interpreter environments: the two-phase lookup algorithm, eviction
// by least-recently-used count, expiry by age, and the glue between
// EnvironmentBuilder, PackageInstaller, and InterpreterEnumerator.
package catalogue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/skiffrun/skiff/internal/skiffErrors"
	"github.com/skiffrun/skiff/internal/specparser"
	"github.com/skiffrun/skiff/internal/store"
	"github.com/skiffrun/skiff/internal/version"
)

// Config bounds catalogue maintenance.
type Config struct {
	// MaxCount is the maximum number of environments retained on create;
	// a create that would exceed it evicts least-recently-used entries
	// first. With a MaxCount of zero or less, a create evicts every
	// existing environment and keeps only the one it builds.
	MaxCount int

	// Clock returns the current time, defaulting to time.Now. Injected so
	// created_at/last_used_at are deterministic in tests.
	Clock func() time.Time
}

func (c Config) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

// Catalogue is the persistent set of Environment records rooted at a single
// directory. A Catalogue value is not safe for concurrent use by multiple
// goroutines in one process (by contract, not enforced); concurrent
// processes sharing a root must serialize through Store.WithLock.
type Catalogue struct {
	root    string
	store   *store.Store
	config  Config
	counter int
	order   []string
	byName  map[string]*Environment
}

// Load reads the catalogue at root, or returns an empty catalogue if the
// store is absent or corrupt. Environments whose Path or ParentInterpreter
// no longer exists are pruned without any further filesystem mutation.
func Load(root string, config Config) (*Catalogue, error) {
	s := store.New(root)
	doc, _, err := s.Load()
	if err != nil {
		return nil, fmt.Errorf("loading catalogue: %w", err)
	}

	cat := &Catalogue{
		root:   root,
		store:  s,
		config: config,
		byName: make(map[string]*Environment, len(doc.Environments)),
	}
	cat.counter = doc.Counter

	for _, raw := range doc.Environments {
		var env Environment
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		if !environmentIntact(&env) {
			continue
		}
		cat.byName[env.Name] = &env
		cat.order = append(cat.order, env.Name)
	}

	return cat, nil
}

func environmentIntact(env *Environment) bool {
	if _, err := os.Stat(env.Path); err != nil {
		return false
	}
	if _, err := os.Stat(env.ParentInterpreter); err != nil {
		return false
	}
	return true
}

// Save atomically rewrites catalogue.json to reflect the in-memory state.
func (c *Catalogue) Save() error {
	doc := store.Document{
		Counter:      c.counter,
		Environments: make([]json.RawMessage, 0, len(c.order)),
	}
	for _, name := range c.order {
		raw, err := json.Marshal(c.byName[name])
		if err != nil {
			return fmt.Errorf("encoding environment %s: %w", name, err)
		}
		doc.Environments = append(doc.Environments, raw)
	}
	return c.store.Save(doc)
}

// WithLock wraps fn with the cross-process advisory lock over this
// catalogue's root.
func (c *Catalogue) WithLock(fn func() error) error {
	return c.store.WithLock(fn)
}

// Environments returns the environments in persistence order. Callers must
// not mutate the returned Environment values.
func (c *Catalogue) Environments() []*Environment {
	envs := make([]*Environment, 0, len(c.order))
	for _, name := range c.order {
		envs = append(envs, c.byName[name])
	}
	return envs
}

// Find runs the two-phase lookup algorithm against spec. It mutates and
// persists the matched Environment's last_used_at (and, on a phase-2 hit,
// its fingerprint set) as a side effect of a successful match.
func (c *Catalogue) Find(spec *specparser.Specification) (*Environment, error) {
	fp := spec.Fingerprint()

	// Phase 1: exact fingerprint match.
	for _, name := range c.order {
		env := c.byName[name]
		if containsString(env.Fingerprints, fp) {
			env.LastUsedAt = Timestamp(c.config.now())
			if err := c.Save(); err != nil {
				return nil, err
			}
			return env, nil
		}
	}

	// Phase 2: sufficient match — every declared dependency is satisfied
	// by what is actually installed. Extra installed packages are never a
	// rejection (open question, retained as specified).
	for _, name := range c.order {
		env := c.byName[name]
		if !sufficientMatch(spec, env) {
			continue
		}
		env.addFingerprint(fp)
		env.LastUsedAt = Timestamp(c.config.now())
		if err := c.Save(); err != nil {
			return nil, err
		}
		return env, nil
	}

	return nil, nil
}

func sufficientMatch(spec *specparser.Specification, env *Environment) bool {
	if len(spec.PythonRequirement) > 0 {
		v, ok := version.Parse(env.InterpreterVersion)
		if !ok || !version.Satisfies(v, spec.PythonRequirement) {
			return false
		}
	}

	installed := env.installedVersions()
	for _, req := range spec.Dependencies {
		have, ok := installed[strings.ToLower(req.Name)]
		if !ok {
			return false
		}
		v, ok := version.Parse(have)
		if !ok {
			return false
		}
		if len(req.SpecifierSet) > 0 && !version.Satisfies(v, req.SpecifierSet) {
			return false
		}
	}

	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// FindOrCreate composes Find and Create: an existing match is returned as
// is, otherwise a new Environment is built and inserted.
func (c *Catalogue) FindOrCreate(
	ctx context.Context,
	spec *specparser.Specification,
	builder EnvironmentBuilder,
	enumerator InterpreterEnumerator,
	installer PackageInstaller,
) (*Environment, error) {
	if env, err := c.Find(spec); err != nil {
		return nil, err
	} else if env != nil {
		return env, nil
	}

	return c.Create(ctx, spec, builder, enumerator, installer)
}

// Create evicts down to config.MaxCount-1 (if necessary), builds a new
// Environment via builder, and inserts it. On a build failure or
// cancellation no Environment is inserted, the counter does not advance and
// nothing is saved; an eviction made before the build is not undone (its
// directories are already removed, and the next Load prunes the entries).
func (c *Catalogue) Create(
	ctx context.Context,
	spec *specparser.Specification,
	builder EnvironmentBuilder,
	enumerator InterpreterEnumerator,
	installer PackageInstaller,
) (*Environment, error) {
	if problems := spec.Validate(); len(problems) > 0 {
		return nil, &skiffErrors.SpecInvalidError{Field: "dependencies", Reason: problems[0]}
	}

	if err := c.evictDownTo(c.config.MaxCount - 1); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("env_%d", c.counter+1)
	targetPath := fmt.Sprintf("%s/%s", c.root, name)

	result, err := builder.Build(ctx, spec, targetPath, enumerator, installer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", skiffErrors.ErrBuildFailed, err)
	}
	c.counter++

	now := Timestamp(c.config.now())
	env := &Environment{
		Name:               name,
		Path:               targetPath,
		InterpreterVersion: result.InterpreterVersion,
		ParentInterpreter:  result.ParentInterpreter,
		CreatedAt:          now,
		LastUsedAt:         now,
		Fingerprints:       []string{spec.Fingerprint()},
		InstalledPackages:  result.InstalledPackages,
	}

	c.byName[name] = env
	c.order = append(c.order, name)

	if err := c.Save(); err != nil {
		return nil, err
	}

	return env, nil
}

// EvictExcess evicts least-recently-used environments down to
// config.MaxCount, without regard to age. Used by maintenance entry points
// that want eviction-by-count applied before an age-based Expire pass.
func (c *Catalogue) EvictExcess() error {
	if err := c.evictDownTo(c.config.MaxCount); err != nil {
		return err
	}
	return c.Save()
}

// evictDownTo removes least-recently-used environments until at most limit
// remain. A non-positive limit evicts everything.
func (c *Catalogue) evictDownTo(limit int) error {
	if limit < 0 {
		limit = 0
	}
	for len(c.order) > limit {
		oldest := c.oldestName()
		if oldest == "" {
			break
		}
		if err := c.delete(oldest); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalogue) oldestName() string {
	var oldest string
	var oldestAt time.Time
	for _, name := range c.order {
		at := c.byName[name].LastUsedAt.Time()
		if oldest == "" || at.Before(oldestAt) {
			oldest = name
			oldestAt = at
		}
	}
	return oldest
}

// Delete removes the named Environment's directory and catalogue entry,
// then persists.
func (c *Catalogue) Delete(name string) error {
	if err := c.delete(name); err != nil {
		return err
	}
	return c.Save()
}

// delete removes name from the in-memory state without saving; callers
// that need to delete several entries in one maintenance pass (eviction,
// expire, purge) call Save once at the end.
func (c *Catalogue) delete(name string) error {
	env, ok := c.byName[name]
	if !ok {
		return nil
	}
	if err := os.RemoveAll(env.Path); err != nil {
		return fmt.Errorf("removing environment directory %s: %w", env.Path, err)
	}
	delete(c.byName, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Purge deletes every Environment and saves once.
func (c *Catalogue) Purge() error {
	for _, name := range append([]string(nil), c.order...) {
		if err := c.delete(name); err != nil {
			return err
		}
	}
	return c.Save()
}

// Expire deletes every Environment older than maxAge and saves once.
func (c *Catalogue) Expire(maxAge time.Duration) error {
	now := c.config.now()
	for _, name := range append([]string(nil), c.order...) {
		env := c.byName[name]
		if now.Sub(env.CreatedAt.Time()) > maxAge {
			if err := c.delete(name); err != nil {
				return err
			}
		}
	}
	return c.Save()
}
