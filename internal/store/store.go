// Package store implements PersistentStore: atomic JSON-backed persistence
// of catalogue state, plus cross-process advisory locking over the
// catalogue root.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Document is the on-disk shape of catalogue.json: a monotonic counter and
// the environments in persistence order. internal/catalogue owns the
// meaning of these fields; Store only knows how to read and write them
// atomically.
type Document struct {
	Counter      int               `json:"counter"`
	Environments []json.RawMessage `json:"environments"`
}

const (
	catalogueFile = "catalogue.json"
	lockFile      = "catalogue.lock"
	tempSuffix    = ".tmp"
)

// Store persists a Document under Root, following Absent -> Fresh -> Current.
type Store struct {
	Root string
}

// New returns a Store rooted at root. The directory is not required to
// exist yet; Save creates it.
func New(root string) *Store {
	return &Store{Root: root}
}

func (s *Store) path() string {
	return filepath.Join(s.Root, catalogueFile)
}

func (s *Store) tempPath() string {
	return filepath.Join(s.Root, catalogueFile+tempSuffix)
}

// Load reads catalogue.json. A missing file or one that fails to decode as
// JSON is reported as (Document{}, false, nil): both are "Fresh" states per
// the state machine, not errors — a corrupt file is left in place for the
// operator to inspect rather than deleted.
func (s *Store) Load() (Document, bool, error) {
	data, err := os.ReadFile(s.path())
	if os.IsNotExist(err) {
		return Document{}, false, nil
	} else if err != nil {
		return Document{}, false, fmt.Errorf("reading %s: %w", s.path(), err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, false, nil
	}

	return doc, true, nil
}

// Save atomically rewrites catalogue.json: the document is written to a
// temp file in the same directory, then renamed over the target so readers
// never observe a truncated or partially-written document.
func (s *Store) Save(doc Document) error {
	if err := os.MkdirAll(s.Root, 0o777); err != nil {
		return fmt.Errorf("creating catalogue root: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding catalogue document: %w", err)
	}

	tmp := s.tempPath()
	if err := os.WriteFile(tmp, data, 0o666); err != nil {
		return fmt.Errorf("writing temp catalogue file: %w", err)
	}
	if err := os.Rename(tmp, s.path()); err != nil {
		return fmt.Errorf("renaming temp catalogue file into place: %w", err)
	}

	return nil
}

// WithLock acquires an advisory cross-process lock on <root>/catalogue.lock
// for the duration of fn, guaranteeing release on every exit path including
// a panic unwinding through fn.
func (s *Store) WithLock(fn func() error) error {
	if err := os.MkdirAll(s.Root, 0o777); err != nil {
		return fmt.Errorf("creating catalogue root: %w", err)
	}

	fl := flock.New(filepath.Join(s.Root, lockFile))
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("acquiring catalogue lock: %w", err)
	}
	defer fl.Unlock()

	return fn()
}
