package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileIsFreshNotError(t *testing.T) {
	s := New(t.TempDir())

	doc, existed, err := s.Load()
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, Document{}, doc)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := New(t.TempDir())

	want := Document{
		Counter:      3,
		Environments: []json.RawMessage{json.RawMessage(`{"name":"env_1"}`)},
	}
	require.NoError(t, s.Save(want))

	got, existed, err := s.Load()
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, want.Counter, got.Counter)
	require.Len(t, got.Environments, 1)
	assert.JSONEq(t, string(want.Environments[0]), string(got.Environments[0]))
}

func TestSaveDoesNotLeaveTempFileBehind(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	require.NoError(t, s.Save(Document{Counter: 1}))

	_, err := os.Stat(filepath.Join(root, catalogueFile+tempSuffix))
	assert.True(t, os.IsNotExist(err))
}

func TestLoadCorruptFileIsFreshAndFileIsPreserved(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	require.NoError(t, os.WriteFile(filepath.Join(root, catalogueFile), []byte("{not json"), 0o666))

	doc, existed, err := s.Load()
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, Document{}, doc)

	data, err := os.ReadFile(filepath.Join(root, catalogueFile))
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data))
}

func TestWithLockRunsFnAndReleasesOnError(t *testing.T) {
	s := New(t.TempDir())

	err := s.WithLock(func() error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	ran := false
	require.NoError(t, s.WithLock(func() error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}
