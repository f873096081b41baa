package catalogue

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skiffrun/skiff/internal/specparser"
)

// fakeBuilder materializes an environment by just creating an empty
// directory at targetPath and reporting canned results, standing in for a
// real EnvironmentBuilder in these tests.
type fakeBuilder struct {
	interpreterVersion string
	installedPackages  []string
	fail               bool
}

func (b *fakeBuilder) Build(ctx context.Context, spec *specparser.Specification, targetPath string, enumerator InterpreterEnumerator, installer PackageInstaller) (BuildResult, error) {
	if b.fail {
		return BuildResult{}, assert.AnError
	}
	if err := os.MkdirAll(targetPath, 0o777); err != nil {
		return BuildResult{}, err
	}
	return BuildResult{
		InterpreterVersion: b.interpreterVersion,
		ParentInterpreter:  targetPath + "/parent-interpreter",
		InstalledPackages:  b.installedPackages,
	}, nil
}

func mustSpec(t *testing.T, rawText string) *specparser.Specification {
	t.Helper()
	spec, err := specparser.ParseRawText(rawText)
	require.NoError(t, err)
	return spec
}

func writeParentInterpreter(t *testing.T, targetPath string) {
	t.Helper()
	require.NoError(t, os.WriteFile(targetPath+"/parent-interpreter", []byte("#!/bin/sh\n"), 0o777))
}

func newClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		got := current
		current = current.Add(time.Second)
		return got
	}
}

func TestFindOrCreateBuildsOnMiss(t *testing.T) {
	root := t.TempDir()
	cat, err := Load(root, Config{MaxCount: 10, Clock: newClock(time.Unix(0, 0))})
	require.NoError(t, err)

	builder := &fakeBuilder{interpreterVersion: "3.12.5", installedPackages: []string{"rich==13.7.0"}}
	spec := mustSpec(t, `dependencies = ["rich"]`)

	env, err := cat.FindOrCreate(context.Background(), spec, builder, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, "env_1", env.Name)
	assert.Contains(t, env.Fingerprints, spec.Fingerprint())

	writeParentInterpreter(t, env.Path)
}

func TestExactHitReuseDoesNotGrowCatalogue(t *testing.T) {
	root := t.TempDir()
	cat, err := Load(root, Config{MaxCount: 10, Clock: newClock(time.Unix(0, 0))})
	require.NoError(t, err)

	builder := &fakeBuilder{interpreterVersion: "3.12.5"}
	spec := mustSpec(t, `dependencies = []`)

	first, err := cat.FindOrCreate(context.Background(), spec, builder, nil, nil)
	require.NoError(t, err)
	writeParentInterpreter(t, first.Path)

	second, err := cat.FindOrCreate(context.Background(), spec, builder, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Name, second.Name)
	assert.Len(t, cat.Environments(), 1)
}

func TestSufficientMatchExtendsFingerprintsWithoutNewBuild(t *testing.T) {
	root := t.TempDir()
	cat, err := Load(root, Config{MaxCount: 10, Clock: newClock(time.Unix(0, 0))})
	require.NoError(t, err)

	builder := &fakeBuilder{interpreterVersion: "3.12.5", installedPackages: []string{"requests==2.32.3"}}
	original := mustSpec(t, `dependencies = ["requests>=2.30"]`)

	env, err := cat.FindOrCreate(context.Background(), original, builder, nil, nil)
	require.NoError(t, err)
	writeParentInterpreter(t, env.Path)

	stricter := mustSpec(t, `dependencies = ["requests>=2.32,<3"]`)
	hit, err := cat.FindOrCreate(context.Background(), stricter, builder, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, env.Name, hit.Name)
	assert.Len(t, cat.Environments(), 1)
	assert.Contains(t, hit.Fingerprints, original.Fingerprint())
	assert.Contains(t, hit.Fingerprints, stricter.Fingerprint())
}

func TestExactMismatchButCompatibleGoesThroughPhaseTwo(t *testing.T) {
	root := t.TempDir()
	cat, err := Load(root, Config{MaxCount: 10, Clock: newClock(time.Unix(0, 0))})
	require.NoError(t, err)

	builder := &fakeBuilder{interpreterVersion: "3.12.5", installedPackages: []string{"pkg==1"}}
	pinned := mustSpec(t, `dependencies = ["pkg==1"]`)

	env, err := cat.FindOrCreate(context.Background(), pinned, builder, nil, nil)
	require.NoError(t, err)
	writeParentInterpreter(t, env.Path)

	loose := mustSpec(t, `dependencies = ["pkg>=1"]`)
	require.NotEqual(t, pinned.Fingerprint(), loose.Fingerprint())

	hit, err := cat.FindOrCreate(context.Background(), loose, builder, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, env.Name, hit.Name)
	assert.Len(t, cat.Environments(), 1)
}

func TestMissingDependencyIsNotASufficientMatch(t *testing.T) {
	root := t.TempDir()
	cat, err := Load(root, Config{MaxCount: 10, Clock: newClock(time.Unix(0, 0))})
	require.NoError(t, err)

	builder := &fakeBuilder{interpreterVersion: "3.12.5", installedPackages: []string{"rich==13.7.0"}}
	base := mustSpec(t, `dependencies = ["rich"]`)
	env, err := cat.FindOrCreate(context.Background(), base, builder, nil, nil)
	require.NoError(t, err)
	writeParentInterpreter(t, env.Path)

	needsMore := mustSpec(t, `dependencies = ["rich", "click"]`)
	second, err := cat.FindOrCreate(context.Background(), needsMore, builder, nil, nil)
	require.NoError(t, err)

	assert.NotEqual(t, env.Name, second.Name)
	assert.Len(t, cat.Environments(), 2)
}

func TestEvictionKeepsMostRecentlyUsed(t *testing.T) {
	root := t.TempDir()
	cat, err := Load(root, Config{MaxCount: 2, Clock: newClock(time.Unix(0, 0))})
	require.NoError(t, err)

	builder := &fakeBuilder{interpreterVersion: "3.12.5"}
	specs := []*specparser.Specification{
		mustSpec(t, `dependencies = ["a"]`),
		mustSpec(t, `dependencies = ["b"]`),
		mustSpec(t, `dependencies = ["c"]`),
	}

	var envs []*Environment
	for _, spec := range specs {
		env, err := cat.FindOrCreate(context.Background(), spec, builder, nil, nil)
		require.NoError(t, err)
		writeParentInterpreter(t, env.Path)
		envs = append(envs, env)
	}

	remaining := cat.Environments()
	require.Len(t, remaining, 2)

	names := []string{remaining[0].Name, remaining[1].Name}
	assert.NotContains(t, names, envs[0].Name)
	assert.Contains(t, names, envs[1].Name)
	assert.Contains(t, names, envs[2].Name)

	_, err = os.Stat(envs[0].Path)
	assert.True(t, os.IsNotExist(err))
}

func TestCounterNeverDecreasesAcrossEviction(t *testing.T) {
	root := t.TempDir()
	cat, err := Load(root, Config{MaxCount: 1, Clock: newClock(time.Unix(0, 0))})
	require.NoError(t, err)

	builder := &fakeBuilder{interpreterVersion: "3.12.5"}
	for _, dep := range []string{"a", "b", "c"} {
		spec := mustSpec(t, `dependencies = ["`+dep+`"]`)
		env, err := cat.FindOrCreate(context.Background(), spec, builder, nil, nil)
		require.NoError(t, err)
		writeParentInterpreter(t, env.Path)
	}

	assert.Equal(t, 3, cat.counter)
	assert.Equal(t, "env_3", cat.order[0])
}

func TestMaxCountZeroEvictsEverythingOnCreate(t *testing.T) {
	root := t.TempDir()
	cat, err := Load(root, Config{MaxCount: 0, Clock: newClock(time.Unix(0, 0))})
	require.NoError(t, err)

	builder := &fakeBuilder{interpreterVersion: "3.12.5"}
	var envs []*Environment
	for _, dep := range []string{"a", "b"} {
		spec := mustSpec(t, `dependencies = ["`+dep+`"]`)
		env, err := cat.FindOrCreate(context.Background(), spec, builder, nil, nil)
		require.NoError(t, err)
		writeParentInterpreter(t, env.Path)
		envs = append(envs, env)
	}

	// Every environment that existed before the second create was evicted;
	// only the environment that create just built remains.
	remaining := cat.Environments()
	require.Len(t, remaining, 1)
	assert.Equal(t, envs[1].Name, remaining[0].Name)
	_, err = os.Stat(envs[0].Path)
	assert.True(t, os.IsNotExist(err))
}

func TestCreateFailureDoesNotAdvanceCounter(t *testing.T) {
	root := t.TempDir()
	cat, err := Load(root, Config{MaxCount: 10, Clock: newClock(time.Unix(0, 0))})
	require.NoError(t, err)

	ok := &fakeBuilder{interpreterVersion: "3.12.5"}
	first := mustSpec(t, `dependencies = ["a"]`)
	env, err := cat.FindOrCreate(context.Background(), first, ok, nil, nil)
	require.NoError(t, err)
	writeParentInterpreter(t, env.Path)
	require.Equal(t, "env_1", env.Name)

	failing := &fakeBuilder{fail: true}
	second := mustSpec(t, `dependencies = ["b"]`)
	_, err = cat.Create(context.Background(), second, failing, nil, nil)
	require.Error(t, err)

	third := mustSpec(t, `dependencies = ["c"]`)
	env3, err := cat.FindOrCreate(context.Background(), third, ok, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "env_2", env3.Name)
}

func TestCreateFailureLeavesCatalogueUntouched(t *testing.T) {
	root := t.TempDir()
	cat, err := Load(root, Config{MaxCount: 10, Clock: newClock(time.Unix(0, 0))})
	require.NoError(t, err)

	builder := &fakeBuilder{fail: true}
	spec := mustSpec(t, `dependencies = []`)

	_, err = cat.FindOrCreate(context.Background(), spec, builder, nil, nil)
	require.Error(t, err)
	assert.Empty(t, cat.Environments())

	_, existsErr := os.Stat(filepath.Join(root, "catalogue.json"))
	assert.True(t, os.IsNotExist(existsErr))
}

func TestPersistenceRoundTrip(t *testing.T) {
	root := t.TempDir()
	cat, err := Load(root, Config{MaxCount: 10, Clock: newClock(time.Unix(1_700_000_000, 0))})
	require.NoError(t, err)

	builder := &fakeBuilder{interpreterVersion: "3.12.5", installedPackages: []string{"rich==13.7.0"}}
	spec := mustSpec(t, `dependencies = ["rich"]`)
	env, err := cat.FindOrCreate(context.Background(), spec, builder, nil, nil)
	require.NoError(t, err)
	writeParentInterpreter(t, env.Path)

	reloaded, err := Load(root, Config{MaxCount: 10})
	require.NoError(t, err)

	require.Len(t, reloaded.Environments(), 1)
	assert.Equal(t, env.Name, reloaded.Environments()[0].Name)
	assert.Equal(t, env.Fingerprints, reloaded.Environments()[0].Fingerprints)
	assert.Equal(t, env.InstalledPackages, reloaded.Environments()[0].InstalledPackages)
}

func TestLoadPrunesEnvironmentWithMissingDirectory(t *testing.T) {
	root := t.TempDir()
	cat, err := Load(root, Config{MaxCount: 10, Clock: newClock(time.Unix(0, 0))})
	require.NoError(t, err)

	builder := &fakeBuilder{interpreterVersion: "3.12.5"}
	spec := mustSpec(t, `dependencies = []`)
	env, err := cat.FindOrCreate(context.Background(), spec, builder, nil, nil)
	require.NoError(t, err)
	writeParentInterpreter(t, env.Path)

	require.NoError(t, os.RemoveAll(env.Path))

	reloaded, err := Load(root, Config{MaxCount: 10})
	require.NoError(t, err)
	assert.Empty(t, reloaded.Environments())
}

func TestExpireRemovesOldEnvironments(t *testing.T) {
	root := t.TempDir()
	start := time.Unix(1_700_000_000, 0)
	cat, err := Load(root, Config{MaxCount: 10, Clock: newClock(start)})
	require.NoError(t, err)

	builder := &fakeBuilder{interpreterVersion: "3.12.5"}
	spec := mustSpec(t, `dependencies = []`)
	env, err := cat.FindOrCreate(context.Background(), spec, builder, nil, nil)
	require.NoError(t, err)
	writeParentInterpreter(t, env.Path)

	cat.config.Clock = func() time.Time { return start.Add(48 * time.Hour) }
	require.NoError(t, cat.Expire(24*time.Hour))

	assert.Empty(t, cat.Environments())
	_, statErr := os.Stat(env.Path)
	assert.True(t, os.IsNotExist(statErr))
}
