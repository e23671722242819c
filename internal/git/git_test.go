package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"secretsweep/internal/vault"
	"secretsweep/models"
)

type clonerFunc func(ctx context.Context, repoURL, dest string) error

func (f clonerFunc) Clone(ctx context.Context, repoURL, dest string) error {
	return f(ctx, repoURL, dest)
}

func fakeClone(ctx context.Context, repoURL, dest string) error {
	if err := os.MkdirAll(filepath.Join(dest, "src"), 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dest, "src", "config.py"), []byte("KEY=1"), 0o644)
}

func newManager(t *testing.T, c Cloner) *Manager {
	m := NewManager(filepath.Join(t.TempDir(), "temp_repos"), c, zaptest.NewLogger(t).Sugar())
	require.NoError(t, m.Prepare())
	return m
}

func TestCheckout_CloseRemovesDirectory(t *testing.T) {
	m := newManager(t, clonerFunc(fakeClone))

	wc, err := m.Checkout(context.Background(), "https://github.com/o/r", "o/r")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(m.Root, "o_r"), wc.Path)
	assert.DirExists(t, wc.Path)
	assert.Equal(t, 1, m.Active())

	require.NoError(t, wc.Close())
	assert.NoDirExists(t, wc.Path)
	assert.Equal(t, 0, m.Active())

	assert.NoError(t, wc.Close())
}

func TestCheckout_FailureLeavesNothing(t *testing.T) {
	m := newManager(t, clonerFunc(func(ctx context.Context, repoURL, dest string) error {
		_ = fakeClone(ctx, repoURL, dest)
		return errors.New("exit status 128")
	}))

	wc, err := m.Checkout(context.Background(), "https://github.com/o/r", "o/r")
	assert.Nil(t, wc)
	assert.ErrorIs(t, err, models.ErrCheckout)
	assert.NoDirExists(t, filepath.Join(m.Root, "o_r"))
	assert.Equal(t, 0, m.Active())
}

func TestCheckout_ReplacesStaleDirectory(t *testing.T) {
	m := newManager(t, clonerFunc(fakeClone))
	stale := filepath.Join(m.Root, "o_r")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stale, "leftover"), nil, 0o644))

	wc, err := m.Checkout(context.Background(), "https://github.com/o/r", "o/r")
	require.NoError(t, err)
	defer wc.Close()
	assert.NoFileExists(t, filepath.Join(stale, "leftover"))
}

func TestCleanup_RemovesLiveCopiesAndRoot(t *testing.T) {
	m := newManager(t, clonerFunc(fakeClone))
	_, err := m.Checkout(context.Background(), "https://github.com/o/a", "o/a")
	require.NoError(t, err)
	_, err = m.Checkout(context.Background(), "https://github.com/o/b", "o/b")
	require.NoError(t, err)

	require.NoError(t, m.Cleanup())
	assert.Equal(t, 0, m.Active())
	assert.NoDirExists(t, m.Root)
}

func TestPrepare_WipesRoot(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "temp_repos"), clonerFunc(fakeClone), nil)
	require.NoError(t, os.MkdirAll(filepath.Join(m.Root, "old_repo"), 0o755))

	require.NoError(t, m.Prepare())
	entries, err := os.ReadDir(m.Root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalName(t *testing.T) {
	assert.Equal(t, "org_repo", LocalName("org/repo"))
	assert.Equal(t, "__evil", LocalName("../evil"))
	assert.NotContains(t, LocalName("a/../../b"), "..")
	assert.True(t, strings.HasPrefix(LocalName(""), "repo_"))
	assert.True(t, strings.HasPrefix(LocalName("."), "repo_"))
}

func TestCLICloner_ShallowArgs(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake")
	}
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	script := filepath.Join(dir, "git")
	body := "#!/bin/sh\necho \"$@\" > " + argsFile + "\nmkdir -p \"$6\"\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))

	c := &CLICloner{GitPath: script}
	dest := filepath.Join(dir, "out")
	require.NoError(t, c.Clone(context.Background(), "https://github.com/o/r", dest))

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, "clone --quiet --depth 1 https://github.com/o/r "+dest, strings.TrimSpace(string(args)))
	assert.DirExists(t, dest)
}

func TestCLICloner_Failure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "git")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho 'repository not found' >&2\nexit 128\n"), 0o755))

	err := (&CLICloner{GitPath: script}).Clone(context.Background(), "https://github.com/o/r", filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repository not found")
}

func TestCLICloner_MissingBinary(t *testing.T) {
	err := (&CLICloner{GitPath: filepath.Join(t.TempDir(), "no-git")}).Clone(context.Background(), "https://github.com/o/r", t.TempDir())
	assert.Error(t, err)
}

type failingVault struct{}

func (failingVault) GetGitHubCredentials() (*vault.GitHubCredentials, error) {
	return nil, errors.New("vault sealed")
}

func TestGoGitCloner_CredentialError(t *testing.T) {
	err := (&GoGitCloner{Vault: failingVault{}}).Clone(context.Background(), "https://github.com/o/r", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault sealed")
}
