package fixloop

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}

	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n"), 0o644))
	run("add", "-A")
	run("commit", "-q", "-m", "initial")

	return dir
}

func TestGitOpsStageAndCommit(t *testing.T) {
	dir := initTestRepo(t)
	git := newGitOps(dir)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n\nvar X = 1\n"), 0o644))

	require.NoError(t, git.StageFiles(ctx, []string{"a.go"}))

	sha, err := git.Commit(ctx, "fix: test commit")
	require.NoError(t, err)
	require.NotEmpty(t, sha)

	status, err := git.StatusPorcelain(ctx)
	require.NoError(t, err)
	require.Empty(t, status)
}

func TestGitOpsCheckout(t *testing.T) {
	dir := initTestRepo(t)
	git := newGitOps(dir)
	ctx := context.Background()

	out, err := exec.Command("git", "-C", dir, "rev-parse", "--abbrev-ref", "HEAD").CombinedOutput()
	require.NoError(t, err)
	original := strings.TrimSpace(string(out))

	cmd := exec.Command("git", "checkout", "-q", "-b", "feature/x")
	cmd.Dir = dir
	require.NoError(t, cmd.Run())

	require.NoError(t, git.Checkout(ctx, original))

	out, err = exec.Command("git", "-C", dir, "rev-parse", "--abbrev-ref", "HEAD").CombinedOutput()
	require.NoError(t, err)
	require.Equal(t, original, strings.TrimSpace(string(out)))
}

func TestGitOpsRevertAll(t *testing.T) {
	dir := initTestRepo(t)
	git := newGitOps(dir)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\n\nvar BAD\n"), 0o644))

	require.NoError(t, git.RevertAll(ctx))

	content, err := os.ReadFile(filepath.Join(dir, "a.go"))
	require.NoError(t, err)
	require.Equal(t, "package a\n", string(content))
}

func TestRunTestsNoCommandSucceeds(t *testing.T) {
	ok, err := runTests(context.Background(), LoopConfig{})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRunTestsFailingCommand(t *testing.T) {
	ok, err := runTests(context.Background(), LoopConfig{
		TestCommand: []string{"false"},
	})
	require.Error(t, err)
	require.False(t, ok)
}

func TestRunTestsPassingCommand(t *testing.T) {
	ok, err := runTests(context.Background(), LoopConfig{
		TestCommand: []string{"true"},
	})
	require.NoError(t, err)
	require.True(t, ok)
}
