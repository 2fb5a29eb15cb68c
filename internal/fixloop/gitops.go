package fixloop

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// gitOps wraps the git CLI as subprocesses scoped to one working
// directory. No example repo in the retrieval pack imports a Go git
// library (go-git or otherwise), so this talks to git the same way the
// original implementation does: shelling out and checking exit status.
type gitOps struct {
	workDir string
}

func newGitOps(workDir string) *gitOps {
	return &gitOps{workDir: workDir}
}

func (g *gitOps) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}

	return stdout.String(), nil
}

// Checkout switches the working tree to branch.
func (g *gitOps) Checkout(ctx context.Context, branch string) error {
	_, err := g.run(ctx, "checkout", branch)
	return err
}

// Pull rebases the current branch onto its upstream.
func (g *gitOps) Pull(ctx context.Context) error {
	_, err := g.run(ctx, "pull", "--rebase")
	return err
}

// StatusPorcelain reports pending changes in porcelain format.
func (g *gitOps) StatusPorcelain(ctx context.Context) (string, error) {
	return g.run(ctx, "status", "--porcelain")
}

// StageFiles stages exactly the given files — never `-A`, so an
// iteration's commit never picks up unrelated working-tree noise.
func (g *gitOps) StageFiles(ctx context.Context, files []string) error {
	if len(files) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, files...)
	_, err := g.run(ctx, args...)
	return err
}

// Commit creates a commit with the given message and returns its SHA.
func (g *gitOps) Commit(ctx context.Context, message string) (string, error) {
	if _, err := g.run(ctx, "commit", "-m", message); err != nil {
		return "", err
	}

	sha, err := g.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(sha), nil
}

// Push pushes the current branch to its upstream.
func (g *gitOps) Push(ctx context.Context) error {
	_, err := g.run(ctx, "push")
	return err
}

// RevertAll discards all working-tree changes, used when a required test
// run fails after a fix iteration.
func (g *gitOps) RevertAll(ctx context.Context) error {
	_, err := g.run(ctx, "checkout", "--", ".")
	return err
}
