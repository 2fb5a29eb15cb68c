package fixloop

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/roasbeef/prreview/internal/agent"
	"github.com/roasbeef/prreview/internal/diffparse"
	"github.com/roasbeef/prreview/internal/hosting"
	"github.com/roasbeef/prreview/internal/review"
)

// PRTarget identifies the PR a feedback-loop run operates on.
type PRTarget struct {
	Owner    string
	Repo     string
	PRNumber int

	// Branch is the PR's head branch. If set, each iteration checks the
	// working tree out to it before pulling, per the version-control
	// subprocess contract's first step. Left empty when the working
	// directory is already guaranteed to be on the right branch (e.g. a
	// CI job that checked it out before invoking the loop).
	Branch string
}

// Run executes the feedback loop described in §4.4: pull, review, fix,
// test, commit, push, repeat — until the PR is clean, unfixable, the
// iteration cap is hit, or an unrecoverable error occurs. The returned
// fn.Result is always Ok: an unrecoverable error ends the run with
// ResultError and is recorded on the last IterationStatus, so a caller can
// always inspect the iteration trail.
func Run(
	ctx context.Context,
	cfg LoopConfig,
	target PRTarget,
	host hosting.Client,
	spawnerBase *agent.SpawnConfig,
	stage1Cfg review.Stage1Config,
	stage2Cfg review.Stage2Config,
) fn.Result[Outcome] {

	git := newGitOps(cfg.WorkingDir)

	attempted := make(map[review.Fingerprint]bool)
	unfixable := make(map[review.Fingerprint]bool)

	var iterations []IterationStatus

	for n := 1; n <= cfg.MaxIterations; n++ {
		started := time.Now()
		status := IterationStatus{Iteration: n}

		outcome, terminal, err := runIteration(
			ctx, n, cfg, target, host, spawnerBase, stage1Cfg, stage2Cfg,
			git, attempted, unfixable, &status,
		)
		status.Duration = time.Since(started)
		iterations = append(iterations, status)

		if err != nil {
			status.Error = err.Error()
			iterations[len(iterations)-1] = status
			return fn.Ok(Outcome{Result: ResultError, Iterations: iterations})
		}

		if terminal {
			if outcome == ResultReadyToMerge && cfg.AutoMerge {
				if mergeErr := mergePR(ctx, host, target); mergeErr != nil {
					slog.Warn("auto-merge failed", "pr", target.PRNumber, "err", mergeErr)
				} else {
					outcome = ResultMerged
				}
			}
			return fn.Ok(Outcome{Result: outcome, Iterations: iterations})
		}
	}

	return fn.Ok(Outcome{Result: ResultMaxIterations, Iterations: iterations})
}

// runIteration runs one pass of the 12-step algorithm. It returns the
// iteration's outcome, whether that outcome is terminal (the loop should
// stop), and an error if an unrecoverable failure occurred.
func runIteration(
	ctx context.Context,
	n int,
	cfg LoopConfig,
	target PRTarget,
	host hosting.Client,
	spawnerBase *agent.SpawnConfig,
	stage1Cfg review.Stage1Config,
	stage2Cfg review.Stage2Config,
	git *gitOps,
	attempted, unfixable map[review.Fingerprint]bool,
	status *IterationStatus,
) (LoopResult, bool, error) {

	// Step 1: checkout the PR head branch, then pull latest.
	if target.Branch != "" {
		if err := git.Checkout(ctx, target.Branch); err != nil {
			return "", false, fmt.Errorf("checkout %s: %w", target.Branch, err)
		}
	}
	if err := git.Pull(ctx); err != nil {
		return "", false, fmt.Errorf("pull: %w", err)
	}

	// Step 2: fetch diff, extract changed files.
	diffText, err := host.Diff(ctx, target.Owner, target.Repo, target.PRNumber)
	if err != nil {
		return "", false, fmt.Errorf("fetch diff: %w", err)
	}

	changedFiles, err := host.ChangedFiles(ctx, target.Owner, target.Repo, target.PRNumber)
	if err != nil {
		return "", false, fmt.Errorf("fetch changed files: %w", err)
	}
	changedSet := make(map[string]bool, len(changedFiles))
	for _, f := range changedFiles {
		changedSet[f] = true
	}

	// Step 3: Stage 1, filtered to changed files + severity floor.
	fileDiffs := diffparse.Parse(diffText)
	hunksText := diffparse.FormatHunks(fileDiffs)

	potentialIssues, err := review.IdentifyIssues(ctx, spawnerBase, hunksText, stage1Cfg)
	if err != nil {
		return "", false, fmt.Errorf("stage 1 identify: %w", err)
	}

	minSeverity := review.Severity(cfg.MinSeverityToFix)
	filtered := make([]review.PotentialIssue, 0, len(potentialIssues))
	for _, issue := range potentialIssues {
		if !changedSet[issue.FilePath] {
			continue
		}
		if !issue.Severity.AtLeast(minSeverity) {
			continue
		}
		filtered = append(filtered, issue)
	}

	// Step 4: Stage 2, keep only valid issues.
	validated, err := review.ValidateIssues(ctx, spawnerBase, filtered, true, stage2Cfg)
	if err != nil {
		return "", false, fmt.Errorf("stage 2 validate: %w", err)
	}

	// Post-validation filter per §4.3.3: is_valid ∧ confidence ≥
	// min_confidence ∧ severity is enabled. A synthesized-inconclusive
	// verdict (is_valid=false, confidence=0.0) is dropped here rather
	// than proceeding to auto-fix.
	var valid []review.ValidatedIssue
	for _, v := range validated {
		if !v.IsValid {
			continue
		}
		if v.Confidence < stage2Cfg.MinConfidence {
			continue
		}
		if !stage2Cfg.ReportSeverity(v.Issue.Severity) {
			continue
		}
		valid = append(valid, v)
	}

	// Step 5: partition by fingerprint into new / attempted / unfixable.
	survivors := partitionSurvivors(valid, attempted, unfixable, &status.IssuesSkipped)
	status.IssuesFound = len(survivors)

	// Step 6: clean exit.
	if len(survivors) == 0 {
		return ResultReadyToMerge, true, nil
	}

	// Step 7: auto-fix disabled — comment and exit.
	if !cfg.AutoFix {
		for _, v := range survivors {
			if err := host.PostReviewComment(ctx, target.Owner, target.Repo, target.PRNumber, "", v); err != nil {
				slog.Warn("failed to post review comment", "file", v.Issue.FilePath, "err", err)
			}
		}
		return ResultUnfixable, true, nil
	}

	// Step 8: fix each survivor, tracking actual file changes.
	var fixedFiles []string
	fixedThisIteration := make(map[review.Fingerprint]bool)

	for _, v := range survivors {
		fp := v.Issue.Fingerprint()
		attempted[fp] = true

		changed, err := fixSingleIssue(ctx, spawnerBase, cfg.WorkingDir, v)
		if err != nil {
			slog.Warn("fix session failed", "file", v.Issue.FilePath, "err", err)
			unfixable[fp] = true
			continue
		}
		if !changed {
			unfixable[fp] = true
			continue
		}

		fixedFiles = append(fixedFiles, v.Issue.FilePath)
		fixedThisIteration[fp] = true
	}

	status.IssuesFixed = len(fixedThisIteration)

	// Step 9: nothing actually changed — everything is unfixable.
	if len(fixedThisIteration) == 0 {
		for _, v := range survivors {
			unfixable[v.Issue.Fingerprint()] = true
		}
		return ResultUnfixable, true, nil
	}

	// Step 10: run tests if configured.
	if cfg.RunTests {
		status.TestsRan = true
		passed, testErr := runTests(ctx, cfg)
		status.TestsPassed = passed

		if !passed {
			if cfg.RequireTestsPass {
				if revertErr := git.RevertAll(ctx); revertErr != nil {
					return "", false, fmt.Errorf("revert after test failure: %w", revertErr)
				}
				for fp := range fixedThisIteration {
					unfixable[fp] = true
				}
				if testErr != nil {
					slog.Warn("tests failed", "err", testErr)
				}
				return ResultTestFailed, true, nil
			}
		}
	}

	// Step 11: stage only the touched files, commit, push.
	if err := git.StageFiles(ctx, dedupe(fixedFiles)); err != nil {
		return "", false, fmt.Errorf("stage fixed files: %w", err)
	}

	porcelain, err := git.StatusPorcelain(ctx)
	if err != nil {
		return "", false, fmt.Errorf("status: %w", err)
	}

	if strings.TrimSpace(porcelain) == "" {
		// No-op iteration: nothing to commit even though fixes were
		// applied (e.g. the fix reverted to the original content by
		// another path). Loop again rather than treating this as
		// terminal.
		return "", false, nil
	}

	msg := fmt.Sprintf("%sAuto-fix issues (iteration %d)", cfg.CommitMessagePrefix, n)
	sha, err := git.Commit(ctx, msg)
	if err != nil {
		return "", false, fmt.Errorf("commit: %w", err)
	}
	status.CommitSHA = sha

	if err := git.Push(ctx); err != nil {
		return "", false, fmt.Errorf("push: %w", err)
	}

	// Step 12: loop.
	return "", false, nil
}

// runTests runs the configured test command as a subprocess and reports
// whether it exited zero.
func runTests(ctx context.Context, cfg LoopConfig) (bool, error) {
	if len(cfg.TestCommand) == 0 {
		return true, nil
	}

	cmd := exec.CommandContext(ctx, cfg.TestCommand[0], cfg.TestCommand[1:]...)
	cmd.Dir = cfg.WorkingDir

	if err := cmd.Run(); err != nil {
		return false, err
	}
	return true, nil
}

func mergePR(ctx context.Context, host hosting.Client, target PRTarget) error {
	msg := fmt.Sprintf("Merge PR #%d", target.PRNumber)
	_, err := host.Merge(ctx, target.Owner, target.Repo, target.PRNumber, "squash", msg)
	return err
}

// partitionSurvivors implements §4.4 step 5: an issue whose fingerprint
// is already unfixable is skipped silently; an issue that reappears
// after a previous fix attempt is promoted to unfixable (the fix didn't
// stick); everything else survives into this iteration's fix set.
func partitionSurvivors(
	valid []review.ValidatedIssue,
	attempted, unfixable map[review.Fingerprint]bool,
	skipped *int,
) []review.ValidatedIssue {

	var survivors []review.ValidatedIssue
	for _, v := range valid {
		fp := v.Issue.Fingerprint()

		if unfixable[fp] {
			*skipped++
			continue
		}

		if attempted[fp] {
			unfixable[fp] = true
			*skipped++
			continue
		}

		survivors = append(survivors, v)
	}

	return survivors
}

func dedupe(files []string) []string {
	seen := make(map[string]bool, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
