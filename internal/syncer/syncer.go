// Package syncer implements the sync transport collaborator: pull, push
// (with retry), clone, and commit against a real git binary via os/exec.
// Grounded on the teacher's pkg/sync/syncer.go (clone/push/fetch pipeline
// shape) and pkg/agent/retry.go (the retry/backoff policy applied here to
// push instead of LLM completions).
package syncer

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"accord/internal/model"
	"accord/pkg/logx"
)

var logger = logx.NewLogger("syncer")

// pushRetryAttempts is the minimum retry count spec.md §6 requires around
// push.
const pushRetryAttempts = 3

// Syncer runs git subcommands against one hub directory. A single Syncer
// must never be invoked concurrently on the same directory — the caller
// (Scheduler or a post-batch commit) is responsible for serializing calls.
type Syncer struct {
	dir string
}

// New constructs a Syncer rooted at dir, the hub's working tree.
func New(dir string) *Syncer {
	return &Syncer{dir: dir}
}

func (s *Syncer) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = s.dir
	var out strings.Builder
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.String(), err
}

// Pull runs "git pull" on the hub directory. Failures are logged and
// never fatal — the next tick will retry.
func (s *Syncer) Pull(ctx context.Context) error {
	if _, err := s.run(ctx, "pull", "--ff-only"); err != nil {
		logger.Warn("pull failed: %v", err)
		return &model.GitError{Op: "pull", Err: err}
	}
	return nil
}

// Push runs "git push" with at-least-3-attempt retry. A failure after
// exhausting retries is logged, not fatal.
func (s *Syncer) Push(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= pushRetryAttempts; attempt++ {
		_, err := s.run(ctx, "push")
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt < pushRetryAttempts {
			select {
			case <-ctx.Done():
				return &model.GitError{Op: "push", Err: ctx.Err()}
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
	}
	logger.Warn("push failed after %d attempts: %v", pushRetryAttempts, lastErr)
	return &model.GitError{Op: "push", Err: lastErr}
}

// Clone clones url into target. Fatal to the caller on failure — used
// only at hub initialization.
func Clone(ctx context.Context, url, target string) error {
	cmd := exec.CommandContext(ctx, "git", "clone", url, target)
	var out strings.Builder
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return &model.GitError{Op: "clone", Err: err}
	}
	return nil
}

// Commit stages all changes and commits with message, returning whether
// it actually produced a commit. "Nothing to commit" is non-fatal: it
// reports false, not an error.
func (s *Syncer) Commit(ctx context.Context, message string) (bool, error) {
	if _, err := s.run(ctx, "add", "-A"); err != nil {
		return false, &model.GitError{Op: "add", Err: err}
	}

	out, err := s.run(ctx, "commit", "-m", message)
	if err != nil {
		if strings.Contains(out, "nothing to commit") {
			return false, nil
		}
		return false, &model.GitError{Op: "commit", Err: err}
	}
	return true, nil
}
