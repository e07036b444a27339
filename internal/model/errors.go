package model

import "fmt"

// ParseError indicates a request or directive file lacked valid frontmatter,
// an id, or a status. Recovered locally by the Scanner: logged and skipped,
// never reaches the Worker.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RetryableError is implemented by errors that know whether the Worker
// should retry the request that produced them, mirroring the teacher's
// RetryableError convention (pkg/agent/retry.go) applied to request
// processing instead of LLM completions.
type RetryableError interface {
	error
	ShouldRetry() bool
}

// AdapterTransientError is a retryable adapter failure: timeout, network
// hiccup, subprocess nonzero exit, or an aborted invocation.
type AdapterTransientError struct {
	Err error
}

func (e *AdapterTransientError) Error() string   { return "adapter transient error: " + e.Err.Error() }
func (e *AdapterTransientError) Unwrap() error    { return e.Err }
func (e *AdapterTransientError) ShouldRetry() bool { return true }

// AdapterFatalError is a result message carrying is_error=true. Per spec
// §7, it shares the transient error's retry envelope: the retry budget caps
// both, the distinction is not modeled separately at the Worker layer.
type AdapterFatalError struct {
	Err error
}

func (e *AdapterFatalError) Error() string   { return "adapter fatal error: " + e.Err.Error() }
func (e *AdapterFatalError) Unwrap() error    { return e.Err }
func (e *AdapterFatalError) ShouldRetry() bool { return true }

// ShellFailure is surfaced by the Shell adapter when the child process
// exits non-zero.
type ShellFailure struct {
	ExitStatus int
	Stderr     string
}

func (e *ShellFailure) Error() string {
	return fmt.Sprintf("shell command exited %d: %s", e.ExitStatus, e.Stderr)
}

func (e *ShellFailure) ShouldRetry() bool { return true }

// SessionRotationRequired is a signal, not an error: the Session Manager
// indicates the current session has exceeded its rotation policy and the
// Worker must rotate before invoking the adapter.
type SessionRotationRequired struct {
	Key string
}

func (e *SessionRotationRequired) Error() string {
	return fmt.Sprintf("session for %q requires rotation", e.Key)
}

// GitError wraps a failed commit, pull, or push. Pull and push failures are
// logged and never abort processing; a commit failure meaning "nothing to
// commit" is non-fatal and reported via a bool return, not this type.
type GitError struct {
	Op  string
	Err error
}

func (e *GitError) Error() string { return fmt.Sprintf("git %s: %v", e.Op, e.Err) }
func (e *GitError) Unwrap() error { return e.Err }

// ConfigError is fatal at startup: missing config.yaml, empty services
// list, or missing project.name.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "config error: " + e.Reason }

// StateViolation is returned when the Coordinator is asked to transition a
// directive into an unknown or disallowed phase. The operation is rejected;
// state is never corrupted.
type StateViolation struct {
	DirectiveID string
	From        DirectiveStatus
	To          DirectiveStatus
}

func (e *StateViolation) Error() string {
	return fmt.Sprintf("directive %s: invalid transition %s -> %s", e.DirectiveID, e.From, e.To)
}
