package adapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"accord/internal/model"
)

// managedSession is the bookkeeping for one logical long-lived session for
// a single working directory, grounded on the teacher's
// pkg/coder/claude/runner.go long-lived-session shape: a session id that is
// reused across invocations until rotated on error or cap, rather than
// recreated per call the way OneShot does.
type managedSession struct {
	sessionID    string
	createdAt    time.Time
	lastUsedAt   time.Time
	requestCount int
	busy         bool
}

// Persistent maintains an internal map workingDir -> managedSession,
// enforcing the same rotation caps as the Session Manager but keyed by
// working directory, with a busy flag preventing overlapping sends on one
// session. Invoke delegates the actual completion to an underlying
// OneShot-style provider client, since the Go provider SDKs this module
// wires do not expose a bidirectional session handle; what persists here
// is the logical sessionID and its rotation/busy bookkeeping, matching
// spec §4.4's contract at the Adapter interface.
type Persistent struct {
	mu       sync.Mutex
	sessions map[string]*managedSession
	policy   model.RotationPolicy
	inner    *OneShot
}

// NewPersistent constructs a Persistent adapter delegating completions to
// inner and rotating sessions per policy.
func NewPersistent(inner *OneShot, policy model.RotationPolicy) *Persistent {
	return &Persistent{
		sessions: make(map[string]*managedSession),
		policy:   policy,
		inner:    inner,
	}
}

func (p *Persistent) ensureSession(workingDir string, now time.Time) (*managedSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sess, ok := p.sessions[workingDir]
	if ok {
		if sess.busy {
			return nil, fmt.Errorf("session for %q is busy", workingDir)
		}
		age := now.Sub(sess.createdAt)
		if (p.policy.MaxRequests > 0 && sess.requestCount >= p.policy.MaxRequests) ||
			(p.policy.MaxAge > 0 && age >= p.policy.MaxAge) {
			delete(p.sessions, workingDir)
			ok = false
		}
	}
	if !ok {
		sess = &managedSession{createdAt: now}
		p.sessions[workingDir] = sess
	}
	sess.busy = true
	return sess, nil
}

func (p *Persistent) release(workingDir string, sess *managedSession, sessionID string, closeOnError bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if closeOnError {
		delete(p.sessions, workingDir)
		return
	}
	sess.busy = false
	sess.sessionID = sessionID
	sess.requestCount++
	sess.lastUsedAt = time.Now()
}

// Invoke ensures a session exists for req.WorkingDir (creating or resuming
// by id), then delegates to the inner one-shot completion. On any
// invoke-level error, including timeout, the session is closed and
// removed so the next call starts fresh.
func (p *Persistent) Invoke(ctx context.Context, req InvokeRequest, onEvent func(model.StreamEvent)) (InvokeResult, error) {
	sess, err := p.ensureSession(req.WorkingDir, time.Now())
	if err != nil {
		return InvokeResult{}, &model.AdapterTransientError{Err: &AgentError{Backend: "persistent", Message: err.Error()}}
	}

	if req.MaxTurns > 0 && sess.requestCount >= req.MaxTurns {
		p.release(req.WorkingDir, sess, "", true)
		return InvokeResult{}, &model.AdapterFatalError{Err: fmt.Errorf(
			"session for %q exhausted its %d-turn budget", req.WorkingDir, req.MaxTurns)}
	}

	if sess.sessionID != "" && req.ResumeSessionID == "" {
		req.ResumeSessionID = sess.sessionID
	}

	result, err := p.inner.Invoke(ctx, req, onEvent)
	if err != nil {
		p.release(req.WorkingDir, sess, "", true)
		return InvokeResult{}, err
	}

	p.release(req.WorkingDir, sess, result.SessionID, false)
	return result, nil
}

// SupportsResume implements Adapter.
func (p *Persistent) SupportsResume() bool {
	return true
}

// CloseAll closes every managed session, clearing the table.
func (p *Persistent) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = make(map[string]*managedSession)
}
