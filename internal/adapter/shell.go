package adapter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"accord/internal/model"
)

// shellRingBufferCap bounds the captured stdout per invocation.
const shellRingBufferCap = 256 * 1024

// Shell runs the configured CLI as a child process per invocation,
// grounded directly on the teacher's pkg/exec/local.go (subprocess
// execution, wall-clock timeout via context.WithTimeout, captured
// stdout/stderr) and pkg/exec/shell_adapter.go's argv-construction
// pattern. It never supports resume.
type Shell struct {
	cmdParts []string
}

// NewShell constructs a Shell adapter invoking cmdParts ++ [prompt].
func NewShell(cmdParts []string) *Shell {
	return &Shell{cmdParts: cmdParts}
}

func (s *Shell) Invoke(ctx context.Context, req InvokeRequest, onEvent func(model.StreamEvent)) (InvokeResult, error) {
	if len(s.cmdParts) == 0 {
		return InvokeResult{}, &model.AdapterTransientError{Err: &AgentError{Backend: "shell", Message: "command cannot be empty"}}
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	argv := append(append([]string{}, s.cmdParts...), req.Prompt)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if req.WorkingDir != "" {
		if _, err := os.Stat(req.WorkingDir); os.IsNotExist(err) {
			return InvokeResult{}, &model.AdapterTransientError{Err: &AgentError{Backend: "shell", Message: "working directory does not exist: " + req.WorkingDir}}
		}
		cmd.Dir = req.WorkingDir
	}

	var stdout, stderr ringBuffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return InvokeResult{}, &model.AdapterTransientError{Err: &AgentError{Backend: "shell", Message: fmt.Sprintf("failed to start: %v", err)}}
		}
	}

	if exitCode != 0 {
		return InvokeResult{}, &model.AdapterTransientError{Err: &model.ShellFailure{ExitStatus: exitCode, Stderr: strings.TrimSpace(stderr.String())}}
	}

	if onEvent != nil {
		onEvent(model.StreamEvent{Type: model.StreamText, Text: stdout.String()})
		onEvent(model.StreamEvent{Type: model.StreamStatus, Text: "result"})
	}

	return InvokeResult{
		DurationMs: duration.Milliseconds(),
		Text:       stdout.String(),
	}, nil
}

// SupportsResume implements Adapter — the Shell backend has no session
// concept.
func (s *Shell) SupportsResume() bool {
	return false
}

// ringBuffer is a bounded io.Writer keeping only the most recent
// shellRingBufferCap bytes written to it.
type ringBuffer struct {
	buf bytes.Buffer
}

func (r *ringBuffer) Write(p []byte) (int, error) {
	r.buf.Write(p)
	if excess := r.buf.Len() - shellRingBufferCap; excess > 0 {
		r.buf.Next(excess)
	}
	return len(p), nil
}

func (r *ringBuffer) String() string {
	return r.buf.String()
}
