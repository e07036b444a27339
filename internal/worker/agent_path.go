package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"accord/internal/adapter"
	"accord/internal/codec"
	"accord/internal/eventbus"
	"accord/internal/model"
)

// processAgentPath runs spec §4.5 step 4, a through f.
func (w *Worker) processAgentPath(ctx context.Context, req *model.Request) model.RequestResult {
	sc, ok := w.serviceConfig(req.ServiceName)
	if !ok {
		logger.Error("no service config for %s, request %s", req.ServiceName, req.ID)
		return model.RequestResult{RequestID: req.ID, Success: false,
			Error: fmt.Errorf("no service config for %s", req.ServiceName)}
	}

	// a. Rotate the live session before the first use this turn if the
	// Session Manager says the current one has hit its request-count or age
	// limit.
	now := time.Now()
	if w.cfg.Sessions.ShouldRotate(req.ServiceName, now) {
		w.cfg.Sessions.Rotate(req.ServiceName)
	}

	// b. Claim: in-progress, bump attempts, commit, emit, history.
	fromStatus := req.Status
	attempts, err := codec.IncrementAttempts(req.Path)
	if err != nil {
		logger.Error("increment attempts for %s: %v", req.ID, err)
		return model.RequestResult{RequestID: req.ID, Success: false, Error: err}
	}
	req.Attempts = attempts

	if err := codec.SetStatus(req.Path, model.StatusInProgress); err != nil {
		logger.Error("claim %s: %v", req.ID, err)
		return model.RequestResult{RequestID: req.ID, Success: false, Error: err}
	}
	req.Status = model.StatusInProgress

	if w.cfg.Sync != nil {
		if _, err := w.cfg.Sync.Commit(ctx, fmt.Sprintf("claim %s", req.ID)); err != nil {
			logger.Warn("commit claim for %s: %v", req.ID, err)
		}
	}
	w.cfg.Bus.Publish(eventbus.TopicRequestClaimed, req.ID)
	w.writeHistory(req, fromStatus, model.StatusInProgress, "claimed")

	// c. Build the prompt.
	checkpoint := w.cfg.Sessions.ReadCheckpoint(req.ID)
	prompt := buildPrompt(w.cfg.AccordDir, req, checkpoint)

	// d. Invoke.
	sess := w.cfg.Sessions.GetSession(req.ServiceName)
	resumeID := ""
	if sess != nil {
		resumeID = sess.SessionID
	}

	invokeCtx := ctx
	if w.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		invokeCtx, cancel = context.WithTimeout(ctx, w.cfg.RequestTimeout)
		defer cancel()
	}

	modelTag := sc.Model

	result, invokeErr := sc.Adapter.Invoke(invokeCtx, adapter.InvokeRequest{
		Prompt:          prompt,
		WorkingDir:      sc.WorkingDir,
		Model:           modelTag,
		ResumeSessionID: resumeID,
		Timeout:         w.cfg.RequestTimeout,
		MaxTurns:        w.cfg.MaxTurns,
		MaxBudgetUSD:    w.cfg.MaxBudgetUSD,
	}, func(event model.StreamEvent) {
		w.cfg.Bus.Publish(eventbus.TopicWorkerOutput, event)
	})

	if invokeErr != nil {
		return w.handleFailure(ctx, req, invokeErr)
	}
	return w.handleSuccess(ctx, req, result)
}

// handleSuccess is step e: update session, clear checkpoint, archive,
// write history with cost/usage, emit request:completed.
func (w *Worker) handleSuccess(ctx context.Context, req *model.Request, result adapter.InvokeResult) model.RequestResult {
	now := time.Now()
	w.cfg.Sessions.UpdateSession(req.ServiceName, result.SessionID, now)
	w.cfg.Sessions.ClearCheckpoint(req.ID)
	w.cfg.Sessions.SaveToDisk(w.cfg.AccordDir)

	if err := codec.AppendResult(req.Path, result.Text); err != nil {
		logger.Warn("append result for %s: %v", req.ID, err)
	}
	if err := codec.SetStatus(req.Path, model.StatusCompleted); err != nil {
		logger.Warn("set status completed for %s: %v", req.ID, err)
	}

	w.archive(ctx, req, fmt.Sprintf("worker %s: completed %s", w.id, req.ID))

	usage := result.Usage
	w.writeHistoryWithUsage(req, model.StatusInProgress, model.StatusCompleted, "completed",
		result.DurationMs, result.CostUSD, result.NumTurns, &usage, result.ModelUsage)

	w.cfg.Bus.Publish(eventbus.TopicRequestCompleted, req.ID)
	return model.RequestResult{RequestID: req.ID, Success: true}
}

// handleFailure is step f: checkpoint the error, escalate if attempts are
// exhausted, else return to pending for retry, emit request:failed.
func (w *Worker) handleFailure(ctx context.Context, req *model.Request, invokeErr error) model.RequestResult {
	checkpointText := fmt.Sprintf("attempt %d failed: %v", req.Attempts, invokeErr)
	if err := w.cfg.Sessions.WriteCheckpoint(req.ID, checkpointText); err != nil {
		logger.Warn("write checkpoint for %s: %v", req.ID, err)
	}

	willRetry := req.Attempts < w.cfg.MaxAttempts
	var retryable model.RetryableError
	if errors.As(invokeErr, &retryable) {
		willRetry = willRetry && retryable.ShouldRetry()
	}
	if !willRetry {
		if err := codec.SetStatus(req.Path, model.StatusFailed); err != nil {
			logger.Warn("set status failed for %s: %v", req.ID, err)
		}
		w.escalate(ctx, req, invokeErr)
		w.archive(ctx, req, fmt.Sprintf("worker %s: failed %s", w.id, req.ID))
		w.writeHistory(req, model.StatusInProgress, model.StatusFailed, invokeErr.Error())
	} else {
		if err := codec.SetStatus(req.Path, model.StatusPending); err != nil {
			logger.Warn("revert to pending for %s: %v", req.ID, err)
		}
		if w.cfg.Sync != nil {
			if _, err := w.cfg.Sync.Commit(ctx, fmt.Sprintf("retry %s", req.ID)); err != nil {
				logger.Warn("commit retry for %s: %v", req.ID, err)
			}
		}
		w.writeHistory(req, model.StatusInProgress, model.StatusPending, invokeErr.Error())
	}

	w.cfg.Bus.Publish(eventbus.TopicRequestFailed, struct {
		RequestID string
		WillRetry bool
	}{req.ID, willRetry})

	return model.RequestResult{RequestID: req.ID, Success: false, Error: invokeErr}
}

// escalate creates a high-priority escalation request in the orchestrator
// inbox referencing the original, embedding its body, per spec §4.5f and
// property S4.
func (w *Worker) escalate(ctx context.Context, req *model.Request, cause error) {
	escalation := &model.Request{
		ID:             "escalation-" + req.ID,
		From:           req.ServiceName,
		To:             "orchestrator",
		Scope:          model.ScopeInternal,
		Type:           "escalation",
		Priority:       model.PriorityHigh,
		Status:         model.StatusPending,
		OriginatedFrom: req.ID,
		Created:        time.Now().UTC(),
		Updated:        time.Now().UTC(),
		Body: fmt.Sprintf("Request %s from service %s exhausted its retry budget (%d attempts).\n\nCause: %v\n\n## Original request body\n\n%s\n",
			req.ID, req.ServiceName, req.Attempts, cause, req.Body),
	}

	if err := codec.CreateRequest(w.escalationPath(), escalation); err != nil {
		logger.Error("create escalation request for %s: %v", req.ID, err)
		return
	}
	if w.cfg.Sync != nil {
		if _, err := w.cfg.Sync.Commit(ctx, fmt.Sprintf("escalate %s", req.ID)); err != nil {
			logger.Warn("commit escalation for %s: %v", req.ID, err)
		}
	}
}

func (w *Worker) writeHistoryWithUsage(req *model.Request, from, to model.RequestStatus, detail string,
	durationMs int64, costUSD float64, numTurns int, usage *model.TokenUsage, modelUsage map[string]model.ModelUsage) {
	if w.cfg.History == nil {
		return
	}
	if err := w.cfg.History.Append(model.HistoryEntry{
		RequestID:   req.ID,
		FromStatus:  from,
		ToStatus:    to,
		Actor:       w.id,
		DirectiveID: req.Directive,
		Detail:      detail,
		DurationMs:  durationMs,
		CostUSD:     costUSD,
		NumTurns:    numTurns,
		Usage:       usage,
		ModelUsage:  modelUsage,
	}); err != nil {
		logger.Warn("write history for %s: %v", req.ID, err)
	}
}
