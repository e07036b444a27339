// Package worker implements the per-request state machine: the command
// fast-path for diagnostic requests, and the full agent path (claim,
// prompt build, invoke, success/failure handling, archive/retry/escalate)
// for everything else. Grounded on the teacher's pkg/coder/coder_fsm.go
// transition-table discipline, applied here to request status transitions
// rather than coder lifecycle phases.
package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"accord/internal/adapter"
	"accord/internal/codec"
	"accord/internal/eventbus"
	"accord/internal/historylog"
	"accord/internal/model"
	"accord/internal/session"
	"accord/internal/syncer"
	"accord/pkg/logx"
	"accord/pkg/metrics"
)

var logger = logx.NewLogger("worker")

// ServiceConfig is what the Worker needs to process a request for one
// service: where its working directory is, which Adapter backend talks to
// it, and which model tag to request (the service's own model setting;
// empty when the service sets none).
type ServiceConfig struct {
	WorkingDir string
	Adapter    adapter.Adapter
	Model      string
}

// Config bundles the collaborators and per-hub settings a Worker needs.
// All fields are shared across every Worker in the pool; the WorkerSlot a
// Worker runs in is owned by the Dispatcher and passed to ProcessRequest.
type Config struct {
	AccordDir      string
	Services       []string
	ServiceConfigs map[string]ServiceConfig
	Sessions       *session.Manager
	History        *historylog.Writer
	Bus            *eventbus.Bus
	Sync           *syncer.Syncer
	MaxAttempts    int
	RequestTimeout time.Duration
	MaxBudgetUSD   float64
	MaxTurns       int
	Metrics        *metrics.Recorder
}

// Worker processes one request at a time. A Worker's WorkerSlot is owned
// by the Dispatcher, which passes it into ProcessRequest for the duration
// of the call; the Worker mutates it only while actively processing and
// MUST restore it to idle before returning, on every path.
type Worker struct {
	id  string
	cfg Config
}

// New constructs a Worker bound to cfg, identified by id for WorkerSlot
// bookkeeping and history actor attribution.
func New(id string, cfg Config) *Worker {
	return &Worker{id: id, cfg: cfg}
}

// ProcessRequest runs req to completion — command fast-path or full agent
// path — and always returns a RequestResult, never an error, matching
// spec §7's worker-never-throws propagation policy.
func (w *Worker) ProcessRequest(ctx context.Context, slot *model.WorkerSlot, req *model.Request) model.RequestResult {
	start := time.Now()
	slot.State = model.WorkerBusy
	slot.CurrentRequestID = req.ID
	slot.CurrentService = req.ServiceName
	slot.StartedAt = start
	w.cfg.Bus.Publish(eventbus.TopicWorkerStarted, req.ID)

	defer func() {
		slot.State = model.WorkerIdle
		slot.LastServiceName = slot.CurrentService
		slot.CurrentRequestID = ""
		slot.CurrentService = ""
	}()

	var result model.RequestResult
	if req.IsCommand() {
		result = w.processCommand(ctx, req)
	} else {
		result = w.processAgentPath(ctx, req)
	}
	duration := time.Since(start)
	result.DurationMs = duration.Milliseconds()
	if w.cfg.Metrics != nil {
		w.cfg.Metrics.ObserveRequest(req.ServiceName, result.Success, duration)
	}
	return result
}

func (w *Worker) processCommand(ctx context.Context, req *model.Request) model.RequestResult {
	text, ok := runCommand(w.cfg.AccordDir, w.cfg.Services, req)

	if err := codec.AppendResult(req.Path, text); err != nil {
		logger.Warn("append command result for %s: %v", req.ID, err)
	}
	if err := codec.SetStatus(req.Path, model.StatusCompleted); err != nil {
		logger.Warn("set status for %s: %v", req.ID, err)
	}

	w.writeHistory(req, model.StatusInProgress, model.StatusCompleted, "command: "+req.Command)
	w.archive(ctx, req, fmt.Sprintf("worker %s: command %s", w.id, req.Command))

	w.cfg.Bus.Publish(eventbus.TopicRequestCompleted, req.ID)
	return model.RequestResult{RequestID: req.ID, Success: ok}
}

func (w *Worker) archive(ctx context.Context, req *model.Request, commitMessage string) {
	if _, err := codec.Archive(req.Path, w.cfg.AccordDir); err != nil {
		logger.Warn("archive %s: %v", req.ID, err)
		return
	}
	if w.cfg.Sync != nil {
		if _, err := w.cfg.Sync.Commit(ctx, commitMessage); err != nil {
			logger.Warn("commit after archiving %s: %v", req.ID, err)
		}
	}
}

func (w *Worker) writeHistory(req *model.Request, from, to model.RequestStatus, detail string) {
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
	}); err != nil {
		logger.Warn("write history for %s: %v", req.ID, err)
	}
}

func (w *Worker) serviceConfig(serviceName string) (ServiceConfig, bool) {
	sc, ok := w.cfg.ServiceConfigs[serviceName]
	return sc, ok
}

// escalationPath builds a deterministic-enough path for a new escalation
// request file in the orchestrator inbox.
func (w *Worker) escalationPath() string {
	return filepath.Join(w.cfg.AccordDir, "comms", "inbox", "orchestrator",
		"req-escalation-"+uuid.NewString()+".md")
}
