// Package coordinator advances directives through their phase state machine
// in reaction to request completion/failure events. Grounded on the
// teacher's pkg/coder/coder_fsm.go: a canonical transition table is the
// single source of truth for legal moves, and evaluation is a plain
// dispatch on current status rather than a scattered if-chain.
package coordinator

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"accord/internal/codec"
	"accord/internal/eventbus"
	"accord/internal/model"
	"accord/internal/scanner"
	"accord/pkg/logx"
	"accord/pkg/metrics"

	"github.com/google/uuid"
)

var logger = logx.NewLogger("coordinator")

// Coordinator owns directive mutation exclusively, per spec §3's ownership
// rules. It reacts to request:completed and request:failed events; nothing
// else writes to directives/*.md.
type Coordinator struct {
	accordDir        string
	services         []string
	testAgentService string
	bus              *eventbus.Bus
	metrics          *metrics.Recorder

	mu     sync.Mutex
	active map[string]*model.Directive
}

// New constructs a Coordinator. testAgentService, if non-empty, is the
// service targeted by the test request spawned when a directive's
// implementation requests all complete. metrics may be nil.
func New(accordDir string, services []string, testAgentService string, bus *eventbus.Bus, rec *metrics.Recorder) *Coordinator {
	return &Coordinator{
		accordDir:        accordDir,
		services:         services,
		testAgentService: testAgentService,
		bus:              bus,
		metrics:          rec,
		active:           make(map[string]*model.Directive),
	}
}

// Start subscribes to request:completed and request:failed. It loads every
// non-terminal directive into the active-tracking map so an event
// referencing any of them can be resolved. Returns an unsubscribe func.
func (c *Coordinator) Start() func() {
	c.mu.Lock()
	for _, d := range scanner.ScanDirectives(c.accordDir) {
		if !d.Status.IsTerminal() {
			c.active[d.ID] = d
		}
	}
	c.mu.Unlock()

	unsubCompleted := c.bus.Subscribe(eventbus.TopicRequestCompleted, c.onRequestEvent)
	unsubFailed := c.bus.Subscribe(eventbus.TopicRequestFailed, c.onRequestEvent)
	return func() {
		unsubCompleted()
		unsubFailed()
	}
}

func (c *Coordinator) onRequestEvent(e eventbus.Event) {
	requestID := requestIDFromEvent(e)
	if requestID == "" {
		return
	}

	d := c.directiveFor(requestID)
	if d == nil {
		return
	}
	c.evaluate(d)
}

// requestIDFromEvent extracts the request id from either event shape the
// Worker publishes: a bare string (request:completed) or a struct carrying
// RequestID and WillRetry (request:failed).
func requestIDFromEvent(e eventbus.Event) string {
	switch v := e.Data.(type) {
	case string:
		return v
	case struct {
		RequestID string
		WillRetry bool
	}:
		return v.RequestID
	default:
		return ""
	}
}

// directiveFor looks up the directive owning requestID, scanning requests,
// contract_proposals, and test_requests, per spec §4.8.
func (c *Coordinator) directiveFor(requestID string) *model.Directive {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range c.active {
		if d.Contains(requestID) {
			return d
		}
	}

	// Not yet tracked (e.g. created after Start scanned directives/*.md):
	// re-scan before giving up.
	for _, d := range scanner.ScanDirectives(c.accordDir) {
		if d.Contains(requestID) {
			if !d.Status.IsTerminal() {
				c.active[d.ID] = d
			}
			return d
		}
	}
	return nil
}

// evaluate dispatches on d.Status, per spec §4.8. Evaluation itself never
// fails: a non-nil return comes from the transition it attempts, either a
// *model.StateViolation or an error writing the directive file.
func (c *Coordinator) evaluate(d *model.Directive) error {
	var err error
	switch d.Status {
	case model.DirectivePlanning:
		// No automatic transitions out of planning.
	case model.DirectiveNegotiating:
		err = c.evaluateNegotiating(d)
	case model.DirectiveImplementing:
		err = c.evaluateImplementing(d)
	case model.DirectiveTesting:
		err = c.evaluateTesting(d)
	default:
		logger.Warn("directive %s: evaluate called in terminal status %s", d.ID, d.Status)
	}
	if err != nil {
		logger.Error("directive %s: %v", d.ID, err)
	}
	return err
}

func (c *Coordinator) evaluateNegotiating(d *model.Directive) error {
	if len(d.ContractProposals) == 0 {
		return c.transition(d, model.DirectiveImplementing, "no contracts needed")
	}

	gs := c.groupStatus(d.ContractProposals)
	switch {
	case gs.allCompleted:
		return c.transition(d, model.DirectiveImplementing, "all contract proposals accepted")
	case gs.anyFailedOrRejected:
		d.RetryCount++
		if d.RetryCount >= d.MaxRetries {
			return c.transition(d, model.DirectiveFailed, fmt.Sprintf("contract negotiation exhausted %d retries", d.RetryCount))
		}
		return c.transition(d, model.DirectivePlanning, fmt.Sprintf("contract rejected, retry %d/%d", d.RetryCount, d.MaxRetries))
	default:
		// Some proposals still pending/in-progress: stay.
		return nil
	}
}

func (c *Coordinator) evaluateImplementing(d *model.Directive) error {
	implIDs := d.ImplementationRequests()
	gs := c.groupStatus(implIDs)

	switch {
	case gs.anyFailed && !gs.anyPending:
		return c.transition(d, model.DirectiveFailed, "an implementation request failed")
	case gs.allCompleted:
		if c.testAgentService == "" {
			return c.transition(d, model.DirectiveCompleted, "all implementation requests completed, no test agent configured")
		}
		testReq := c.spawnTestRequest(d, implIDs)
		d.TestRequests = append(d.TestRequests, testReq.ID)
		d.Requests = append(d.Requests, testReq.ID)
		return c.transition(d, model.DirectiveTesting, fmt.Sprintf("spawned test request %s", testReq.ID))
	default:
		// Still in flight: stay.
		return nil
	}
}

func (c *Coordinator) evaluateTesting(d *model.Directive) error {
	latest := d.LatestTestRequest()
	if latest == "" {
		return nil
	}

	statuses := c.loadStatuses([]string{latest})
	status, ok := statuses[latest]
	if !ok {
		return nil
	}

	switch status {
	case model.StatusCompleted:
		c.bus.Publish(eventbus.TopicDirectiveTestResult, struct {
			DirectiveID string
			Passed      bool
		}{d.ID, true})
		return c.transition(d, model.DirectiveCompleted, fmt.Sprintf("test request %s passed", latest))
	case model.StatusFailed, model.StatusRejected:
		c.bus.Publish(eventbus.TopicDirectiveTestResult, struct {
			DirectiveID string
			Passed      bool
		}{d.ID, false})

		fixIDs := c.spawnFixRequests(d)
		d.Requests = append(d.Requests, fixIDs...)
		return c.transition(d, model.DirectiveImplementing, fmt.Sprintf("test request %s failed, spawned %d fix request(s)", latest, len(fixIDs)))
	default:
		// Test request still pending/in-progress: stay.
		return nil
	}
}

// transition validates from -> to against the canonical table, writes the
// directive file, emits directive:phase-change, and — on terminal status —
// drops it from the active-tracking map. An invalid move rejects the
// operation and returns a *model.StateViolation rather than mutating d.
func (c *Coordinator) transition(d *model.Directive, to model.DirectiveStatus, message string) error {
	from := d.Status
	if !model.IsValidDirectiveTransition(from, to) {
		return &model.StateViolation{DirectiveID: d.ID, From: from, To: to}
	}

	d.Status = to
	if err := codec.WriteDirective(d); err != nil {
		return fmt.Errorf("write directive %s: %w", d.ID, err)
	}

	c.bus.Publish(eventbus.TopicDirectivePhaseChange, struct {
		DirectiveID string
		From        model.DirectiveStatus
		To          model.DirectiveStatus
		Message     string
	}{d.ID, from, to, message})

	if c.metrics != nil {
		c.metrics.IncDirectiveTransition(string(to))
	}

	if to.IsTerminal() {
		c.mu.Lock()
		delete(c.active, d.ID)
		c.mu.Unlock()
	}
	return nil
}

// groupResult summarizes the statuses of a set of request ids.
type groupResult struct {
	allCompleted        bool
	anyFailedOrRejected bool
	anyFailed           bool
	anyPending          bool
}

func (c *Coordinator) groupStatus(ids []string) groupResult {
	statuses := c.loadStatuses(ids)

	gr := groupResult{allCompleted: len(ids) > 0}
	for _, id := range ids {
		status, ok := statuses[id]
		if !ok {
			gr.allCompleted = false
			gr.anyPending = true
			continue
		}
		switch status {
		case model.StatusCompleted:
		case model.StatusFailed, model.StatusRejected:
			gr.allCompleted = false
			gr.anyFailedOrRejected = true
			gr.anyFailed = gr.anyFailed || status == model.StatusFailed
		default:
			gr.allCompleted = false
			gr.anyPending = true
		}
	}
	return gr
}

// loadStatuses scans inbox and archive requests and returns the statuses of
// those whose id is in ids.
func (c *Coordinator) loadStatuses(ids []string) map[string]model.RequestStatus {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	out := make(map[string]model.RequestStatus, len(ids))
	for _, req := range c.allRequests() {
		if want[req.ID] {
			out[req.ID] = req.Status
		}
	}
	return out
}

func (c *Coordinator) allRequests() []*model.Request {
	all := scanner.ScanInboxes(c.accordDir, c.services)
	all = append(all, scanner.ScanArchive(c.accordDir)...)
	return all
}

// affectedServices derives the set of service names touched by a
// directive, scanning inbox+archive requests whose id is in d.Requests,
// per spec §4.8.
func (c *Coordinator) affectedServices(d *model.Directive) []string {
	want := make(map[string]bool, len(d.Requests))
	for _, id := range d.Requests {
		want[id] = true
	}

	seen := make(map[string]bool)
	var out []string
	for _, req := range c.allRequests() {
		if !want[req.ID] || req.ServiceName == "" {
			continue
		}
		if !seen[req.ServiceName] {
			seen[req.ServiceName] = true
			out = append(out, req.ServiceName)
		}
	}
	return out
}

// spawnTestRequest creates one test request dependent on every
// implementation request id, targeted at the configured test agent
// service, per spec §4.8's "implementing" rule.
func (c *Coordinator) spawnTestRequest(d *model.Directive, implIDs []string) *model.Request {
	now := time.Now().UTC()
	req := &model.Request{
		ID:                fmt.Sprintf("req-test-%d", now.Unix()),
		From:              "coordinator",
		To:                c.testAgentService,
		Scope:             model.ScopeInternal,
		Type:              "test",
		Priority:          model.PriorityHigh,
		Status:            model.StatusPending,
		Directive:         d.ID,
		DependsOnRequests: append([]string(nil), implIDs...),
		Created:           now,
		Updated:           now,
		Body:              fmt.Sprintf("Run tests covering directive %s's implementation requests: %v\n", d.ID, implIDs),
	}
	c.create(req, c.testAgentService)
	return req
}

// spawnFixRequests creates one "fix" request per service affected by d,
// per spec §4.8's "testing" failure rule.
func (c *Coordinator) spawnFixRequests(d *model.Directive) []string {
	services := c.affectedServices(d)
	ids := make([]string, 0, len(services))
	now := time.Now().UTC()

	for _, svc := range services {
		req := &model.Request{
			ID:             "req-fix-" + uuid.NewString(),
			From:           "coordinator",
			To:             svc,
			Scope:          model.ScopeInternal,
			Type:           "fix",
			Priority:       model.PriorityHigh,
			Status:         model.StatusPending,
			Directive:      d.ID,
			OriginatedFrom: d.LatestTestRequest(),
			Created:        now,
			Updated:        now,
			Body:           fmt.Sprintf("Test request %s failed for directive %s. Fix the issues in service %s.\n", d.LatestTestRequest(), d.ID, svc),
		}
		c.create(req, svc)
		ids = append(ids, req.ID)
	}
	return ids
}

func (c *Coordinator) create(req *model.Request, service string) {
	path := filepath.Join(c.accordDir, "comms", "inbox", service, req.ID+".md")
	if err := codec.CreateRequest(path, req); err != nil {
		logger.Error("create request %s: %v", req.ID, err)
	}
}
