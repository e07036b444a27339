// Package model defines the shared entity types that flow through Accord's
// filesystem-backed request protocol: requests, directives, sessions,
// checkpoints, history entries, worker slots, and stream events.
package model

import "time"

// Priority is the urgency of a Request, ascending from most to least urgent.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// priorityRank gives the ascending sort weight for Priority: critical < high
// < medium < low, matching spec property 3 (priority monotonicity).
var priorityRank = map[Priority]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
	PriorityLow:      3,
}

// Less reports whether p is more urgent than other. Unknown priorities sort
// last, after "low".
func (p Priority) Less(other Priority) bool {
	pr, ok := priorityRank[p]
	if !ok {
		pr = len(priorityRank)
	}
	or, ok := priorityRank[other]
	if !ok {
		or = len(priorityRank)
	}
	return pr < or
}

// RequestStatus is the lifecycle state of a Request.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusApproved   RequestStatus = "approved"
	StatusInProgress RequestStatus = "in-progress"
	StatusCompleted  RequestStatus = "completed"
	StatusFailed     RequestStatus = "failed"
	StatusRejected   RequestStatus = "rejected"
)

// IsTerminal reports whether s is a terminal request status.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRejected:
		return true
	default:
		return false
	}
}

// Scope classifies who a Request is visible to.
type Scope string

const (
	ScopeExternal  Scope = "external"
	ScopeInternal  Scope = "internal"
	ScopeCrossTeam Scope = "cross-team"
)

// CommandType is the reserved request type for the diagnostic fast-path.
const CommandType = "command"

// Known diagnostic command names for the Worker's command fast-path.
const (
	CommandStatus      = "status"
	CommandScan        = "scan"
	CommandCheckInbox  = "check-inbox"
	CommandValidate    = "validate"
)

// Request is one file in inbox/{service}/req-*.md.
type Request struct {
	Created           time.Time      `yaml:"-"`
	Updated           time.Time      `yaml:"-"`
	ID                string         `yaml:"id"`
	From              string         `yaml:"from"`
	To                string         `yaml:"to"`
	Scope             Scope          `yaml:"scope,omitempty"`
	Type              string         `yaml:"type,omitempty"`
	Priority          Priority       `yaml:"priority,omitempty"`
	Status            RequestStatus  `yaml:"status"`
	Command           string         `yaml:"command,omitempty"`
	CommandArgs       string         `yaml:"command_args,omitempty"`
	Directive         string         `yaml:"directive,omitempty"`
	RelatedContract   string         `yaml:"related_contract,omitempty"`
	OriginatedFrom    string         `yaml:"originated_from,omitempty"`
	DependsOnRequests []string       `yaml:"depends_on_requests,omitempty"`
	Attempts          int            `yaml:"attempts"`

	// ServiceName is derived from the path segment after "inbox", not a
	// frontmatter field — see ParseRequest in internal/codec.
	ServiceName string `yaml:"-"`

	// Path is the absolute path of the file this Request was parsed from.
	Path string `yaml:"-"`

	// Body is the Markdown content below the frontmatter block.
	Body string `yaml:"-"`

	// Extra preserves frontmatter keys this struct does not model, so a
	// round-trip (parse, mutate one field, render) doesn't lose data.
	Extra map[string]any `yaml:"-"`
}

// DependsOnSatisfied reports whether every id in DependsOnRequests is present
// in completed with status Completed.
func (r *Request) DependsOnSatisfied(completed map[string]bool) bool {
	for _, dep := range r.DependsOnRequests {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// IsDispatchable reports whether r is eligible for the Scanner's dispatchable
// list: pending status with all dependencies satisfied.
func (r *Request) IsDispatchable(completed map[string]bool) bool {
	return r.Status == StatusPending && r.DependsOnSatisfied(completed)
}

// IsCommand reports whether r should take the Worker's command fast-path.
func (r *Request) IsCommand() bool {
	return r.Type == CommandType
}
