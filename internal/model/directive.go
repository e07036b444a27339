package model

// DirectiveStatus is the phase of a Directive's coordination state machine.
type DirectiveStatus string

const (
	DirectivePlanning     DirectiveStatus = "planning"
	DirectiveNegotiating  DirectiveStatus = "negotiating"
	DirectiveImplementing DirectiveStatus = "implementing"
	DirectiveTesting      DirectiveStatus = "testing"
	DirectiveCompleted    DirectiveStatus = "completed"
	DirectiveFailed       DirectiveStatus = "failed"
)

// IsTerminal reports whether s is a terminal directive status.
func (s DirectiveStatus) IsTerminal() bool {
	return s == DirectiveCompleted || s == DirectiveFailed
}

// Directive is a file in directives/*.md: a multi-request unit of work
// advanced by the Coordinator's phase state machine.
type Directive struct {
	ID                string          `yaml:"id"`
	Title             string          `yaml:"title"`
	Priority          Priority        `yaml:"priority,omitempty"`
	Status            DirectiveStatus `yaml:"status"`
	RetryCount        int             `yaml:"retry_count"`
	MaxRetries        int             `yaml:"max_retries"`
	Requests          []string        `yaml:"requests,omitempty"`
	ContractProposals []string        `yaml:"contract_proposals,omitempty"`
	TestRequests      []string        `yaml:"test_requests,omitempty"`

	Path  string         `yaml:"-"`
	Body  string         `yaml:"-"`
	Extra map[string]any `yaml:"-"`
}

// Contains reports whether id appears in requests, contract_proposals, or
// test_requests.
func (d *Directive) Contains(id string) bool {
	for _, r := range d.Requests {
		if r == id {
			return true
		}
	}
	for _, r := range d.ContractProposals {
		if r == id {
			return true
		}
	}
	for _, r := range d.TestRequests {
		if r == id {
			return true
		}
	}
	return false
}

// ImplementationRequests returns Requests minus ContractProposals and
// TestRequests — the set the Coordinator evaluates during "implementing".
func (d *Directive) ImplementationRequests() []string {
	exclude := make(map[string]bool, len(d.ContractProposals)+len(d.TestRequests))
	for _, id := range d.ContractProposals {
		exclude[id] = true
	}
	for _, id := range d.TestRequests {
		exclude[id] = true
	}
	out := make([]string, 0, len(d.Requests))
	for _, id := range d.Requests {
		if !exclude[id] {
			out = append(out, id)
		}
	}
	return out
}

// LatestTestRequest returns the last element of TestRequests, or "" if empty.
func (d *Directive) LatestTestRequest() string {
	if len(d.TestRequests) == 0 {
		return ""
	}
	return d.TestRequests[len(d.TestRequests)-1]
}

// DirectiveTransitions is the canonical phase transition table, the single
// source of truth for which DirectiveStatus may follow which. Modeled on the
// teacher's CoderTransitions map (coder_fsm.go): an explicit allow-list
// instead of scattered if-chains.
var DirectiveTransitions = map[DirectiveStatus][]DirectiveStatus{
	DirectivePlanning:     {DirectiveNegotiating, DirectiveImplementing},
	DirectiveNegotiating:  {DirectivePlanning, DirectiveImplementing, DirectiveFailed},
	DirectiveImplementing: {DirectiveTesting, DirectiveCompleted, DirectiveFailed},
	DirectiveTesting:      {DirectiveImplementing, DirectiveCompleted},
	DirectiveCompleted:    {},
	DirectiveFailed:       {},
}

// IsValidDirectiveTransition reports whether from -> to is an allowed phase
// transition.
func IsValidDirectiveTransition(from, to DirectiveStatus) bool {
	allowed, ok := DirectiveTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}
