package worker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"accord/internal/codec"
	"accord/internal/model"
	"accord/internal/scanner"
)

// runCommand executes the diagnostic fast-path for req and returns the
// result text plus whether the command itself was recognized. An
// unrecognized command still runs the flow with success=false, per
// spec §4.5 step 3.
func runCommand(accordDir string, services []string, req *model.Request) (text string, ok bool) {
	switch req.Command {
	case model.CommandStatus:
		return commandStatus(accordDir, services), true
	case model.CommandScan:
		return commandScan(accordDir, services), true
	case model.CommandCheckInbox:
		return commandCheckInbox(accordDir, req.ServiceName), true
	case model.CommandValidate:
		return commandValidate(accordDir, req.ServiceName), true
	default:
		return fmt.Sprintf("unknown command %q", req.Command), false
	}
}

func commandStatus(accordDir string, services []string) string {
	requests := scanner.ScanInboxes(accordDir, services)
	archived := scanner.ScanArchive(accordDir)
	directives := scanner.ScanDirectives(accordDir)

	counts := make(map[model.RequestStatus]int)
	for _, r := range requests {
		counts[r.Status]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "services: %d\n", len(services))
	fmt.Fprintf(&b, "inbox requests: %d\n", len(requests))
	fmt.Fprintf(&b, "archived requests: %d\n", len(archived))
	fmt.Fprintf(&b, "directives: %d\n", len(directives))
	for status, n := range counts {
		fmt.Fprintf(&b, "  %s: %d\n", status, n)
	}
	return b.String()
}

func commandScan(accordDir string, services []string) string {
	requests := scanner.ScanInboxes(accordDir, services)
	completed := scanner.CompletedSet(accordDir, services)
	dispatchable := scanner.GetDispatchable(requests, completed)
	scanner.SortByPriority(dispatchable)

	var b strings.Builder
	fmt.Fprintf(&b, "dispatchable: %d\n", len(dispatchable))
	for _, r := range dispatchable {
		fmt.Fprintf(&b, "  %s (%s, %s)\n", r.ID, r.ServiceName, r.Priority)
	}
	return b.String()
}

func commandCheckInbox(accordDir, service string) string {
	requests := scanner.ScanInboxes(accordDir, []string{service})

	var b strings.Builder
	fmt.Fprintf(&b, "inbox for %s: %d request(s)\n", service, len(requests))
	for _, r := range requests {
		fmt.Fprintf(&b, "  %s: %s\n", r.ID, r.Status)
	}
	return b.String()
}

// commandValidate re-reads every request file for service and reports any
// that codec.ParseRequest rejects (missing frontmatter, id, or status),
// since the Scanner's normal contract is to silently skip those.
func commandValidate(accordDir, service string) string {
	dir := filepath.Join(accordDir, "comms", "inbox", service)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Sprintf("validate %s: %v", service, err)
	}

	var b strings.Builder
	valid, invalid := 0, 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "req-") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if codec.ParseRequest(path) != nil {
			valid++
		} else {
			invalid++
			fmt.Fprintf(&b, "invalid: %s\n", entry.Name())
		}
	}
	fmt.Fprintf(&b, "valid: %d, invalid: %d\n", valid, invalid)
	return b.String()
}
