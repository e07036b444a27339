// Package scanner enumerates Accord's inbox and directive directories,
// producing typed records and priority-sorted dispatchable lists.
package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"accord/internal/codec"
	"accord/internal/model"
	"accord/pkg/logx"
)

var logger = logx.NewLogger("scanner")

// isRequestFile matches "req-*.md" — files not matching are skipped.
func isRequestFile(name string) bool {
	return strings.HasPrefix(name, "req-") && strings.HasSuffix(name, ".md")
}

// ScanInboxes walks comms/inbox/{service} for every configured service plus
// comms/inbox/orchestrator, returning all parsed requests found.
func ScanInboxes(accordDir string, services []string) []*model.Request {
	inboxRoot := filepath.Join(accordDir, "comms", "inbox")
	dirs := append([]string{"orchestrator"}, services...)

	var out []*model.Request
	seen := make(map[string]bool)
	for _, svc := range dirs {
		if seen[svc] {
			continue
		}
		seen[svc] = true
		out = append(out, scanDir(filepath.Join(inboxRoot, svc))...)
	}
	return out
}

// ScanArchive walks comms/archive for terminal requests.
func ScanArchive(accordDir string) []*model.Request {
	return scanDir(filepath.Join(accordDir, "comms", "archive"))
}

func scanDir(dir string) []*model.Request {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("scan %s: %v", dir, err)
		}
		return nil
	}

	var out []*model.Request
	for _, entry := range entries {
		if entry.IsDir() || !isRequestFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if req := codec.ParseRequest(path); req != nil {
			out = append(out, req)
		}
	}
	return out
}

// ScanDirectives walks directives/*.md, returning all parsed directives.
func ScanDirectives(accordDir string) []*model.Directive {
	dir := filepath.Join(accordDir, "directives")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("scan directives %s: %v", dir, err)
		}
		return nil
	}

	var out []*model.Directive
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if d := codec.ParseDirective(path); d != nil {
			out = append(out, d)
		}
	}
	return out
}

// CompletedSet scans both inbox and archive requests and returns the set of
// ids observed with status completed, for dependency resolution.
func CompletedSet(accordDir string, services []string) map[string]bool {
	completed := make(map[string]bool)
	for _, req := range ScanInboxes(accordDir, services) {
		if req.Status == model.StatusCompleted {
			completed[req.ID] = true
		}
	}
	for _, req := range ScanArchive(accordDir) {
		if req.Status == model.StatusCompleted {
			completed[req.ID] = true
		}
	}
	return completed
}

// GetDispatchable returns the subset of requests with status pending whose
// depends_on_requests (if any) are all observed as completed.
func GetDispatchable(requests []*model.Request, completed map[string]bool) []*model.Request {
	var out []*model.Request
	for _, req := range requests {
		if req.IsDispatchable(completed) {
			out = append(out, req)
		}
	}
	return out
}

// SortByPriority stable-sorts requests by priority ascending
// (critical < high < medium < low), tiebreaking by created ascending.
func SortByPriority(requests []*model.Request) {
	sort.SliceStable(requests, func(i, j int) bool {
		a, b := requests[i], requests[j]
		if a.Priority != b.Priority {
			return a.Priority.Less(b.Priority)
		}
		return a.Created.Before(b.Created)
	})
}
