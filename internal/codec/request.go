package codec

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"accord/internal/model"
)

// inboxSegment is the literal path component after which the service name
// is derived, per spec §4.1.
const inboxSegment = "inbox"

// ParseRequest reads and parses a request file. It returns nil and logs if
// the file lacks a valid frontmatter block, an id, or a status — a
// model.ParseError is never returned to the caller, matching spec §7's
// "recovered locally" policy for the Scanner.
func ParseRequest(path string) *model.Request {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("read request %s: %v", path, err)
		return nil
	}

	doc, err := splitFrontmatter(data)
	if err != nil {
		logger.Warn("parse request %s: %v", path, err)
		return nil
	}

	id := str(doc.Frontmatter, "id")
	status := str(doc.Frontmatter, "status")
	if id == "" || status == "" {
		logger.Warn("request %s missing id or status", path)
		return nil
	}

	req := &model.Request{
		ID:                id,
		From:              str(doc.Frontmatter, "from"),
		To:                str(doc.Frontmatter, "to"),
		Scope:             model.Scope(str(doc.Frontmatter, "scope")),
		Type:              str(doc.Frontmatter, "type"),
		Priority:          model.Priority(str(doc.Frontmatter, "priority")),
		Status:            model.RequestStatus(status),
		Command:           str(doc.Frontmatter, "command"),
		CommandArgs:       str(doc.Frontmatter, "command_args"),
		Directive:         str(doc.Frontmatter, "directive"),
		RelatedContract:   str(doc.Frontmatter, "related_contract"),
		OriginatedFrom:    str(doc.Frontmatter, "originated_from"),
		DependsOnRequests: strList(doc.Frontmatter, "depends_on_requests"),
		Attempts:          intVal(doc.Frontmatter, "attempts"),
		Created:           parseTime(doc.Frontmatter, "created"),
		Updated:           parseTime(doc.Frontmatter, "updated"),
		ServiceName:       deriveServiceName(path),
		Path:              path,
		Body:              doc.Body,
		Extra:             doc.Frontmatter,
	}

	return req
}

// deriveServiceName extracts the path segment immediately after the
// literal component "inbox".
func deriveServiceName(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	for i, p := range parts {
		if p == inboxSegment && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

// toFrontmatter rebuilds the frontmatter map from a Request, starting from
// Extra so unknown keys survive the round-trip, then overlaying the fields
// this package models.
func toFrontmatter(r *model.Request) map[string]any {
	fm := make(map[string]any, len(r.Extra)+16)
	for k, v := range r.Extra {
		fm[k] = v
	}

	fm["id"] = r.ID
	fm["from"] = r.From
	fm["to"] = r.To
	setOrDelete(fm, "scope", string(r.Scope))
	setOrDelete(fm, "type", r.Type)
	setOrDelete(fm, "priority", string(r.Priority))
	fm["status"] = string(r.Status)
	setOrDelete(fm, "command", r.Command)
	setOrDelete(fm, "command_args", r.CommandArgs)
	setOrDelete(fm, "directive", r.Directive)
	setOrDelete(fm, "related_contract", r.RelatedContract)
	setOrDelete(fm, "originated_from", r.OriginatedFrom)
	if len(r.DependsOnRequests) > 0 {
		fm["depends_on_requests"] = r.DependsOnRequests
	} else {
		delete(fm, "depends_on_requests")
	}
	fm["attempts"] = r.Attempts
	if !r.Created.IsZero() {
		fm["created"] = r.Created.UTC().Format(time.RFC3339)
	}
	if !r.Updated.IsZero() {
		fm["updated"] = r.Updated.UTC().Format(time.RFC3339)
	}

	return fm
}

func setOrDelete(fm map[string]any, key, value string) {
	if value == "" {
		delete(fm, key)
		return
	}
	fm[key] = value
}

func writeRequest(r *model.Request) error {
	doc := &document{Frontmatter: toFrontmatter(r), Body: r.Body}
	data, err := render(doc)
	if err != nil {
		return err
	}
	return writeFileAtomic(r.Path, data)
}

// CreateRequest writes a brand new request file at path, e.g. for an
// escalation request the Worker raises into the orchestrator inbox.
func CreateRequest(path string, r *model.Request) error {
	r.Path = path
	if r.Extra == nil {
		r.Extra = make(map[string]any)
	}
	return writeRequest(r)
}

// UpdateField rewrites a single frontmatter field on the request file at
// path, preserving the body and all other fields.
func UpdateField(path, key string, value any) error {
	req := ParseRequest(path)
	if req == nil {
		return fmt.Errorf("update field %s: could not parse %s", key, path)
	}
	fm := toFrontmatter(req)
	fm[key] = value
	data, err := render(&document{Frontmatter: fm, Body: req.Body})
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// SetStatus rewrites the status field and bumps updated to now.
func SetStatus(path string, status model.RequestStatus) error {
	req := ParseRequest(path)
	if req == nil {
		return fmt.Errorf("set status: could not parse %s", path)
	}
	req.Status = status
	req.Updated = time.Now().UTC()
	return writeRequest(req)
}

// IncrementAttempts reads the current attempts (default 0), writes +1, and
// returns the new count.
func IncrementAttempts(path string) (int, error) {
	req := ParseRequest(path)
	if req == nil {
		return 0, fmt.Errorf("increment attempts: could not parse %s", path)
	}
	req.Attempts++
	if err := writeRequest(req); err != nil {
		return 0, err
	}
	return req.Attempts, nil
}

// Archive atomically renames the request file into
// rootDir/comms/archive/, creating that directory if missing.
func Archive(path, rootDir string) (string, error) {
	archiveDir := filepath.Join(rootDir, "comms", "archive")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	newPath := filepath.Join(archiveDir, filepath.Base(path))
	if err := os.Rename(path, newPath); err != nil {
		return "", fmt.Errorf("archive %s: %w", path, err)
	}
	return newPath, nil
}

// AppendResult appends a "## Result" section with a fenced block containing
// text to the request file's body.
func AppendResult(path, text string) error {
	req := ParseRequest(path)
	if req == nil {
		return fmt.Errorf("append result: could not parse %s", path)
	}
	var b strings.Builder
	b.WriteString(req.Body)
	if !strings.HasSuffix(req.Body, "\n") && req.Body != "" {
		b.WriteString("\n")
	}
	b.WriteString("\n## Result\n\n```\n")
	b.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("```\n")
	req.Body = b.String()
	return writeRequest(req)
}

// attemptsString is a small helper kept for callers that want the attempts
// count formatted for display (e.g. prompt building).
func attemptsString(n int) string {
	return strconv.Itoa(n)
}
