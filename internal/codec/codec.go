// Package codec reads and writes Accord's Markdown-with-YAML-frontmatter
// request and directive files. Parsing and rendering follow the frontmatter
// split/render pattern in the teacher pack's linear-fuse marshal package:
// a leading "---" delimited YAML block, followed by a Markdown body.
package codec

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"accord/internal/model"
	"accord/pkg/logx"
)

const frontmatterDelimiter = "---"

var logger = logx.NewLogger("codec")

// document is the generic frontmatter/body split, mirroring
// marshal.Document in the teacher pack.
type document struct {
	Frontmatter map[string]any
	Body        string
}

// splitFrontmatter parses a byte slice into frontmatter and body.
func splitFrontmatter(content []byte) (*document, error) {
	str := string(content)

	if !strings.HasPrefix(str, frontmatterDelimiter) {
		return nil, fmt.Errorf("missing frontmatter delimiter")
	}

	rest := str[len(frontmatterDelimiter):]
	idx := strings.Index(rest, "\n"+frontmatterDelimiter)
	if idx == -1 {
		return nil, fmt.Errorf("unclosed frontmatter")
	}

	fmYAML := rest[:idx]
	body := strings.TrimPrefix(rest[idx+len("\n"+frontmatterDelimiter):], "\n")

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(fmYAML), &fm); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	if fm == nil {
		fm = make(map[string]any)
	}

	return &document{Frontmatter: fm, Body: body}, nil
}

// render combines frontmatter and body back into a byte slice.
func render(doc *document) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(frontmatterDelimiter)
	buf.WriteString("\n")

	fmBytes, err := yaml.Marshal(doc.Frontmatter)
	if err != nil {
		return nil, fmt.Errorf("marshal frontmatter: %w", err)
	}
	buf.Write(fmBytes)

	buf.WriteString(frontmatterDelimiter)
	buf.WriteString("\n")
	buf.WriteString(doc.Body)

	return buf.Bytes(), nil
}

// writeFileAtomic writes data to path via a temp file in the same
// directory followed by an atomic rename, so a crash mid-write never
// leaves path without valid frontmatter.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func str(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func strList(m map[string]any, key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func intVal(m map[string]any, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func parseTime(m map[string]any, key string) time.Time {
	s := str(m, key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
