package codec

import (
	"fmt"
	"os"

	"accord/internal/model"
)

// ParseDirective reads and parses a directive file, returning nil and
// logging on any malformed input.
func ParseDirective(path string) *model.Directive {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("read directive %s: %v", path, err)
		return nil
	}

	doc, err := splitFrontmatter(data)
	if err != nil {
		logger.Warn("parse directive %s: %v", path, err)
		return nil
	}

	id := str(doc.Frontmatter, "id")
	status := str(doc.Frontmatter, "status")
	if id == "" || status == "" {
		logger.Warn("directive %s missing id or status", path)
		return nil
	}

	return &model.Directive{
		ID:                id,
		Title:             str(doc.Frontmatter, "title"),
		Priority:          model.Priority(str(doc.Frontmatter, "priority")),
		Status:            model.DirectiveStatus(status),
		RetryCount:        intVal(doc.Frontmatter, "retry_count"),
		MaxRetries:        intVal(doc.Frontmatter, "max_retries"),
		Requests:          strList(doc.Frontmatter, "requests"),
		ContractProposals: strList(doc.Frontmatter, "contract_proposals"),
		TestRequests:      strList(doc.Frontmatter, "test_requests"),
		Path:              path,
		Body:              doc.Body,
		Extra:             doc.Frontmatter,
	}
}

func directiveFrontmatter(d *model.Directive) map[string]any {
	fm := make(map[string]any, len(d.Extra)+8)
	for k, v := range d.Extra {
		fm[k] = v
	}
	fm["id"] = d.ID
	fm["title"] = d.Title
	setOrDelete(fm, "priority", string(d.Priority))
	fm["status"] = string(d.Status)
	fm["retry_count"] = d.RetryCount
	fm["max_retries"] = d.MaxRetries
	fm["requests"] = d.Requests
	fm["contract_proposals"] = d.ContractProposals
	fm["test_requests"] = d.TestRequests
	return fm
}

// WriteDirective rewrites a directive file in full, used by the Coordinator
// on every phase transition.
func WriteDirective(d *model.Directive) error {
	doc := &document{Frontmatter: directiveFrontmatter(d), Body: d.Body}
	data, err := render(doc)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(d.Path, data); err != nil {
		return fmt.Errorf("write directive %s: %w", d.ID, err)
	}
	return nil
}
