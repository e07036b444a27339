package worker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"accord/internal/model"
)

const standardInstructions = `
Follow the repository's existing conventions. Make the smallest change
that satisfies the request. When you are done, summarize what changed.`

// buildPrompt assembles the agent prompt per spec §4.5c: request body,
// frontmatter fields, then whatever inlineable context actually exists on
// disk (registry file, related contract, skill index, last checkpoint), in
// that order, followed by the standard instructions.
func buildPrompt(accordDir string, req *model.Request, checkpoint string) string {
	var b strings.Builder

	b.WriteString(req.Body)
	b.WriteString("\n\n---\n")
	fmt.Fprintf(&b, "id: %s\nfrom: %s\nto: %s\npriority: %s\nattempts: %d\n",
		req.ID, req.From, req.To, req.Priority, req.Attempts)

	if content, ok := readIfExists(registryPath(accordDir, req.ServiceName)); ok {
		b.WriteString("\n## Service registry\n\n")
		b.WriteString(content)
	}

	if req.RelatedContract != "" {
		if content, ok := readIfExists(contractPath(accordDir, req.RelatedContract)); ok {
			b.WriteString("\n## Related contract\n\n")
			b.WriteString(content)
		}
	}

	if content, ok := readIfExists(skillIndexPath(accordDir)); ok {
		b.WriteString("\n## Skill index\n\n")
		b.WriteString(content)
	}

	if checkpoint != "" {
		b.WriteString("\n## Previous attempt\n\n")
		b.WriteString(checkpoint)
	}

	b.WriteString("\n\n## Instructions\n")
	b.WriteString(standardInstructions)

	return b.String()
}

func registryPath(accordDir, service string) string {
	return filepath.Join(accordDir, "registry", service+".yaml")
}

// contractPath tries contracts/{name}.yaml first, then the internal
// Markdown variant, per spec §6's two contract locations.
func contractPath(accordDir, relatedContract string) string {
	yamlPath := filepath.Join(accordDir, "contracts", relatedContract+".yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}
	return filepath.Join(accordDir, "contracts", "internal", relatedContract+".md")
}

func skillIndexPath(accordDir string) string {
	return filepath.Join(accordDir, "skills", "INDEX.md")
}

func readIfExists(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}
