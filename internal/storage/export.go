package storage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExportMarkdown renders a run as a markdown document.
func ExportMarkdown(r *Run) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# Run %s\n\n", r.ID))
	b.WriteString(fmt.Sprintf("- **Language:** %s\n", r.Language))
	b.WriteString(fmt.Sprintf("- **Reason:** %s\n", r.Reason))
	b.WriteString(fmt.Sprintf("- **Exit code:** %d\n", r.ExitCode))
	b.WriteString(fmt.Sprintf("- **Started:** %s\n", r.StartedAt.Format("2006-01-02 15:04:05")))
	b.WriteString(fmt.Sprintf("- **Duration:** %s\n", r.Duration().Round(10_000_000)))
	b.WriteString("\n---\n\n")

	if r.Output != "" {
		b.WriteString(fmt.Sprintf("## Output\n\n```\n%s\n```\n\n", r.Output))
	}
	if r.Error != "" {
		b.WriteString(fmt.Sprintf("## Error\n\n```\n%s\n```\n\n", r.Error))
	}

	return b.String()
}

// ExportJSON renders a run as formatted JSON.
func ExportJSON(r *Run) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
