package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// writeSummary renders the finalize-time summary artifacts: summary.json for
// tooling and summary.md for humans doing a post-mortem.
func writeSummary(root string, summary *Summary, steps []StepEntry, files []TrackedFile) error {
	payload := struct {
		*Summary
		Steps []StepEntry   `json:"steps"`
		Files []TrackedFile `json:"files"`
	}{summary, steps, files}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	jsonPath := filepath.Join(root, "metadata", "summary.json")
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	mdPath := filepath.Join(root, "metadata", "summary.md")
	if err := os.WriteFile(mdPath, []byte(renderSummaryMarkdown(summary, steps)), 0644); err != nil {
		return fmt.Errorf("write summary markdown: %w", err)
	}
	return nil
}

func renderSummaryMarkdown(summary *Summary, steps []StepEntry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Session %s\n\n", summary.SessionID)
	fmt.Fprintf(&b, "- Topic: %s\n", summary.Meta.Topic)
	fmt.Fprintf(&b, "- Platform: %s\n", summary.Meta.Platform)
	fmt.Fprintf(&b, "- Target duration: %ds\n", summary.Meta.Duration)
	fmt.Fprintf(&b, "- Created: %s\n", summary.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Finalized: %s\n", summary.FinalizedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Tracked files: %d (%d bytes)\n\n", summary.TrackedFiles, summary.TotalBytes)

	b.WriteString("## Files by type\n\n")
	types := make([]string, 0, len(summary.FileCounts))
	for t := range summary.FileCounts {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(&b, "- %s: %d\n", t, summary.FileCounts[FileType(t)])
	}

	b.WriteString("\n## Step log\n\n")
	for _, s := range steps {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", s.Timestamp.Format("15:04:05"), s.Name, s.Status)
	}
	if summary.FailedSteps > 0 {
		fmt.Fprintf(&b, "\n%d step(s) failed.\n", summary.FailedSteps)
	}

	return b.String()
}
