package session

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// FileType classifies a tracked artifact and selects its session subdirectory.
type FileType string

const (
	FileTypeAudio      FileType = "audio"
	FileTypeVideoClip  FileType = "video_clip"
	FileTypeImage      FileType = "image"
	FileTypeScript     FileType = "script"
	FileTypeLog        FileType = "log"
	FileTypeDiscussion FileType = "discussion"
	FileTypeMetadata   FileType = "metadata"
	FileTypeOther      FileType = "other"
)

// Lifecycle states of a session.
const (
	StateActive    = "active"
	StateFinalized = "finalized"
	StateCleaned   = "cleaned"
)

// Step statuses recorded in the generation log.
const (
	StepStarted   = "started"
	StepCompleted = "completed"
	StepFailed    = "failed"
	StepSkipped   = "skipped"
)

// Meta carries the mission parameters a session was created for.
type Meta struct {
	Topic    string `json:"topic"`
	Platform string `json:"platform"`
	Duration int    `json:"duration_s"`
	Category string `json:"category"`
}

// TrackedFile binds a logical artifact role to its on-disk path inside the
// owning session tree.
type TrackedFile struct {
	Type      FileType  `json:"type"`
	Source    string    `json:"source"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Order     int       `json:"order"`
	TrackedAt time.Time `json:"tracked_at"`
}

// StepEntry is one immutable generation-step log record.
type StepEntry struct {
	Name      string         `json:"name"`
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Summary aggregates a finalized session for the manifest and summary artifacts.
type Summary struct {
	SessionID    string           `json:"session_id"`
	State        string           `json:"state"`
	Meta         Meta             `json:"meta"`
	CreatedAt    time.Time        `json:"created_at"`
	FinalizedAt  time.Time        `json:"finalized_at"`
	FileCounts   map[FileType]int `json:"file_counts"`
	TotalBytes   int64            `json:"total_bytes"`
	StepCount    int              `json:"step_count"`
	FailedSteps  int              `json:"failed_steps"`
	TrackedFiles int              `json:"tracked_files"`
}

// NewSessionID returns a time-ordered unique session identifier:
// a UTC timestamp prefix for ordering plus a random suffix for uniqueness.
func NewSessionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return now.UTC().Format("20060102_150405") + "_" + suffix
}

// SanitizeLabel reduces an untrusted source label or filename component to a
// safe name: control characters dropped, path and shell metacharacters
// replaced, length capped.
func SanitizeLabel(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedLabelRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.Trim(b.String(), " .")
	if cleaned == "" {
		cleaned = "unnamed"
	}
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = string(runes[:maxLen])
		}
	}
	return cleaned
}

func isAllowedLabelRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')':
		return true
	default:
		return false
	}
}
