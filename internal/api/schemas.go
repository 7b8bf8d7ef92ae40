package api

import (
	"time"

	"github.com/vidforge/vidforge-agent/internal/session"
	"github.com/vidforge/vidforge-agent/internal/store"
	"github.com/vidforge/vidforge-agent/internal/subtitle"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State          string               `json:"state"`
	SessionsTotal  int                  `json:"sessions_total"`
	ActiveSessions int                  `json:"active_sessions"`
	Media          *MediaStatusResponse `json:"media,omitempty"`
}

type MediaStatusResponse struct {
	HasFFmpeg   bool   `json:"has_ffmpeg"`
	HasFFprobe  bool   `json:"has_ffprobe"`
	LastProbeAt string `json:"last_probe_at,omitempty"`
}

type GenerateRequest struct {
	Topic     string   `json:"topic"`
	Platform  string   `json:"platform,omitempty"`
	DurationS int      `json:"duration_s,omitempty"`
	Category  string   `json:"category,omitempty"`
	Script    []string `json:"script,omitempty"`
	Voice     string   `json:"voice,omitempty"`
	Style     string   `json:"style,omitempty"`
}

type GenerateResponse struct {
	SessionID    string        `json:"session_id"`
	SummaryPath  string        `json:"summary_path,omitempty"`
	SyncAccuracy float64       `json:"sync_accuracy"`
	Cues         []CueResponse `json:"cues"`
	Issues       int           `json:"issues"`
	Warnings     int           `json:"warnings"`
}

type CueResponse struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

type SessionResponse struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	Platform  string `json:"platform,omitempty"`
	DurationS int    `json:"duration_s,omitempty"`
	Category  string `json:"category,omitempty"`
	State     string `json:"state"`
	CreatedAt string `json:"created_at"`
}

type SessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

type SessionDetailResponse struct {
	Session SessionResponse `json:"session"`
	Steps   []StepResponse  `json:"steps"`
	Files   []FileResponse  `json:"files"`
}

type StepResponse struct {
	Name      string         `json:"name"`
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Detail    map[string]any `json:"detail,omitempty"`
}

type FileResponse struct {
	Type      string `json:"type"`
	Source    string `json:"source"`
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Order     int    `json:"order"`
	TrackedAt string `json:"tracked_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func SessionToResponse(row *store.SessionRow) SessionResponse {
	return SessionResponse{
		ID:        row.ID,
		Topic:     row.Meta.Topic,
		Platform:  row.Meta.Platform,
		DurationS: row.Meta.Duration,
		Category:  row.Meta.Category,
		State:     row.State,
		CreatedAt: row.CreatedAt.Format(time.RFC3339),
	}
}

func StepToResponse(s session.StepEntry) StepResponse {
	return StepResponse{
		Name:      s.Name,
		Status:    s.Status,
		Timestamp: s.Timestamp.Format(time.RFC3339),
		Detail:    s.Detail,
	}
}

func FileToResponse(f session.TrackedFile) FileResponse {
	return FileResponse{
		Type:      string(f.Type),
		Source:    f.Source,
		Path:      f.Path,
		Size:      f.Size,
		Order:     f.Order,
		TrackedAt: f.TrackedAt.Format(time.RFC3339),
	}
}

func CuesToResponse(timings []subtitle.Timing) []CueResponse {
	out := make([]CueResponse, len(timings))
	for i, t := range timings {
		out[i] = CueResponse{Text: t.Text, Start: t.Start, End: t.End, Confidence: t.Confidence}
	}
	return out
}
