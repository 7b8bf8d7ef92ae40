// Package genai wraps the external generation services: the video clip API
// and the text-to-speech API. Clients download results to local temp files;
// callers are responsible for tracking them into a session.
package genai

import (
	"context"
	"fmt"
)

// ClipRequest describes one video clip to generate.
type ClipRequest struct {
	Prompt    string  `json:"prompt"`
	Style     string  `json:"style,omitempty"`
	DurationS float64 `json:"duration_s"`
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
}

// SpeechRequest describes one narration segment to synthesize.
type SpeechRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed,omitempty"`
}

// ClipGenerator produces a video clip and returns the local path of the
// downloaded file.
type ClipGenerator interface {
	GenerateClip(ctx context.Context, req ClipRequest) (string, error)
}

// SpeechSynthesizer produces narration audio and returns the local path of
// the downloaded file.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, req SpeechRequest) (string, error)
}

// APIError represents a non-2xx response from a generation endpoint.
type APIError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s request failed: HTTP %d: %s", e.Service, e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx). Client errors (4xx) are
// considered permanent.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500
}
