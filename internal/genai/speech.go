package genai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// SpeechHTTPClient talks to the text-to-speech API. The endpoint returns
// the synthesized audio directly in the response body.
type SpeechHTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewSpeechHTTPClient(baseURL, token string, logger *slog.Logger) *SpeechHTTPClient {
	return &SpeechHTTPClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

func (c *SpeechHTTPClient) Synthesize(ctx context.Context, req SpeechRequest) (string, error) {
	url := fmt.Sprintf("%s/v1/tts", c.baseURL)

	resp, err := doJSON(ctx, c.httpClient, c.logger, "tts", url, c.token, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	ext := ".mp3"
	if strings.Contains(resp.Header.Get("Content-Type"), "wav") {
		ext = ".wav"
	}

	if c.logger != nil {
		c.logger.Info("speech synthesized", "chars", len(req.Text), "voice", req.Voice)
	}
	return saveBody(resp.Body, "vidforge-tts-*"+ext)
}
