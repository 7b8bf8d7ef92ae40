package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// clipResponse is the video API's generation result. The clip itself is
// fetched from the returned URL.
type clipResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// VideoHTTPClient talks to the generative video API.
type VideoHTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewVideoHTTPClient(baseURL, token string, logger *slog.Logger) *VideoHTTPClient {
	return &VideoHTTPClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

func (c *VideoHTTPClient) GenerateClip(ctx context.Context, req ClipRequest) (string, error) {
	url := fmt.Sprintf("%s/v1/clips", c.baseURL)

	resp, err := doJSON(ctx, c.httpClient, c.logger, "video", url, c.token, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result clipResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode clip response: %w", err)
	}
	if result.URL == "" {
		return "", fmt.Errorf("clip response missing download url")
	}

	if c.logger != nil {
		c.logger.Info("clip generated", "clip_id", result.ID, "duration_s", req.DurationS)
	}
	return c.download(ctx, result.URL)
}

func (c *VideoHTTPClient) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("clip download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &APIError{Service: "video", StatusCode: resp.StatusCode, Body: string(body)}
	}
	return saveBody(resp.Body, "vidforge-clip-*.mp4")
}
