package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

const (
	maxErrorBody  = 4096
	retryAttempts = 3
)

var retryBackoff = 2 * time.Second

// doJSON posts a JSON payload with auth headers, retrying retryable
// failures with a flat backoff.
func doJSON(ctx context.Context, hc *http.Client, logger *slog.Logger, service, url, token string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", service, err)
	}

	var lastErr error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create %s request: %w", service, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-Vidforge-Request-Id", uuid.NewString())

		resp, err := hc.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%s request failed: %w", service, err)
		} else if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		} else {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			resp.Body.Close()
			apiErr := &APIError{Service: service, StatusCode: resp.StatusCode, Body: string(respBody)}
			if !apiErr.IsRetryable() {
				return nil, apiErr
			}
			lastErr = apiErr
		}

		if attempt < retryAttempts {
			if logger != nil {
				logger.Warn("generation request retrying",
					"service", service, "attempt", attempt, "error", lastErr)
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoff):
			}
		}
	}
	return nil, lastErr
}

// saveBody streams a response body to a temp file with the given extension
// and returns its path.
func saveBody(r io.Reader, pattern string) (string, error) {
	tmp, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close download: %w", err)
	}
	return tmp.Name(), nil
}
