package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vidforge/vidforge-agent/internal/audio"
	"github.com/vidforge/vidforge-agent/internal/genai"
	"github.com/vidforge/vidforge-agent/internal/generate"
	"github.com/vidforge/vidforge-agent/internal/media"
	"github.com/vidforge/vidforge-agent/internal/playback"
	"github.com/vidforge/vidforge-agent/internal/session"
	"github.com/vidforge/vidforge-agent/internal/store"
	"github.com/vidforge/vidforge-agent/internal/subtitle"
)

const testToken = "test-token"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestConfig(t *testing.T) ServerConfig {
	t.Helper()
	base := t.TempDir()

	db, err := store.New(filepath.Join(base, "test.db"), testLogger())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := store.NewRepository(db.Conn())
	if err := repo.SetConfig(context.Background(), "auth_token", testToken); err != nil {
		t.Fatal(err)
	}

	exports := filepath.Join(base, "exports")
	sessions := session.NewManager(filepath.Join(base, "sessions"), exports, repo, testLogger())

	analyzer := audio.NewAnalyzer(media.WAVDecoder{}, &media.StubProber{}, nil, testLogger())
	orch := generate.NewOrchestrator(sessions,
		genai.NewStubClipGenerator(testLogger()),
		genai.NewStubSpeechSynthesizer(testLogger()),
		analyzer, subtitle.NewSynchronizer(testLogger()), testLogger())

	return ServerConfig{
		Port:         0,
		Sessions:     sessions,
		Repository:   repo,
		Orchestrator: orch,
		Playback:     playback.NewServer(sessions, exports, testLogger()),
		Logger:       testLogger(),
		StartTime:    time.Now(),
		Version:      "test",
	}
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if auth {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint_NoAuthRequired(t *testing.T) {
	router := NewRouter(newTestConfig(t))

	rec := doRequest(t, router, http.MethodGet, "/health", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Version != "test" {
		t.Errorf("health = %+v", resp)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestGenerateEndToEnd(t *testing.T) {
	cfg := newTestConfig(t)
	router := NewRouter(cfg)

	rec := doRequest(t, router, http.MethodPost, "/generate", GenerateRequest{
		Topic:  "deep sea vents",
		Script: []string{"The deep sea is dark", "Vents bring chemical energy"},
	}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var gen GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &gen); err != nil {
		t.Fatal(err)
	}
	if gen.SessionID == "" || len(gen.Cues) != 2 {
		t.Fatalf("generate response = %+v", gen)
	}

	// Session listed.
	rec = doRequest(t, router, http.MethodGet, "/sessions", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list SessionsResponse
	json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list.Sessions) != 1 || list.Sessions[0].ID != gen.SessionID {
		t.Fatalf("sessions = %+v", list.Sessions)
	}
	if list.Sessions[0].State != session.StateFinalized {
		t.Errorf("state = %q, want finalized", list.Sessions[0].State)
	}

	// Detail carries steps and tracked files.
	rec = doRequest(t, router, http.MethodGet, "/sessions/"+gen.SessionID, nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("detail status = %d", rec.Code)
	}
	var detail SessionDetailResponse
	json.Unmarshal(rec.Body.Bytes(), &detail)
	if len(detail.Steps) == 0 {
		t.Error("no steps recorded")
	}
	if len(detail.Files) == 0 {
		t.Error("no files recorded")
	}
}

func TestGenerate_RequiresTopic(t *testing.T) {
	router := NewRouter(newTestConfig(t))
	rec := doRequest(t, router, http.MethodPost, "/generate", GenerateRequest{}, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	router := NewRouter(newTestConfig(t))
	rec := doRequest(t, router, http.MethodGet, "/sessions/nonexistent", nil, true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCleanupSession(t *testing.T) {
	cfg := newTestConfig(t)
	router := NewRouter(cfg)

	sess, err := cfg.Sessions.Create(context.Background(), session.Meta{Topic: "cleanup me"})
	if err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, router, http.MethodDelete, "/sessions/"+sess.ID(), nil, true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if _, ok := cfg.Sessions.Get(sess.ID()); ok {
		t.Error("session still registered after cleanup")
	}

	rec = doRequest(t, router, http.MethodDelete, "/sessions/"+sess.ID(), nil, true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	cfg := newTestConfig(t)
	router := NewRouter(cfg)

	if _, err := cfg.Sessions.Create(context.Background(), session.Meta{Topic: "in flight"}); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, router, http.MethodGet, "/status", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp StatusResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.State != "generating" || resp.ActiveSessions != 1 {
		t.Errorf("status = %+v, want generating with one active session", resp)
	}
	if resp.SessionsTotal != 1 {
		t.Errorf("sessions_total = %d, want 1", resp.SessionsTotal)
	}
}

func TestPlaybackEndpoint_RequiresParams(t *testing.T) {
	router := NewRouter(newTestConfig(t))
	rec := doRequest(t, router, http.MethodGet, "/playback/final", nil, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
