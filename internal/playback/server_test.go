package playback

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/vidforge/vidforge-agent/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newSessionWithOutput(t *testing.T) (*session.Manager, string, string) {
	t.Helper()
	base := t.TempDir()
	exports := filepath.Join(base, "exports")
	mgr := session.NewManager(filepath.Join(base, "sessions"), exports, nil, testLogger())

	sess, err := mgr.Create(context.Background(), session.Meta{Topic: "playback test"})
	if err != nil {
		t.Fatal(err)
	}
	dir, err := sess.Path("final_output")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "final.mp4"), []byte("0123456789"), 0644); err != nil {
		t.Fatal(err)
	}
	return mgr, exports, sess.ID()
}

func TestServeFinalOutput_LiveSession(t *testing.T) {
	mgr, exports, id := newSessionWithOutput(t)
	srv := NewServer(mgr, exports, testLogger())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/play", nil)
	if err := srv.ServeFinalOutput(rec, req, id, "final.mp4"); err != nil {
		t.Fatalf("ServeFinalOutput() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "0123456789" {
		t.Errorf("body = %q", got)
	}
	if rec.Header().Get("Accept-Ranges") != "bytes" {
		t.Error("Accept-Ranges header missing")
	}
}

func TestServeFinalOutput_RangeRequest(t *testing.T) {
	mgr, exports, id := newSessionWithOutput(t)
	srv := NewServer(mgr, exports, testLogger())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/play", nil)
	req.Header.Set("Range", "bytes=2-5")
	if err := srv.ServeFinalOutput(rec, req, id, "final.mp4"); err != nil {
		t.Fatalf("ServeFinalOutput() error = %v", err)
	}

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Body.String(); got != "2345" {
		t.Errorf("body = %q, want 2345", got)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 2-5/10" {
		t.Errorf("Content-Range = %q", got)
	}
}

func TestServeFinalOutput_AfterCleanupServesFromExports(t *testing.T) {
	mgr, exports, id := newSessionWithOutput(t)
	if err := mgr.Cleanup(context.Background(), id, true); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}

	srv := NewServer(mgr, exports, testLogger())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/play", nil)
	if err := srv.ServeFinalOutput(rec, req, id, "final.mp4"); err != nil {
		t.Fatalf("ServeFinalOutput() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 from exports", rec.Code)
	}
}

func TestServeFinalOutput_RejectsTraversal(t *testing.T) {
	mgr, exports, id := newSessionWithOutput(t)
	srv := NewServer(mgr, exports, testLogger())

	for _, name := range []string{"../manifest.json", "a/b.mp4", "..", ""} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/play", nil)
		if err := srv.ServeFinalOutput(rec, req, id, name); err != nil {
			t.Fatalf("ServeFinalOutput(%q) error = %v", name, err)
		}
		if rec.Code != http.StatusBadRequest && rec.Code != http.StatusNotFound {
			t.Errorf("name %q: status = %d, want rejection", name, rec.Code)
		}
	}
}

func TestServeFinalOutput_UnknownSession(t *testing.T) {
	mgr, exports, _ := newSessionWithOutput(t)
	srv := NewServer(mgr, exports, testLogger())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/play", nil)
	if err := srv.ServeFinalOutput(rec, req, "nope", "final.mp4"); err != nil {
		t.Fatalf("ServeFinalOutput() error = %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
