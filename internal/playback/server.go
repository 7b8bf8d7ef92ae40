// Package playback streams generated video artifacts to local players with
// HTTP Range support, so seeking works without downloading the whole file.
package playback

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/vidforge/vidforge-agent/internal/session"
)

// Server resolves and serves final-output artifacts. Live sessions are
// served from their session tree; cleaned-up sessions from the exports
// directory their final output was relocated to.
type Server struct {
	sessions   *session.Manager
	exportsDir string
	logger     *slog.Logger
}

func NewServer(sessions *session.Manager, exportsDir string, logger *slog.Logger) *Server {
	return &Server{sessions: sessions, exportsDir: exportsDir, logger: logger}
}

// ServeFinalOutput streams one file from a session's final output.
func (s *Server) ServeFinalOutput(w http.ResponseWriter, r *http.Request, sessionID, name string) error {
	if strings.ContainsAny(name, "/\\") || name == ".." || name == "" {
		http.Error(w, "invalid artifact name", http.StatusBadRequest)
		return nil
	}

	path, err := s.resolve(sessionID, name)
	if err != nil {
		http.Error(w, "artifact not found", http.StatusNotFound)
		return nil
	}
	return s.ServeFile(w, r, path)
}

// resolve finds the artifact in the live session tree first, then in the
// exports directory.
func (s *Server) resolve(sessionID, name string) (string, error) {
	if sess, ok := s.sessions.Get(sessionID); ok {
		dir, err := sess.Path("final_output")
		if err == nil {
			p := filepath.Join(dir, name)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}

	p := filepath.Join(s.exportsDir, session.SanitizeLabel(sessionID, 120), name)
	if _, err := os.Stat(p); err != nil {
		return "", err
	}
	return p, nil
}

// ServeFile streams a single file, honoring a Range request header.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("open playback file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat playback file: %w", err)
	}

	size := stat.Size()
	contentType := mime.TypeByExtension(filepath.Ext(filePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	parsedRange, err := ParseRange(r.Header.Get("Range"), size)
	if err == ErrUnsatisfiable {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}
	// A malformed Range header falls back to a full response.
	if err != nil && err != ErrInvalidRange {
		return err
	}

	if parsedRange == nil || err == ErrInvalidRange {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
		w.WriteHeader(http.StatusOK)
		io.Copy(w, file)
		return nil
	}

	w.Header().Set("Content-Length", fmt.Sprintf("%d", parsedRange.ContentLength()))
	w.Header().Set("Content-Range", parsedRange.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := file.Seek(parsedRange.Start, io.SeekStart); err != nil {
		return fmt.Errorf("seek playback file: %w", err)
	}
	io.CopyN(w, file, parsedRange.ContentLength())

	if s.logger != nil {
		s.logger.Debug("served range", "path", filepath.Base(filePath), "range", parsedRange.ContentRange(size))
	}
	return nil
}
