// Package session owns the lifecycle of isolated, directory-scoped generation
// workspaces: collision-free artifact tracking, step logging, manifest
// persistence, finalization, and cleanup.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const createRetryBudget = 5

// Recorder mirrors session state into a queryable store. All methods are
// best-effort from the manager's point of view: a recorder failure is logged,
// never propagated, because the JSON manifest is the durable contract.
type Recorder interface {
	RecordSession(ctx context.Context, id string, meta Meta, createdAt time.Time) error
	RecordStep(ctx context.Context, sessionID string, step StepEntry) error
	RecordFile(ctx context.Context, sessionID string, tf TrackedFile) error
	UpdateSessionState(ctx context.Context, id, state string) error
}

// Manager creates and owns sessions. It is safe for concurrent use; each
// Session additionally guards its own mutable state so parallel pipeline
// stages can track files into the same session.
type Manager struct {
	baseDir    string
	exportsDir string
	logger     *slog.Logger
	recorder   Recorder

	mu       sync.Mutex
	sessions map[string]*Session
}

// Session is one isolated generation workspace. Obtain instances from
// Manager.Create; zero values are not usable.
type Session struct {
	id        string
	root      string
	meta      Meta
	createdAt time.Time
	registry  *FileRegistry
	mgr       *Manager

	mu          sync.Mutex
	state       string
	steps       []StepEntry
	summary     *Summary
	summaryPath string

	// flushMu orders snapshot+write pairs so a stale snapshot can never be
	// renamed over a newer one.
	flushMu sync.Mutex
}

// NewManager creates a session manager rooted at baseDir. Retained final
// outputs are relocated under exportsDir on cleanup.
func NewManager(baseDir, exportsDir string, recorder Recorder, logger *slog.Logger) *Manager {
	return &Manager{
		baseDir:    baseDir,
		exportsDir: exportsDir,
		logger:     logger,
		recorder:   recorder,
		sessions:   make(map[string]*Session),
	}
}

// Create allocates a new session: time-ordered unique ID, full directory
// layout, initial manifest. Fails with ErrSessionCreation when the base
// directory is unwritable or the ID retry budget is exhausted.
func (m *Manager) Create(ctx context.Context, meta Meta) (*Session, error) {
	if err := os.MkdirAll(m.baseDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: base dir %s: %v", ErrSessionCreation, m.baseDir, err)
	}

	var id, root string
	created := false
	for i := 0; i < createRetryBudget; i++ {
		id = NewSessionID(time.Now())
		root = filepath.Join(m.baseDir, id)
		if err := os.Mkdir(root, 0755); err != nil {
			if os.IsExist(err) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrSessionCreation, err)
		}
		created = true
		break
	}
	if !created {
		return nil, fmt.Errorf("%w: ID collisions exhausted retry budget", ErrSessionCreation)
	}

	if err := CreateLayout(root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreation, err)
	}

	s := &Session{
		id:        id,
		root:      root,
		meta:      meta,
		createdAt: time.Now(),
		registry:  NewFileRegistry(root),
		mgr:       m,
		state:     StateActive,
	}

	if err := writeManifest(root, s.manifestLocked()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreation, err)
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	if m.recorder != nil {
		if err := m.recorder.RecordSession(ctx, id, meta, s.createdAt); err != nil {
			m.log().Warn("session recorder failed", "session_id", id, "error", err)
		}
	}

	m.log().Info("session created", "session_id", id, "topic", meta.Topic, "platform", meta.Platform)
	return s, nil
}

// Get returns a managed session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns all managed sessions, newest first by ID ordering.
func (m *Manager) List() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

func (m *Manager) log() *slog.Logger {
	if m.logger != nil {
		return m.logger
	}
	return slog.Default()
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Root returns the session root directory.
func (s *Session) Root() string { return s.root }

// Meta returns the mission parameters the session was created with.
func (s *Session) Meta() Meta { return s.meta }

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// State returns the current lifecycle state.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Path resolves a path strictly inside the session root. An empty subdir
// returns the root. Any argument that would resolve outside the root is
// rejected with ErrInvalidPath.
func (s *Session) Path(subdir string) (string, error) {
	if subdir == "" {
		return s.root, nil
	}
	if filepath.IsAbs(subdir) {
		return "", fmt.Errorf("%w: %q is absolute", ErrInvalidPath, subdir)
	}

	candidate := filepath.Join(s.root, subdir)
	rel, err := filepath.Rel(s.root, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, subdir)
	}
	return candidate, nil
}

// TrackFile moves the artifact at localPath into the subdirectory for its
// type, never overwriting an existing artifact, and appends a durable
// registry record. Returns the canonical tracked path.
func (s *Session) TrackFile(ctx context.Context, localPath string, t FileType, source string) (string, error) {
	if st := s.State(); st != StateActive {
		return "", fmt.Errorf("%w: session %s is %s", ErrSessionFinalized, s.id, st)
	}

	destDir, err := s.Path(SubdirFor(t))
	if err != nil {
		return "", err
	}

	base := SanitizeLabel(filepath.Base(localPath), 120)
	dest, size, err := s.registry.Ingest(localPath, destDir, base)
	if err != nil {
		return "", err
	}

	record := s.registry.Append(TrackedFile{
		Type:      t,
		Source:    SanitizeLabel(source, 64),
		Path:      dest,
		Size:      size,
		TrackedAt: time.Now(),
	})

	s.flushManifest()

	if s.mgr.recorder != nil {
		if err := s.mgr.recorder.RecordFile(ctx, s.id, record); err != nil {
			s.mgr.log().Warn("file recorder failed", "session_id", s.id, "error", err)
		}
	}

	s.mgr.log().Debug("file tracked",
		"session_id", s.id, "type", t, "source", record.Source, "path", dest, "bytes", size)
	return dest, nil
}

// LogStep appends an immutable generation-step entry with a timestamp.
func (s *Session) LogStep(ctx context.Context, name, status string, detail map[string]any) error {
	if st := s.State(); st == StateCleaned {
		return fmt.Errorf("%w: session %s is cleaned", ErrSessionFinalized, s.id)
	}

	entry := StepEntry{
		Name:      name,
		Status:    status,
		Timestamp: time.Now(),
		Detail:    detail,
	}

	s.mu.Lock()
	s.steps = append(s.steps, entry)
	s.mu.Unlock()

	s.flushManifest()

	if s.mgr.recorder != nil {
		if err := s.mgr.recorder.RecordStep(ctx, s.id, entry); err != nil {
			s.mgr.log().Warn("step recorder failed", "session_id", s.id, "error", err)
		}
	}
	return nil
}

// Steps returns a snapshot of the step log in append order.
func (s *Session) Steps() []StepEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StepEntry, len(s.steps))
	copy(out, s.steps)
	return out
}

// Files returns a snapshot of tracked files in creation order.
func (s *Session) Files() []TrackedFile {
	return s.registry.Records()
}

// Finalize writes the session summary artifacts (JSON and Markdown) under
// metadata/ and marks the session finalized. Idempotent: a second call
// returns the same summary path without rewriting anything.
func (s *Session) Finalize(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.state == StateFinalized {
		path := s.summaryPath
		s.mu.Unlock()
		return path, nil
	}
	if s.state == StateCleaned {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: session %s is cleaned", ErrSessionFinalized, s.id)
	}

	files := s.registry.Records()
	counts := make(map[FileType]int)
	var totalBytes int64
	for _, f := range files {
		counts[f.Type]++
		totalBytes += f.Size
	}
	failed := 0
	for _, st := range s.steps {
		if st.Status == StepFailed {
			failed++
		}
	}

	summary := &Summary{
		SessionID:    s.id,
		State:        StateFinalized,
		Meta:         s.meta,
		CreatedAt:    s.createdAt,
		FinalizedAt:  time.Now(),
		FileCounts:   counts,
		TotalBytes:   totalBytes,
		StepCount:    len(s.steps),
		FailedSteps:  failed,
		TrackedFiles: len(files),
	}

	s.state = StateFinalized
	s.summary = summary
	s.summaryPath = filepath.Join(s.root, "metadata", "summary.json")
	steps := make([]StepEntry, len(s.steps))
	copy(steps, s.steps)
	s.mu.Unlock()

	if err := writeSummary(s.root, summary, steps, files); err != nil {
		return "", err
	}
	s.flushManifest()

	if s.mgr.recorder != nil {
		if err := s.mgr.recorder.UpdateSessionState(ctx, s.id, StateFinalized); err != nil {
			s.mgr.log().Warn("state recorder failed", "session_id", s.id, "error", err)
		}
	}

	s.mgr.log().Info("session finalized",
		"session_id", s.id, "files", len(files), "bytes", totalBytes, "steps", len(steps))
	return s.summaryPath, nil
}

// Summary returns the finalize-time summary, nil while active.
func (s *Session) Summary() *Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// manifestLocked builds the manifest snapshot. Caller must not hold s.mu for
// registry access; the registry has its own lock.
func (s *Session) manifestLocked() Manifest {
	return Manifest{
		SessionID:     s.id,
		LayoutVersion: LayoutVersion,
		State:         s.state,
		Meta:          s.meta,
		CreatedAt:     s.createdAt,
		Steps:         s.steps,
		Files:         s.registry.Records(),
		Summary:       s.summary,
	}
}

func (s *Session) flushManifest() {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	m := s.manifestLocked()
	s.mu.Unlock()

	if err := writeManifest(s.root, m); err != nil {
		s.mgr.log().Error("manifest flush failed", "session_id", s.id, "error", err)
	}
}

// Cleanup deletes the session directory tree. With keepFinalOutput the
// final_output subdirectory is relocated under the exports directory first.
// Partial deletion failures are logged, not fatal.
func (m *Manager) Cleanup(ctx context.Context, id string, keepFinalOutput bool) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()

	root := filepath.Join(m.baseDir, id)
	if ok {
		root = s.root
	}
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("session %s not found: %w", id, err)
	}

	if keepFinalOutput {
		finalDir := filepath.Join(root, "final_output")
		if entries, err := os.ReadDir(finalDir); err == nil && len(entries) > 0 {
			exportDir := filepath.Join(m.exportsDir, id)
			if err := os.MkdirAll(m.exportsDir, 0755); err != nil {
				m.log().Warn("cannot create exports dir", "error", err)
			} else if err := os.Rename(finalDir, exportDir); err != nil {
				m.log().Warn("cannot relocate final output", "session_id", id, "error", err)
			} else {
				m.log().Info("final output retained", "session_id", id, "path", exportDir)
			}
		}
	}

	if err := os.RemoveAll(root); err != nil {
		// Best-effort: a partially-deleted tree is tolerated.
		m.log().Warn("session cleanup incomplete", "session_id", id, "error", err)
	}

	if ok {
		s.mu.Lock()
		s.state = StateCleaned
		s.mu.Unlock()
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	if m.recorder != nil {
		if err := m.recorder.UpdateSessionState(ctx, id, StateCleaned); err != nil {
			m.log().Warn("state recorder failed", "session_id", id, "error", err)
		}
	}

	m.log().Info("session cleaned", "session_id", id, "kept_final_output", keepFinalOutput)
	return nil
}

// CleanupStale removes on-disk session trees older than the retention window
// that are not currently active. Returns the number of sessions removed.
func (m *Manager) CleanupStale(ctx context.Context, retention time.Duration) int {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		return 0
	}

	cutoff := time.Now().Add(-retention)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := e.Name()
		ts, ok := parseSessionTimestamp(id)
		if !ok || ts.After(cutoff) {
			continue
		}
		if s, live := m.Get(id); live && s.State() == StateActive {
			continue
		}
		if err := m.Cleanup(ctx, id, true); err == nil {
			removed++
		}
	}
	return removed
}

// parseSessionTimestamp extracts the creation time from a session ID prefix.
func parseSessionTimestamp(id string) (time.Time, bool) {
	const layout = "20060102_150405"
	if len(id) < len(layout) {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(layout, id[:len(layout)], time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
