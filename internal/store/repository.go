package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/vidforge/vidforge-agent/internal/session"
)

// SessionRow is the queryable index view of one session.
type SessionRow struct {
	ID        string       `json:"id"`
	Meta      session.Meta `json:"meta"`
	State     string       `json:"state"`
	CreatedAt time.Time    `json:"created_at"`
}

// Repository exposes the session index. The write half satisfies
// session.Recorder; the read half serves the local API.
type Repository interface {
	session.Recorder

	GetSession(ctx context.Context, id string) (*SessionRow, error)
	ListSessions(ctx context.Context, limit int) ([]*SessionRow, error)
	ListSteps(ctx context.Context, sessionID string) ([]session.StepEntry, error)
	ListFiles(ctx context.Context, sessionID string) ([]session.TrackedFile, error)
	CountSessions(ctx context.Context) (int, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) RecordSession(ctx context.Context, id string, meta session.Meta, createdAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, topic, platform, duration_s, category, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, meta.Topic, meta.Platform, meta.Duration, meta.Category, session.StateActive, createdAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) RecordStep(ctx context.Context, sessionID string, step session.StepEntry) error {
	detail := nullString("")
	if step.Detail != nil {
		if data, err := json.Marshal(step.Detail); err == nil {
			detail = nullString(string(data))
		}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO steps (session_id, name, status, detail, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, sessionID, step.Name, step.Status, detail, step.Timestamp.Format(time.RFC3339Nano))
	return err
}

func (r *SQLiteRepository) RecordFile(ctx context.Context, sessionID string, tf session.TrackedFile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tracked_files (session_id, type, source, path, size, ord, tracked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, path) DO NOTHING
	`, sessionID, string(tf.Type), tf.Source, tf.Path, tf.Size, tf.Order, tf.TrackedAt.Format(time.RFC3339Nano))
	return err
}

func (r *SQLiteRepository) UpdateSessionState(ctx context.Context, id, state string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE sessions SET state = ? WHERE id = ?", state, id)
	return err
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*SessionRow, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, topic, platform, duration_s, category, state, created_at
		FROM sessions WHERE id = ?
	`, id)
	return scanSession(row)
}

func (r *SQLiteRepository) ListSessions(ctx context.Context, limit int) ([]*SessionRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, topic, platform, duration_s, category, state, created_at
		FROM sessions ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*SessionRow
	for rows.Next() {
		var s SessionRow
		var createdAt string
		if err := rows.Scan(&s.ID, &s.Meta.Topic, &s.Meta.Platform, &s.Meta.Duration, &s.Meta.Category, &s.State, &createdAt); err != nil {
			return nil, err
		}
		s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		sessions = append(sessions, &s)
	}
	return sessions, rows.Err()
}

func scanSession(row *sql.Row) (*SessionRow, error) {
	var s SessionRow
	var createdAt string
	err := row.Scan(&s.ID, &s.Meta.Topic, &s.Meta.Platform, &s.Meta.Duration, &s.Meta.Category, &s.State, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &s, nil
}

func (r *SQLiteRepository) ListSteps(ctx context.Context, sessionID string) ([]session.StepEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, status, detail, created_at
		FROM steps WHERE session_id = ? ORDER BY id ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []session.StepEntry
	for rows.Next() {
		var s session.StepEntry
		var detail sql.NullString
		var createdAt string
		if err := rows.Scan(&s.Name, &s.Status, &detail, &createdAt); err != nil {
			return nil, err
		}
		if detail.Valid && detail.String != "" {
			_ = json.Unmarshal([]byte(detail.String), &s.Detail)
		}
		s.Timestamp, _ = time.Parse(time.RFC3339Nano, createdAt)
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

func (r *SQLiteRepository) ListFiles(ctx context.Context, sessionID string) ([]session.TrackedFile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT type, source, path, size, ord, tracked_at
		FROM tracked_files WHERE session_id = ? ORDER BY ord ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []session.TrackedFile
	for rows.Next() {
		var f session.TrackedFile
		var ftype, trackedAt string
		if err := rows.Scan(&ftype, &f.Source, &f.Path, &f.Size, &f.Order, &trackedAt); err != nil {
			return nil, err
		}
		f.Type = session.FileType(ftype)
		f.TrackedAt, _ = time.Parse(time.RFC3339Nano, trackedAt)
		files = append(files, f)
	}
	return files, rows.Err()
}

func (r *SQLiteRepository) CountSessions(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&count)
	return count, err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
