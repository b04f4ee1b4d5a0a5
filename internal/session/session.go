// Package session manages on-disk analysis sessions. Each run gets
// its own directory under the session root holding the state file,
// the raw results, and the rendered report; a SQLite index over the
// root makes past sessions listable and resumable.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Session states recorded in the index.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Session is one analysis run's on-disk home.
type Session struct {
	ID        string    `json:"id"`
	Company   string    `json:"company"`
	Slug      string    `json:"slug"`
	Dir       string    `json:"dir"`
	Mode      string    `json:"mode"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// StatePath is where the engine state persists.
func (s *Session) StatePath() string {
	return filepath.Join(s.Dir, "state.json")
}

// ResultsPath is where the raw result envelope persists.
func (s *Session) ResultsPath() string {
	return filepath.Join(s.Dir, "results.json")
}

// ReportPath is where the rendered markdown report persists.
func (s *Session) ReportPath() string {
	return filepath.Join(s.Dir, "report.md")
}

// Store indexes sessions under one root directory.
type Store struct {
	root   string
	db     *sql.DB
	logger *zap.Logger
}

// Open prepares the session root and its index database.
func Open(root string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create session root: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(root, "sessions.db"))
	if err != nil {
		return nil, fmt.Errorf("open session index: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		company    TEXT NOT NULL,
		slug       TEXT NOT NULL,
		dir        TEXT NOT NULL,
		mode       TEXT NOT NULL,
		status     TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init session index: %w", err)
	}
	return &Store{root: root, db: db, logger: logger}, nil
}

// Close releases the index database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create makes a fresh session directory and records it as running.
func (s *Store) Create(ctx context.Context, company, mode string) (*Session, error) {
	if strings.TrimSpace(company) == "" {
		return nil, fmt.Errorf("company name is required")
	}
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		Company:   company,
		Slug:      Slugify(company),
		Mode:      mode,
		Status:    StatusRunning,
		CreatedAt: now,
	}
	dirName := fmt.Sprintf("%s_%s", now.Format("20060102_150405"), sess.ID[:8])
	sess.Dir = filepath.Join(s.root, sess.Slug, dirName)
	if err := os.MkdirAll(sess.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, company, slug, dir, mode, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Company, sess.Slug, sess.Dir, sess.Mode, sess.Status, sess.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("index session: %w", err)
	}
	s.logger.Info("session created",
		zap.String("session_id", sess.ID),
		zap.String("dir", sess.Dir))
	return sess, nil
}

// UpdateStatus records the outcome of a session.
func (s *Store) UpdateStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("unknown session %q", id)
	}
	return nil
}

// Get returns one session by ID.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, company, slug, dir, mode, status, created_at FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// Latest returns the most recent session for a company, or nil when
// none exists.
func (s *Store) Latest(ctx context.Context, company string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, company, slug, dir, mode, status, created_at FROM sessions
		 WHERE slug = ? ORDER BY created_at DESC LIMIT 1`, Slugify(company))
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sess, err
}

// List returns all sessions, newest first.
func (s *Store) List(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company, slug, dir, mode, status, created_at FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var createdAt string
	if err := row.Scan(&sess.ID, &sess.Company, &sess.Slug, &sess.Dir, &sess.Mode, &sess.Status, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	ts, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse session timestamp: %w", err)
	}
	sess.CreatedAt = ts
	return &sess, nil
}

// Slugify lowercases a company name into a filesystem-safe directory
// name.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-' || r == '_':
			return '-'
		default:
			return -1
		}
	}, slug)
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "company"
	}
	return slug
}
