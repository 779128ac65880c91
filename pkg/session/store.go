package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	StatusComplete  = "complete"
	StatusPartial   = "partial"
	StatusCancelled = "cancelled"
)

// Record is one row of the session ledger.
type Record struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	Turns            int       `json:"turns"`
	Synthesized      int       `json:"synthesized"`
	CoverageMismatch bool      `json:"coverage_mismatch"`
	DurationMS       int64     `json:"duration_ms"`
	AudioPath        string    `json:"audio_path,omitempty"`
	TranscriptPath   string    `json:"transcript_path,omitempty"`
	Status           string    `json:"status"`
}

var ErrNotFound = errors.New("session not found")

// Store is the sqlite-backed session ledger.
type Store struct {
	db *sql.DB
}

func OpenStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		turns INTEGER NOT NULL,
		synthesized INTEGER NOT NULL,
		coverage_mismatch INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		audio_path TEXT,
		transcript_path TEXT,
		status TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("init ledger schema: %w", err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions
			(id, created_at, turns, synthesized, coverage_mismatch, duration_ms, audio_path, transcript_path, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CreatedAt.UnixMilli(), r.Turns, r.Synthesized, boolToInt(r.CoverageMismatch),
		r.DurationMS, r.AudioPath, r.TranscriptPath, r.Status)
	return err
}

func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, selectRecord+` WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// List returns the newest records first. A non-positive limit means 50.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, selectRecord+` ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

const selectRecord = `SELECT id, created_at, turns, synthesized, coverage_mismatch, duration_ms,
	COALESCE(audio_path, ''), COALESCE(transcript_path, ''), status FROM sessions`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*Record, error) {
	var (
		r        Record
		created  int64
		mismatch int
	)
	if err := sc.Scan(&r.ID, &created, &r.Turns, &r.Synthesized, &mismatch, &r.DurationMS,
		&r.AudioPath, &r.TranscriptPath, &r.Status); err != nil {
		return nil, err
	}
	r.CreatedAt = time.UnixMilli(created).UTC()
	r.CoverageMismatch = mismatch != 0
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
