package progress

import (
	"crypto/rand"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/ironsheep/image-annotator/internal/dataset"
)

//go:embed schema.sql
var schemaSQL string

// Store is the progress database.
type Store struct {
	*sql.DB
}

// Save is one row of the save journal.
type Save struct {
	ID        string
	SessionID string
	Dataset   string
	Frames    int
	Skipped   int
	Error     string
	SavedAt   time.Time
}

// Open opens or creates the database at path and applies the schema. Use
// ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create progress dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open progress db: %w", err)
	}
	// one connection, so ":memory:" is a single database
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply progress schema: %w", err)
	}
	return &Store{db}, nil
}

// CompletedFrames returns the images of dataset marked complete.
func (s *Store) CompletedFrames(ds string) (map[string]bool, error) {
	rows, err := s.Query(`SELECT image FROM frames WHERE dataset = ? AND completed = 1`, ds)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed frames: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var img string
		if err := rows.Scan(&img); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		done[img] = true
	}
	return done, rows.Err()
}

// SetCompleted records the completion flag of one image.
func (s *Store) SetCompleted(ds, image string, done bool) error {
	query := `
		INSERT INTO frames (dataset, image, completed, updated_unix)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (dataset, image) DO UPDATE SET
			completed = excluded.completed,
			updated_unix = excluded.updated_unix
	`
	flag := 0
	if done {
		flag = 1
	}
	if _, err := s.Exec(query, ds, image, flag, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to set completion for %s: %w", image, err)
	}
	return nil
}

// RecordSave appends a save run to the journal under a new ULID.
func (s *Store) RecordSave(rec dataset.SaveRecord) error {
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}
	id, err := ulid.New(ulid.Timestamp(at), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return fmt.Errorf("failed to generate save id: %w", err)
	}

	var errText sql.NullString
	if rec.Err != nil {
		errText = sql.NullString{String: rec.Err.Error(), Valid: true}
	}

	query := `
		INSERT INTO saves (id, session_id, dataset, frames, skipped, error, saved_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := s.Exec(query, id.String(), rec.SessionID, rec.Dataset, rec.Frames, rec.Skipped, errText, at.UnixMilli()); err != nil {
		return fmt.Errorf("failed to record save: %w", err)
	}
	return nil
}

// RecentSaves returns up to limit journal rows for dataset, newest first.
func (s *Store) RecentSaves(ds string, limit int) ([]Save, error) {
	rows, err := s.Query(`
		SELECT id, session_id, dataset, frames, skipped, error, saved_ms
		FROM saves
		WHERE dataset = ?
		ORDER BY saved_ms DESC, id DESC
		LIMIT ?
	`, ds, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query saves: %w", err)
	}
	defer rows.Close()

	var saves []Save
	for rows.Next() {
		var (
			sv      Save
			errText sql.NullString
			savedMs int64
		)
		if err := rows.Scan(&sv.ID, &sv.SessionID, &sv.Dataset, &sv.Frames, &sv.Skipped, &errText, &savedMs); err != nil {
			return nil, fmt.Errorf("failed to scan save: %w", err)
		}
		sv.Error = errText.String
		sv.SavedAt = time.UnixMilli(savedMs)
		saves = append(saves, sv)
	}
	return saves, rows.Err()
}

var _ dataset.ProgressStore = (*Store)(nil)
