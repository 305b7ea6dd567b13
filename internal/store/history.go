// Package store persists what vibetex produces and reads what it is given:
// the LaTeX template library and the history of composed documents.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vibetex/internal/logging"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by History.Get for unknown ids.
var ErrNotFound = errors.New("record not found")

// Record is one composed document.
type Record struct {
	ID         string          `json:"id"`
	Prompt     string          `json:"prompt"`
	Message    string          `json:"message"`
	Latex      string          `json:"latex"`
	Error      string          `json:"error,omitempty"`
	Template   string          `json:"template,omitempty"`
	Animations json.RawMessage `json:"animations,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// History stores records in SQLite.
type History struct {
	db     *sql.DB
	dbPath string
}

// OpenHistory opens (and if needed creates) the history database at path.
// ":memory:" gives a throwaway database.
func OpenHistory(path string) (*History, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	h := &History{db: db, dbPath: path}
	if err := h.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("History store opened at %s", path)
	return h, nil
}

func (h *History) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		prompt TEXT NOT NULL,
		message TEXT,
		latex TEXT,
		error TEXT,
		template TEXT,
		animations TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(created_at);
	`
	if _, err := h.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// Save stores rec, assigning an id and timestamp when missing. It returns the
// stored record.
func (h *History) Save(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	var animations sql.NullString
	if len(rec.Animations) > 0 {
		animations = sql.NullString{String: string(rec.Animations), Valid: true}
	}

	_, err := h.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (id, prompt, message, latex, error, template, animations, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Prompt, rec.Message, rec.Latex, rec.Error, rec.Template, animations, rec.CreatedAt.UnixNano())
	if err != nil {
		return Record{}, fmt.Errorf("failed to save record: %w", err)
	}
	logging.StoreDebug("Saved document %s (latex_len=%d)", rec.ID, len(rec.Latex))
	return rec, nil
}

// Get returns the record with the given id.
func (h *History) Get(ctx context.Context, id string) (Record, error) {
	row := h.db.QueryRowContext(ctx,
		`SELECT id, prompt, message, latex, error, template, animations, created_at FROM documents WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// List returns up to limit records, newest first. limit <= 0 means 20.
func (h *History) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, prompt, message, latex, error, template, animations, created_at
		 FROM documents ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		rec                                  Record
		message, latex, errText, tmpl, anims sql.NullString
		created                              int64
	)
	if err := s.Scan(&rec.ID, &rec.Prompt, &message, &latex, &errText, &tmpl, &anims, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("failed to scan record: %w", err)
	}
	rec.Message = message.String
	rec.Latex = latex.String
	rec.Error = errText.String
	rec.Template = tmpl.String
	if anims.Valid && anims.String != "" {
		rec.Animations = json.RawMessage(anims.String)
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	return rec, nil
}
