// Package journal keeps a local SQLite record of upload outcomes, so that a
// partially failed batch can be inspected file by file afterwards.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/mrd/ca-drive/internal/models"
)

// Journal is an append-mostly upload log.
type Journal struct {
	db   *sql.DB
	path string
}

// Open opens or creates the journal at path and migrates it.
// ":memory:" gives a private in-memory journal.
func Open(path string) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db, path: path}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Path returns the file backing the journal.
func (j *Journal) Path() string {
	return j.path
}

// RecordUpload appends one outcome.
func (j *Journal) RecordUpload(ctx context.Context, rec models.UploadRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO uploads (batch_id, client_id, folder_id, folder_path, file_name, local_path,
			content_type, size, status, error, file_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.BatchID, rec.ClientID, rec.FolderID, rec.FolderPath, rec.FileName, rec.LocalPath,
		rec.ContentType, rec.Size, string(rec.Status), rec.Error, rec.FileID, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording upload of %s: %w", rec.FileName, err)
	}
	return nil
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	ClientID string
	BatchID  string
	Status   models.UploadStatus
	Since    time.Time
	Limit    int
}

// List returns records newest first.
func (j *Journal) List(ctx context.Context, f Filter) ([]models.UploadRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.ClientID != "" {
		where = append(where, "client_id = ?")
		args = append(args, f.ClientID)
	}
	if f.BatchID != "" {
		where = append(where, "batch_id = ?")
		args = append(args, f.BatchID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since.UTC())
	}

	query := `SELECT id, batch_id, client_id, folder_id, folder_path, file_name, local_path,
		content_type, size, status, error, file_id, created_at FROM uploads`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing uploads: %w", err)
	}
	defer rows.Close()

	var out []models.UploadRecord
	for rows.Next() {
		var (
			rec    models.UploadRecord
			status string
		)
		if err := rows.Scan(&rec.ID, &rec.BatchID, &rec.ClientID, &rec.FolderID, &rec.FolderPath,
			&rec.FileName, &rec.LocalPath, &rec.ContentType, &rec.Size, &status, &rec.Error,
			&rec.FileID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning upload: %w", err)
		}
		rec.Status = models.UploadStatus(status)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing uploads: %w", err)
	}
	return out, nil
}

// Failed returns the most recent failed uploads.
func (j *Journal) Failed(ctx context.Context, limit int) ([]models.UploadRecord, error) {
	return j.List(ctx, Filter{Status: models.UploadStatusFailed, Limit: limit})
}

// Prune deletes records older than cutoff and reports how many were removed.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, "DELETE FROM uploads WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning uploads: %w", err)
	}
	return res.RowsAffected()
}
