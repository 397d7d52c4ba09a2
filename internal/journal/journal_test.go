package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4/source"

	"github.com/mrd/ca-drive/internal/models"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "state", "uploads.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func record(batch, name string, status models.UploadStatus, at time.Time) models.UploadRecord {
	rec := models.UploadRecord{
		BatchID:     batch,
		ClientID:    "c1",
		FolderID:    "apr24",
		FolderPath:  "Root / FY - 2024-25 / April",
		FileName:    name,
		ContentType: "application/pdf",
		Size:        1024,
		Status:      status,
		CreatedAt:   at,
	}
	if status == models.UploadStatusFailed {
		rec.Error = "status 500"
	}
	return rec
}

func TestOpenMigrates(t *testing.T) {
	j := openTestJournal(t)

	var name string
	err := j.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='uploads'").Scan(&name)
	if err != nil {
		t.Fatalf("uploads table missing: %v", err)
	}

	version, current, err := SchemaStatus(j.db)
	if err != nil {
		t.Fatalf("SchemaStatus() failed: %v", err)
	}
	if !current || version != 2 {
		t.Errorf("SchemaStatus() = %d, %v; want 2, true", version, current)
	}
}

func TestOpenTwiceIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uploads.db")
	j1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	if err := j1.RecordUpload(context.Background(), record("b1", "a.pdf", models.UploadStatusUploaded, time.Now())); err != nil {
		t.Fatal(err)
	}
	j1.Close()

	j2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer j2.Close()

	recs, err := j2.List(context.Background(), Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Errorf("got %d records after reopen, want 1", len(recs))
	}
}

type trackedSource struct {
	source.Driver
	closed *atomic.Int32
}

func (s trackedSource) Close() error {
	s.closed.Add(1)
	return s.Driver.Close()
}

func TestMigrationSourcesAreClosed(t *testing.T) {
	var opened, closed atomic.Int32
	orig := openSource
	openSource = func() (source.Driver, error) {
		src, err := orig()
		if err != nil {
			return nil, err
		}
		opened.Add(1)
		return trackedSource{Driver: src, closed: &closed}, nil
	}
	t.Cleanup(func() { openSource = orig })

	j := openTestJournal(t)
	for i := 0; i < 3; i++ {
		if _, current, err := SchemaStatus(j.db); err != nil || !current {
			t.Fatalf("SchemaStatus() = %v, %v", current, err)
		}
	}

	if opened.Load() != 4 {
		t.Errorf("opened %d sources, want 4", opened.Load())
	}
	if closed.Load() != opened.Load() {
		t.Errorf("closed %d of %d migration sources", closed.Load(), opened.Load())
	}
	if err := j.db.Ping(); err != nil {
		t.Errorf("journal database closed by status check: %v", err)
	}
}

func TestSchemaStatusFreshDatabase(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	version, current, err := SchemaStatus(db)
	if err != nil {
		t.Fatalf("SchemaStatus() failed: %v", err)
	}
	if version != 0 || current {
		t.Errorf("SchemaStatus() = %d, %v; want 0, false", version, current)
	}
}

func TestRecordAndList(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	base := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)

	recs := []models.UploadRecord{
		record("b1", "a.pdf", models.UploadStatusUploaded, base),
		record("b1", "b.pdf", models.UploadStatusFailed, base.Add(time.Second)),
		record("b1", "notes.txt", models.UploadStatusRejected, base.Add(2*time.Second)),
		record("b2", "c.pdf", models.UploadStatusFailed, base.Add(time.Hour)),
	}
	recs[0].FileID = "file-a"
	for _, r := range recs {
		if err := j.RecordUpload(ctx, r); err != nil {
			t.Fatalf("RecordUpload(%s) failed: %v", r.FileName, err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all newest first", Filter{}, []string{"c.pdf", "notes.txt", "b.pdf", "a.pdf"}},
		{"by batch", Filter{BatchID: "b1"}, []string{"notes.txt", "b.pdf", "a.pdf"}},
		{"by status", Filter{Status: models.UploadStatusFailed}, []string{"c.pdf", "b.pdf"}},
		{"limit", Filter{Limit: 2}, []string{"c.pdf", "notes.txt"}},
		{"since", Filter{Since: base.Add(30 * time.Minute)}, []string{"c.pdf"}},
		{"other client", Filter{ClientID: "c2"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := j.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() failed: %v", err)
			}
			var names []string
			for _, r := range got {
				names = append(names, r.FileName)
			}
			if len(names) != len(tt.want) {
				t.Fatalf("List() = %v, want %v", names, tt.want)
			}
			for i := range names {
				if names[i] != tt.want[i] {
					t.Errorf("List()[%d] = %s, want %s", i, names[i], tt.want[i])
				}
			}
		})
	}

	all, _ := j.List(ctx, Filter{BatchID: "b1", Status: models.UploadStatusUploaded})
	if len(all) != 1 {
		t.Fatalf("expected one uploaded record, got %d", len(all))
	}
	got := all[0]
	if got.FileID != "file-a" || got.FolderPath != recs[0].FolderPath || got.Size != 1024 {
		t.Errorf("round trip = %+v", got)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, base)
	}
}

func TestFailed(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	now := time.Now().UTC()

	j.RecordUpload(ctx, record("b1", "ok.pdf", models.UploadStatusUploaded, now))
	j.RecordUpload(ctx, record("b1", "bad.pdf", models.UploadStatusFailed, now))

	failed, err := j.Failed(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].FileName != "bad.pdf" || failed[0].Error != "status 500" {
		t.Errorf("Failed() = %+v", failed)
	}
}

func TestRecordUploadRejectsUnknownStatus(t *testing.T) {
	j := openTestJournal(t)
	err := j.RecordUpload(context.Background(), record("b1", "x.pdf", models.UploadStatus("pending"), time.Now()))
	if err == nil {
		t.Error("expected CHECK constraint violation for unknown status")
	}
}

func TestPrune(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	now := time.Now().UTC()

	j.RecordUpload(ctx, record("old", "old.pdf", models.UploadStatusUploaded, now.Add(-48*time.Hour)))
	j.RecordUpload(ctx, record("new", "new.pdf", models.UploadStatusUploaded, now))

	n, err := j.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Prune() removed %d, want 1", n)
	}
	left, _ := j.List(ctx, Filter{})
	if len(left) != 1 || left[0].FileName != "new.pdf" {
		t.Errorf("remaining = %+v", left)
	}
}
