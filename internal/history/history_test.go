package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lvcoi/ytdl-here/internal/dispatch"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "h.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file was not created: %v", err)
	}
}

func TestRecordUpsertsByID(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	job := dispatch.Job{
		ID:         "job-1",
		SourceURL:  "https://www.youtube.com/watch?v=a",
		Collection: "https://www.youtube.com/playlist?list=PL1",
		Selector:   "720p",
		Expression: "bestvideo[height<=720]+bestaudio/best[height<=720]",
		Title:      "first title",
		Status:     dispatch.StatusRunning,
		CreatedAt:  base,
		UpdatedAt:  base,
	}
	if err := s.Record(ctx, job); err != nil {
		t.Fatalf("Record running: %v", err)
	}
	job.Status = dispatch.StatusFailed
	job.Title = ""
	job.Err = errors.New("HTTP Error 403")
	job.UpdatedAt = base.Add(time.Second)
	if err := s.Record(ctx, job); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	records, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.Status != dispatch.StatusFailed || r.Error != "HTTP Error 403" {
		t.Fatalf("unexpected record %+v", r)
	}
	if r.Title != "first title" {
		t.Fatalf("empty title must not overwrite, got %q", r.Title)
	}
	if !r.CreatedAt.Equal(base) || !r.UpdatedAt.Equal(base.Add(time.Second)) {
		t.Fatalf("timestamps = %v / %v", r.CreatedAt, r.UpdatedAt)
	}
}

func TestListFilterAndCount(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)
	statuses := []dispatch.Status{dispatch.StatusFinished, dispatch.StatusFailed, dispatch.StatusFinished, dispatch.StatusFailed, dispatch.StatusFailed}
	for i, st := range statuses {
		job := dispatch.Job{
			ID:        string(rune('a' + i)),
			SourceURL: "u",
			Status:    st,
			CreatedAt: base,
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.Record(ctx, job); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	failed, err := s.List(ctx, Filter{Status: "failed", Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(failed) != 2 || failed[0].ID != "e" || failed[1].ID != "d" {
		t.Fatalf("failed = %+v", failed)
	}

	if n, err := s.Count(ctx, ""); err != nil || n != 5 {
		t.Fatalf("Count all = %d, %v", n, err)
	}
	if n, err := s.Count(ctx, "finished"); err != nil || n != 2 {
		t.Fatalf("Count finished = %d, %v", n, err)
	}
}

func TestNilStore(t *testing.T) {
	var s *Store
	if err := s.Record(context.Background(), dispatch.Job{}); err == nil {
		t.Fatal("expected error from nil store")
	}
	if s.Close() != nil {
		t.Fatal("Close on nil store should be a no-op")
	}
}
