package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mnemo-ai/mnemo/pkg/memory/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "mnemo.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertWritesMemoryAndQueueAtomically(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, "switched the build to Docker", "work", model.ImportanceHigh, model.Document{"source": "standup"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected nonzero id")
	}

	rec, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Content != "switched the build to Docker" || rec.Category != "work" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.Importance != model.ImportanceHigh {
		t.Fatalf("unexpected importance %q", rec.Importance)
	}
	if rec.Metadata["source"] != "standup" {
		t.Fatalf("metadata lost: %+v", rec.Metadata)
	}

	entries, err := s.PendingSync(ctx, 10)
	if err != nil {
		t.Fatalf("pending sync: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one queue entry, got %d", len(entries))
	}
	if entries[0].MemoryID != id || entries[0].Payload.Content != rec.Content {
		t.Fatalf("queue payload mismatch: %+v", entries[0])
	}
	if entries[0].Synced {
		t.Fatalf("fresh entry must be unsynced")
	}
}

func TestInsertRejectsEmptyContent(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Insert(context.Background(), "   ", "", model.ImportanceMedium, nil); err == nil {
		t.Fatalf("expected error for empty content")
	}
}

func TestGetUnknownIDReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIDsAreStrictlyIncreasing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	var last int64
	for i := 0; i < 5; i++ {
		id, err := s.Insert(ctx, "note", "", model.ImportanceMedium, nil)
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		if id <= last {
			t.Fatalf("ids not increasing: %d after %d", id, last)
		}
		last = id
	}
}

func TestSearchScoresAndTouches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Insert(ctx, "fixed the docker build cache", "", model.ImportanceMedium, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	best, err := s.Insert(ctx, "docker compose networking broke the build", "", model.ImportanceMedium, nil)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.Insert(ctx, "bought new running shoes", "", model.ImportanceMedium, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}

	results, err := s.Search(ctx, "docker networking build", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(results))
	}
	if results[0].ID != best {
		t.Fatalf("expected highest-overlap record first, got %+v", results[0])
	}
	if results[0].AccessCount != 1 {
		t.Fatalf("expected access count bump in result, got %d", results[0].AccessCount)
	}

	rec, err := s.Get(ctx, best)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.AccessCount != 1 || rec.LastAccessedAt.IsZero() {
		t.Fatalf("access bookkeeping not persisted: %+v", rec)
	}
}

func TestSearchNoTokens(t *testing.T) {
	s := newTestStore(t)
	results, err := s.Search(context.Background(), "  ", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results != nil {
		t.Fatalf("expected no results, got %v", results)
	}
}

func TestMarkSyncedIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Insert(ctx, "note", "", model.ImportanceMedium, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	entries, err := s.PendingSync(ctx, 1)
	if err != nil || len(entries) != 1 {
		t.Fatalf("pending sync: %v %d", err, len(entries))
	}
	queueID := entries[0].QueueID
	for i := 0; i < 3; i++ {
		if err := s.MarkSynced(ctx, queueID); err != nil {
			t.Fatalf("mark synced: %v", err)
		}
	}
	count, err := s.PendingSyncCount(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty queue, got %d", count)
	}
}

func TestUpdateEmbeddingRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.Insert(ctx, "note", "", model.ImportanceMedium, nil)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.UpdateEmbedding(ctx, id, []float32{0.25, -0.5, 1}); err != nil {
		t.Fatalf("update embedding: %v", err)
	}
	rec, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(rec.Embedding) != 3 || rec.Embedding[1] != -0.5 {
		t.Fatalf("embedding mismatch: %v", rec.Embedding)
	}
}

func TestCompactSyncedBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Insert(ctx, "old note", "", model.ImportanceMedium, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	entries, _ := s.PendingSync(ctx, 1)
	if err := s.MarkSynced(ctx, entries[0].QueueID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	removed, err := s.CompactSyncedBefore(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 compacted row, got %d", removed)
	}
	// Unsynced rows survive compaction regardless of age.
	if _, err := s.Insert(ctx, "new note", "", model.ImportanceMedium, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	removed, err = s.CompactSyncedBefore(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if removed != 0 {
		t.Fatalf("unsynced row was compacted")
	}
}

func TestStatsAndClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Insert(ctx, "a", "work", model.ImportanceMedium, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.Insert(ctx, "b", "work", model.ImportanceMedium, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.Insert(ctx, "c", "personal", model.ImportanceMedium, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}

	total, byCategory, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if total != 3 || byCategory["work"] != 2 || byCategory["personal"] != 1 {
		t.Fatalf("unexpected stats: %d %v", total, byCategory)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	total, _, err = s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected empty store after clear, got %d", total)
	}

	// Ids keep increasing after a clear.
	id, err := s.Insert(ctx, "d", "", model.ImportanceMedium, nil)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id <= 3 {
		t.Fatalf("id sequence reset after clear: %d", id)
	}
}

func TestReopenPreservesQueue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mnemo.db")
	s, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	if _, err := s.Insert(ctx, "durable note", "", model.ImportanceMedium, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	count, err := reopened.PendingSyncCount(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("queue entry lost across reopen: %d", count)
	}
}
