package store

import (
	"context"
	"errors"
	"time"

	"github.com/mnemo-ai/mnemo/pkg/memory/model"
)

// ErrNotFound is returned when a memory id does not exist in the fast store.
var ErrNotFound = errors.New("memory not found")

// ErrGraphUnavailable is returned by graph stores whose backing connection is
// not configured. Callers treat it as a degraded-capability signal, never as
// a user-facing failure.
var ErrGraphUnavailable = errors.New("graph store unavailable")

// SyncPayload is the snapshot of a memory captured at enqueue time, so
// indexing never has to re-read the fast store.
type SyncPayload struct {
	MemoryID   int64            `json:"memory_id"`
	Content    string           `json:"content"`
	Category   string           `json:"category"`
	Importance model.Importance `json:"importance"`
	CreatedAt  time.Time        `json:"created_at"`
}

// SyncQueueEntry is a pending or completed graph-indexing obligation. Entries
// are written in the same transaction as the memory row and flip synced
// false -> true exactly once.
type SyncQueueEntry struct {
	QueueID   int64
	MemoryID  int64
	Payload   SyncPayload
	Synced    bool
	CreatedAt time.Time
	SyncedAt  time.Time
}

// FastStore is the durable relational store holding the canonical memory
// table and the sync queue. It is the single source of truth; the graph
// store is always reconstructible from it.
type FastStore interface {
	// Insert writes the memory row and its sync-queue row in one
	// transaction and returns the assigned id. Ids are strictly
	// increasing, including across restarts.
	Insert(ctx context.Context, content, category string, importance model.Importance, metadata model.Document) (int64, error)
	// Get returns a single record or ErrNotFound. It does not bump access
	// counters.
	Get(ctx context.Context, id int64) (model.MemoryRecord, error)
	// Search scores candidates by the count of query tokens contained in
	// their content, breaks ties by recency, and bumps access bookkeeping
	// for every returned record.
	Search(ctx context.Context, query string, limit int) ([]model.MemoryRecord, error)
	// Touch bumps access_count and last_accessed_at for the given ids.
	Touch(ctx context.Context, ids []int64) error
	// Iterate visits every record in id order until fn returns false.
	Iterate(ctx context.Context, fn func(model.MemoryRecord) bool) error
	// UpdateEmbedding persists a vector for an existing record.
	UpdateEmbedding(ctx context.Context, id int64, embedding []float32) error

	// PendingSync returns up to limit unsynced queue entries in queue order.
	PendingSync(ctx context.Context, limit int) ([]SyncQueueEntry, error)
	// MarkSynced flips an entry to synced. Idempotent.
	MarkSynced(ctx context.Context, queueID int64) error
	// PendingSyncCount reports how many entries still await indexing.
	PendingSyncCount(ctx context.Context) (int, error)
	// CompactSyncedBefore deletes synced queue rows older than cutoff and
	// reports how many were removed. Nothing calls it automatically.
	CompactSyncedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Stats returns the total record count and counts per category.
	Stats(ctx context.Context) (total int, byCategory map[string]int, err error)
	// Clear deletes all records and queue entries unconditionally.
	Clear(ctx context.Context) error
	Close() error
}

// GraphStats summarizes the size of the graph store.
type GraphStats struct {
	Nodes int64 `json:"node_count"`
	Edges int64 `json:"edge_count"`
}

// GraphStore holds Memory/Topic/Entity nodes and their edges. Every
// implementation must make node and edge creation merge-or-create, so a
// retried sync never duplicates structure.
type GraphStore interface {
	// UpsertMemory merges the Memory node carrying the denormalized payload.
	UpsertMemory(ctx context.Context, p SyncPayload) error
	// LinkTopics merges Topic nodes and HAS_TOPIC edges.
	LinkTopics(ctx context.Context, memoryID int64, topics []string) error
	// LinkEntities merges Entity nodes and MENTIONS edges.
	LinkEntities(ctx context.Context, memoryID int64, entities []model.Entity) error
	// LinkFollows links the memory to the highest-id Memory node strictly
	// below it, forming the chronological chain.
	LinkFollows(ctx context.Context, memoryID int64) error
	// LinkRelated links RELATED_TO edges to up to fanOut other memories
	// sharing a topic, each with the given strength.
	LinkRelated(ctx context.Context, memoryID int64, fanOut int, strength float64) error

	// MemoriesByEntities returns ids of memories mentioning any of the
	// named entities, newest first.
	MemoriesByEntities(ctx context.Context, names []string, limit int) ([]int64, error)
	// Neighborhood returns ids reachable from the seed over
	// RELATED_TO/FOLLOWS edges within depth hops, excluding the seed.
	Neighborhood(ctx context.Context, seedID int64, depth, limit int) ([]int64, error)

	Stats(ctx context.Context) (GraphStats, error)
	Clear(ctx context.Context) error
	Close(ctx context.Context) error
}
