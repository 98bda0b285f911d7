package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mnemo-ai/mnemo/pkg/memory/model"
)

// PostgresStore implements FastStore on Postgres, for deployments that
// already run one. Both tables live in the same database so the memory row
// and its queue row commit together, exactly like the SQLite store.
type PostgresStore struct {
	DB    *pgxpool.Pool
	nowFn func() time.Time
}

var _ FastStore = (*PostgresStore)(nil)

// NewPostgresStore connects to Postgres and ensures the schema.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	ps := &PostgresStore{DB: db, nowFn: time.Now}
	if err := ps.createSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return ps, nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS memories (
	id BIGSERIAL PRIMARY KEY,
	content TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT 'general',
	importance TEXT NOT NULL DEFAULT 'medium',
	metadata JSONB NOT NULL DEFAULT '{}',
	embedding TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	access_count BIGINT NOT NULL DEFAULT 0,
	last_accessed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_memories_category ON memories (category);

CREATE TABLE IF NOT EXISTS sync_queue (
	queue_id BIGSERIAL PRIMARY KEY,
	memory_id BIGINT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
	payload JSONB NOT NULL,
	synced BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	synced_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_sync_queue_pending ON sync_queue (queue_id) WHERE NOT synced;
`

func (ps *PostgresStore) createSchema(ctx context.Context) error {
	if _, err := ps.DB.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create postgres schema: %w", err)
	}
	return nil
}

func (ps *PostgresStore) now() time.Time {
	if ps.nowFn == nil {
		return time.Now().UTC()
	}
	return ps.nowFn().UTC()
}

// Insert writes the memory row and its sync-queue row in one transaction.
func (ps *PostgresStore) Insert(ctx context.Context, content, category string, importance model.Importance, metadata model.Document) (int64, error) {
	if strings.TrimSpace(content) == "" {
		return 0, fmt.Errorf("insert memory: empty content")
	}
	if category == "" {
		category = "general"
	}
	if !importance.Valid() {
		importance = model.ImportanceMedium
	}
	now := ps.now()
	tx, err := ps.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin insert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	if err := tx.QueryRow(ctx, `
		INSERT INTO memories (content, category, importance, metadata, created_at)
		VALUES ($1, $2, $3, $4::jsonb, $5)
		RETURNING id`,
		content, category, string(importance), metadata.Sanitize().Encode(), now).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert memory: %w", err)
	}
	payload := SyncPayload{
		MemoryID:   id,
		Content:    content,
		Category:   category,
		Importance: importance,
		CreatedAt:  now,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode sync payload: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO sync_queue (memory_id, payload, created_at)
		VALUES ($1, $2::jsonb, $3)`,
		id, string(encoded), now); err != nil {
		return 0, fmt.Errorf("enqueue sync: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit insert: %w", err)
	}
	return id, nil
}

// Get returns a single record or ErrNotFound.
func (ps *PostgresStore) Get(ctx context.Context, id int64) (model.MemoryRecord, error) {
	rec, err := ps.scanOne(ps.DB.QueryRow(ctx, `
		SELECT id, content, category, importance, metadata::text, embedding, created_at, access_count, last_accessed_at
		FROM memories WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.MemoryRecord{}, ErrNotFound
	}
	if err != nil {
		return model.MemoryRecord{}, fmt.Errorf("get memory %d: %w", id, err)
	}
	return rec, nil
}

// Search scores records by contained query tokens, recency breaking ties.
func (ps *PostgresStore) Search(ctx context.Context, query string, limit int) ([]model.MemoryRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	var matches []model.MemoryRecord
	err := ps.Iterate(ctx, func(rec model.MemoryRecord) bool {
		if score := KeywordScore(rec.Content, tokens); score > 0 {
			rec.Score = score
			matches = append(matches, rec)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID > matches[j].ID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	ids := make([]int64, len(matches))
	for i, rec := range matches {
		ids[i] = rec.ID
	}
	if err := ps.Touch(ctx, ids); err != nil {
		return nil, err
	}
	now := ps.now()
	for i := range matches {
		matches[i].AccessCount++
		matches[i].LastAccessedAt = now
	}
	return matches, nil
}

// Touch bumps access bookkeeping for the given ids.
func (ps *PostgresStore) Touch(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := ps.DB.Exec(ctx, `
		UPDATE memories
		SET access_count = access_count + 1, last_accessed_at = $2
		WHERE id = ANY($1)`, ids, ps.now())
	if err != nil {
		return fmt.Errorf("touch memories: %w", err)
	}
	return nil
}

// Iterate visits every record in id order until fn returns false.
func (ps *PostgresStore) Iterate(ctx context.Context, fn func(model.MemoryRecord) bool) error {
	rows, err := ps.DB.Query(ctx, `
		SELECT id, content, category, importance, metadata::text, embedding, created_at, access_count, last_accessed_at
		FROM memories ORDER BY id ASC`)
	if err != nil {
		return fmt.Errorf("iterate memories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		rec, err := ps.scanOne(rows)
		if err != nil {
			return fmt.Errorf("scan memory row: %w", err)
		}
		if !fn(rec) {
			break
		}
	}
	return rows.Err()
}

// UpdateEmbedding persists a vector for an existing record.
func (ps *PostgresStore) UpdateEmbedding(ctx context.Context, id int64, embedding []float32) error {
	encoded, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	if _, err := ps.DB.Exec(ctx, `UPDATE memories SET embedding = $2 WHERE id = $1`, id, string(encoded)); err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	return nil
}

// PendingSync returns up to limit unsynced queue entries in queue order.
func (ps *PostgresStore) PendingSync(ctx context.Context, limit int) ([]SyncQueueEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := ps.DB.Query(ctx, `
		SELECT queue_id, memory_id, payload::text, synced, created_at, synced_at
		FROM sync_queue WHERE NOT synced
		ORDER BY queue_id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync queue: %w", err)
	}
	defer rows.Close()
	var entries []SyncQueueEntry
	for rows.Next() {
		var entry SyncQueueEntry
		var payload string
		var syncedAt *time.Time
		if err := rows.Scan(&entry.QueueID, &entry.MemoryID, &payload, &entry.Synced, &entry.CreatedAt, &syncedAt); err != nil {
			return nil, fmt.Errorf("scan queue row: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &entry.Payload); err != nil {
			return nil, fmt.Errorf("decode sync payload: %w", err)
		}
		if syncedAt != nil {
			entry.SyncedAt = *syncedAt
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// MarkSynced flips an entry to synced. Repeated calls are no-ops.
func (ps *PostgresStore) MarkSynced(ctx context.Context, queueID int64) error {
	_, err := ps.DB.Exec(ctx, `
		UPDATE sync_queue SET synced = TRUE, synced_at = $2
		WHERE queue_id = $1 AND NOT synced`, queueID, ps.now())
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

// PendingSyncCount reports how many entries still await indexing.
func (ps *PostgresStore) PendingSyncCount(ctx context.Context) (int, error) {
	var count int
	if err := ps.DB.QueryRow(ctx, `SELECT COUNT(*) FROM sync_queue WHERE NOT synced`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending sync: %w", err)
	}
	return count, nil
}

// CompactSyncedBefore deletes synced queue rows older than cutoff.
func (ps *PostgresStore) CompactSyncedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := ps.DB.Exec(ctx, `
		DELETE FROM sync_queue WHERE synced AND created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("compact sync queue: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Stats returns the total record count and counts per category.
func (ps *PostgresStore) Stats(ctx context.Context) (int, map[string]int, error) {
	var total int
	if err := ps.DB.QueryRow(ctx, `SELECT COUNT(*) FROM memories`).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("count memories: %w", err)
	}
	rows, err := ps.DB.Query(ctx, `SELECT category, COUNT(*) FROM memories GROUP BY category`)
	if err != nil {
		return 0, nil, fmt.Errorf("count by category: %w", err)
	}
	defer rows.Close()
	byCategory := make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return 0, nil, fmt.Errorf("scan category count: %w", err)
		}
		byCategory[category] = count
	}
	return total, byCategory, rows.Err()
}

// Clear deletes all records and queue entries unconditionally.
func (ps *PostgresStore) Clear(ctx context.Context) error {
	tx, err := ps.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin clear tx: %w", err)
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `DELETE FROM sync_queue`); err != nil {
		return fmt.Errorf("clear sync queue: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM memories`); err != nil {
		return fmt.Errorf("clear memories: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (ps *PostgresStore) Close() error {
	ps.DB.Close()
	return nil
}

func (ps *PostgresStore) scanOne(row pgx.Row) (model.MemoryRecord, error) {
	var rec model.MemoryRecord
	var importance, metadata string
	var embedding *string
	var lastAccessed *time.Time
	if err := row.Scan(&rec.ID, &rec.Content, &rec.Category, &importance, &metadata, &embedding, &rec.CreatedAt, &rec.AccessCount, &lastAccessed); err != nil {
		return model.MemoryRecord{}, err
	}
	rec.Importance = model.ParseImportance(importance)
	rec.Metadata = model.DecodeDocument(metadata)
	if embedding != nil && *embedding != "" {
		var vec []float32
		if err := json.Unmarshal([]byte(*embedding), &vec); err == nil {
			rec.Embedding = vec
		}
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	if lastAccessed != nil {
		rec.LastAccessedAt = lastAccessed.UTC()
	}
	return rec, nil
}
