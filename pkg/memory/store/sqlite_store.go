package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mnemo-ai/mnemo/pkg/memory/model"
)

// SQLiteStore implements FastStore on an embedded SQLite database. The memory
// table and the sync queue live in the same file, so a memory row and its
// queue row commit or fail together.
type SQLiteStore struct {
	db    *sql.DB
	path  string
	nowFn func() time.Time
}

var _ FastStore = (*SQLiteStore)(nil)

// OpenSQLiteStore opens or creates the database at path and ensures the
// schema. The parent directory is created when missing.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite store: %w", err)
	}
	s := &SQLiteStore{db: db, path: path, nowFn: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite store: %w", err)
	}
	return s, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS memories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	content TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT 'general',
	importance TEXT NOT NULL DEFAULT 'medium',
	metadata TEXT NOT NULL DEFAULT '{}',
	embedding TEXT,
	created_at INTEGER NOT NULL,
	access_count INTEGER NOT NULL DEFAULT 0,
	last_accessed_at INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_memories_category ON memories(category);
CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at);

CREATE TABLE IF NOT EXISTS sync_queue (
	queue_id INTEGER PRIMARY KEY AUTOINCREMENT,
	memory_id INTEGER NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
	payload TEXT NOT NULL,
	synced INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	synced_at INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_sync_queue_pending ON sync_queue(synced, queue_id);
`

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(sqliteSchema)
	return err
}

func (s *SQLiteStore) now() time.Time {
	if s.nowFn == nil {
		return time.Now().UTC()
	}
	return s.nowFn().UTC()
}

// Insert writes the memory row and its sync-queue row in one transaction.
func (s *SQLiteStore) Insert(ctx context.Context, content, category string, importance model.Importance, metadata model.Document) (int64, error) {
	if strings.TrimSpace(content) == "" {
		return 0, fmt.Errorf("insert memory: empty content")
	}
	if category == "" {
		category = "general"
	}
	if !importance.Valid() {
		importance = model.ImportanceMedium
	}
	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO memories (content, category, importance, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		content, category, string(importance), metadata.Sanitize().Encode(), now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert memory: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert memory id: %w", err)
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
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sync_queue (memory_id, payload, created_at)
		VALUES (?, ?, ?)`,
		id, string(encoded), now.UnixMilli()); err != nil {
		return 0, fmt.Errorf("enqueue sync: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert: %w", err)
	}
	return id, nil
}

// Get returns a single record or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (model.MemoryRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, category, importance, metadata, embedding, created_at, access_count, last_accessed_at
		FROM memories WHERE id = ?`, id)
	rec, err := scanMemoryRow(row)
	if err == sql.ErrNoRows {
		return model.MemoryRecord{}, ErrNotFound
	}
	if err != nil {
		return model.MemoryRecord{}, fmt.Errorf("get memory %d: %w", id, err)
	}
	return rec, nil
}

// Search scores every record by the number of query tokens contained in its
// content and bumps access bookkeeping for the returned rows. Memory volumes
// are personal-assistant scale, so a full scan is acceptable.
func (s *SQLiteStore) Search(ctx context.Context, query string, limit int) ([]model.MemoryRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	var matches []model.MemoryRecord
	err := s.Iterate(ctx, func(rec model.MemoryRecord) bool {
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
	if err := s.Touch(ctx, ids); err != nil {
		return nil, err
	}
	now := s.now()
	for i := range matches {
		matches[i].AccessCount++
		matches[i].LastAccessedAt = now
	}
	return matches, nil
}

// Touch bumps access bookkeeping for the given ids.
func (s *SQLiteStore) Touch(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, s.now().UnixMilli())
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE memories
		SET access_count = access_count + 1, last_accessed_at = ?
		WHERE id IN (%s)`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return fmt.Errorf("touch memories: %w", err)
	}
	return nil
}

// Iterate visits every record in id order until fn returns false.
func (s *SQLiteStore) Iterate(ctx context.Context, fn func(model.MemoryRecord) bool) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, category, importance, metadata, embedding, created_at, access_count, last_accessed_at
		FROM memories ORDER BY id ASC`)
	if err != nil {
		return fmt.Errorf("iterate memories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		rec, err := scanMemoryRow(rows)
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
func (s *SQLiteStore) UpdateEmbedding(ctx context.Context, id int64, embedding []float32) error {
	encoded, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE memories SET embedding = ? WHERE id = ?`, string(encoded), id)
	if err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	return nil
}

// PendingSync returns up to limit unsynced queue entries in queue order.
func (s *SQLiteStore) PendingSync(ctx context.Context, limit int) ([]SyncQueueEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT queue_id, memory_id, payload, synced, created_at, synced_at
		FROM sync_queue WHERE synced = 0
		ORDER BY queue_id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync queue: %w", err)
	}
	defer rows.Close()
	var entries []SyncQueueEntry
	for rows.Next() {
		entry, err := scanQueueRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue row: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// MarkSynced flips an entry to synced. Repeated calls are no-ops.
func (s *SQLiteStore) MarkSynced(ctx context.Context, queueID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue SET synced = 1, synced_at = ?
		WHERE queue_id = ? AND synced = 0`,
		s.now().UnixMilli(), queueID)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

// PendingSyncCount reports how many entries still await indexing.
func (s *SQLiteStore) PendingSyncCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue WHERE synced = 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending sync: %w", err)
	}
	return count, nil
}

// CompactSyncedBefore deletes synced queue rows older than cutoff.
func (s *SQLiteStore) CompactSyncedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sync_queue WHERE synced = 1 AND created_at < ?`,
		cutoff.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("compact sync queue: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns the total record count and counts per category.
func (s *SQLiteStore) Stats(ctx context.Context) (int, map[string]int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("count memories: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM memories GROUP BY category`)
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

// Clear deletes all records and queue entries. The AUTOINCREMENT sequence is
// left untouched so ids stay monotonic across a clear.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear tx: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM sync_queue`); err != nil {
		return fmt.Errorf("clear sync queue: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memories`); err != nil {
		return fmt.Errorf("clear memories: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemoryRow(row rowScanner) (model.MemoryRecord, error) {
	var rec model.MemoryRecord
	var importance, metadata string
	var embedding sql.NullString
	var createdMS, lastAccessedMS int64
	if err := row.Scan(&rec.ID, &rec.Content, &rec.Category, &importance, &metadata, &embedding, &createdMS, &rec.AccessCount, &lastAccessedMS); err != nil {
		return model.MemoryRecord{}, err
	}
	rec.Importance = model.ParseImportance(importance)
	rec.Metadata = model.DecodeDocument(metadata)
	if embedding.Valid && embedding.String != "" {
		var vec []float32
		if err := json.Unmarshal([]byte(embedding.String), &vec); err == nil {
			rec.Embedding = vec
		}
	}
	rec.CreatedAt = time.UnixMilli(createdMS).UTC()
	if lastAccessedMS > 0 {
		rec.LastAccessedAt = time.UnixMilli(lastAccessedMS).UTC()
	}
	return rec, nil
}

func scanQueueRow(row rowScanner) (SyncQueueEntry, error) {
	var entry SyncQueueEntry
	var payload string
	var synced int
	var createdMS, syncedMS int64
	if err := row.Scan(&entry.QueueID, &entry.MemoryID, &payload, &synced, &createdMS, &syncedMS); err != nil {
		return SyncQueueEntry{}, err
	}
	if err := json.Unmarshal([]byte(payload), &entry.Payload); err != nil {
		return SyncQueueEntry{}, fmt.Errorf("decode sync payload: %w", err)
	}
	entry.Synced = synced != 0
	entry.CreatedAt = time.UnixMilli(createdMS).UTC()
	if syncedMS > 0 {
		entry.SyncedAt = time.UnixMilli(syncedMS).UTC()
	}
	return entry, nil
}

// Tokenize lower-cases the query and splits it into scoring tokens.
func Tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]{}")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// KeywordScore counts how many of the tokens occur in the content.
func KeywordScore(content string, tokens []string) float64 {
	lower := strings.ToLower(content)
	var score float64
	for _, tok := range tokens {
		if strings.Contains(lower, tok) {
			score++
		}
	}
	return score
}
