package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mnemo-ai/mnemo/pkg/memory/embed"
	"github.com/mnemo-ai/mnemo/pkg/memory/extract"
	"github.com/mnemo-ai/mnemo/pkg/memory/model"
	"github.com/mnemo-ai/mnemo/pkg/memory/store"
)

// drainLoop polls the sync queue, doubling the poll interval while idle and
// snapping back to the floor when work arrives or a write kicks the loop.
func (e *Engine) drainLoop() {
	interval := e.opts.MinPollInterval
	// Recovery pass: entries left unsynced by an earlier crash are replayed
	// before any poll delay applies.
	e.drainBatch(context.Background())
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-e.wake:
			interval = e.opts.MinPollInterval
		case <-timer.C:
		}

		processed := e.drainBatch(context.Background())
		if processed > 0 {
			interval = e.opts.MinPollInterval
		} else {
			interval *= 2
			if interval > e.opts.MaxPollInterval {
				interval = e.opts.MaxPollInterval
			}
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(interval)
	}
}

// drainBatch claims one batch of pending queue entries and indexes each in
// queue order. It returns how many entries were fully synced.
func (e *Engine) drainBatch(ctx context.Context) int {
	entries, err := e.fast.PendingSync(ctx, e.opts.DrainBatch)
	if err != nil {
		e.logger.Warn("pending sync read failed", zap.Error(err))
		return 0
	}
	processed := 0
	for _, entry := range entries {
		select {
		case <-e.done:
			return processed
		default:
		}
		if err := e.indexEntry(ctx, entry); err != nil {
			e.metrics.IncIndexRetries()
			e.logger.Warn("index attempt failed, will retry",
				zap.Int64("queue_id", entry.QueueID),
				zap.Int64("memory_id", entry.MemoryID),
				zap.Error(err))
			continue
		}
		if err := e.fast.MarkSynced(ctx, entry.QueueID); err != nil {
			e.logger.Warn("mark synced failed", zap.Int64("queue_id", entry.QueueID), zap.Error(err))
			continue
		}
		e.metrics.IncIndexed()
		processed++
	}
	return processed
}

// indexEntry performs the two deferred jobs for one memory: compute and
// persist its embedding, then materialize its graph neighborhood. Every
// graph statement is idempotent, so a partial failure retried later cannot
// duplicate structure.
func (e *Engine) indexEntry(ctx context.Context, entry store.SyncQueueEntry) error {
	payload := entry.Payload

	vec, err := e.gate.Embed(ctx, payload.Content)
	switch {
	case err == nil:
		if err := e.fast.UpdateEmbedding(ctx, payload.MemoryID, vec); err != nil {
			return err
		}
	case errors.Is(err, embed.ErrUnavailable):
		// No backend was ever available. Skipping is permanent, not an
		// error worth retrying.
		e.metrics.IncEmbedSkipped()
	default:
		return err
	}

	return e.syncGraph(ctx, payload)
}

// syncGraph materializes one memory's graph neighborhood. Every statement is
// individually idempotent, so replaying a payload cannot duplicate structure.
func (e *Engine) syncGraph(ctx context.Context, payload store.SyncPayload) error {
	if e.graph == nil {
		return nil
	}
	if err := e.graph.UpsertMemory(ctx, payload); err != nil {
		return e.graphErr(err)
	}
	topics := extract.Topics(payload.Content, e.opts.TopicCap)
	if err := e.graph.LinkTopics(ctx, payload.MemoryID, topics); err != nil {
		return e.graphErr(err)
	}
	entities := extract.Entities(payload.Content, e.opts.EntityCap)
	if err := e.graph.LinkEntities(ctx, payload.MemoryID, entities); err != nil {
		return e.graphErr(err)
	}
	if err := e.graph.LinkFollows(ctx, payload.MemoryID); err != nil {
		return e.graphErr(err)
	}
	if err := e.graph.LinkRelated(ctx, payload.MemoryID, e.opts.RelatedFanOut, e.opts.RelatedStrength); err != nil {
		return e.graphErr(err)
	}
	return nil
}

func (e *Engine) graphErr(err error) error {
	if errors.Is(err, store.ErrGraphUnavailable) {
		e.metrics.IncGraphDegraded()
	}
	return err
}

// Reindex rebuilds graph structure for every stored memory and fills in
// missing embeddings where a backend is available. The graph store is
// disposable: wiping or losing it costs nothing that a full pass over the
// fast store cannot restore. Returns how many memories were reindexed.
func (e *Engine) Reindex(ctx context.Context) (int, error) {
	if e.graph == nil {
		return 0, nil
	}
	var records []model.MemoryRecord
	if err := e.fast.Iterate(ctx, func(rec model.MemoryRecord) bool {
		records = append(records, rec)
		return true
	}); err != nil {
		return 0, err
	}
	count := 0
	for _, rec := range records {
		if len(rec.Embedding) == 0 {
			vec, err := e.gate.Embed(ctx, rec.Content)
			switch {
			case err == nil:
				if err := e.fast.UpdateEmbedding(ctx, rec.ID, vec); err != nil {
					return count, err
				}
			case errors.Is(err, embed.ErrUnavailable):
				e.metrics.IncEmbedSkipped()
			default:
				return count, err
			}
		}
		payload := store.SyncPayload{
			MemoryID:   rec.ID,
			Content:    rec.Content,
			Category:   rec.Category,
			Importance: rec.Importance,
			CreatedAt:  rec.CreatedAt,
		}
		if err := e.syncGraph(ctx, payload); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// rebuildGraphIfEmpty restores graph structure when the graph store holds no
// nodes but memories exist, as happens on every restart with the in-process
// graph backend.
func (e *Engine) rebuildGraphIfEmpty(ctx context.Context) {
	if e.graph == nil {
		return
	}
	stats, err := e.graph.Stats(ctx)
	if err != nil || stats.Nodes > 0 {
		return
	}
	total, _, err := e.fast.Stats(ctx)
	if err != nil || total == 0 {
		return
	}
	n, err := e.Reindex(ctx)
	if err != nil {
		e.logger.Warn("graph rebuild failed", zap.Int("reindexed", n), zap.Error(err))
		return
	}
	e.logger.Info("rebuilt graph from fast store", zap.Int("memories", n))
}

// DrainOnce runs one synchronous drain pass. Tests and batch jobs use it to
// index without waiting on the poll loop.
func (e *Engine) DrainOnce(ctx context.Context) int {
	return e.drainBatch(ctx)
}

// DrainAll drains until the queue is empty or an entry keeps failing.
func (e *Engine) DrainAll(ctx context.Context) error {
	for {
		pending, err := e.fast.PendingSyncCount(ctx)
		if err != nil {
			return err
		}
		if pending == 0 {
			return nil
		}
		if e.drainBatch(ctx) == 0 {
			return errors.New("sync queue stalled")
		}
	}
}
