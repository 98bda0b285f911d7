package engine

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mnemo-ai/mnemo/pkg/cache"
	"github.com/mnemo-ai/mnemo/pkg/memory/extract"
	"github.com/mnemo-ai/mnemo/pkg/memory/model"
	"github.com/mnemo-ai/mnemo/pkg/memory/store"
)

// QueryType selects a recall strategy.
type QueryType string

const (
	// QueryQuick is keyword-overlap search on the fast store.
	QueryQuick QueryType = "quick"
	// QuerySemantic is embedding similarity search with keyword fallback.
	QuerySemantic QueryType = "semantic"
	// QueryContext expands a seed memory through its graph neighborhood.
	QueryContext QueryType = "context"
	// QueryRelated finds memories sharing entities with the query.
	QueryRelated QueryType = "related"
)

// Query describes one recall request.
type Query struct {
	Type QueryType
	Text string
	// Limit bounds the result count. Zero means 5.
	Limit int
	// ContextDepth is the traversal depth for contextual recall, clamped
	// to the engine's MaxContextDepth. Zero means 2.
	ContextDepth int
}

func (q Query) withDefaults(opts Options) Query {
	if q.Type == "" {
		q.Type = QueryQuick
	}
	if q.Limit <= 0 {
		q.Limit = 5
	}
	if q.ContextDepth <= 0 {
		q.ContextDepth = 2
	}
	if q.ContextDepth > opts.MaxContextDepth {
		q.ContextDepth = opts.MaxContextDepth
	}
	return q
}

// Recall routes the query to its strategy. Every strategy degrades toward
// keyword search, so recall fails only when the fast store itself fails.
func (e *Engine) Recall(ctx context.Context, q Query) ([]model.MemoryRecord, error) {
	q = q.withDefaults(e.opts)
	if strings.TrimSpace(q.Text) == "" {
		return nil, errors.New("query text is empty")
	}

	var (
		records []model.MemoryRecord
		err     error
	)
	switch q.Type {
	case QuerySemantic:
		records, err = e.recallSemantic(ctx, q)
	case QueryContext:
		records, err = e.recallContext(ctx, q)
	case QueryRelated:
		records, err = e.recallRelated(ctx, q)
	case QueryQuick:
		records, err = e.fast.Search(ctx, q.Text, q.Limit)
	default:
		return nil, errors.New("unknown query type")
	}
	if err != nil {
		return nil, err
	}
	e.metrics.IncRecalled(len(records))
	return records, nil
}

// recallSemantic scans stored embeddings against the query vector. When no
// embedding backend is available, or nothing clears the similarity floor, it
// falls back to topic overlap and finally to keyword search.
func (e *Engine) recallSemantic(ctx context.Context, q Query) ([]model.MemoryRecord, error) {
	queryVec, err := e.queryEmbedding(ctx, q.Text)
	if err == nil {
		hits, scanErr := e.scanEmbeddings(ctx, queryVec, q.Limit)
		if scanErr != nil {
			return nil, scanErr
		}
		if len(hits) > 0 {
			return hits, e.touch(ctx, hits)
		}
	} else {
		e.logger.Debug("semantic recall degraded", zap.Error(err))
	}

	hits, err := e.recallByTopics(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(hits) > 0 {
		return hits, e.touch(ctx, hits)
	}
	return e.fast.Search(ctx, q.Text, q.Limit)
}

func (e *Engine) queryEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := cache.HashKey(text)
	if vec, ok := e.queryCache.Get(key); ok {
		e.metrics.IncCacheHits()
		return vec, nil
	}
	e.metrics.IncCacheMisses()
	vec, err := e.gate.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.queryCache.Set(key, vec)
	return vec, nil
}

func (e *Engine) scanEmbeddings(ctx context.Context, queryVec []float32, limit int) ([]model.MemoryRecord, error) {
	var hits []model.MemoryRecord
	err := e.fast.Iterate(ctx, func(rec model.MemoryRecord) bool {
		if len(rec.Embedding) == 0 {
			return true
		}
		score := model.Dot(queryVec, model.Normalize(rec.Embedding))
		if score >= e.opts.SemanticFloor {
			rec.Score = score
			hits = append(hits, rec)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID > hits[j].ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// recallByTopics matches memories whose extracted topics intersect the
// query's topics. It serves as the middle rung between vectors and keywords.
func (e *Engine) recallByTopics(ctx context.Context, q Query) ([]model.MemoryRecord, error) {
	queryTopics := extract.Topics(q.Text, e.opts.TopicCap)
	if len(queryTopics) == 0 {
		return nil, nil
	}
	wanted := make(map[string]struct{}, len(queryTopics))
	for _, topic := range queryTopics {
		wanted[topic] = struct{}{}
	}
	var hits []model.MemoryRecord
	err := e.fast.Iterate(ctx, func(rec model.MemoryRecord) bool {
		for _, topic := range extract.Topics(rec.Content, e.opts.TopicCap) {
			if _, ok := wanted[topic]; ok {
				hits = append(hits, rec)
				break
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].ID > hits[j].ID })
	if len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits, nil
}

// recallContext seeds on the newest memory matching the query text and
// expands through its graph neighborhood. Results come back newest first
// with the seed included. Without a usable graph, or without a seed, it
// degrades to keyword search.
func (e *Engine) recallContext(ctx context.Context, q Query) ([]model.MemoryRecord, error) {
	if e.graph == nil {
		return e.fast.Search(ctx, q.Text, q.Limit)
	}
	seed, ok, err := e.findSeed(ctx, q.Text)
	if err != nil {
		return nil, err
	}
	if !ok {
		return e.fast.Search(ctx, q.Text, q.Limit)
	}

	neighborIDs, err := e.graph.Neighborhood(ctx, seed.ID, q.ContextDepth, q.Limit)
	if err != nil {
		if !errors.Is(err, store.ErrGraphUnavailable) {
			e.logger.Warn("neighborhood query failed", zap.Error(err))
		}
		e.metrics.IncGraphDegraded()
		return e.fast.Search(ctx, q.Text, q.Limit)
	}
	records := []model.MemoryRecord{seed}
	for _, id := range neighborIDs {
		rec, err := e.fast.Get(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].ID > records[j].ID })
	if len(records) > q.Limit {
		records = records[:q.Limit]
	}
	return records, e.touch(ctx, records)
}

// findSeed returns the newest memory whose content contains the query text,
// case-insensitively, falling back to the best keyword match.
func (e *Engine) findSeed(ctx context.Context, text string) (model.MemoryRecord, bool, error) {
	needle := strings.ToLower(strings.TrimSpace(text))
	var seed model.MemoryRecord
	found := false
	err := e.fast.Iterate(ctx, func(rec model.MemoryRecord) bool {
		if strings.Contains(strings.ToLower(rec.Content), needle) {
			if !found || rec.ID > seed.ID {
				seed = rec
				found = true
			}
		}
		return true
	})
	if err != nil {
		return model.MemoryRecord{}, false, err
	}
	if found {
		return seed, true, nil
	}
	matches, err := e.fast.Search(ctx, text, 1)
	if err != nil {
		return model.MemoryRecord{}, false, err
	}
	if len(matches) == 0 {
		return model.MemoryRecord{}, false, nil
	}
	return matches[0], true, nil
}

// recallRelated resolves entities named in the query to memories mentioning
// them. Without a graph, or without entity hits, it degrades to semantic
// recall, which in turn degrades to keywords.
func (e *Engine) recallRelated(ctx context.Context, q Query) ([]model.MemoryRecord, error) {
	names := extract.EntityNames(q.Text, e.opts.EntityCap)
	if len(names) > 0 && e.graph != nil {
		ids, err := e.graph.MemoriesByEntities(ctx, names, q.Limit)
		if err != nil {
			if !errors.Is(err, store.ErrGraphUnavailable) {
				e.logger.Warn("entity lookup failed", zap.Error(err))
			}
			e.metrics.IncGraphDegraded()
		}
		if len(ids) > 0 {
			var records []model.MemoryRecord
			for _, id := range ids {
				rec, err := e.fast.Get(ctx, id)
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						continue
					}
					return nil, err
				}
				records = append(records, rec)
			}
			if len(records) > 0 {
				return records, e.touch(ctx, records)
			}
		}
	}
	return e.recallSemantic(ctx, q)
}

func (e *Engine) touch(ctx context.Context, records []model.MemoryRecord) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]int64, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	return e.fast.Touch(ctx, ids)
}
