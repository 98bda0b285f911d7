// Package engine coordinates the fast store, the sync queue drain, the
// extraction rules and the recall router behind one façade.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mnemo-ai/mnemo/pkg/cache"
	"github.com/mnemo-ai/mnemo/pkg/memory/embed"
	"github.com/mnemo-ai/mnemo/pkg/memory/model"
	"github.com/mnemo-ai/mnemo/pkg/memory/store"
)

// ErrClosed is returned by operations attempted after Close.
var ErrClosed = errors.New("engine closed")

// Engine owns the write path, the background indexer and the recall router.
// Writes touch only the fast store; graph indexing happens asynchronously
// and its failures never surface to callers.
type Engine struct {
	fast    store.FastStore
	graph   store.GraphStore
	gate    *embed.Gate
	opts    Options
	logger  *zap.Logger
	clock   func() time.Time
	metrics *Metrics

	queryCache *cache.VectorCache

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

// New constructs an engine on the fast store. The graph store and embedder
// default to absent; use the With* configurators before Start.
func New(fast store.FastStore, opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		fast:       fast,
		gate:       embed.AutoGate(),
		opts:       opts,
		logger:     zap.NewNop(),
		clock:      opts.Clock,
		metrics:    &Metrics{},
		queryCache: cache.NewVectorCache(opts.QueryCacheSize, opts.QueryCacheTTL),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// WithGraphStore attaches a graph backend.
func (e *Engine) WithGraphStore(graph store.GraphStore) *Engine {
	e.graph = graph
	return e
}

// WithEmbedder overrides the default lazily-initialized embedder.
func (e *Engine) WithEmbedder(factory embed.Factory) *Engine {
	if factory != nil {
		e.gate = embed.NewGate(factory)
	}
	return e
}

// WithLogger overrides the default no-op logger.
func (e *Engine) WithLogger(logger *zap.Logger) *Engine {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// WithClock overrides the time source, for tests.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	if clock != nil {
		e.clock = clock
	}
	return e
}

// Start launches the background indexer. The first pass rebuilds the graph
// when its store came up empty, then replays any queue entries left unsynced
// by an earlier crash before new work is considered.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.started {
		return nil
	}
	e.started = true

	pending, err := e.fast.PendingSyncCount(ctx)
	if err != nil {
		e.logger.Warn("pending sync count failed", zap.Error(err))
	} else if pending > 0 {
		e.logger.Info("recovering unsynced queue entries", zap.Int("pending", pending))
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.rebuildGraphIfEmpty(context.Background())
		e.drainLoop()
	}()
	return nil
}

// Close stops the indexer, waits for its in-flight pass, and closes both
// stores.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	started := e.started
	e.mu.Unlock()

	if started {
		close(e.done)
	}
	e.wg.Wait()
	var firstErr error
	if e.graph != nil {
		if err := e.graph.Close(ctx); err != nil && !errors.Is(err, store.ErrGraphUnavailable) {
			firstErr = err
		}
	}
	if err := e.fast.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// StoreOption adjusts a single Store call.
type StoreOption func(*storeParams)

type storeParams struct {
	category   string
	importance model.Importance
	metadata   model.Document
}

// WithCategory sets the memory category. Empty falls back to "general".
func WithCategory(category string) StoreOption {
	return func(p *storeParams) { p.category = category }
}

// WithImportance sets the importance level.
func WithImportance(importance model.Importance) StoreOption {
	return func(p *storeParams) { p.importance = importance }
}

// WithMetadata attaches caller metadata to the record.
func WithMetadata(metadata model.Document) StoreOption {
	return func(p *storeParams) { p.metadata = metadata }
}

// Store persists the memory and its sync obligation in one transaction and
// returns the assigned id. No embedding or graph work happens here.
func (e *Engine) Store(ctx context.Context, content string, options ...StoreOption) (int64, error) {
	if content == "" {
		return 0, errors.New("content is empty")
	}
	params := storeParams{category: "general", importance: model.ImportanceMedium}
	for _, opt := range options {
		opt(&params)
	}
	if params.category == "" {
		params.category = "general"
	}
	if !params.importance.Valid() {
		params.importance = model.ImportanceMedium
	}

	id, err := e.fast.Insert(ctx, content, params.category, params.importance, params.metadata)
	if err != nil {
		return 0, err
	}
	e.metrics.IncStored()
	e.logger.Debug("memory stored",
		zap.Int64("id", id),
		zap.String("category", params.category),
		zap.String("importance", string(params.importance)))
	e.kick()
	return id, nil
}

// Get returns a single memory without touching access bookkeeping.
func (e *Engine) Get(ctx context.Context, id int64) (model.MemoryRecord, error) {
	return e.fast.Get(ctx, id)
}

// kick nudges the drain loop without blocking.
func (e *Engine) kick() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Stats reports counts from both stores plus capability flags. Graph numbers
// are zero when the graph backend is absent or unreachable.
type Stats struct {
	TotalMemories  int              `json:"total_memories"`
	ByCategory     map[string]int   `json:"by_category"`
	PendingSync    int              `json:"pending_sync"`
	Graph          store.GraphStats `json:"graph"`
	GraphAvailable bool             `json:"graph_available"`
	EmbeddingModel string           `json:"embedding_model,omitempty"`
}

// Stats aggregates store counters into one report.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	total, byCategory, err := e.fast.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	pending, err := e.fast.PendingSyncCount(ctx)
	if err != nil {
		return Stats{}, err
	}
	out := Stats{
		TotalMemories:  total,
		ByCategory:     byCategory,
		PendingSync:    pending,
		EmbeddingModel: e.gate.ModelName(),
	}
	if e.graph != nil {
		graphStats, err := e.graph.Stats(ctx)
		if err != nil {
			if !errors.Is(err, store.ErrGraphUnavailable) {
				e.logger.Warn("graph stats failed", zap.Error(err))
			}
			e.metrics.IncGraphDegraded()
		} else {
			out.Graph = graphStats
			out.GraphAvailable = true
		}
	}
	return out, nil
}

// CompactQueue deletes synced queue rows older than age and reports how
// many were removed. Unsynced rows are never touched.
func (e *Engine) CompactQueue(ctx context.Context, age time.Duration) (int64, error) {
	return e.fast.CompactSyncedBefore(ctx, e.clock().Add(-age))
}

// Clear wipes both stores and the query cache.
func (e *Engine) Clear(ctx context.Context) error {
	if err := e.fast.Clear(ctx); err != nil {
		return err
	}
	if e.graph != nil {
		if err := e.graph.Clear(ctx); err != nil && !errors.Is(err, store.ErrGraphUnavailable) {
			return err
		}
	}
	e.queryCache.Clear()
	return nil
}

// MetricsSnapshot returns a copy of the runtime counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}
