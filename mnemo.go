// Package mnemo is a hybrid memory store for assistant harnesses: a durable
// relational fast store for writes, a lazily built graph of topics and
// entities for associative recall, and a router that degrades every recall
// strategy toward plain keyword search.
package mnemo

import (
	"context"

	"go.uber.org/zap"

	"github.com/mnemo-ai/mnemo/pkg/memory/embed"
	"github.com/mnemo-ai/mnemo/pkg/memory/engine"
	"github.com/mnemo-ai/mnemo/pkg/memory/model"
	"github.com/mnemo-ai/mnemo/pkg/memory/store"
)

// Core types re-exported for callers who only import the root package.
type (
	Engine          = engine.Engine
	Options         = engine.Options
	Query           = engine.Query
	QueryType       = engine.QueryType
	Stats           = engine.Stats
	MetricsSnapshot = engine.MetricsSnapshot

	MemoryRecord = model.MemoryRecord
	Document     = model.Document
	Importance   = model.Importance
	Entity       = model.Entity

	FastStore  = store.FastStore
	GraphStore = store.GraphStore
	GraphStats = store.GraphStats
)

const (
	QueryQuick    = engine.QueryQuick
	QuerySemantic = engine.QuerySemantic
	QueryContext  = engine.QueryContext
	QueryRelated  = engine.QueryRelated

	ImportanceLow    = model.ImportanceLow
	ImportanceMedium = model.ImportanceMedium
	ImportanceHigh   = model.ImportanceHigh
)

var (
	New              = engine.New
	DefaultOptions   = engine.DefaultOptions
	WithCategory     = engine.WithCategory
	WithImportance   = engine.WithImportance
	WithMetadata     = engine.WithMetadata
	OpenSQLiteStore  = store.OpenSQLiteStore
	NewInMemoryGraph = store.NewInMemoryGraph
	AutoGate         = embed.AutoGate

	ErrNotFound         = store.ErrNotFound
	ErrGraphUnavailable = store.ErrGraphUnavailable
	ErrEmbedUnavailable = embed.ErrUnavailable
)

// Open opens the SQLite-backed engine at path with an in-process graph and
// the environment-selected embedder, and starts the background indexer. The
// in-process graph does not survive restarts; the indexer's first pass
// rebuilds it from the stored memories.
func Open(ctx context.Context, path string, opts Options, logger *zap.Logger) (*Engine, error) {
	fast, err := store.OpenSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	e := engine.New(fast, opts).
		WithGraphStore(store.NewInMemoryGraph()).
		WithLogger(logger)
	if err := e.Start(ctx); err != nil {
		fast.Close()
		return nil, err
	}
	return e, nil
}
