//go:build !neo4j

package main

import (
	"context"

	"github.com/mnemo-ai/mnemo/pkg/memory/store"
)

// openGraphStore returns the process-local graph. Build with -tags neo4j to
// index into a Neo4j server instead.
func openGraphStore(context.Context) (store.GraphStore, error) {
	return store.NewInMemoryGraph(), nil
}
