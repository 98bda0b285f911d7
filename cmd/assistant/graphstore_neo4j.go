//go:build neo4j

package main

import (
	"context"
	"os"

	"github.com/mnemo-ai/mnemo/pkg/memory/store"
)

// openGraphStore dials the Neo4j server named by MNEMO_NEO4J_URI and ensures
// the schema constraints exist.
func openGraphStore(ctx context.Context) (store.GraphStore, error) {
	uri := os.Getenv("MNEMO_NEO4J_URI")
	if uri == "" {
		uri = "bolt://localhost:7687"
	}
	graph, err := store.OpenNeo4jGraph(uri,
		os.Getenv("MNEMO_NEO4J_USER"),
		os.Getenv("MNEMO_NEO4J_PASSWORD"),
		os.Getenv("MNEMO_NEO4J_DATABASE"))
	if err != nil {
		return nil, err
	}
	if err := graph.CreateSchema(ctx); err != nil {
		graph.Close(ctx)
		return nil, err
	}
	return graph, nil
}
