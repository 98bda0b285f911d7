package store

import (
	"context"
	"testing"
	"time"

	"github.com/mnemo-ai/mnemo/pkg/memory/model"
)

func payload(id int64, content string) SyncPayload {
	return SyncPayload{
		MemoryID:   id,
		Content:    content,
		Category:   "general",
		Importance: model.ImportanceMedium,
		CreatedAt:  time.Unix(int64(1000+id), 0).UTC(),
	}
}

func TestInMemoryGraphUpsertIsIdempotent(t *testing.T) {
	g := NewInMemoryGraph()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := g.UpsertMemory(ctx, payload(1, "note")); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if err := g.LinkTopics(ctx, 1, []string{"Database"}); err != nil {
			t.Fatalf("link topics: %v", err)
		}
		if err := g.LinkEntities(ctx, 1, []model.Entity{{Name: "PostgreSQL", Type: model.EntityTechnology}}); err != nil {
			t.Fatalf("link entities: %v", err)
		}
	}
	stats, err := g.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Nodes != 3 {
		t.Fatalf("expected 3 nodes (memory, topic, entity), got %d", stats.Nodes)
	}
	if stats.Edges != 2 {
		t.Fatalf("expected 2 edges, got %d", stats.Edges)
	}
}

func TestInMemoryGraphFollowsChain(t *testing.T) {
	g := NewInMemoryGraph()
	ctx := context.Background()
	for id := int64(1); id <= 3; id++ {
		if err := g.UpsertMemory(ctx, payload(id, "note")); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if err := g.LinkFollows(ctx, id); err != nil {
			t.Fatalf("follows: %v", err)
		}
	}
	if g.follows[1] != 0 {
		t.Fatalf("first memory must not follow anything")
	}
	if g.follows[2] != 1 || g.follows[3] != 2 {
		t.Fatalf("unexpected chain: %v", g.follows)
	}
}

func TestInMemoryGraphRelatedBySharedTopic(t *testing.T) {
	g := NewInMemoryGraph()
	ctx := context.Background()
	for id := int64(1); id <= 3; id++ {
		if err := g.UpsertMemory(ctx, payload(id, "note")); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if err := g.LinkTopics(ctx, id, []string{"Database"}); err != nil {
			t.Fatalf("topics: %v", err)
		}
	}
	if err := g.LinkRelated(ctx, 3, 5, 0.5); err != nil {
		t.Fatalf("related: %v", err)
	}
	edges := g.related[3]
	if len(edges) != 2 {
		t.Fatalf("expected 2 related edges, got %v", edges)
	}
	if edges[1] != 0.5 || edges[2] != 0.5 {
		t.Fatalf("unexpected strengths: %v", edges)
	}
	// Re-linking must not duplicate or restamp.
	if err := g.LinkRelated(ctx, 3, 5, 0.9); err != nil {
		t.Fatalf("related: %v", err)
	}
	if g.related[3][1] != 0.5 {
		t.Fatalf("existing edge strength overwritten")
	}
}

func TestInMemoryGraphRelatedFanOutCap(t *testing.T) {
	g := NewInMemoryGraph()
	ctx := context.Background()
	for id := int64(1); id <= 8; id++ {
		_ = g.UpsertMemory(ctx, payload(id, "note"))
		_ = g.LinkTopics(ctx, id, []string{"API"})
	}
	if err := g.LinkRelated(ctx, 8, 3, 0.5); err != nil {
		t.Fatalf("related: %v", err)
	}
	edges := g.related[8]
	if len(edges) != 3 {
		t.Fatalf("fan-out cap ignored: %v", edges)
	}
	// Newest candidates win.
	for _, want := range []int64{7, 6, 5} {
		if _, ok := edges[want]; !ok {
			t.Fatalf("expected edge to %d, got %v", want, edges)
		}
	}
}

func TestInMemoryGraphMemoriesByEntities(t *testing.T) {
	g := NewInMemoryGraph()
	ctx := context.Background()
	_ = g.UpsertMemory(ctx, payload(1, "a"))
	_ = g.UpsertMemory(ctx, payload(2, "b"))
	_ = g.LinkEntities(ctx, 1, []model.Entity{{Name: "Docker", Type: model.EntityTechnology}})
	_ = g.LinkEntities(ctx, 2, []model.Entity{{Name: "Docker", Type: model.EntityTechnology}})

	ids, err := g.MemoriesByEntities(ctx, []string{"Docker"}, 10)
	if err != nil {
		t.Fatalf("by entities: %v", err)
	}
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 1 {
		t.Fatalf("expected [2 1], got %v", ids)
	}
	ids, err = g.MemoriesByEntities(ctx, []string{"Redis"}, 10)
	if err != nil {
		t.Fatalf("by entities: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no hits, got %v", ids)
	}
}

func TestInMemoryGraphNeighborhoodDepth(t *testing.T) {
	g := NewInMemoryGraph()
	ctx := context.Background()
	for id := int64(1); id <= 4; id++ {
		_ = g.UpsertMemory(ctx, payload(id, "note"))
		_ = g.LinkFollows(ctx, id)
	}
	// Depth 1 from 4 reaches only 3 over the FOLLOWS chain.
	ids, err := g.Neighborhood(ctx, 4, 1, 10)
	if err != nil {
		t.Fatalf("neighborhood: %v", err)
	}
	if len(ids) != 1 || ids[0] != 3 {
		t.Fatalf("depth 1 expected [3], got %v", ids)
	}
	ids, err = g.Neighborhood(ctx, 4, 3, 10)
	if err != nil {
		t.Fatalf("neighborhood: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("depth 3 expected all predecessors, got %v", ids)
	}
}

func TestInMemoryGraphClear(t *testing.T) {
	g := NewInMemoryGraph()
	ctx := context.Background()
	_ = g.UpsertMemory(ctx, payload(1, "note"))
	_ = g.LinkTopics(ctx, 1, []string{"Testing"})
	if err := g.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	stats, _ := g.Stats(ctx)
	if stats.Nodes != 0 || stats.Edges != 0 {
		t.Fatalf("expected empty graph, got %+v", stats)
	}
}
