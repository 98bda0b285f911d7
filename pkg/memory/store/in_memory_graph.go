package store

import (
	"context"
	"sort"
	"sync"

	"github.com/mnemo-ai/mnemo/pkg/memory/model"
)

// InMemoryGraph is a process-local GraphStore. It mirrors the Neo4j store's
// merge semantics and is the default when no graph backend is configured
// explicitly for durability.
type InMemoryGraph struct {
	mu       sync.RWMutex
	payloads map[int64]SyncPayload
	topics   map[string]map[int64]struct{}
	entities map[string]string
	mentions map[int64]map[string]struct{}
	related  map[int64]map[int64]float64
	follows  map[int64]int64
}

var _ GraphStore = (*InMemoryGraph)(nil)

// NewInMemoryGraph constructs an empty in-memory graph store.
func NewInMemoryGraph() *InMemoryGraph {
	g := &InMemoryGraph{}
	g.reset()
	return g
}

func (g *InMemoryGraph) reset() {
	g.payloads = make(map[int64]SyncPayload)
	g.topics = make(map[string]map[int64]struct{})
	g.entities = make(map[string]string)
	g.mentions = make(map[int64]map[string]struct{})
	g.related = make(map[int64]map[int64]float64)
	g.follows = make(map[int64]int64)
}

// UpsertMemory merges the memory node, overwriting any previous payload.
func (g *InMemoryGraph) UpsertMemory(_ context.Context, p SyncPayload) error {
	if p.MemoryID == 0 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payloads[p.MemoryID] = p
	return nil
}

// LinkTopics merges topic nodes and membership edges.
func (g *InMemoryGraph) LinkTopics(_ context.Context, memoryID int64, topics []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, topic := range topics {
		if topic == "" {
			continue
		}
		members, ok := g.topics[topic]
		if !ok {
			members = make(map[int64]struct{})
			g.topics[topic] = members
		}
		members[memoryID] = struct{}{}
	}
	return nil
}

// LinkEntities merges entity nodes and mention edges. The entity type is set
// on first sight and never overwritten, matching MERGE ON CREATE semantics.
func (g *InMemoryGraph) LinkEntities(_ context.Context, memoryID int64, entities []model.Entity) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, entity := range entities {
		if entity.Name == "" {
			continue
		}
		if _, ok := g.entities[entity.Name]; !ok {
			g.entities[entity.Name] = entity.Type
		}
		names, ok := g.mentions[memoryID]
		if !ok {
			names = make(map[string]struct{})
			g.mentions[memoryID] = names
		}
		names[entity.Name] = struct{}{}
	}
	return nil
}

// LinkFollows points the memory at its immediate predecessor by id.
func (g *InMemoryGraph) LinkFollows(_ context.Context, memoryID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var prev int64
	for id := range g.payloads {
		if id < memoryID && id > prev {
			prev = id
		}
	}
	if prev != 0 {
		g.follows[memoryID] = prev
	}
	return nil
}

// LinkRelated connects up to fanOut topic-sharing memories, newest first.
// Existing edges keep their original strength.
func (g *InMemoryGraph) LinkRelated(_ context.Context, memoryID int64, fanOut int, strength float64) error {
	if fanOut <= 0 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	seen := make(map[int64]struct{})
	for _, members := range g.topics {
		if _, ok := members[memoryID]; !ok {
			continue
		}
		for other := range members {
			if other != memoryID {
				seen[other] = struct{}{}
			}
		}
	}
	candidates := make([]int64, 0, len(seen))
	for id := range seen {
		candidates = append(candidates, id)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] > candidates[j] })
	if len(candidates) > fanOut {
		candidates = candidates[:fanOut]
	}
	edges, ok := g.related[memoryID]
	if !ok {
		edges = make(map[int64]float64)
		g.related[memoryID] = edges
	}
	for _, other := range candidates {
		if _, exists := edges[other]; !exists {
			edges[other] = strength
		}
	}
	return nil
}

// MemoriesByEntities returns ids mentioning any named entity, newest first.
func (g *InMemoryGraph) MemoriesByEntities(_ context.Context, names []string, limit int) ([]int64, error) {
	if len(names) == 0 || limit <= 0 {
		return nil, nil
	}
	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		wanted[name] = struct{}{}
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	var ids []int64
	for memoryID, mentioned := range g.mentions {
		for name := range mentioned {
			if _, ok := wanted[name]; ok {
				ids = append(ids, memoryID)
				break
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Neighborhood walks RELATED_TO and FOLLOWS edges in both directions up to
// depth hops from the seed.
func (g *InMemoryGraph) Neighborhood(_ context.Context, seedID int64, depth, limit int) ([]int64, error) {
	if depth <= 0 || limit <= 0 {
		return nil, nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	visited := map[int64]struct{}{seedID: {}}
	frontier := []int64{seedID}
	var found []int64
	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []int64
		for _, id := range frontier {
			for _, neighbor := range g.neighborsLocked(id) {
				if _, ok := visited[neighbor]; ok {
					continue
				}
				visited[neighbor] = struct{}{}
				found = append(found, neighbor)
				next = append(next, neighbor)
			}
		}
		frontier = next
	}
	sort.Slice(found, func(i, j int) bool { return found[i] > found[j] })
	if len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func (g *InMemoryGraph) neighborsLocked(id int64) []int64 {
	var out []int64
	for other := range g.related[id] {
		out = append(out, other)
	}
	for src, edges := range g.related {
		if src == id {
			continue
		}
		if _, ok := edges[id]; ok {
			out = append(out, src)
		}
	}
	if prev, ok := g.follows[id]; ok {
		out = append(out, prev)
	}
	for src, dst := range g.follows {
		if dst == id {
			out = append(out, src)
		}
	}
	return out
}

// Stats counts nodes of all three kinds and all edges.
func (g *InMemoryGraph) Stats(_ context.Context) (GraphStats, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var stats GraphStats
	stats.Nodes = int64(len(g.payloads) + len(g.topics) + len(g.entities))
	for _, members := range g.topics {
		stats.Edges += int64(len(members))
	}
	for _, names := range g.mentions {
		stats.Edges += int64(len(names))
	}
	for _, edges := range g.related {
		stats.Edges += int64(len(edges))
	}
	stats.Edges += int64(len(g.follows))
	return stats, nil
}

// Clear drops all nodes and edges.
func (g *InMemoryGraph) Clear(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reset()
	return nil
}

// Close is a no-op for the in-memory store.
func (g *InMemoryGraph) Close(context.Context) error {
	return nil
}
