package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mnemo-ai/mnemo/pkg/memory/model"
)

// Neo4jAccessMode controls whether a session is opened for read or write
// operations.
type Neo4jAccessMode string

const (
	// AccessModeWrite opens a session with write access.
	AccessModeWrite Neo4jAccessMode = "write"
	// AccessModeRead opens a session with read access.
	AccessModeRead Neo4jAccessMode = "read"
)

// Neo4jSessionConfig mirrors the minimal subset of Neo4j session
// configuration we require.
type Neo4jSessionConfig struct {
	AccessMode   Neo4jAccessMode
	DatabaseName string
}

// neo4jDriver abstracts the Neo4j driver capabilities used by the store.
// Tests provide lightweight fakes without depending on the real driver
// package, which is guarded behind an optional build tag.
type neo4jDriver interface {
	NewSession(ctx context.Context, config Neo4jSessionConfig) (neo4jSession, error)
	Close(ctx context.Context) error
}

type neo4jSession interface {
	Run(ctx context.Context, query string, params map[string]any) (neo4jResult, error)
	Close(ctx context.Context) error
}

type neo4jResult interface {
	Next(ctx context.Context) bool
	Record() neo4jRecord
	Err() error
	Close(ctx context.Context) error
}

type neo4jRecord interface {
	Get(key string) (any, bool)
}

// Neo4jGraph implements GraphStore on a Neo4j database. All statements are
// MERGE-based so a retried sync never duplicates nodes or edges, and every
// value travels as a query parameter.
type Neo4jGraph struct {
	driver   neo4jDriver
	database string
}

var _ GraphStore = (*Neo4jGraph)(nil)

// NewNeo4jGraph constructs a graph store on the provided driver.
func NewNeo4jGraph(driver neo4jDriver, database string) (*Neo4jGraph, error) {
	if driver == nil {
		return nil, errors.New("neo4j driver is nil")
	}
	return &Neo4jGraph{driver: driver, database: database}, nil
}

// CreateSchema ensures uniqueness constraints for the three node kinds.
func (g *Neo4jGraph) CreateSchema(ctx context.Context) error {
	queries := []string{
		"CREATE CONSTRAINT IF NOT EXISTS FOR (m:Memory) REQUIRE m.id IS UNIQUE",
		"CREATE CONSTRAINT IF NOT EXISTS FOR (t:Topic) REQUIRE t.name IS UNIQUE",
		"CREATE CONSTRAINT IF NOT EXISTS FOR (e:Entity) REQUIRE e.name IS UNIQUE",
	}
	for _, query := range queries {
		if err := g.write(ctx, query, nil); err != nil {
			return fmt.Errorf("neo4j schema query: %w", err)
		}
	}
	return nil
}

const neo4jUpsertMemoryCypher = `
MERGE (m:Memory {id: $id})
ON CREATE SET m.created_at = $created_at
SET m.content = $content,
    m.category = $category,
    m.importance = $importance
`

// UpsertMemory merges the Memory node carrying the denormalized payload.
func (g *Neo4jGraph) UpsertMemory(ctx context.Context, p SyncPayload) error {
	if p.MemoryID == 0 {
		return nil
	}
	return g.write(ctx, neo4jUpsertMemoryCypher, map[string]any{
		"id":         p.MemoryID,
		"content":    p.Content,
		"category":   p.Category,
		"importance": string(p.Importance),
		"created_at": p.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

const neo4jLinkTopicCypher = `
MATCH (m:Memory {id: $id})
MERGE (t:Topic {name: $name})
MERGE (m)-[:` + string(model.EdgeHasTopic) + `]->(t)
`

// LinkTopics merges Topic nodes and HAS_TOPIC edges.
func (g *Neo4jGraph) LinkTopics(ctx context.Context, memoryID int64, topics []string) error {
	for _, topic := range topics {
		if topic == "" {
			continue
		}
		if err := g.write(ctx, neo4jLinkTopicCypher, map[string]any{"id": memoryID, "name": topic}); err != nil {
			return fmt.Errorf("link topic %q: %w", topic, err)
		}
	}
	return nil
}

const neo4jLinkEntityCypher = `
MATCH (m:Memory {id: $id})
MERGE (e:Entity {name: $name})
ON CREATE SET e.type = $type
MERGE (m)-[:` + string(model.EdgeMentions) + `]->(e)
`

// LinkEntities merges Entity nodes and MENTIONS edges.
func (g *Neo4jGraph) LinkEntities(ctx context.Context, memoryID int64, entities []model.Entity) error {
	for _, entity := range entities {
		if entity.Name == "" {
			continue
		}
		params := map[string]any{"id": memoryID, "name": entity.Name, "type": entity.Type}
		if err := g.write(ctx, neo4jLinkEntityCypher, params); err != nil {
			return fmt.Errorf("link entity %q: %w", entity.Name, err)
		}
	}
	return nil
}

const neo4jLinkFollowsCypher = `
MATCH (m:Memory {id: $id})
MATCH (prev:Memory)
WHERE prev.id < $id
WITH m, prev
ORDER BY prev.id DESC
LIMIT 1
MERGE (m)-[:` + string(model.EdgeFollows) + `]->(prev)
`

// LinkFollows links the memory to its immediate predecessor by id order.
func (g *Neo4jGraph) LinkFollows(ctx context.Context, memoryID int64) error {
	return g.write(ctx, neo4jLinkFollowsCypher, map[string]any{"id": memoryID})
}

const neo4jLinkRelatedCypher = `
MATCH (m:Memory {id: $id})-[:` + string(model.EdgeHasTopic) + `]->(:Topic)<-[:` + string(model.EdgeHasTopic) + `]-(other:Memory)
WHERE other.id <> $id
WITH DISTINCT m, other
ORDER BY other.id DESC
LIMIT $fan_out
MERGE (m)-[r:` + string(model.EdgeRelatedTo) + `]->(other)
ON CREATE SET r.strength = $strength
`

// LinkRelated links RELATED_TO edges to up to fanOut topic-sharing memories.
func (g *Neo4jGraph) LinkRelated(ctx context.Context, memoryID int64, fanOut int, strength float64) error {
	if fanOut <= 0 {
		return nil
	}
	return g.write(ctx, neo4jLinkRelatedCypher, map[string]any{
		"id":       memoryID,
		"fan_out":  fanOut,
		"strength": strength,
	})
}

const neo4jByEntitiesCypher = `
MATCH (m:Memory)-[:` + string(model.EdgeMentions) + `]->(e:Entity)
WHERE e.name IN $names
RETURN DISTINCT m.id AS id
ORDER BY id DESC
LIMIT $limit
`

// MemoriesByEntities returns ids of memories mentioning any named entity.
func (g *Neo4jGraph) MemoriesByEntities(ctx context.Context, names []string, limit int) ([]int64, error) {
	if len(names) == 0 || limit <= 0 {
		return nil, nil
	}
	return g.readIDs(ctx, neo4jByEntitiesCypher, map[string]any{"names": names, "limit": limit})
}

// Neighborhood returns ids reachable from the seed over RELATED_TO/FOLLOWS
// edges within depth hops. Cypher does not accept a parameter inside a
// variable-length pattern, so the clamped depth is inlined as an integer.
func (g *Neo4jGraph) Neighborhood(ctx context.Context, seedID int64, depth, limit int) ([]int64, error) {
	if depth <= 0 || limit <= 0 {
		return nil, nil
	}
	if depth > 5 {
		depth = 5
	}
	query := fmt.Sprintf(`
MATCH (start:Memory {id: $seed})
MATCH (start)-[:`+string(model.EdgeRelatedTo)+`|`+string(model.EdgeFollows)+`*1..%d]-(n:Memory)
WHERE n.id <> $seed
RETURN DISTINCT n.id AS id
ORDER BY id DESC
LIMIT $limit
`, depth)
	return g.readIDs(ctx, query, map[string]any{"seed": seedID, "limit": limit})
}

// Stats counts all nodes and relationships.
func (g *Neo4jGraph) Stats(ctx context.Context) (GraphStats, error) {
	if g.driver == nil {
		return GraphStats{}, ErrGraphUnavailable
	}
	session, err := g.driver.NewSession(ctx, Neo4jSessionConfig{AccessMode: AccessModeRead, DatabaseName: g.database})
	if err != nil {
		return GraphStats{}, fmt.Errorf("neo4j new session: %w", err)
	}
	defer session.Close(ctx)
	var stats GraphStats
	stats.Nodes, err = g.count(ctx, session, "MATCH (n) RETURN count(n) AS count")
	if err != nil {
		return GraphStats{}, err
	}
	stats.Edges, err = g.count(ctx, session, "MATCH ()-[r]->() RETURN count(r) AS count")
	if err != nil {
		return GraphStats{}, err
	}
	return stats, nil
}

// Clear removes every node and relationship.
func (g *Neo4jGraph) Clear(ctx context.Context) error {
	return g.write(ctx, "MATCH (n) DETACH DELETE n", nil)
}

// Close releases the underlying driver.
func (g *Neo4jGraph) Close(ctx context.Context) error {
	if g.driver == nil {
		return nil
	}
	return g.driver.Close(ctx)
}

func (g *Neo4jGraph) write(ctx context.Context, query string, params map[string]any) error {
	if g.driver == nil {
		return ErrGraphUnavailable
	}
	session, err := g.driver.NewSession(ctx, Neo4jSessionConfig{AccessMode: AccessModeWrite, DatabaseName: g.database})
	if err != nil {
		return fmt.Errorf("neo4j new session: %w", err)
	}
	defer session.Close(ctx)
	res, err := session.Run(ctx, query, params)
	if err != nil {
		return err
	}
	if res != nil {
		_ = res.Close(ctx)
	}
	return nil
}

func (g *Neo4jGraph) readIDs(ctx context.Context, query string, params map[string]any) ([]int64, error) {
	if g.driver == nil {
		return nil, ErrGraphUnavailable
	}
	session, err := g.driver.NewSession(ctx, Neo4jSessionConfig{AccessMode: AccessModeRead, DatabaseName: g.database})
	if err != nil {
		return nil, fmt.Errorf("neo4j new session: %w", err)
	}
	defer session.Close(ctx)
	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	defer result.Close(ctx)
	var ids []int64
	for result.Next(ctx) {
		rec := result.Record()
		if rec == nil {
			continue
		}
		if v, ok := rec.Get("id"); ok {
			if id := toInt64(v); id != 0 {
				ids = append(ids, id)
			}
		}
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (g *Neo4jGraph) count(ctx context.Context, session neo4jSession, query string) (int64, error) {
	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return 0, err
	}
	defer result.Close(ctx)
	if result.Next(ctx) {
		if rec := result.Record(); rec != nil {
			if v, ok := rec.Get("count"); ok {
				return toInt64(v), nil
			}
		}
	}
	return 0, result.Err()
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case float32:
		return int64(t)
	case float64:
		return int64(t)
	}
	return 0
}
