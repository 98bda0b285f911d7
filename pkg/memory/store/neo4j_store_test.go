package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mnemo-ai/mnemo/pkg/memory/model"
)

type runCall struct {
	query  string
	params map[string]any
}

type fakeDriver struct {
	calls  []runCall
	rows   []map[string]any
	closed bool
}

func (d *fakeDriver) NewSession(_ context.Context, _ Neo4jSessionConfig) (neo4jSession, error) {
	return &fakeSession{driver: d}, nil
}

func (d *fakeDriver) Close(context.Context) error {
	d.closed = true
	return nil
}

type fakeSession struct {
	driver *fakeDriver
}

func (s *fakeSession) Run(_ context.Context, query string, params map[string]any) (neo4jResult, error) {
	s.driver.calls = append(s.driver.calls, runCall{query: query, params: params})
	return &fakeResult{rows: s.driver.rows}, nil
}

func (s *fakeSession) Close(context.Context) error { return nil }

type fakeResult struct {
	rows []map[string]any
	idx  int
}

func (r *fakeResult) Next(context.Context) bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeResult) Record() neo4jRecord {
	return fakeRecord(r.rows[r.idx-1])
}

func (r *fakeResult) Err() error                  { return nil }
func (r *fakeResult) Close(context.Context) error { return nil }

type fakeRecord map[string]any

func (r fakeRecord) Get(key string) (any, bool) {
	v, ok := r[key]
	return v, ok
}

func newFakeGraph(t *testing.T) (*Neo4jGraph, *fakeDriver) {
	t.Helper()
	driver := &fakeDriver{}
	g, err := NewNeo4jGraph(driver, "neo4j")
	if err != nil {
		t.Fatalf("new graph: %v", err)
	}
	return g, driver
}

func lastCall(t *testing.T, d *fakeDriver) runCall {
	t.Helper()
	if len(d.calls) == 0 {
		t.Fatalf("no statements executed")
	}
	return d.calls[len(d.calls)-1]
}

func TestNeo4jUpsertMemoryParameterized(t *testing.T) {
	g, driver := newFakeGraph(t)
	p := SyncPayload{
		MemoryID:   7,
		Content:    `tricky "content" with $signs`,
		Category:   "work",
		Importance: model.ImportanceHigh,
		CreatedAt:  time.Unix(1700000000, 0).UTC(),
	}
	if err := g.UpsertMemory(context.Background(), p); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	call := lastCall(t, driver)
	if !strings.Contains(call.query, "MERGE (m:Memory {id: $id})") {
		t.Fatalf("expected MERGE on id, got %q", call.query)
	}
	if strings.Contains(call.query, "tricky") {
		t.Fatalf("content leaked into query text")
	}
	if call.params["id"] != int64(7) || call.params["content"] != p.Content {
		t.Fatalf("params mismatch: %v", call.params)
	}
}

func TestNeo4jLinkTopicsOneStatementPerTopic(t *testing.T) {
	g, driver := newFakeGraph(t)
	if err := g.LinkTopics(context.Background(), 7, []string{"Database", "", "Testing"}); err != nil {
		t.Fatalf("link topics: %v", err)
	}
	if len(driver.calls) != 2 {
		t.Fatalf("expected 2 statements (empty topic skipped), got %d", len(driver.calls))
	}
	if driver.calls[0].params["name"] != "Database" {
		t.Fatalf("unexpected params: %v", driver.calls[0].params)
	}
}

func TestNeo4jLinkEntitiesSetsTypeOnCreate(t *testing.T) {
	g, driver := newFakeGraph(t)
	entities := []model.Entity{{Name: "PostgreSQL", Type: model.EntityTechnology}}
	if err := g.LinkEntities(context.Background(), 7, entities); err != nil {
		t.Fatalf("link entities: %v", err)
	}
	call := lastCall(t, driver)
	if !strings.Contains(call.query, "ON CREATE SET e.type = $type") {
		t.Fatalf("entity type must only be set on create: %q", call.query)
	}
	if call.params["type"] != model.EntityTechnology {
		t.Fatalf("unexpected params: %v", call.params)
	}
}

func TestNeo4jLinkRelatedCarriesStrength(t *testing.T) {
	g, driver := newFakeGraph(t)
	if err := g.LinkRelated(context.Background(), 7, 5, 0.5); err != nil {
		t.Fatalf("link related: %v", err)
	}
	call := lastCall(t, driver)
	if call.params["fan_out"] != 5 || call.params["strength"] != 0.5 {
		t.Fatalf("unexpected params: %v", call.params)
	}
	if !strings.Contains(call.query, "ON CREATE SET r.strength") {
		t.Fatalf("strength must only be stamped on create: %q", call.query)
	}
}

func TestNeo4jMemoriesByEntitiesReadsIDs(t *testing.T) {
	g, driver := newFakeGraph(t)
	driver.rows = []map[string]any{{"id": int64(9)}, {"id": int64(3)}}
	ids, err := g.MemoriesByEntities(context.Background(), []string{"Docker"}, 10)
	if err != nil {
		t.Fatalf("by entities: %v", err)
	}
	if len(ids) != 2 || ids[0] != 9 || ids[1] != 3 {
		t.Fatalf("expected [9 3], got %v", ids)
	}
	if _, err := g.MemoriesByEntities(context.Background(), nil, 10); err != nil {
		t.Fatalf("empty names must be a no-op: %v", err)
	}
}

func TestNeo4jNeighborhoodClampsDepth(t *testing.T) {
	g, driver := newFakeGraph(t)
	if _, err := g.Neighborhood(context.Background(), 7, 99, 10); err != nil {
		t.Fatalf("neighborhood: %v", err)
	}
	call := lastCall(t, driver)
	if !strings.Contains(call.query, "*1..5]") {
		t.Fatalf("depth not clamped to 5: %q", call.query)
	}
}

func TestNeo4jStatsCounts(t *testing.T) {
	g, driver := newFakeGraph(t)
	driver.rows = []map[string]any{{"count": int64(12)}}
	stats, err := g.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Nodes != 12 || stats.Edges != 12 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestNeo4jCloseReleasesDriver(t *testing.T) {
	g, driver := newFakeGraph(t)
	if err := g.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !driver.closed {
		t.Fatalf("driver not closed")
	}
}
