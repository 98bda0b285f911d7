//go:build neo4j

package store

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// OpenNeo4jGraph dials a Neo4j server and returns a graph store on it.
// Available only when building with the neo4j tag.
func OpenNeo4jGraph(uri, username, password, database string) (*Neo4jGraph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}
	return NewNeo4jGraph(WrapNeo4jDriver(driver), database)
}

// WrapNeo4jDriver adapts a real neo4j.DriverWithContext to the internal
// driver interfaces.
func WrapNeo4jDriver(driver neo4j.DriverWithContext) neo4jDriver {
	return &neo4jDriverAdapter{driver: driver}
}

type neo4jDriverAdapter struct {
	driver neo4j.DriverWithContext
}

func (a *neo4jDriverAdapter) NewSession(ctx context.Context, cfg Neo4jSessionConfig) (neo4jSession, error) {
	mode := neo4j.AccessModeWrite
	if cfg.AccessMode == AccessModeRead {
		mode = neo4j.AccessModeRead
	}
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: cfg.DatabaseName,
	})
	return &neo4jSessionAdapter{session: session}, nil
}

func (a *neo4jDriverAdapter) Close(ctx context.Context) error {
	return a.driver.Close(ctx)
}

type neo4jSessionAdapter struct {
	session neo4j.SessionWithContext
}

func (s *neo4jSessionAdapter) Run(ctx context.Context, query string, params map[string]any) (neo4jResult, error) {
	result, err := s.session.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return &neo4jResultAdapter{result: result}, nil
}

func (s *neo4jSessionAdapter) Close(ctx context.Context) error {
	return s.session.Close(ctx)
}

type neo4jResultAdapter struct {
	result neo4j.ResultWithContext
}

func (r *neo4jResultAdapter) Next(ctx context.Context) bool {
	return r.result.Next(ctx)
}

func (r *neo4jResultAdapter) Record() neo4jRecord {
	rec := r.result.Record()
	if rec == nil {
		return nil
	}
	return &neo4jRecordAdapter{record: rec}
}

func (r *neo4jResultAdapter) Err() error {
	return r.result.Err()
}

func (r *neo4jResultAdapter) Close(ctx context.Context) error {
	_, err := r.result.Consume(ctx)
	return err
}

type neo4jRecordAdapter struct {
	record *neo4j.Record
}

func (r *neo4jRecordAdapter) Get(key string) (any, bool) {
	return r.record.Get(key)
}
