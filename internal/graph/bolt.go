package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// BoltEngine adapts a Bolt-protocol graph driver to the Engine contract.
type BoltEngine struct {
	driver neo4j.DriverWithContext
}

// NewBoltEngine wraps an already-connected driver. The caller owns driver
// construction and connectivity verification.
func NewBoltEngine(driver neo4j.DriverWithContext) *BoltEngine {
	return &BoltEngine{driver: driver}
}

// OpenSession opens a write-capable session.
func (e *BoltEngine) OpenSession(ctx context.Context) (QuerySession, error) {
	session := e.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	return &boltSession{session: session}, nil
}

// Close closes the underlying driver.
func (e *BoltEngine) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}

type boltSession struct {
	session neo4j.SessionWithContext
}

func (s *boltSession) Execute(ctx context.Context, statement string) ([]Row, error) {
	result, err := s.session.Run(ctx, statement, nil)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for result.Next(ctx) {
		record := result.Record()
		row := make(Row, len(record.Keys))
		for i, key := range record.Keys {
			row[key] = record.Values[i]
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *boltSession) ExecuteGroup(ctx context.Context, statements []string) error {
	tx, err := s.session.BeginTransaction(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, statement := range statements {
		if _, err := tx.Run(ctx, statement, nil); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("statement failed, group rolled back: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit write group: %w", err)
	}
	return nil
}

func (s *boltSession) Close(ctx context.Context) error {
	return s.session.Close(ctx)
}
