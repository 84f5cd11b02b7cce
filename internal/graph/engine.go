package graph

import (
	"context"
	"fmt"
	"time"

	apperrors "graphmem/pkg/errors"
)

// The storage engine is an external collaborator: it executes statement text
// and returns ordered rows of named columns. Everything the core needs from
// it fits in these two interfaces.

// Row is one result row keyed by the column aliases the statement asked for.
type Row map[string]any

// StringColumn returns the named column as a string, failing loudly when the
// engine's row shape does not match the statement's RETURN contract.
func (r Row) StringColumn(col string) (string, error) {
	val, ok := r[col]
	if !ok {
		return "", apperrors.NewResultShape(col, "missing from result row")
	}
	if val == nil {
		return "", apperrors.NewResultShape(col, "is null")
	}
	s, ok := val.(string)
	if !ok {
		return "", apperrors.NewResultShape(col, fmt.Sprintf("expected string, got %T", val))
	}
	return s, nil
}

// TimeColumn returns the named column as a timestamp. Timestamps are
// persisted as RFC3339 strings; engines that map them back to native time
// values are tolerated.
func (r Row) TimeColumn(col string) (time.Time, error) {
	val, ok := r[col]
	if !ok {
		return time.Time{}, apperrors.NewResultShape(col, "missing from result row")
	}
	switch v := val.(type) {
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, apperrors.NewResultShape(col, fmt.Sprintf("not an RFC3339 timestamp: %q", v))
		}
		return t, nil
	case time.Time:
		return v.UTC(), nil
	default:
		return time.Time{}, apperrors.NewResultShape(col, fmt.Sprintf("expected timestamp, got %T", val))
	}
}

// QuerySession executes statements against the engine. A session is owned by
// exactly one Store and is not safe for concurrent use.
type QuerySession interface {
	// Execute runs a single statement and returns its rows in order.
	Execute(ctx context.Context, statement string) ([]Row, error)
	// ExecuteGroup runs statements as one transaction: all commit or none do.
	ExecuteGroup(ctx context.Context, statements []string) error
	// Close releases the session.
	Close(ctx context.Context) error
}

// Engine opens sessions against the underlying graph store.
type Engine interface {
	OpenSession(ctx context.Context) (QuerySession, error)
	Close(ctx context.Context) error
}
