package graph

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	apperrors "graphmem/pkg/errors"
	"graphmem/pkg/logger"
)

// Resolver maps raw mention strings to canonical entity nodes so the graph
// never grows a second node for a name it already knows. Resolution order:
// in-memory index, then a canonical-key lookup against the graph, then a new
// node. Distinct canonical keys are never merged; there is no fuzzy matching.

// CanonicalKey normalizes an entity name for resolution: lowercased, trimmed,
// internal whitespace collapsed to single spaces.
func CanonicalKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Resolution is the outcome of resolving one mention. When Created is true
// the node does not exist in the graph yet: the caller must insert Node and,
// once the insert has committed, call Remember.
type Resolution struct {
	Kind    NodeKind
	ID      string
	Key     string
	Name    string
	Created bool
	Node    EntityNode
}

type indexKey struct {
	kind NodeKind
	key  string
}

// Resolver resolves mentions against the store and an in-process index.
type Resolver struct {
	store  *Store
	logger *zap.Logger

	mu    sync.Mutex
	index map[indexKey]EntityRef
}

// NewResolver creates a resolver backed by the given store.
func NewResolver(store *Store) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger.Get(),
		index:  make(map[indexKey]EntityRef),
	}
}

// Resolve maps a mention to an entity node identifier. New nodes are not
// added to the index here; callers confirm them with Remember after the
// insert has durably committed, so a failed write group leaves no stale
// index entry behind.
func (r *Resolver) Resolve(ctx context.Context, kind NodeKind, mention string) (Resolution, error) {
	key := CanonicalKey(mention)
	if key == "" {
		return Resolution{}, apperrors.NewValidation("mention", "empty after normalization")
	}

	r.mu.Lock()
	ref, hit := r.index[indexKey{kind: kind, key: key}]
	r.mu.Unlock()
	if hit {
		return Resolution{Kind: kind, ID: ref.ID, Key: key, Name: ref.Name}, nil
	}

	ref, found, err := r.store.LookupEntity(ctx, kind, key)
	if err != nil {
		return Resolution{}, err
	}
	if found {
		r.mu.Lock()
		r.index[indexKey{kind: kind, key: key}] = ref
		r.mu.Unlock()
		return Resolution{Kind: kind, ID: ref.ID, Key: key, Name: ref.Name}, nil
	}

	node, err := NewEntityNode(kind, key, strings.TrimSpace(mention))
	if err != nil {
		return Resolution{}, err
	}
	r.logger.Debug("Allocating new entity node",
		zap.String("kind", string(kind)),
		zap.String("key", key),
	)
	return Resolution{
		Kind:    kind,
		ID:      node.ID,
		Key:     key,
		Name:    node.Name,
		Created: true,
		Node:    node,
	}, nil
}

// Remember records a created resolution in the index once its node has been
// persisted.
func (r *Resolver) Remember(res Resolution) {
	r.mu.Lock()
	r.index[indexKey{kind: res.Kind, key: res.Key}] = EntityRef{
		ID:   res.ID,
		Kind: res.Kind,
		Name: res.Name,
	}
	r.mu.Unlock()
}
