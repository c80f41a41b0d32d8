package store

import (
	"context"
)

// Point is one record in a collection: a vector plus an arbitrary payload,
// addressed by a caller-chosen id (UUID string).
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// ScoredPoint is a search match with its similarity score.
type ScoredPoint struct {
	Point Point
	Score float32
}

// Gateway is the contract to the external vector store. Every call may fail
// (store unreachable, collection missing); callers treat a failure as zero
// effect, log it, and continue — no retries at this layer.
type Gateway interface {
	// EnsureCollection creates the collection if it does not exist. Idempotent.
	EnsureCollection(ctx context.Context, name string, vectorDimension int) error

	// Upsert inserts or replaces points by id. Idempotent by id.
	Upsert(ctx context.Context, collection string, points []Point) error

	// DeleteByFilter removes every point whose payload field exactly matches value.
	DeleteByFilter(ctx context.Context, collection, field, value string) error

	// DeleteByIDs removes points by id.
	DeleteByIDs(ctx context.Context, collection string, ids []string) error

	// Count returns the number of points in the collection.
	Count(ctx context.Context, collection string) (uint64, error)

	// RetrieveByID fetches points (with payload) by id. Missing ids are omitted.
	RetrieveByID(ctx context.Context, collection string, ids []string) ([]Point, error)

	// ListCollections returns the names of all collections in the store.
	ListCollections(ctx context.Context) ([]string, error)

	// Search returns up to limit points ranked by similarity to the vector.
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredPoint, error)

	// DeleteCollection drops the collection and everything in it.
	DeleteCollection(ctx context.Context, name string) error

	// Close releases the underlying connection.
	Close() error
}
