// Package vector persists and searches chunk embeddings.
package vector

import (
	"context"

	"github.com/kart-io/ragx/internal/model"
)

// Store is the vector store used by the ingest and query pipelines.
// Records are idempotent by chunk key within (collection, partition).
type Store interface {
	// EnsureCollection creates the collection with the pipeline schema
	// when it does not exist yet.
	EnsureCollection(ctx context.Context, collection string, dim int) error

	// Upsert writes records, replacing rows with the same chunk key.
	Upsert(ctx context.Context, collection, partition string, records []model.VectorRecord) error

	// Search runs a dense similarity search and drops hits at or below
	// threshold.
	Search(ctx context.Context, collection, partition string, vec []float32, topK int, threshold float64) ([]model.RetrievedChunk, error)

	// SearchSparse runs a sparse similarity search with the same cutoff.
	SearchSparse(ctx context.Context, collection, partition string, sparse map[uint32]float32, topK int, threshold float64) ([]model.RetrievedChunk, error)

	// Delete removes rows matching the boolean expression.
	Delete(ctx context.Context, collection, partition, expr string) error

	// Count returns the number of rows in the collection.
	Count(ctx context.Context, collection string) (int64, error)
}
