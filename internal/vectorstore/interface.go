// Package vectorstore provides vector storage implementations for chunk
// embeddings.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyChunks indicates an empty or nil chunk batch.
	ErrEmptyChunks = errors.New("empty or nil chunks")

	// ErrConnectionFailed indicates the store backend is unreachable.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts, one per input,
	// in input order. Embedding of one text never depends on the others.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	// Models may optimize differently for queries vs documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChunkRecord is one embedded chunk as stored in the vector store.
//
// The payload carries enough metadata (document id, title, URL, text) to
// render a search result without a join back to the relational store.
type ChunkRecord struct {
	// ID is the stable chunk identifier "{document id}:{chunk index}".
	ID string

	// DocumentID is the parent document identifier.
	DocumentID string

	// Index is the chunk's position within the document.
	Index int

	// Text is the chunk text.
	Text string

	// Embedding is the precomputed vector for Text.
	Embedding []float32

	// Title, Identifier and URL describe the parent document.
	Title      string
	Identifier string
	URL        string
}

// SearchResult is one nearest-neighbor match.
type SearchResult struct {
	// ID is the chunk identifier.
	ID string

	// DocumentID, Title, Identifier and URL identify the parent document.
	DocumentID string
	Title      string
	Identifier string
	URL        string

	// Text is the stored chunk text.
	Text string

	// Score is the similarity score, higher is more similar.
	Score float32
}

// Store is the interface for chunk vector storage.
//
// A document's chunk set is always replaced wholesale: DeleteByDocument
// followed by AddChunks. Stores must make the pair idempotent so re-running
// the pipeline on unchanged content leaves the store byte-identical.
//
// Implementations:
//   - ChromemStore: embedded chromem-go with on-disk persistence (default)
//   - QdrantStore: external Qdrant over gRPC
type Store interface {
	// AddChunks upserts a batch of embedded chunks keyed by ChunkRecord.ID.
	AddChunks(ctx context.Context, chunks []ChunkRecord) error

	// DeleteByDocument removes every chunk belonging to the document.
	// Deleting a document with no stored chunks is not an error.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Search embeds the query and returns up to k nearest chunks,
	// ordered by similarity (highest first).
	Search(ctx context.Context, query string, k int) ([]SearchResult, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}
