package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// ChromemConfig holds configuration for the embedded chromem-go store.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "~/.local/share/legisearch/vectorstore"
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// Collection is the chunk collection name.
	// Default: "uk_legislation"
	Collection string

	// VectorSize is the expected embedding dimension.
	// Must match the embedder's output dimension.
	// Default: 384
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.local/share/legisearch/vectorstore"
	}
	if c.Collection == "" {
		c.Collection = "uk_legislation"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// ChromemStore implements Store using chromem-go, an embeddable pure-Go
// vector database with gob-file persistence. No external service needed.
type ChromemStore struct {
	db       *chromem.DB
	embedder Embedder
	config   ChromemConfig
	logger   *zap.Logger
}

// NewChromemStore creates a ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	expandedPath, err := expandPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(expandedPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
	}

	db, err := chromem.NewPersistentDB(expandedPath, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	logger.Info("chromem store initialized",
		zap.String("path", expandedPath),
		zap.String("collection", config.Collection),
		zap.Int("vector_size", config.VectorSize),
	)

	return &ChromemStore{db: db, embedder: embedder, config: config, logger: logger}, nil
}

// expandPath expands ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// embeddingFunc adapts the Embedder to chromem's query-time interface.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

func (s *ChromemStore) collection() (*chromem.Collection, error) {
	coll, err := s.db.GetOrCreateCollection(s.config.Collection, nil, s.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", s.config.Collection, err)
	}
	return coll, nil
}

// AddChunks upserts embedded chunks. Embeddings are supplied precomputed so
// a write never triggers model inference inside the store.
func (s *ChromemStore) AddChunks(ctx context.Context, chunks []ChunkRecord) error {
	if len(chunks) == 0 {
		return ErrEmptyChunks
	}

	coll, err := s.collection()
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, len(chunks))
	for i, ch := range chunks {
		if ch.ID == "" {
			return fmt.Errorf("%w: chunk at index %d has no ID", ErrInvalidConfig, i)
		}
		docs[i] = chromem.Document{
			ID:        ch.ID,
			Content:   ch.Text,
			Embedding: ch.Embedding,
			Metadata: map[string]string{
				"document_id": ch.DocumentID,
				"chunk_index": strconv.Itoa(ch.Index),
				"title":       ch.Title,
				"identifier":  ch.Identifier,
				"url":         ch.URL,
			},
		}
	}

	if err := coll.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding %d chunks: %w", len(docs), err)
	}

	s.logger.Debug("chunks added",
		zap.String("document_id", chunks[0].DocumentID),
		zap.Int("count", len(chunks)),
	)
	return nil
}

// DeleteByDocument removes every chunk belonging to the document.
func (s *ChromemStore) DeleteByDocument(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("%w: document ID required", ErrInvalidConfig)
	}

	coll, err := s.collection()
	if err != nil {
		return err
	}
	if coll.Count() == 0 {
		return nil
	}

	if err := coll.Delete(ctx, map[string]string{"document_id": documentID}, nil); err != nil {
		return fmt.Errorf("deleting chunks for document %s: %w", documentID, err)
	}
	return nil
}

// Search embeds the query and returns the k nearest chunks.
func (s *ChromemStore) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", ErrInvalidConfig)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", ErrInvalidConfig)
	}

	coll, err := s.collection()
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults greater than the stored document count.
	if n := coll.Count(); n < k {
		if n == 0 {
			return nil, nil
		}
		k = n
	}

	results, err := coll.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			ID:         r.ID,
			DocumentID: r.Metadata["document_id"],
			Title:      r.Metadata["title"],
			Identifier: r.Metadata["identifier"],
			URL:        r.Metadata["url"],
			Text:       r.Content,
			Score:      r.Similarity,
		}
	}
	return out, nil
}

// Count returns the number of stored chunks.
func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	coll, err := s.collection()
	if err != nil {
		return 0, err
	}
	return coll.Count(), nil
}

// Close is a no-op: chromem persists synchronously on every write.
func (s *ChromemStore) Close() error {
	return nil
}
