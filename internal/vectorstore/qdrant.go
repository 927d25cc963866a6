package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	// Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port (not the HTTP REST port).
	// Default: 6334
	Port int

	// Collection is the chunk collection name.
	Collection string

	// VectorSize is the embedding dimension. Must match the embedder.
	VectorSize uint64

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB, to handle large chunk batches.
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// QdrantStore implements Store over Qdrant's gRPC API.
//
// Qdrant point IDs must be UUIDs or integers, so chunk identifiers are mapped
// to deterministic UUIDv5 values; the original chunk ID lives in the payload.
// Determinism keeps upserts idempotent across re-runs.
type QdrantStore struct {
	client   *qdrant.Client
	embedder Embedder
	config   QdrantConfig
	logger   *zap.Logger
}

// NewQdrantStore creates a QdrantStore and ensures the collection exists.
func NewQdrantStore(ctx context.Context, config QdrantConfig, embedder Embedder, logger *zap.Logger) (*QdrantStore, error) {
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

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &QdrantStore{client: client, embedder: embedder, config: config, logger: logger}
	if err := store.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("qdrant store initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("collection", config.Collection),
	)
	return store, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.config.Collection)
	if err != nil {
		return fmt.Errorf("%w: checking collection: %v", ErrConnectionFailed, err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.config.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.config.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.config.Collection, err)
	}
	return nil
}

// pointID maps a chunk ID to a deterministic Qdrant UUID.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

// IsTransientError reports whether a Qdrant error is worth retrying.
func IsTransientError(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.ResourceExhausted, grpccodes.Aborted:
		return true
	}
	return false
}

// AddChunks upserts embedded chunks.
func (s *QdrantStore) AddChunks(ctx context.Context, chunks []ChunkRecord) error {
	if len(chunks) == 0 {
		return ErrEmptyChunks
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, ch := range chunks {
		if ch.ID == "" {
			return fmt.Errorf("%w: chunk at index %d has no ID", ErrInvalidConfig, i)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(ch.ID)),
			Vectors: qdrant.NewVectors(ch.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"chunk_id":    ch.ID,
				"document_id": ch.DocumentID,
				"chunk_index": int64(ch.Index),
				"text":        ch.Text,
				"title":       ch.Title,
				"identifier":  ch.Identifier,
				"url":         ch.URL,
			}),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.config.Collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("upserting %d points: %w", len(points), err)
	}

	s.logger.Debug("chunks upserted",
		zap.String("document_id", chunks[0].DocumentID),
		zap.Int("count", len(chunks)),
	)
	return nil
}

// DeleteByDocument removes every chunk belonging to the document via a
// payload filter, so stale higher-index chunks from a longer previous
// version cannot survive a re-scrape.
func (s *QdrantStore) DeleteByDocument(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("%w: document ID required", ErrInvalidConfig)
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.config.Collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("document_id", documentID),
			},
		}),
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("deleting chunks for document %s: %w", documentID, err)
	}
	return nil
}

// Search embeds the query and returns the k nearest chunks.
func (s *QdrantStore) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", ErrInvalidConfig)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", ErrInvalidConfig)
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.config.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	out := make([]SearchResult, len(points))
	for i, p := range points {
		payload := p.GetPayload()
		out[i] = SearchResult{
			ID:         payload["chunk_id"].GetStringValue(),
			DocumentID: payload["document_id"].GetStringValue(),
			Title:      payload["title"].GetStringValue(),
			Identifier: payload["identifier"].GetStringValue(),
			URL:        payload["url"].GetStringValue(),
			Text:       payload["text"].GetStringValue(),
			Score:      p.GetScore(),
		}
	}
	return out, nil
}

// Count returns the number of stored chunks.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.config.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return int(count), nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
