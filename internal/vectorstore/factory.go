package vectorstore

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/legisearch/internal/config"
	"go.uber.org/zap"
)

// NewStore creates a Store based on the configuration.
//
// The factory examines VectorStoreConfig.Provider:
//   - "chromem" (default): embedded ChromemStore, no external service
//   - "qdrant": external Qdrant server over gRPC
//
// Example usage:
//
//	store, err := vectorstore.NewStore(ctx, cfg, embedder, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
func NewStore(ctx context.Context, cfg *config.Config, embedder Embedder, logger *zap.Logger) (Store, error) {
	switch cfg.VectorStore.Provider {
	case "chromem", "":
		return NewChromemStore(ChromemConfig{
			Path:       cfg.VectorStore.Path,
			Collection: cfg.VectorStore.Collection,
			VectorSize: cfg.VectorStore.VectorSize,
		}, embedder, logger)

	case "qdrant":
		return NewQdrantStore(ctx, QdrantConfig{
			Host:       cfg.VectorStore.Host,
			Port:       cfg.VectorStore.Port,
			Collection: cfg.VectorStore.Collection,
			VectorSize: uint64(cfg.VectorStore.VectorSize),
		}, embedder, logger)

	default:
		return nil, fmt.Errorf("unsupported vectorstore provider: %s (supported: chromem, qdrant)", cfg.VectorStore.Provider)
	}
}
