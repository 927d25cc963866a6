// Package embeddings provides embedding generation for chunk texts and
// queries via a local ONNX model.
package embeddings

import (
	"errors"

	"github.com/fyrsmithlabs/legisearch/internal/vectorstore"
)

// Sentinel errors for embedding operations.
var (
	// ErrInvalidConfig indicates invalid provider configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyInput indicates empty text input.
	ErrEmptyInput = errors.New("empty input")

	// ErrEmbeddingFailed indicates model inference failure.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrModelLoad indicates the model could not be loaded. This is fatal
	// to a pipeline run: nothing can be embedded without the model.
	ErrModelLoad = errors.New("model load failed")
)

// Provider is the interface for embedding providers.
type Provider interface {
	vectorstore.Embedder
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Model is the embedding model name.
	Model string
	// CacheDir is the model cache directory.
	CacheDir string
	// BatchSize is the number of texts embedded per inference call.
	BatchSize int
}

// NewProvider creates a FastEmbed provider from the configuration.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	return NewFastEmbedProvider(FastEmbedConfig{
		Model:     cfg.Model,
		CacheDir:  cfg.CacheDir,
		BatchSize: cfg.BatchSize,
	})
}
