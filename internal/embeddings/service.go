package embeddings

import (
	"context"
	"fmt"
	"sync"
)

// Service wraps a Provider with lazy, load-once initialization.
//
// The embedding model is loaded on the first embed call and reused for the
// life of the process. Load failure is sticky: every later call returns the
// same error, since a run that cannot load the model cannot embed anything.
//
// The factory is injectable so tests can substitute a stub provider.
type Service struct {
	factory func() (Provider, error)

	once     sync.Once
	provider Provider
	initErr  error
}

// NewService creates a Service that builds its provider from cfg on first use.
func NewService(cfg ProviderConfig) *Service {
	return &Service{factory: func() (Provider, error) { return NewProvider(cfg) }}
}

// NewServiceWithFactory creates a Service with a custom provider factory.
func NewServiceWithFactory(factory func() (Provider, error)) *Service {
	return &Service{factory: factory}
}

// init loads the model exactly once.
func (s *Service) init() error {
	s.once.Do(func() {
		s.provider, s.initErr = s.factory()
	})
	return s.initErr
}

// Ready reports whether the model has been loaded successfully.
func (s *Service) Ready() bool {
	return s.provider != nil && s.initErr == nil
}

// Init eagerly loads the model. Optional: embed calls load lazily.
func (s *Service) Init() error {
	return s.init()
}

// EmbedDocuments embeds a batch of chunk texts, loading the model on first use.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	vectors, err := s.provider.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vectors), len(texts))
	}
	return vectors, nil
}

// EmbedQuery embeds a single query, loading the model on first use.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	return s.provider.EmbedQuery(ctx, text)
}

// Dimension returns the model's embedding dimension, loading it if needed.
func (s *Service) Dimension() (int, error) {
	if err := s.init(); err != nil {
		return 0, err
	}
	return s.provider.Dimension(), nil
}

// Close releases the provider if it was loaded.
func (s *Service) Close() error {
	if s.provider != nil {
		return s.provider.Close()
	}
	return nil
}
