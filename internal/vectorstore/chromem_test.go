package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubEmbedder returns deterministic vectors keyed on text length so
// similarity ordering is stable without a real model.
type stubEmbedder struct{ dim int }

func (e *stubEmbedder) embed(text string) []float32 {
	v := make([]float32, e.dim)
	for i, r := range text {
		v[i%e.dim] += float32(r) / 1000
	}
	return v
}

func (e *stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func newTestStore(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(ChromemConfig{
		Path:       t.TempDir(),
		Collection: "test_chunks",
		VectorSize: 8,
	}, &stubEmbedder{dim: 8}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func chunkFixture(docID string, n int) []ChunkRecord {
	e := &stubEmbedder{dim: 8}
	chunks := make([]ChunkRecord, n)
	for i := range chunks {
		text := fmt.Sprintf("chunk %d of %s about planning law", i, docID)
		chunks[i] = ChunkRecord{
			ID:         fmt.Sprintf("%s:%d", docID, i),
			DocumentID: docID,
			Index:      i,
			Text:       text,
			Embedding:  e.embed(text),
			Title:      "Test Regulations 2024",
			Identifier: "2024 No. 1",
			URL:        "https://www.legislation.gov.uk/" + docID + "/made",
		}
	}
	return chunks
}

func TestChromemAddAndCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddChunks(ctx, chunkFixture("uksi/2024/1", 3)))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestChromemAddEmpty(t *testing.T) {
	store := newTestStore(t)
	assert.ErrorIs(t, store.AddChunks(context.Background(), nil), ErrEmptyChunks)
}

func TestChromemAddIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	chunks := chunkFixture("uksi/2024/1", 3)

	require.NoError(t, store.AddChunks(ctx, chunks))
	require.NoError(t, store.AddChunks(ctx, chunks))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "re-adding the same chunk IDs must not grow the store")
}

func TestChromemDeleteByDocument(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddChunks(ctx, chunkFixture("uksi/2024/1", 4)))
	require.NoError(t, store.AddChunks(ctx, chunkFixture("uksi/2024/2", 2)))

	require.NoError(t, store.DeleteByDocument(ctx, "uksi/2024/1"))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Remaining chunks all belong to the surviving document.
	results, err := store.Search(ctx, "planning law", 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "uksi/2024/2", r.DocumentID)
	}
}

func TestChromemDeleteUnknownDocument(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.DeleteByDocument(context.Background(), "uksi/1999/999"))
}

func TestChromemReplaceShrinksChunkSet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddChunks(ctx, chunkFixture("uksi/2024/1", 5)))
	// Re-scrape produced a shorter document: replace wholesale.
	require.NoError(t, store.DeleteByDocument(ctx, "uksi/2024/1"))
	require.NoError(t, store.AddChunks(ctx, chunkFixture("uksi/2024/1", 2)))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "stale higher-index chunks must not survive")
}

func TestChromemSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddChunks(ctx, chunkFixture("uksi/2024/1", 3)))

	results, err := store.Search(ctx, "chunk 1 of uksi/2024/1 about planning law", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "uksi/2024/1:1", results[0].ID)
	assert.Equal(t, "Test Regulations 2024", results[0].Title)
	assert.Equal(t, "2024 No. 1", results[0].Identifier)
	assert.NotEmpty(t, results[0].URL)
	assert.NotEmpty(t, results[0].Text)
}

func TestChromemSearchEmptyStore(t *testing.T) {
	store := newTestStore(t)
	results, err := store.Search(context.Background(), "anything", 4)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemSearchClampsK(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddChunks(ctx, chunkFixture("uksi/2024/1", 2)))

	results, err := store.Search(ctx, "planning", 50)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestNewChromemStoreRequiresEmbedder(t *testing.T) {
	_, err := NewChromemStore(ChromemConfig{Path: t.TempDir()}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "uk_legislation", false},
		{"valid with digits", "chunks_2024", false},
		{"empty", "", true},
		{"uppercase", "UK_Legislation", true},
		{"slash", "uk/legislation", true},
		{"too long", strings.Repeat("a", 70), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCollectionName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPointIDDeterministic(t *testing.T) {
	a := pointID("uksi/2024/1:0")
	b := pointID("uksi/2024/1:0")
	c := pointID("uksi/2024/1:1")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
