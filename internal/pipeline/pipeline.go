// Package pipeline orchestrates the scrape, clean, chunk, embed, commit cycle.
//
// Per-document processing walks a fixed state machine:
//
//	Discovered -> Fetched -> Cleaned -> {Unchanged | ChunkingNeeded}
//	           -> Embedded -> Committed | Failed
//
// The commit is a saga across the two stores: relational upsert first, then
// wholesale replacement of the document's chunk vectors. When the vector
// write fails after the relational write succeeded, the relational content
// hash is rolled back to its previous value so a later run retries the
// document instead of treating a stale projection as current.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/legisearch/internal/chunker"
	"github.com/fyrsmithlabs/legisearch/internal/cleaner"
	"github.com/fyrsmithlabs/legisearch/internal/embeddings"
	"github.com/fyrsmithlabs/legisearch/internal/scraper"
	"github.com/fyrsmithlabs/legisearch/internal/store"
	"github.com/fyrsmithlabs/legisearch/internal/vectorstore"
	"go.uber.org/zap"
)

// ErrFailureThreshold is returned by Run when the per-document failure rate
// exceeds the configured threshold, a signal that the source may have changed
// format systemically.
var ErrFailureThreshold = errors.New("failure rate above threshold")

// Fetcher discovers and downloads documents.
type Fetcher interface {
	DiscoverDocuments(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// DocumentStore is the relational store surface the pipeline needs.
type DocumentStore interface {
	Get(ctx context.Context, id string) (*store.Document, error)
	Upsert(ctx context.Context, doc *store.Document) error
	SetContentHash(ctx context.Context, id, hash string) error
}

// ChunkStore is the vector store surface the pipeline needs.
type ChunkStore interface {
	AddChunks(ctx context.Context, chunks []vectorstore.ChunkRecord) error
	DeleteByDocument(ctx context.Context, documentID string) error
}

// Config holds orchestrator settings.
type Config struct {
	// Workers bounds document-level parallelism.
	Workers int

	// Month filters documents by their "made" date. Empty disables.
	Month string

	// ChunkSize and ChunkOverlap configure the chunker, in runes.
	ChunkSize    int
	ChunkOverlap int

	// EmbedBatchSize is the number of chunk texts per embedding call.
	EmbedBatchSize int

	// VectorWriteRetries caps attempts of the vector write inside a commit.
	VectorWriteRetries int

	// VectorRetryBackoff is the initial backoff between vector-write
	// attempts, doubled per attempt.
	VectorRetryBackoff time.Duration

	// FailureThreshold is the failed/total ratio above which Run returns
	// ErrFailureThreshold.
	FailureThreshold float64
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 1200
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 200
	}
	if c.EmbedBatchSize == 0 {
		c.EmbedBatchSize = 32
	}
	if c.VectorWriteRetries == 0 {
		c.VectorWriteRetries = 3
	}
	if c.VectorRetryBackoff == 0 {
		c.VectorRetryBackoff = time.Second
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 0.5
	}
}

// Pipeline drives ingestion for one configured scope.
type Pipeline struct {
	config   Config
	fetcher  Fetcher
	docs     DocumentStore
	vectors  ChunkStore
	embedder vectorstore.Embedder
	chunker  *chunker.Chunker
	logger   *zap.Logger
}

// New creates a Pipeline.
func New(config Config, fetcher Fetcher, docs DocumentStore, vectors ChunkStore, embedder vectorstore.Embedder, logger *zap.Logger) *Pipeline {
	config.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		config:   config,
		fetcher:  fetcher,
		docs:     docs,
		vectors:  vectors,
		embedder: embedder,
		chunker:  chunker.New(config.ChunkSize, config.ChunkOverlap),
		logger:   logger,
	}
}

// Run executes the full batch cycle for the configured scope.
//
// The returned error is non-nil only for run-fatal conditions: discovery
// structural failure, embedding model load failure, or a failure rate above
// the threshold. Per-document failures are reported in the Summary and never
// abort the batch.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{RunID: uuid.NewString()[:8], Started: time.Now()}
	defer func() {
		summary.Finished = time.Now()
		RunDuration.Observe(summary.Finished.Sub(summary.Started).Seconds())
	}()

	urls, err := p.fetcher.DiscoverDocuments(ctx)
	if err != nil {
		return summary, fmt.Errorf("discovery: %w", err)
	}
	p.logger.Info("run started",
		zap.String("run_id", summary.RunID),
		zap.Int("documents", len(urls)),
		zap.Int("workers", p.config.Workers),
	)

	var mu sync.Mutex
	record := func(o Outcome) {
		DocumentsTotal.WithLabelValues(string(o.Status)).Inc()
		mu.Lock()
		summary.Outcomes = append(summary.Outcomes, o)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Workers)
	for _, url := range urls {
		g.Go(func() error {
			outcome := p.processDocument(gctx, url)
			record(outcome)
			// Model load failure is fatal: nothing can be embedded.
			if outcome.Status == StatusFailed && errors.Is(outcome.Err, embeddings.ErrModelLoad) {
				return outcome.Err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, fmt.Errorf("run aborted: %w", err)
	}

	p.logger.Info("run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("committed", summary.Committed()),
		zap.Int("skipped_unchanged", summary.SkippedUnchanged()),
		zap.Int("skipped_filtered", summary.SkippedFiltered()),
		zap.Int("failed", summary.Failed()),
	)

	if rate := summary.FailureRate(); rate > p.config.FailureThreshold {
		return summary, fmt.Errorf("%w: %.0f%% of %d documents failed",
			ErrFailureThreshold, rate*100, len(summary.Outcomes))
	}
	return summary, nil
}

// processDocument walks one document through the state machine. It returns a
// terminal Outcome and never panics the run; the context is checked between
// steps so cancellation lets the current step finish cleanly.
func (p *Pipeline) processDocument(ctx context.Context, url string) Outcome {
	fail := func(docID, reason string, err error) Outcome {
		p.logger.Warn("document failed",
			zap.String("url", url),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return Outcome{URL: url, DocumentID: docID, Status: StatusFailed, Reason: reason, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return fail("", ReasonCancelled, err)
	}

	// Discovered -> Fetched
	html, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return fail("", ReasonFetch, err)
	}

	// Fetched -> Cleaned
	res, err := cleaner.Clean(html, url)
	if err != nil {
		return fail("", ReasonParse, err)
	}
	docID := cleaner.DocumentID(url)
	hash := store.ContentHash(res.Text)

	if !p.monthMatches(res.Metadata.DateMade) {
		return Outcome{URL: url, DocumentID: docID, Status: StatusSkippedFiltered}
	}

	// Cleaned -> {Unchanged | ChunkingNeeded}
	prevHash := ""
	existing, err := p.docs.Get(ctx, docID)
	switch {
	case err == nil:
		prevHash = existing.ContentHash
	case errors.Is(err, store.ErrNotFound):
	default:
		return fail(docID, ReasonStore, err)
	}
	if prevHash != "" && prevHash == hash {
		return Outcome{URL: url, DocumentID: docID, Status: StatusSkippedUnchanged}
	}

	if err := ctx.Err(); err != nil {
		return fail(docID, ReasonCancelled, err)
	}

	// ChunkingNeeded -> Embedded
	chunks := p.chunker.Split(docID, res.Text)
	if len(chunks) == 0 {
		return fail(docID, ReasonParse, fmt.Errorf("no chunks produced for %s", docID))
	}
	records, err := p.embedChunks(ctx, chunks, res.Metadata)
	if err != nil {
		return fail(docID, ReasonEmbedding, err)
	}

	if err := ctx.Err(); err != nil {
		return fail(docID, ReasonCancelled, err)
	}

	// Embedded -> Committed | Failed
	doc := &store.Document{
		ID:              docID,
		Title:           res.Metadata.Title,
		SourceURL:       url,
		Content:         res.Text,
		DocType:         res.Metadata.DocType,
		Year:            res.Metadata.Year,
		Number:          res.Metadata.Number,
		Identifier:      res.Metadata.Identifier,
		DateMade:        res.Metadata.DateMade,
		ComingIntoForce: res.Metadata.ComingIntoForce,
		LegislationType: res.Metadata.LegislationType,
		ContentHash:     hash,
	}
	if err := p.commit(ctx, doc, prevHash, records); err != nil {
		return fail(docID, ReasonVectorWrite, err)
	}

	ChunksEmbedded.Add(float64(len(records)))
	p.logger.Info("document committed",
		zap.String("document_id", docID),
		zap.Int("chunks", len(records)),
	)
	return Outcome{URL: url, DocumentID: docID, Status: StatusCommitted, Chunks: len(records)}
}

// monthMatches applies the configured month filter to a "made" date string
// such as "1st August 2024".
func (p *Pipeline) monthMatches(dateMade string) bool {
	if p.config.Month == "" {
		return true
	}
	return strings.Contains(strings.ToLower(dateMade), strings.ToLower(p.config.Month))
}

// embedChunks embeds chunk texts in batches. A failed batch is retried once;
// embedding of one chunk never depends on another.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []chunker.Chunk, meta cleaner.Metadata) ([]vectorstore.ChunkRecord, error) {
	records := make([]vectorstore.ChunkRecord, 0, len(chunks))
	for start := 0; start < len(chunks); start += p.config.EmbedBatchSize {
		end := start + p.config.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Text
		}

		vectors, err := p.embedder.EmbedDocuments(ctx, texts)
		if err != nil && !errors.Is(err, embeddings.ErrModelLoad) {
			p.logger.Warn("embedding batch failed, retrying once", zap.Error(err))
			vectors, err = p.embedder.EmbedDocuments(ctx, texts)
		}
		if err != nil {
			return nil, fmt.Errorf("embedding batch [%d:%d]: %w", start, end, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("%w: got %d vectors for %d chunks",
				embeddings.ErrEmbeddingFailed, len(vectors), len(batch))
		}

		for i, ch := range batch {
			records = append(records, vectorstore.ChunkRecord{
				ID:         ch.ID(),
				DocumentID: ch.DocumentID,
				Index:      ch.Index,
				Text:       ch.Text,
				Embedding:  vectors[i],
				Title:      meta.Title,
				Identifier: meta.Identifier,
				URL:        meta.SourceURL,
			})
		}
	}
	return records, nil
}

// commit performs the dual-store saga: relational upsert, then wholesale
// replacement of the document's chunk vectors with bounded retries. On
// exhausted retries the relational hash is rolled back to prevHash so no
// reader ever observes a hash claiming "current" over a stale projection.
func (p *Pipeline) commit(ctx context.Context, doc *store.Document, prevHash string, records []vectorstore.ChunkRecord) error {
	if err := p.docs.Upsert(ctx, doc); err != nil {
		return fmt.Errorf("relational upsert: %w", err)
	}

	var lastErr error
	backoff := p.config.VectorRetryBackoff
	for attempt := 1; attempt <= p.config.VectorWriteRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				lastErr = ctx.Err()
				break
			}
			backoff *= 2
		}
		if lastErr = p.replaceChunks(ctx, doc.ID, records); lastErr == nil {
			return nil
		}
		p.logger.Warn("vector write failed",
			zap.String("document_id", doc.ID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
	}

	// Compensating action: the relational record must not claim a content
	// version whose vectors are absent.
	VectorRollbacks.Inc()
	rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if rbErr := p.docs.SetContentHash(rollbackCtx, doc.ID, prevHash); rbErr != nil {
		return fmt.Errorf("vector write failed (%v) and hash rollback failed: %w", lastErr, rbErr)
	}
	return fmt.Errorf("vector write failed after %d attempts, hash rolled back: %w",
		p.config.VectorWriteRetries, lastErr)
}

// replaceChunks swaps the document's full chunk set in the vector store.
func (p *Pipeline) replaceChunks(ctx context.Context, docID string, records []vectorstore.ChunkRecord) error {
	if err := p.vectors.DeleteByDocument(ctx, docID); err != nil {
		return fmt.Errorf("deleting stale chunks: %w", err)
	}
	if err := p.vectors.AddChunks(ctx, records); err != nil {
		return fmt.Errorf("adding chunks: %w", err)
	}
	return nil
}

// NewScraperFetcher adapts a Scraper to the Fetcher interface.
func NewScraperFetcher(s *scraper.Scraper) Fetcher { return s }
