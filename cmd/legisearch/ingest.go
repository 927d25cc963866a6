package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/legisearch/internal/embeddings"
	"github.com/fyrsmithlabs/legisearch/internal/httpapi"
	"github.com/fyrsmithlabs/legisearch/internal/pipeline"
	"github.com/fyrsmithlabs/legisearch/internal/scraper"
	"github.com/fyrsmithlabs/legisearch/internal/store"
	"github.com/fyrsmithlabs/legisearch/internal/vectorstore"
)

var (
	ingestYear     int
	ingestMonth    string
	ingestDocType  string
	ingestCategory string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Scrape, clean, embed and store legislation for the configured scope",
	Long: `Ingest runs the full batch cycle: discover documents on the listing pages,
fetch and clean each one, skip documents whose content is unchanged, chunk and
embed the rest, and commit to both stores. Re-running on an unchanged corpus
is a no-op.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().IntVar(&ingestYear, "year", 0, "publication year (overrides config)")
	ingestCmd.Flags().StringVar(&ingestMonth, "month", "", `filter by "made" month, e.g. August (overrides config)`)
	ingestCmd.Flags().StringVar(&ingestDocType, "type", "", "legislation type code, e.g. uksi (overrides config)")
	ingestCmd.Flags().StringVar(&ingestCategory, "category", "", "free-text listing filter (overrides config)")
}

func runIngest(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cmd.Flags().Changed("year") {
		cfg.Scrape.Year = ingestYear
	}
	if cmd.Flags().Changed("month") {
		cfg.Scrape.Month = ingestMonth
	}
	if cmd.Flags().Changed("type") {
		cfg.Scrape.DocType = ingestDocType
	}
	if cmd.Flags().Changed("category") {
		cfg.Scrape.Category = ingestCategory
	}

	// A second signal falls through to the default handler and kills the
	// process; the first one cancels the run cooperatively.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	docs, err := store.New(ctx, cfg.Database.URL, logger)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer docs.Close()
	if err := docs.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	embedSvc := embeddings.NewService(embeddings.ProviderConfig{
		Model:     cfg.Embeddings.Model,
		CacheDir:  cfg.Embeddings.CacheDir,
		BatchSize: cfg.Embeddings.BatchSize,
	})
	defer embedSvc.Close()

	vectors, err := vectorstore.NewStore(ctx, cfg, embedSvc, logger)
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}
	defer vectors.Close()

	if cfg.Server.Enabled {
		srv := httpapi.New(cfg.Server.Addr, logger)
		srv.Start()
		defer srv.Shutdown(context.Background())
	}

	scr := scraper.New(scraper.Config{
		BaseURL:           cfg.Scrape.BaseURL,
		DocType:           cfg.Scrape.DocType,
		Year:              cfg.Scrape.Year,
		Category:          cfg.Scrape.Category,
		Timeout:           cfg.Scrape.Timeout,
		MaxRetries:        cfg.Scrape.MaxRetries,
		RetryBackoff:      cfg.Scrape.RetryBackoff,
		RequestsPerSecond: cfg.Scrape.RequestsPerSecond,
		MaxPages:          cfg.Scrape.MaxPages,
	}, logger)

	p := pipeline.New(pipeline.Config{
		Workers:            cfg.Pipeline.Workers,
		Month:              cfg.Scrape.Month,
		ChunkSize:          cfg.Pipeline.ChunkSize,
		ChunkOverlap:       cfg.Pipeline.ChunkOverlap,
		EmbedBatchSize:     cfg.Embeddings.BatchSize,
		VectorWriteRetries: cfg.Pipeline.VectorWriteRetries,
		FailureThreshold:   cfg.Pipeline.FailureThreshold,
	}, pipeline.NewScraperFetcher(scr), docs, vectors, embedSvc, logger)

	summary, runErr := p.Run(ctx)
	fmt.Print(summary.String())
	if runErr != nil {
		logger.Error("run failed", zap.Error(runErr))
		return runErr
	}
	return nil
}
