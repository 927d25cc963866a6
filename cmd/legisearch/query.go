package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/legisearch/internal/embeddings"
	"github.com/fyrsmithlabs/legisearch/internal/vectorstore"
)

var queryTopK int

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search the ingested legislation semantically",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 4, "number of results to return")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	embedSvc := embeddings.NewService(embeddings.ProviderConfig{
		Model:     cfg.Embeddings.Model,
		CacheDir:  cfg.Embeddings.CacheDir,
		BatchSize: cfg.Embeddings.BatchSize,
	})
	defer embedSvc.Close()

	vectors, err := vectorstore.NewStore(cmd.Context(), cfg, embedSvc, logger)
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}
	defer vectors.Close()

	query := strings.Join(args, " ")
	results, err := vectors.Search(cmd.Context(), query, queryTopK)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}

	for i, r := range results {
		fmt.Printf("%d. [%.3f] %s\n", i+1, r.Score, r.Title)
		if r.Identifier != "" {
			fmt.Printf("   %s\n", r.Identifier)
		}
		if r.URL != "" {
			fmt.Printf("   %s\n", r.URL)
		}
		fmt.Printf("   %s\n\n", snippet(r.Text, 240))
	}
	return nil
}

// snippet truncates text to at most n runes on a rune boundary.
func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
