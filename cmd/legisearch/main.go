// legisearch ingests UK legislation into a relational store and a vector
// store, and answers semantic queries over the ingested chunks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/legisearch/internal/config"
	"github.com/fyrsmithlabs/legisearch/internal/logging"
	"go.uber.org/zap"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "legisearch",
	Short: "UK legislation ingestion and semantic search",
	Long: `legisearch scrapes legislation.gov.uk, cleans and chunks document text,
embeds the chunks, and keeps a relational store and a vector store in sync so
the corpus can be searched semantically.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(queryCmd)
}

// setup loads configuration and builds the logger shared by all commands.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}
	return cfg, logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
