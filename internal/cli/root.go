// Package cli provides the command-line interface for bookflow.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/bookflow/internal/app"
	"github.com/Lllllllleong/bookflow/internal/config"
	"github.com/Lllllllleong/bookflow/internal/services"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	cfgFile string

	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
)

var rootCmd = &cobra.Command{
	Use:   "bookflow",
	Short: "Ingest scanned books into per-page image artifacts plus metadata",
	Long: `Bookflow turns one uploaded PDF of a scanned book into extracted
metadata (title, author) and a set of uniquely identified page images,
ready for the viewing and quiz-generation subsystems.

"preview" keeps pages at the render provider's URLs; "ingest" re-hosts
every page into durable storage and records the book in the catalog.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		if cfgFile != "" {
			cfg, err = config.LoadFile(cfgFile)
			if err != nil {
				return err
			}
		} else {
			cfg = config.Load()
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, logCleanup = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to YAML config file (default: environment variables)")
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(ingestCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func buildPipeline(ctx context.Context, full bool) (*services.Pipeline, func(), error) {
	return app.BuildPipeline(ctx, cfg, full, logger)
}
