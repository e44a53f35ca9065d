package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/bookflow/internal/services"
)

var ingestBookID string

var ingestCmd = &cobra.Command{
	Use:   "ingest <book.pdf>",
	Short: "Fully ingest a scanned book into durable storage",
	Long: `Register the PDF with the render provider, extract cover metadata,
download every page and re-host it in the pages bucket, record the book in
the catalog, and hand off to the downstream workflow.

Examples:
  bookflow ingest scans/moby-dick.pdf
  bookflow ingest scans/moby-dick.pdf --book-id moby-dick-1851`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestBookID, "book-id", "", "identifier namespacing page IDs and storage paths (default: catalog record ID)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	pipeline, cleanup, err := buildPipeline(ctx, true)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := pipeline.Ingest(ctx, services.Request{
		DocumentPath: args[0],
		BookID:       ingestBookID,
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}
