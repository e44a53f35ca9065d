package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/bookflow/internal/services"
)

var previewBookID string

var previewCmd = &cobra.Command{
	Use:   "preview <book.pdf>",
	Short: "Extract metadata and page URLs without re-hosting pages",
	Long: `Register the PDF with the render provider and extract cover metadata.
Page URLs point directly at the render provider; nothing is written to
durable storage or the catalog.

Examples:
  bookflow preview scans/moby-dick.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().StringVar(&previewBookID, "book-id", "", "identifier namespacing page IDs (default: generated)")
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	pipeline, cleanup, err := buildPipeline(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := pipeline.Preview(ctx, services.Request{
		DocumentPath: args[0],
		BookID:       previewBookID,
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
