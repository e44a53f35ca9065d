package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/bookflow/internal/app"
	"github.com/Lllllllleong/bookflow/internal/config"
	"github.com/Lllllllleong/bookflow/internal/services"
)

// gcsEvent is the payload of a GCS object-finalize event: a PDF dropped into
// the inbox bucket.
type gcsEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

type ingestFunction struct {
	pipeline      *services.Pipeline
	storageClient *storage.Client
}

var (
	instance *ingestFunction
	once     sync.Once
	initErr  error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("IngestBook", ingestBook)
}

// main is required by the Go Functions Framework.
func main() {}

// ingestBook is the Cloud Function entry point. A PDF landing in the inbox
// bucket triggers one full ingestion run.
func ingestBook(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		instance, initErr = newIngestFunction(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var event gcsEvent
	if err := json.Unmarshal(e.Data(), &event); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	return instance.process(ctx, event)
}

func newIngestFunction(ctx context.Context) (*ingestFunction, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pipeline, _, err := app.BuildPipeline(ctx, cfg, true, slog.Default())
	if err != nil {
		return nil, err
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}

	slog.Info("Ingest function initialized.")
	return &ingestFunction{pipeline: pipeline, storageClient: storageClient}, nil
}

func (f *ingestFunction) process(ctx context.Context, e gcsEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	logCtx.Info("Processing new GCS object.")

	tempDir, err := os.MkdirTemp("", "bookflow-inbox-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	sourcePath := filepath.Join(tempDir, filepath.Base(e.Name))
	if err := f.streamGCSObject(ctx, e.Bucket, e.Name, sourcePath); err != nil {
		logCtx.Error("Failed to download source PDF", "error", err)
		return err
	}

	result, err := f.pipeline.Ingest(ctx, services.Request{DocumentPath: sourcePath})
	if err != nil {
		// Already logged with context inside the pipeline.
		return err
	}

	logCtx.Info("Ingestion complete.",
		"title", result.Metadata.Title,
		"author", result.Metadata.Author,
		"pageCount", len(result.Pages),
	)
	return nil
}

func (f *ingestFunction) streamGCSObject(ctx context.Context, bucket, object, destPath string) error {
	gcsReader, err := f.storageClient.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer gcsReader.Close()
	localFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file at %s: %w", destPath, err)
	}
	defer localFile.Close()
	if _, err := io.Copy(localFile, gcsReader); err != nil {
		return fmt.Errorf("failed to copy GCS object to local file: %w", err)
	}
	return nil
}
