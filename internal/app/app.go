// Package app wires the pipeline from configuration. Shared by the CLI and
// the Cloud Function entrypoint.
package app

import (
	"context"
	"fmt"
	"log/slog"

	gcs "cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"

	"github.com/Lllllllleong/bookflow/internal/catalog"
	"github.com/Lllllllleong/bookflow/internal/config"
	"github.com/Lllllllleong/bookflow/internal/llm"
	"github.com/Lllllllleong/bookflow/internal/ocr"
	"github.com/Lllllllleong/bookflow/internal/render"
	"github.com/Lllllllleong/bookflow/internal/services"
	objstore "github.com/Lllllllleong/bookflow/internal/storage"
	"github.com/Lllllllleong/bookflow/internal/workflows"
)

// BuildPipeline constructs a pipeline and its external clients from cfg.
// full selects the ingestion dependencies (durable storage, catalog,
// downstream trigger) on top of the preview set. The returned func releases
// every client that was opened.
func BuildPipeline(ctx context.Context, cfg config.Config, full bool, logger *slog.Logger) (*services.Pipeline, func(), error) {
	renderClient := render.NewClient(cfg.RenderAPIBase, cfg.RenderAPIKey, cfg.RenderFormat, cfg.RegisterTimeout)
	recognizer := ocr.NewTesseractRecognizer(cfg.OCRTimeout)

	candidates, closeLLM, err := llm.NewCandidates(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("configure model candidates: %w", err)
	}
	closers := []func() error{closeLLM}
	cleanup := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	extractor := services.NewMetadataExtractor(recognizer, candidates, cfg.OCRLanguage, cfg.GenerateTimeout, logger)

	var uploader objstore.Uploader
	var cat catalog.Store
	var trigger workflows.Trigger
	if full {
		if cfg.PagesBucket == "" {
			cleanup()
			return nil, nil, fmt.Errorf("PAGES_BUCKET must be set for full ingestion")
		}
		storageClient, err := gcs.NewClient(ctx)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("create storage client: %w", err)
		}
		closers = append(closers, storageClient.Close)
		uploader = objstore.NewGCSUploader(storageClient, cfg.PagesBucket, cfg.TransferTimeout)

		if cfg.ProjectID != "" {
			store, err := catalog.NewFirestoreStore(ctx, cfg.ProjectID, cfg.FirestoreCollection)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			closers = append(closers, store.Close)
			cat = store
		}

		if cfg.WorkflowID != "" {
			execClient, err := executions.NewClient(ctx)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("create workflow executions client: %w", err)
			}
			closers = append(closers, execClient.Close)
			trigger = workflows.NewWorkflowTrigger(execClient, cfg.ProjectID, cfg.WorkflowLocation, cfg.WorkflowID)
		}
	}

	materializer := services.NewPageMaterializer(renderClient, uploader, cfg.TransferConcurrency, cfg.TransferTimeout, logger)
	pipeline := services.NewPipeline(renderClient, extractor, materializer, cat, trigger, logger)
	return pipeline, cleanup, nil
}
