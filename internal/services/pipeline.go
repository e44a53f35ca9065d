package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Lllllllleong/bookflow/internal/catalog"
	"github.com/Lllllllleong/bookflow/internal/models"
	"github.com/Lllllllleong/bookflow/internal/render"
	"github.com/Lllllllleong/bookflow/internal/workflows"
)

// ErrDuplicateSource reports that a document with the same content hash has
// already been ingested. The run is skipped cleanly, nothing is modified.
var ErrDuplicateSource = errors.New("source document already ingested")

// Pipeline sequences registration, cover extraction and page materialization
// into the two supported flows. Each invocation is independent; concurrent
// runs never share scratch state.
type Pipeline struct {
	provider     render.Provider
	extractor    *MetadataExtractor
	materializer *PageMaterializer
	catalog      catalog.Store
	trigger      workflows.Trigger
	logger       *slog.Logger
}

// NewPipeline wires the orchestrator. catalog and trigger are optional; nil
// disables cataloging and the downstream hand-off respectively.
func NewPipeline(provider render.Provider, extractor *MetadataExtractor, materializer *PageMaterializer, cat catalog.Store, trigger workflows.Trigger, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		provider:     provider,
		extractor:    extractor,
		materializer: materializer,
		catalog:      cat,
		trigger:      trigger,
		logger:       logger,
	}
}

// Request identifies one document to ingest. BookID namespaces page IDs and
// storage paths; when empty one is derived from the catalog record or
// generated.
type Request struct {
	DocumentPath string
	BookID       string
}

// Preview runs the extract-only flow: page URLs point at the render provider
// directly and nothing touches durable storage or the catalog.
func (p *Pipeline) Preview(ctx context.Context, req Request) (*models.PreviewResult, error) {
	logCtx := p.logger.With("document", req.DocumentPath, "flow", "preview")

	bookID := req.BookID
	if bookID == "" {
		bookID = uuid.NewString()[:8]
	}

	ws, err := NewScratchWorkspace(bookID, logCtx)
	if err != nil {
		return nil, err
	}
	defer ws.Cleanup()

	handle, meta, pages, err := p.run(ctx, logCtx, req.DocumentPath, bookID, PassthroughRenderURL, ws, nil)
	if err != nil {
		logCtx.Error("Preview failed.", "error", err)
		return nil, err
	}
	logCtx.Info("Preview complete.", "pageCount", handle.PageCount)

	return &models.PreviewResult{
		Metadata:   meta,
		Pages:      pages,
		ScratchDir: ws.Dir(),
	}, nil
}

// Ingest runs the full flow: every page is re-hosted to durable storage, the
// catalog record advances through the pipeline statuses, and on success the
// downstream workflow is triggered.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*models.IngestResult, error) {
	logCtx := p.logger.With("document", req.DocumentPath, "flow", "ingest")

	bookID := req.BookID
	var recordID string
	if p.catalog != nil {
		hash, err := catalog.FileHash(req.DocumentPath)
		if err != nil {
			return nil, fmt.Errorf("failed to hash document: %w", err)
		}
		logCtx = logCtx.With("fileHash", hash)

		found, existingID, err := p.catalog.FindByHash(ctx, hash)
		if err != nil {
			return nil, err
		}
		if found {
			logCtx.Info("Duplicate document detected. Skipping ingestion.", "existingBookId", existingID)
			return nil, fmt.Errorf("%w (book %s)", ErrDuplicateSource, existingID)
		}

		recordID, err = p.catalog.Create(ctx, models.Book{
			FileHash:         hash,
			OriginalFilename: filepath.Base(req.DocumentPath),
			Status:           models.StatusRegistered,
		})
		if err != nil {
			return nil, err
		}
		if bookID == "" {
			bookID = recordID
		}
	}
	if bookID == "" {
		bookID = uuid.NewString()[:8]
	}
	logCtx = logCtx.With("bookId", bookID)

	ws, err := NewScratchWorkspace(bookID, logCtx)
	if err != nil {
		return nil, p.fail(ctx, logCtx, recordID, err)
	}
	defer ws.Cleanup()

	onStage := func(status string) error {
		if p.catalog == nil || recordID == "" {
			return nil
		}
		if err := p.catalog.UpdateStatus(ctx, recordID, status, ""); err != nil {
			return fmt.Errorf("failed to update catalog status to %s: %w", status, err)
		}
		return nil
	}

	handle, meta, pages, err := p.run(ctx, logCtx, req.DocumentPath, bookID, RehostToStorage, ws, onStage)
	if err != nil {
		return nil, p.fail(ctx, logCtx, recordID, err)
	}

	if p.catalog != nil && recordID != "" {
		if err := p.catalog.SetMetadata(ctx, recordID, meta, handle.PageCount); err != nil {
			return nil, p.fail(ctx, logCtx, recordID, err)
		}
		if err := p.catalog.UpdateStatus(ctx, recordID, models.StatusComplete, ""); err != nil {
			return nil, p.fail(ctx, logCtx, recordID, err)
		}
	}

	if p.trigger != nil {
		if err := p.trigger.Execute(ctx, bookID, handle.PageCount); err != nil {
			return nil, fmt.Errorf("downstream hand-off failed: %w", err)
		}
		logCtx.Info("Hand-off to downstream workflow complete.")
	}

	return &models.IngestResult{
		Metadata:      meta,
		Pages:         pages,
		SourceID:      handle.SourceID,
		SourceVersion: handle.SourceVersion,
	}, nil
}

// run is the shared stage sequence. onStage, when non-nil, is invoked at each
// stage boundary with the status the pipeline is entering.
func (p *Pipeline) run(ctx context.Context, logCtx *slog.Logger, docPath, bookID string, strategy Strategy, ws *ScratchWorkspace, onStage func(status string) error) (models.RenderHandle, models.BookMetadata, []models.PageArtifact, error) {
	var zeroHandle models.RenderHandle
	var zeroMeta models.BookMetadata

	if err := ctx.Err(); err != nil {
		return zeroHandle, zeroMeta, nil, err
	}
	handle, err := p.provider.RegisterSource(ctx, docPath)
	if err != nil {
		return zeroHandle, zeroMeta, nil, &UploadError{Err: err}
	}
	logCtx.Info("Source registered.", "sourceId", handle.SourceID, "pageCount", handle.PageCount)

	if err := ctx.Err(); err != nil {
		return zeroHandle, zeroMeta, nil, err
	}
	if onStage != nil {
		if err := onStage(models.StatusExtracting); err != nil {
			return zeroHandle, zeroMeta, nil, err
		}
	}
	coverURL, err := p.provider.PageURL(handle, 1)
	if err != nil {
		return zeroHandle, zeroMeta, nil, fmt.Errorf("cover locator: %w", err)
	}
	meta, err := p.extractor.Extract(ctx, coverURL)
	if err != nil {
		return zeroHandle, zeroMeta, nil, err
	}

	if err := ctx.Err(); err != nil {
		return zeroHandle, zeroMeta, nil, err
	}
	if onStage != nil {
		if err := onStage(models.StatusMaterializing); err != nil {
			return zeroHandle, zeroMeta, nil, err
		}
	}
	pages, err := p.materializer.Materialize(ctx, handle, bookID, strategy, ws)
	if err != nil {
		return zeroHandle, zeroMeta, nil, err
	}

	return handle, meta, pages, nil
}

// fail marks the catalog record FAILED and returns the original error.
// Catalog problems during failure handling are logged, never allowed to mask
// the original error.
func (p *Pipeline) fail(ctx context.Context, logCtx *slog.Logger, recordID string, original error) error {
	logCtx.Error("Pipeline failed.", "error", original)
	if p.catalog != nil && recordID != "" {
		updateCtx := context.WithoutCancel(ctx)
		if err := p.catalog.UpdateStatus(updateCtx, recordID, models.StatusFailed, original.Error()); err != nil {
			logCtx.Error("CRITICAL: Failed to mark catalog record FAILED after a processing error.", "updateError", err)
		}
	}
	return original
}
