package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/bookflow/internal/models"
	"github.com/Lllllllleong/bookflow/internal/render"
	"github.com/Lllllllleong/bookflow/internal/storage"
)

// Strategy selects how page artifacts get their durable URL.
type Strategy int

const (
	// PassthroughRenderURL uses the provider-computed locator as the
	// permanent address. No transfers happen.
	PassthroughRenderURL Strategy = iota
	// RehostToStorage downloads every page into the scratch workspace and
	// uploads each to durable storage under a unique object name.
	RehostToStorage
)

// PageMaterializer obtains one durable PageArtifact per page. All-or-nothing:
// a single page failure fails the whole materialization and no artifacts are
// returned.
type PageMaterializer struct {
	provider        render.Provider
	uploader        storage.Uploader
	httpClient      *http.Client
	concurrency     int
	transferTimeout time.Duration
	logger          *slog.Logger
}

// NewPageMaterializer wires the materializer. uploader may be nil when only
// the passthrough strategy will be used. concurrency caps simultaneous
// transfers in each phase.
func NewPageMaterializer(provider render.Provider, uploader storage.Uploader, concurrency int, transferTimeout time.Duration, logger *slog.Logger) *PageMaterializer {
	if concurrency < 1 {
		concurrency = 8
	}
	return &PageMaterializer{
		provider:        provider,
		uploader:        uploader,
		httpClient:      &http.Client{},
		concurrency:     concurrency,
		transferTimeout: transferTimeout,
		logger:          logger,
	}
}

// Materialize produces artifacts for pages 1..handle.PageCount, ordered by
// page number. For RehostToStorage every download completes before any
// upload begins; within one page, download strictly precedes upload.
func (m *PageMaterializer) Materialize(ctx context.Context, handle models.RenderHandle, bookID string, strategy Strategy, ws *ScratchWorkspace) ([]models.PageArtifact, error) {
	switch strategy {
	case PassthroughRenderURL:
		return m.passthrough(handle, bookID)
	case RehostToStorage:
		return m.rehost(ctx, handle, bookID, ws)
	default:
		return nil, fmt.Errorf("unknown page storage strategy: %d", strategy)
	}
}

func (m *PageMaterializer) passthrough(handle models.RenderHandle, bookID string) ([]models.PageArtifact, error) {
	artifacts := make([]models.PageArtifact, handle.PageCount)
	for page := 1; page <= handle.PageCount; page++ {
		url, err := m.provider.PageURL(handle, page)
		if err != nil {
			return nil, &PageMaterializationError{Page: page, Err: err}
		}
		artifacts[page-1] = models.PageArtifact{
			PageID:     newPageID(bookID, page),
			PageNumber: page,
			PageURL:    url,
		}
	}
	return artifacts, nil
}

func (m *PageMaterializer) rehost(ctx context.Context, handle models.RenderHandle, bookID string, ws *ScratchWorkspace) ([]models.PageArtifact, error) {
	if m.uploader == nil {
		return nil, fmt.Errorf("rehost strategy requires an uploader")
	}

	m.logger.Info("Starting concurrent download of pages.", "pageCount", handle.PageCount)
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(m.concurrency)
	for i := 1; i <= handle.PageCount; i++ {
		page := i
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			url, err := m.provider.PageURL(handle, page)
			if err != nil {
				return &PageMaterializationError{Page: page, Err: err}
			}
			if err := m.downloadPage(gctx, url, ws.PagePath(page)); err != nil {
				return &PageMaterializationError{Page: page, Err: err}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// Barrier: every download has landed before the first upload starts.
	m.logger.Info("All pages downloaded, starting concurrent upload.", "pageCount", handle.PageCount)
	artifacts := make([]models.PageArtifact, handle.PageCount)
	eg, gctx = errgroup.WithContext(ctx)
	eg.SetLimit(m.concurrency)
	for i := 1; i <= handle.PageCount; i++ {
		page := i
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pageID := newPageID(bookID, page)
			objectName := fmt.Sprintf("books/%s/%s.png", bookID, pageID)
			obj, err := m.uploader.Upload(gctx, ws.PagePath(page), objectName)
			if err != nil {
				return &PageMaterializationError{Page: page, Err: err}
			}
			artifacts[page-1] = models.PageArtifact{
				PageID:        pageID,
				PageNumber:    page,
				PageURL:       obj.PublicURL,
				StorageObject: obj.ObjectName,
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	m.logger.Info("All pages materialized.", "pageCount", handle.PageCount)
	return artifacts, nil
}

func (m *PageMaterializer) downloadPage(ctx context.Context, url, destPath string) error {
	ctx, cancel := context.WithTimeout(ctx, m.transferTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("write %s: %w", destPath, err)
	}
	return nil
}

// newPageID builds a globally unique page identifier. Collisions between
// runs over the same source are astronomically unlikely; no coordination.
func newPageID(bookID string, pageNumber int) string {
	return fmt.Sprintf("%s-p%d-%d-%s", bookID, pageNumber, time.Now().UnixMilli(), uuid.NewString()[:8])
}
