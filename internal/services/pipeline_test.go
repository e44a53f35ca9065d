package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/bookflow/internal/llm"
	"github.com/Lllllllleong/bookflow/internal/models"
)

type pipelineFixture struct {
	provider *fakeProvider
	uploader *fakeUploader
	catalog  *fakeCatalog
	trigger  *fakeTrigger
	pipeline *Pipeline
	document string
}

func newPipelineFixture(t *testing.T, pageCount int, candidates ...*fakeGenerator) *pipelineFixture {
	t.Helper()

	srv := pageServer(t, 0)
	provider := &fakeProvider{
		baseURL: srv.URL,
		handle:  models.RenderHandle{SourceID: "src-1", SourceVersion: "v3", PageCount: pageCount},
	}
	uploader := &fakeUploader{}
	cat := &fakeCatalog{}
	trigger := &fakeTrigger{}

	if len(candidates) == 0 {
		candidates = []*fakeGenerator{{
			name:     "vertex:gemini-1.5-pro",
			response: `{"bookName": "The Go Programming Language", "authorName": "Donovan and Kernighan"}`,
		}}
	}
	extractor := newExtractorFromFakes(t, candidates)
	materializer := NewPageMaterializer(provider, uploader, 4, time.Minute, testLogger(t))
	pipeline := NewPipeline(provider, extractor, materializer, cat, trigger, testLogger(t))

	document := filepath.Join(t.TempDir(), "book.pdf")
	require.NoError(t, os.WriteFile(document, []byte("%PDF-1.4 fake"), 0644))

	return &pipelineFixture{
		provider: provider,
		uploader: uploader,
		catalog:  cat,
		trigger:  trigger,
		pipeline: pipeline,
		document: document,
	}
}

func newExtractorFromFakes(t *testing.T, fakes []*fakeGenerator) *MetadataExtractor {
	t.Helper()
	candidates := make([]llm.Generator, len(fakes))
	for i, f := range fakes {
		candidates[i] = f
	}
	return NewMetadataExtractor(&fakeRecognizer{text: "THE GO PROGRAMMING LANGUAGE"}, candidates, "eng", time.Minute, testLogger(t))
}

func TestIngestFullFlow(t *testing.T) {
	f := newPipelineFixture(t, 4)

	result, err := f.pipeline.Ingest(context.Background(), Request{DocumentPath: f.document})
	require.NoError(t, err)

	assert.Equal(t, "The Go Programming Language", result.Metadata.Title)
	assert.Equal(t, "src-1", result.SourceID)
	assert.Equal(t, "v3", result.SourceVersion)
	require.Len(t, result.Pages, 4)
	for i, page := range result.Pages {
		assert.Equal(t, i+1, page.PageNumber)
		assert.NotEmpty(t, page.StorageObject)
	}

	assert.Equal(t, []string{
		models.StatusRegistered,
		models.StatusExtracting,
		models.StatusMaterializing,
		models.StatusComplete,
	}, f.catalog.statuses)
	require.NotNil(t, f.catalog.metadata)
	assert.Equal(t, 4, f.catalog.pageCount)

	assert.Equal(t, 1, f.trigger.calls)
	assert.Equal(t, "book-1", f.trigger.book)
	assert.Equal(t, 4, f.trigger.pages)
}

func TestIngestSkipsDuplicates(t *testing.T) {
	f := newPipelineFixture(t, 4)
	f.catalog.existing = "book-already-there"

	_, err := f.pipeline.Ingest(context.Background(), Request{DocumentPath: f.document})
	require.ErrorIs(t, err, ErrDuplicateSource)
	assert.Equal(t, 0, f.provider.registered, "duplicate must be skipped before any upload")
	assert.Equal(t, 0, f.trigger.calls)
}

func TestIngestMarksCatalogFailed(t *testing.T) {
	failing := &fakeGenerator{name: "only", err: errors.New("provider melted")}
	f := newPipelineFixture(t, 4, failing)

	_, err := f.pipeline.Ingest(context.Background(), Request{DocumentPath: f.document})
	var extractionErr *MetadataExtractionError
	require.ErrorAs(t, err, &extractionErr)

	require.NotEmpty(t, f.catalog.statuses)
	assert.Equal(t, models.StatusFailed, f.catalog.statuses[len(f.catalog.statuses)-1])
	assert.Contains(t, f.catalog.failure, "provider melted")
	assert.Equal(t, 0, f.trigger.calls, "no hand-off after a failed pipeline")
	assert.Empty(t, f.uploader.uploaded(), "materialization must never start after extraction failed")
}

func TestIngestSurfacesUploadError(t *testing.T) {
	f := newPipelineFixture(t, 4)
	f.provider.registerErr = errors.New("quota exceeded")

	_, err := f.pipeline.Ingest(context.Background(), Request{DocumentPath: f.document})
	var uploadErr *UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, models.StatusFailed, f.catalog.statuses[len(f.catalog.statuses)-1])
}

func TestPreviewFlow(t *testing.T) {
	f := newPipelineFixture(t, 3)

	result, err := f.pipeline.Preview(context.Background(), Request{DocumentPath: f.document, BookID: "prev-1"})
	require.NoError(t, err)
	require.Len(t, result.Pages, 3)
	for _, page := range result.Pages {
		assert.Empty(t, page.StorageObject, "preview must not re-host pages")
		assert.Contains(t, page.PageURL, "/render/src-1/v3/")
	}
	assert.NotEmpty(t, result.ScratchDir)
	assert.Empty(t, f.uploader.uploaded())
	assert.Empty(t, f.catalog.statuses, "preview must not touch the catalog")

	_, statErr := os.Stat(result.ScratchDir)
	assert.True(t, os.IsNotExist(statErr), "scratch workspace must be cleaned up after preview")
}

func TestIngestStopsOnCancelledContext(t *testing.T) {
	f := newPipelineFixture(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.Ingest(ctx, Request{DocumentPath: f.document})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.uploader.uploaded())
}
