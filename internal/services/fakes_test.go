package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/Lllllllleong/bookflow/internal/models"
	"github.com/Lllllllleong/bookflow/internal/storage"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProvider implements render.Provider against a configurable base URL,
// typically an httptest server.
type fakeProvider struct {
	handle      models.RenderHandle
	baseURL     string
	registerErr error
	registered  int
}

func (p *fakeProvider) RegisterSource(ctx context.Context, localPath string) (models.RenderHandle, error) {
	p.registered++
	if p.registerErr != nil {
		return models.RenderHandle{}, p.registerErr
	}
	return p.handle, nil
}

func (p *fakeProvider) PageURL(handle models.RenderHandle, pageNumber int) (string, error) {
	if pageNumber < 1 || pageNumber > handle.PageCount {
		return "", fmt.Errorf("page %d out of range", pageNumber)
	}
	return fmt.Sprintf("%s/render/%s/%s/page-%d.png", p.baseURL, handle.SourceID, handle.SourceVersion, pageNumber), nil
}

// fakeRecognizer returns canned OCR text or an error.
type fakeRecognizer struct {
	text string
	err  error
}

func (r *fakeRecognizer) Recognize(ctx context.Context, imageURL, language string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.text, nil
}

// fakeGenerator is one scripted model candidate.
type fakeGenerator struct {
	name     string
	response string
	err      error
	calls    int
}

func (g *fakeGenerator) Name() string { return g.name }

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

// fakeUploader records uploads; safe for concurrent use.
type fakeUploader struct {
	mu      sync.Mutex
	objects []string
	err     error
}

func (u *fakeUploader) Upload(ctx context.Context, localPath, objectName string) (storage.UploadedObject, error) {
	if _, err := os.Stat(localPath); err != nil {
		return storage.UploadedObject{}, fmt.Errorf("local file missing: %w", err)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return storage.UploadedObject{}, u.err
	}
	u.objects = append(u.objects, objectName)
	return storage.UploadedObject{
		PublicURL:  "https://cdn.example.com/" + objectName,
		ObjectName: objectName,
	}, nil
}

func (u *fakeUploader) uploaded() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.objects...)
}

// fakeCatalog records status transitions in memory.
type fakeCatalog struct {
	mu        sync.Mutex
	existing  string // non-empty means FindByHash reports a duplicate
	createErr error
	statuses  []string
	metadata  *models.BookMetadata
	pageCount int
	failure   string
}

func (c *fakeCatalog) FindByHash(ctx context.Context, fileHash string) (bool, string, error) {
	if c.existing != "" {
		return true, c.existing, nil
	}
	return false, "", nil
}

func (c *fakeCatalog) Create(ctx context.Context, book models.Book) (string, error) {
	if c.createErr != nil {
		return "", c.createErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = append(c.statuses, book.Status)
	return "book-1", nil
}

func (c *fakeCatalog) UpdateStatus(ctx context.Context, bookID, status, errDetails string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = append(c.statuses, status)
	if status == models.StatusFailed {
		c.failure = errDetails
	}
	return nil
}

func (c *fakeCatalog) SetMetadata(ctx context.Context, bookID string, meta models.BookMetadata, pageCount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata = &meta
	c.pageCount = pageCount
	return nil
}

// fakeTrigger records downstream hand-offs.
type fakeTrigger struct {
	calls int
	book  string
	pages int
	err   error
}

func (t *fakeTrigger) Execute(ctx context.Context, bookID string, pageCount int) error {
	t.calls++
	t.book = bookID
	t.pages = pageCount
	return t.err
}
