// Package render adapts the external page-render provider. Registration is
// the only outbound call; page locators are computed locally and never stored.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Lllllllleong/bookflow/internal/models"
)

// ErrInvalidPage reports a page number outside 1..PageCount. This is a
// programmer error, not a provider failure.
var ErrInvalidPage = errors.New("page number out of range")

// Provider is the capability the pipeline needs from a render service.
type Provider interface {
	// RegisterSource performs exactly one outbound upload and returns the
	// handle used to compute every page locator.
	RegisterSource(ctx context.Context, localPath string) (models.RenderHandle, error)
	// PageURL is a pure function of the handle and page number. Identical
	// arguments yield byte-identical URLs.
	PageURL(handle models.RenderHandle, pageNumber int) (string, error)
}

// Client talks to an HTTP render API: POST a document, get back an id,
// version and page count; page images are then addressable by URL.
type Client struct {
	baseURL    string
	apiKey     string
	format     string
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient constructs a render client. format is the image format requested
// in page locators, e.g. "png".
func NewClient(baseURL, apiKey, format string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		format:     format,
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

type registerResponse struct {
	SourceID  string `json:"sourceId"`
	Version   string `json:"version"`
	PageCount int    `json:"pageCount"`
}

// RegisterSource validates the PDF locally, uploads it, and cross-checks the
// provider's page count against the local one.
func (c *Client) RegisterSource(ctx context.Context, localPath string) (models.RenderHandle, error) {
	localPages, err := preflight(localPath)
	if err != nil {
		return models.RenderHandle{}, fmt.Errorf("document failed pre-flight validation: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, contentType, err := multipartBody(localPath)
	if err != nil {
		return models.RenderHandle{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/documents", body)
	if err != nil {
		return models.RenderHandle{}, fmt.Errorf("build register request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.RenderHandle{}, fmt.Errorf("register source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return models.RenderHandle{}, fmt.Errorf("render provider rejected document: status %d: %s", resp.StatusCode, msg)
	}

	var reg registerResponse
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		return models.RenderHandle{}, fmt.Errorf("decode register response: %w", err)
	}
	if reg.SourceID == "" || reg.PageCount < 1 {
		return models.RenderHandle{}, fmt.Errorf("register response incomplete: sourceId=%q pageCount=%d", reg.SourceID, reg.PageCount)
	}
	if reg.PageCount != localPages {
		return models.RenderHandle{}, fmt.Errorf("page count mismatch: provider reports %d, document has %d", reg.PageCount, localPages)
	}

	slog.Debug("Source registered with render provider.", "sourceId", reg.SourceID, "pageCount", reg.PageCount)
	return models.RenderHandle{
		SourceID:      reg.SourceID,
		SourceVersion: reg.Version,
		PageCount:     reg.PageCount,
	}, nil
}

// PageURL computes the locator for one page. No network, no side effects.
func (c *Client) PageURL(handle models.RenderHandle, pageNumber int) (string, error) {
	if pageNumber < 1 || pageNumber > handle.PageCount {
		return "", fmt.Errorf("%w: page %d of %d", ErrInvalidPage, pageNumber, handle.PageCount)
	}
	return fmt.Sprintf("%s/render/%s/%s/page-%d.%s",
		c.baseURL, handle.SourceID, handle.SourceVersion, pageNumber, c.format), nil
}

// preflight validates the PDF in relaxed mode and returns its page count.
func preflight(localPath string) (int, error) {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(localPath, cfg); err != nil {
		return 0, fmt.Errorf("validate PDF: %w", err)
	}
	pages, err := api.PageCountFile(localPath)
	if err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	if pages < 1 {
		return 0, fmt.Errorf("document has no pages")
	}
	return pages, nil
}

func multipartBody(localPath string) (io.Reader, string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return nil, "", fmt.Errorf("open document %s: %w", localPath, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(localPath))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("buffer document for upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize multipart body: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}
