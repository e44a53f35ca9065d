package ocr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
)

// TesseractRecognizer runs OCR locally with tesseract. A fresh gosseract
// client is created per call; the bindings are not safe for reuse across
// goroutines.
type TesseractRecognizer struct {
	clientFactory func() *gosseract.Client
	httpClient    *http.Client
	timeout       time.Duration
}

// NewTesseractRecognizer constructs a tesseract-backed recognizer. timeout
// bounds the image fetch plus recognition for one call.
func NewTesseractRecognizer(timeout time.Duration) *TesseractRecognizer {
	return &TesseractRecognizer{
		clientFactory: gosseract.NewClient,
		httpClient:    &http.Client{},
		timeout:       timeout,
	}
}

// Recognize downloads the image and extracts its text. A single attempt is
// made; the backend is treated as idempotent but not flaky-tolerant.
func (r *TesseractRecognizer) Recognize(ctx context.Context, imageURL, language string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	imgData, err := r.fetchImage(ctx, imageURL)
	if err != nil {
		return "", err
	}

	c := r.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(imgData); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if language != "" {
		if err := c.SetLanguage(language); err != nil {
			return "", fmt.Errorf("set language %q: %w", language, err)
		}
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (r *TesseractRecognizer) fetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image %s: %w", imageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image %s: status %d", imageURL, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	return data, nil
}
