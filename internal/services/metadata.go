package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lllllllleong/bookflow/internal/llm"
	"github.com/Lllllllleong/bookflow/internal/models"
	"github.com/Lllllllleong/bookflow/internal/ocr"
)

// --- Metadata Extraction Prompt ---
const metadataPrompt = `You will be given text recognized from the cover page of a scanned book.

Identify the book's title and its author from the text.

Respond with a single JSON object with exactly these two keys:
- "bookName": the book's title
- "authorName": the author's name

If you cannot determine a value from the text, use the string "Unknown" for that key.
Return ONLY the JSON object. Do not include any other text before or after it.

Cover page text:
%s`

// MetadataExtractor turns the cover page's rendered image into structured
// book metadata: one OCR pass, then an ordered walk over model candidates
// until one yields a parsable answer.
type MetadataExtractor struct {
	recognizer      ocr.Recognizer
	candidates      []llm.Generator
	language        string
	generateTimeout time.Duration
	logger          *slog.Logger
}

// NewMetadataExtractor wires the extractor. candidates are tried strictly in
// the order given; the list is never reordered.
func NewMetadataExtractor(recognizer ocr.Recognizer, candidates []llm.Generator, language string, generateTimeout time.Duration, logger *slog.Logger) *MetadataExtractor {
	return &MetadataExtractor{
		recognizer:      recognizer,
		candidates:      candidates,
		language:        language,
		generateTimeout: generateTimeout,
		logger:          logger,
	}
}

// Extract OCRs the cover image and resolves metadata through the candidate
// list. All-or-nothing: no partial metadata is ever returned.
func (e *MetadataExtractor) Extract(ctx context.Context, coverURL string) (models.BookMetadata, error) {
	text, err := e.recognizer.Recognize(ctx, coverURL, e.language)
	if err != nil {
		return models.BookMetadata{}, &OcrError{Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return models.BookMetadata{}, &OcrError{Err: fmt.Errorf("recognizer returned empty text for %s", coverURL)}
	}

	prompt := fmt.Sprintf(metadataPrompt, text)

	var lastErr error
	for _, candidate := range e.candidates {
		if err := ctx.Err(); err != nil {
			return models.BookMetadata{}, err
		}

		response, err := e.generate(ctx, candidate, prompt)
		if err != nil {
			e.logger.Warn("Model candidate failed, trying next.", "candidate", candidate.Name(), "error", err)
			lastErr = err
			continue
		}

		meta, err := parseMetadata(response)
		if err != nil {
			e.logger.Warn("Candidate response unusable, trying next.", "candidate", candidate.Name(), "error", err)
			lastErr = fmt.Errorf("%s: %w", candidate.Name(), err)
			continue
		}

		e.logger.Info("Metadata resolved.", "candidate", candidate.Name(), "title", meta.Title, "author", meta.Author)
		return meta, nil
	}

	return models.BookMetadata{}, &MetadataExtractionError{Attempts: len(e.candidates), LastErr: lastErr}
}

func (e *MetadataExtractor) generate(ctx context.Context, candidate llm.Generator, prompt string) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, e.generateTimeout)
	defer cancel()
	return candidate.Generate(genCtx, prompt)
}

// parseMetadata pulls the first balanced {...} substring out of the model
// response and decodes it. A well-formed object missing either required key
// is still a failure; only an explicit value counts.
func parseMetadata(response string) (models.BookMetadata, error) {
	obj, err := extractJSONObject(response)
	if err != nil {
		return models.BookMetadata{}, err
	}

	var meta models.BookMetadata
	if err := json.Unmarshal([]byte(obj), &meta); err != nil {
		return models.BookMetadata{}, fmt.Errorf("response is not valid JSON: %w", err)
	}

	meta.Title = strings.TrimSpace(meta.Title)
	meta.Author = strings.TrimSpace(meta.Author)
	if meta.Title == "" {
		return models.BookMetadata{}, fmt.Errorf("response missing bookName")
	}
	if meta.Author == "" {
		return models.BookMetadata{}, fmt.Errorf("response missing authorName")
	}
	return meta, nil
}

// extractJSONObject returns the first balanced top-level JSON object in s.
// Braces inside string literals do not count toward the balance.
func extractJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", fmt.Errorf("response contains no JSON object")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("response contains an unbalanced JSON object")
}
