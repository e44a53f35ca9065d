package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/bookflow/internal/llm"
)

func newExtractor(t *testing.T, recognizer *fakeRecognizer, candidates ...llm.Generator) *MetadataExtractor {
	t.Helper()
	return NewMetadataExtractor(recognizer, candidates, "eng", time.Minute, testLogger(t))
}

func TestExtractFirstCandidateSucceeds(t *testing.T) {
	first := &fakeGenerator{name: "vertex:gemini-1.5-pro", response: `{"bookName": "Moby Dick", "authorName": "Herman Melville"}`}
	second := &fakeGenerator{name: "vertex:gemini-1.5-flash", response: `{"bookName": "wrong", "authorName": "wrong"}`}
	e := newExtractor(t, &fakeRecognizer{text: "MOBY DICK\nHerman Melville"}, first, second)

	meta, err := e.Extract(context.Background(), "http://render/page-1.png")
	require.NoError(t, err)
	assert.Equal(t, "Moby Dick", meta.Title)
	assert.Equal(t, "Herman Melville", meta.Author)
	assert.Equal(t, 0, second.calls, "later candidates must not be tried after a success")
}

func TestExtractFallsBackToLastCandidate(t *testing.T) {
	first := &fakeGenerator{name: "a", err: errors.New("transport reset")}
	second := &fakeGenerator{name: "b", err: errors.New("deadline exceeded")}
	third := &fakeGenerator{name: "c", response: `Sure! {"bookName": "Dune", "authorName": "Frank Herbert"}`}
	e := newExtractor(t, &fakeRecognizer{text: "DUNE"}, first, second, third)

	meta, err := e.Extract(context.Background(), "http://render/page-1.png")
	require.NoError(t, err)
	assert.Equal(t, "Dune", meta.Title)
	assert.Equal(t, "Frank Herbert", meta.Author)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 1, third.calls)
}

func TestExtractAllCandidatesFail(t *testing.T) {
	first := &fakeGenerator{name: "a", err: errors.New("transport reset")}
	second := &fakeGenerator{name: "b", err: errors.New("final failure")}
	e := newExtractor(t, &fakeRecognizer{text: "some cover text"}, first, second)

	_, err := e.Extract(context.Background(), "http://render/page-1.png")
	var extractionErr *MetadataExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, 2, extractionErr.Attempts)
	assert.ErrorContains(t, extractionErr.LastErr, "final failure")
}

func TestExtractOcrFailure(t *testing.T) {
	tests := []struct {
		name       string
		recognizer *fakeRecognizer
	}{
		{"backend error", &fakeRecognizer{err: errors.New("tesseract crashed")}},
		{"empty text", &fakeRecognizer{text: "   \n\t "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{name: "a", response: `{"bookName": "x", "authorName": "y"}`}
			e := newExtractor(t, tt.recognizer, gen)

			_, err := e.Extract(context.Background(), "http://render/page-1.png")
			var ocrErr *OcrError
			require.ErrorAs(t, err, &ocrErr)
			assert.Equal(t, 0, gen.calls, "no model candidate may be tried after an OCR failure")
		})
	}
}

func TestExtractRejectsIncompleteResponses(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"missing author", `{"bookName": "Moby Dick"}`},
		{"missing title", `{"authorName": "Herman Melville"}`},
		{"empty title", `{"bookName": "", "authorName": "Herman Melville"}`},
		{"whitespace author", `{"bookName": "Moby Dick", "authorName": "  "}`},
		{"no JSON at all", `I could not find a JSON object to produce.`},
		{"not valid JSON", `{bookName: Moby Dick}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{name: "only", response: tt.response}
			e := newExtractor(t, &fakeRecognizer{text: "cover"}, gen)

			_, err := e.Extract(context.Background(), "http://render/page-1.png")
			var extractionErr *MetadataExtractionError
			require.ErrorAs(t, err, &extractionErr)
		})
	}
}

func TestExtractAcceptsUnknownSentinel(t *testing.T) {
	gen := &fakeGenerator{name: "only", response: `{"bookName": "Unknown", "authorName": "Unknown"}`}
	e := newExtractor(t, &fakeRecognizer{text: "an unreadable cover"}, gen)

	meta, err := e.Extract(context.Background(), "http://render/page-1.png")
	require.NoError(t, err)
	assert.Equal(t, "Unknown", meta.Title)
	assert.Equal(t, "Unknown", meta.Author)
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, false},
		{"prose around object", `Here you go: {"a": 1} hope that helps`, `{"a": 1}`, false},
		{"nested braces", `{"a": {"b": 2}}`, `{"a": {"b": 2}}`, false},
		{"brace inside string", `{"a": "val { with brace"}`, `{"a": "val { with brace"}`, false},
		{"escaped quote inside string", `{"a": "he said \"{\" loudly"}`, `{"a": "he said \"{\" loudly"}`, false},
		{"takes first of two", `{"a": 1} {"b": 2}`, `{"a": 1}`, false},
		{"no object", `no json here`, "", true},
		{"unbalanced", `{"a": {"b": 2}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSONObject(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractStopsOnCancelledContext(t *testing.T) {
	gen := &fakeGenerator{name: "only", response: `{"bookName": "x", "authorName": "y"}`}
	e := newExtractor(t, &fakeRecognizer{text: "cover"}, gen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Extract(ctx, "http://render/page-1.png")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, gen.calls, "no candidate may be scheduled after cancellation")
}
