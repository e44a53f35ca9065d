package services

import "fmt"

// Stage errors. Each pipeline failure surfaces as exactly one of these;
// callers dispatch with errors.As.

// UploadError reports that the render provider rejected the source document.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string { return fmt.Sprintf("source registration failed: %v", e.Err) }
func (e *UploadError) Unwrap() error { return e.Err }

// OcrError reports that text recognition failed or produced no text.
type OcrError struct {
	Err error
}

func (e *OcrError) Error() string { return fmt.Sprintf("cover OCR failed: %v", e.Err) }
func (e *OcrError) Unwrap() error { return e.Err }

// MetadataExtractionError reports that every model candidate was exhausted
// without a usable structured answer. LastErr is the final candidate's failure.
type MetadataExtractionError struct {
	Attempts int
	LastErr  error
}

func (e *MetadataExtractionError) Error() string {
	return fmt.Sprintf("metadata extraction failed after %d candidates: %v", e.Attempts, e.LastErr)
}
func (e *MetadataExtractionError) Unwrap() error { return e.LastErr }

// PageMaterializationError reports that one specific page's transfer failed.
type PageMaterializationError struct {
	Page int
	Err  error
}

func (e *PageMaterializationError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}
func (e *PageMaterializationError) Unwrap() error { return e.Err }
