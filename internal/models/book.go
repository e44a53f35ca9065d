package models

import "time"

// Book represents the catalog record for one ingested book in Firestore.
// It tracks the overall status and metadata of the source document.
type Book struct {
	FileHash         string    `firestore:"fileHash,omitempty"`
	OriginalFilename string    `firestore:"originalFilename,omitempty"`
	Status           string    `firestore:"status,omitempty"`
	ErrorDetails     string    `firestore:"errorDetails,omitempty"`
	PageCount        int       `firestore:"pageCount,omitempty"`
	Title            string    `firestore:"title,omitempty"`
	Author           string    `firestore:"author,omitempty"`
	SourceID         string    `firestore:"sourceId,omitempty"`
	SourceVersion    string    `firestore:"sourceVersion,omitempty"`
	CreatedAt        time.Time `firestore:"createdAt,omitempty"`
}

// Catalog status values, in pipeline order.
const (
	StatusRegistered    = "REGISTERED"
	StatusExtracting    = "EXTRACTING"
	StatusMaterializing = "MATERIALIZING"
	StatusComplete      = "COMPLETE"
	StatusFailed        = "FAILED"
)

// RenderHandle identifies one registered source document at the render
// provider. It is stable for the lifetime of a single pipeline run and is
// the input to every page locator computation.
type RenderHandle struct {
	SourceID      string
	SourceVersion string
	PageCount     int
}

// BookMetadata is the structured result of cover-page extraction.
// UnknownField is used only when the model itself could not determine a value.
type BookMetadata struct {
	Title  string `json:"bookName"`
	Author string `json:"authorName"`
}

// UnknownField is the sentinel the extraction prompt instructs the model to
// emit for a field it cannot read off the cover.
const UnknownField = "Unknown"

// PageArtifact is the durable result for one page. Created once per page per
// successful run and never mutated afterwards.
type PageArtifact struct {
	PageID        string `json:"pageId"`
	PageNumber    int    `json:"pageNumber"`
	PageURL       string `json:"pageUrl"`
	StorageObject string `json:"storageObject,omitempty"`
}
