package models

// These structs are the results handed to the presentation and
// quiz-generation subsystems once a pipeline run completes.

// PreviewResult is returned by the extract-only flow. Page URLs point at the
// render provider directly; nothing is re-hosted.
type PreviewResult struct {
	Metadata   BookMetadata   `json:"metadata"`
	Pages      []PageArtifact `json:"pages"`
	ScratchDir string         `json:"scratchDir,omitempty"`
}

// IngestResult is returned by the full-ingestion flow after every page has
// been re-hosted to durable storage.
type IngestResult struct {
	Metadata      BookMetadata   `json:"metadata"`
	Pages         []PageArtifact `json:"pages"`
	SourceID      string         `json:"originalSourceId"`
	SourceVersion string         `json:"originalSourceVersion"`
}
