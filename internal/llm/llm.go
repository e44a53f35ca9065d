// Package llm abstracts generative text providers behind a single Generate
// capability, so the metadata extractor can walk an ordered candidate list
// without caring which backend serves each candidate.
package llm

import "context"

// Generator is one named configuration of a generative text provider.
type Generator interface {
	// Name identifies the candidate in logs and errors, e.g. "vertex:gemini-1.5-pro".
	Name() string
	// Generate submits the prompt and returns the raw model response.
	Generate(ctx context.Context, prompt string) (string, error)
}
