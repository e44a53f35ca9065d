// Package ocr provides text recognition over rendered page images.
package ocr

import "context"

// Recognizer extracts text from the image at the given URL. Implementations
// return an error for backend failures; deciding whether empty text is a
// failure belongs to the caller.
type Recognizer interface {
	Recognize(ctx context.Context, imageURL, language string) (string, error)
}
