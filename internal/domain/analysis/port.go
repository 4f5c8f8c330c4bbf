package analysis

import "context"

// Image is one uploaded image of a batch, held in memory.
type Image struct {
	Data        []byte
	ContentType string
}

// Client port for the external multimodal inference service.
type Client interface {
	// Analyze submits the image batch with the fixed analysis prompt and
	// returns the extracted report text.
	Analyze(ctx context.Context, images []Image) (string, error)
}
