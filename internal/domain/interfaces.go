package domain

import (
	"context"
	"image"
)

// Rasterizer defines the interface for turning PDF bytes into page images
type Rasterizer interface {
	// Open parses the document and returns its page count and a renderer for individual
	// pages. The returned closer must be called once rendering is finished.
	Open(data []byte) (RasterDocument, error)
}

// RasterDocument is an opened PDF ready for page-by-page rendering
type RasterDocument interface {
	NumPage() int
	// Render rasterizes a 0-based page
	Render(page int) (image.Image, error)
	Close() error
}

// Processor normalizes one document into page (and thumbnail) artifacts
type Processor interface {
	ProcessFile(ctx context.Context, root, rel string) (*ExtractionResult, error)
}
