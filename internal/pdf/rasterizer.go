// Package pdf rasterizes PDF pages with go-fitz and probes documents with pdfcpu.
package pdf

import (
	"fmt"
	"image"
	"sync"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/docprep/internal/domain"
)

// DefaultDPI is the rasterization resolution used when none is configured.
const DefaultDPI = 300

// Rasterizer opens PDFs for page-by-page rendering at a fixed DPI.
type Rasterizer struct {
	dpi float64
}

var _ domain.Rasterizer = (*Rasterizer)(nil)

// NewRasterizer creates a Rasterizer. dpi must be positive.
func NewRasterizer(dpi int) (*Rasterizer, error) {
	if err := NewValidator().ValidateDPI(dpi); err != nil {
		return nil, err
	}
	return &Rasterizer{dpi: float64(dpi)}, nil
}

// DPI returns the rendering resolution.
func (r *Rasterizer) DPI() int {
	return int(r.dpi)
}

// Open parses data as a PDF. The returned document must be closed.
func (r *Rasterizer) Open(data []byte) (domain.RasterDocument, error) {
	if err := NewValidator().ValidateData(data); err != nil {
		return nil, err
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, domain.UnreadableSourceError("failed to open PDF", err)
	}
	return &Document{doc: doc, dpi: r.dpi}, nil
}

// Document is an open PDF. Rendering is serialized since a fitz document is not safe
// for concurrent use.
type Document struct {
	mu  sync.Mutex
	doc *fitz.Document
	dpi float64
}

// NumPage returns the number of pages in the document.
func (d *Document) NumPage() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return 0
	}
	return d.doc.NumPage()
}

// Render rasterizes the zero-based page.
func (d *Document) Render(page int) (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.doc == nil {
		return nil, domain.UnreadableSourceError("PDF document is closed", nil)
	}
	img, err := d.doc.ImageDPI(page, d.dpi)
	if err != nil {
		return nil, domain.UnreadableSourceError(fmt.Sprintf("failed to render page %d", page+1), err)
	}
	return img, nil
}

// Close releases the underlying document. It is safe to call more than once.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.doc == nil {
		return nil
	}
	err := d.doc.Close()
	d.doc = nil
	if err != nil {
		return fmt.Errorf("close PDF: %w", err)
	}
	return nil
}
