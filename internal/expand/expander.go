// Package expand turns a classified source document into a lazy sequence of raw pages.
package expand

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"iter"
	"sync/atomic"

	"github.com/disintegration/imaging"

	"github.com/spherical/docprep/internal/domain"
	"github.com/spherical/docprep/internal/orient"
	"github.com/spherical/docprep/internal/pdf"
)

// ErrConsumed is yielded when a page sequence is ranged over a second time.
var ErrConsumed = errors.New("page sequence already consumed")

var errEmptyImage = errors.New("image has no pixels")

// Pages is a finite, single-use sequence of page buffers.
type Pages struct {
	count  int
	page   func(i int) (domain.PageBuffer, error)
	closer func() error
	used   atomic.Bool
	closed atomic.Bool
}

// Count returns the number of pages the sequence yields.
func (p *Pages) Count() int {
	return p.count
}

// All yields pages in document order. Iteration stops after the first error. Ranging a
// second time yields ErrConsumed once.
func (p *Pages) All() iter.Seq2[domain.PageBuffer, error] {
	return func(yield func(domain.PageBuffer, error) bool) {
		if p.used.Swap(true) {
			yield(domain.PageBuffer{}, ErrConsumed)
			return
		}
		for i := 0; i < p.count; i++ {
			if p.closed.Load() {
				yield(domain.PageBuffer{}, fmt.Errorf("page sequence closed after %d of %d pages", i, p.count))
				return
			}
			page, err := p.page(i)
			if !yield(page, err) || err != nil {
				return
			}
		}
	}
}

// Close releases decoder resources. It is safe to call more than once.
func (p *Pages) Close() error {
	if p.closed.Swap(true) || p.closer == nil {
		return nil
	}
	return p.closer()
}

// Expander dispatches on document kind.
type Expander struct {
	raster domain.Rasterizer
}

// New creates an Expander that renders PDFs with raster.
func New(raster domain.Rasterizer) *Expander {
	return &Expander{raster: raster}
}

// Expand opens doc and returns its pages. The caller must Close the result.
func (e *Expander) Expand(doc domain.SourceDocument) (*Pages, error) {
	switch doc.Kind {
	case domain.KindPDF:
		return e.expandPDF(doc)
	case domain.KindMultiFrameImage:
		return expandTIFF(doc)
	case domain.KindSingleImage:
		return expandSingle(doc)
	default:
		return nil, domain.UnsupportedFormatError(fmt.Sprintf("cannot expand %s document %s", doc.Kind, doc.ID), nil)
	}
}

func (e *Expander) expandPDF(doc domain.SourceDocument) (*Pages, error) {
	if e.raster == nil {
		return nil, domain.ConfigError("no PDF rasterizer configured", nil)
	}
	rd, err := e.raster.Open(doc.Data)
	if err != nil {
		return nil, asUnreadable(doc, err)
	}
	return &Pages{
		count: rd.NumPage(),
		page: func(i int) (domain.PageBuffer, error) {
			img, err := rd.Render(i)
			if err != nil {
				return domain.PageBuffer{}, asUnreadable(doc, err)
			}
			return domain.NewPageBuffer(i+1, img, int(orient.None)), nil
		},
		closer: rd.Close,
	}, nil
}

func expandTIFF(doc domain.SourceDocument) (*Pages, error) {
	frames, err := openTIFF(doc.Data)
	if err != nil {
		return nil, domain.UnidentifiedImageError(fmt.Sprintf("cannot identify image %s", doc.ID), err)
	}
	return &Pages{count: frames.count(), page: frames.frame}, nil
}

func expandSingle(doc domain.SourceDocument) (*Pages, error) {
	img, err := imaging.Decode(bytes.NewReader(doc.Data))
	if err != nil {
		return nil, domain.UnidentifiedImageError(fmt.Sprintf("cannot identify image %s", doc.ID), err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, domain.UnidentifiedImageError(fmt.Sprintf("cannot identify image %s", doc.ID), errEmptyImage)
	}
	page := domain.NewPageBuffer(1, img, int(orient.Read(doc.Data)))
	return &Pages{
		count: 1,
		page: func(int) (domain.PageBuffer, error) {
			return page, nil
		},
	}, nil
}

func asUnreadable(doc domain.SourceDocument, err error) error {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return err
	}
	return domain.UnreadableSourceError(fmt.Sprintf("cannot read %s", doc.ID), err)
}

// Info summarizes a document without rasterizing it.
type Info struct {
	Kind   domain.Kind `json:"kind" yaml:"kind"`
	Pages  int         `json:"pages" yaml:"pages"`
	Width  int         `json:"width,omitempty" yaml:"width,omitempty"`
	Height int         `json:"height,omitempty" yaml:"height,omitempty"`
}

// Probe reports the kind and page count of doc. Image dimensions are those of the first
// frame; PDFs report none.
func Probe(doc domain.SourceDocument) (Info, error) {
	info := Info{Kind: doc.Kind}
	switch doc.Kind {
	case domain.KindPDF:
		n, err := pdf.PageCount(doc.Data)
		if err != nil {
			return info, err
		}
		info.Pages = n
	case domain.KindMultiFrameImage:
		frames, err := openTIFF(doc.Data)
		if err != nil {
			return info, domain.UnidentifiedImageError(fmt.Sprintf("cannot identify image %s", doc.ID), err)
		}
		cfg, err := frames.decodeConfig()
		if err != nil {
			return info, domain.UnidentifiedImageError(fmt.Sprintf("cannot identify image %s", doc.ID), err)
		}
		info.Pages, info.Width, info.Height = frames.count(), cfg.Width, cfg.Height
	case domain.KindSingleImage:
		cfg, _, err := image.DecodeConfig(bytes.NewReader(doc.Data))
		if err != nil {
			return info, domain.UnidentifiedImageError(fmt.Sprintf("cannot identify image %s", doc.ID), err)
		}
		info.Pages, info.Width, info.Height = 1, cfg.Width, cfg.Height
	default:
		return info, domain.UnsupportedFormatError(fmt.Sprintf("cannot probe %s document %s", doc.Kind, doc.ID), nil)
	}
	return info, nil
}
