package domain

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
)

// Kind is the normalized category of a source document.
type Kind int

const (
	KindUnsupported Kind = iota
	KindPDF
	KindSingleImage
	KindMultiFrameImage
)

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindSingleImage:
		return "single-image"
	case KindMultiFrameImage:
		return "multi-frame-image"
	default:
		return "unsupported"
	}
}

// MarshalText renders the kind by name in JSON and YAML output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// SourceDocument is a raw document waiting to be normalized.
type SourceDocument struct {
	ID   string // relative path (batch) or request id (real-time)
	Data []byte
	Ext  string // lower-case extension without the dot
	Kind Kind
}

// PageBuffer is a single decoded page of a SourceDocument
type PageBuffer struct {
	Index       int // 1-based
	Image       image.Image
	Width       int
	Height      int
	Orientation int // 0 = unset, else EXIF 1-8
}

// NewPageBuffer wraps img as page index with the given orientation code.
func NewPageBuffer(index int, img image.Image, orientation int) PageBuffer {
	b := img.Bounds()
	return PageBuffer{
		Index:       index,
		Image:       img,
		Width:       b.Dx(),
		Height:      b.Dy(),
		Orientation: orientation,
	}
}

// ExtractionResult describes everything produced from one SourceDocument.
type ExtractionResult struct {
	Source     string   `json:"source" yaml:"source"`
	Pages      []string `json:"pages" yaml:"pages"`
	Thumbnails []string `json:"thumbnails,omitempty" yaml:"thumbnails,omitempty"`
	Categories []string `json:"categories" yaml:"categories"`
}

// RGB is an opaque 8-bit colour, used for letterbox backgrounds.
type RGB struct {
	R, G, B uint8
}

// NRGBA converts the colour for use with image/draw based APIs.
func (c RGB) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

func (c RGB) String() string {
	return fmt.Sprintf("%d,%d,%d", c.R, c.G, c.B)
}

// ParseRGB parses "r,g,b" with each component in 0-255.
func ParseRGB(s string) (RGB, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return RGB{}, fmt.Errorf("colour %q must have 3 comma-separated components", s)
	}
	var vals [3]uint8
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return RGB{}, fmt.Errorf("colour %q: %w", s, err)
		}
		if v < 0 || v > 255 {
			return RGB{}, fmt.Errorf("colour %q: component %d out of range 0-255", s, v)
		}
		vals[i] = uint8(v)
	}
	return RGB{R: vals[0], G: vals[1], B: vals[2]}, nil
}

// ParseSize parses "w,h" or a single "n" into a size list.
func ParseSize(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) > 2 {
		return nil, fmt.Errorf("size %q must be a single number or width,height", s)
	}
	size := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("size %q: %w", s, err)
		}
		size = append(size, v)
	}
	return size, nil
}
