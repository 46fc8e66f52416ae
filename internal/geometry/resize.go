// Package geometry computes thumbnail dimensions and produces stretched or letterboxed
// copies of page images.
package geometry

import (
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/spherical/docprep/internal/domain"
)

// Mode selects how an explicit (width, height) target is filled.
type Mode string

const (
	// ModeAuto letterboxes when a colour is configured and stretches otherwise.
	ModeAuto      Mode = ""
	ModeStretch   Mode = "stretch"
	ModeLetterbox Mode = "letterbox"
)

// Outcome tells the caller whether Resize produced a new image.
type Outcome int

const (
	Unchanged Outcome = iota
	Resized
)

// Options are the optional parts of a ResizeSpec.
type Options struct {
	DefaultSquare bool
	Letterbox     *domain.RGB
	MaxSize       int // 0 = no clamp
	Mode          Mode
	Resample      string // bicubic (default), bilinear, lanczos, nearest, box
}

// ResizeSpec is an immutable, validated resize configuration. Build it with NewResizeSpec.
type ResizeSpec struct {
	size          []int
	defaultSquare bool
	letterbox     *domain.RGB
	maxSize       int
	filter        imaging.ResampleFilter
	resample      string
}

// Result of a Resize call.
type Result struct {
	Image   image.Image
	Outcome Outcome
}

// NewResizeSpec validates size and opts. All contract violations are reported here, so a
// spec that constructs successfully never fails at resize time.
func NewResizeSpec(size []int, opts Options) (*ResizeSpec, error) {
	if len(size) != 1 && len(size) != 2 {
		return nil, domain.InvalidResizeSpecError(
			fmt.Sprintf("size must have 1 or 2 components, got %d", len(size)), nil)
	}
	for _, v := range size {
		if v <= 0 {
			return nil, domain.InvalidResizeSpecError(fmt.Sprintf("size components must be positive, got %v", size), nil)
		}
	}

	switch opts.Mode {
	case ModeAuto:
	case ModeStretch:
		if opts.Letterbox != nil {
			return nil, domain.InvalidResizeSpecError("stretch mode cannot be combined with a letterbox colour", nil)
		}
	case ModeLetterbox:
		if opts.Letterbox == nil {
			return nil, domain.InvalidResizeSpecError("letterbox mode requires a letterbox colour", nil)
		}
	default:
		return nil, domain.InvalidResizeSpecError(fmt.Sprintf("unknown resize mode %q", opts.Mode), nil)
	}

	if opts.MaxSize < 0 {
		return nil, domain.InvalidResizeSpecError(fmt.Sprintf("max size must not be negative, got %d", opts.MaxSize), nil)
	}
	if len(size) == 1 && !opts.DefaultSquare && opts.MaxSize > 0 && opts.MaxSize <= size[0] {
		return nil, domain.InvalidResizeSpecError(fmt.Sprintf(
			"max size %d must be strictly greater than the requested short edge %d", opts.MaxSize, size[0]), nil)
	}

	filter, name, err := ParseResample(opts.Resample)
	if err != nil {
		return nil, domain.InvalidResizeSpecError("invalid resample policy", err)
	}

	spec := &ResizeSpec{
		size:          append([]int(nil), size...),
		defaultSquare: opts.DefaultSquare,
		maxSize:       opts.MaxSize,
		filter:        filter,
		resample:      name,
	}
	if opts.Letterbox != nil {
		c := *opts.Letterbox
		spec.letterbox = &c
	}
	return spec, nil
}

// ParseResample maps a policy name to an imaging filter. The empty name is bicubic.
func ParseResample(name string) (imaging.ResampleFilter, string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "bicubic", "catmullrom":
		return imaging.CatmullRom, "bicubic", nil
	case "bilinear", "linear":
		return imaging.Linear, "bilinear", nil
	case "lanczos":
		return imaging.Lanczos, "lanczos", nil
	case "nearest":
		return imaging.NearestNeighbor, "nearest", nil
	case "box":
		return imaging.Box, "box", nil
	default:
		return imaging.ResampleFilter{}, "", fmt.Errorf("unknown resample policy %q", name)
	}
}

// Size returns a copy of the configured target size.
func (s *ResizeSpec) Size() []int { return append([]int(nil), s.size...) }

// Letterbox returns the letterbox colour, if any.
func (s *ResizeSpec) Letterbox() (domain.RGB, bool) {
	if s.letterbox == nil {
		return domain.RGB{}, false
	}
	return *s.letterbox, true
}

func (s *ResizeSpec) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "size=%v square=%t resample=%s", s.size, s.defaultSquare, s.resample)
	if s.letterbox != nil {
		fmt.Fprintf(&b, " letterbox=%s", s.letterbox)
	}
	if s.maxSize > 0 {
		fmt.Fprintf(&b, " max=%d", s.maxSize)
	}
	return b.String()
}

// TargetSize computes the output dimensions for a source of iw x ih. ok is false when the
// source already satisfies a short-edge target, or has an empty edge, and should be
// returned as is.
func (s *ResizeSpec) TargetSize(iw, ih int) (w, h int, ok bool) {
	if iw <= 0 || ih <= 0 {
		return iw, ih, false
	}
	if len(s.size) == 2 {
		return s.size[0], s.size[1], true
	}
	if s.defaultSquare {
		return s.size[0], s.size[0], true
	}

	short := s.size[0]
	ishort, ilong := iw, ih
	if iw > ih {
		ishort, ilong = ih, iw
	}
	if short == ishort {
		return iw, ih, false
	}

	long := short * ilong / ishort
	if s.maxSize > 0 && long > s.maxSize {
		short, long = s.maxSize*short/long, s.maxSize
	}

	if iw <= ih {
		return short, long, true
	}
	return long, short, true
}

// Resize scales img according to spec. It is deterministic and keeps no state.
func Resize(img image.Image, spec *ResizeSpec) Result {
	b := img.Bounds()
	w, h, ok := spec.TargetSize(b.Dx(), b.Dy())
	if !ok {
		return Result{Image: img, Outcome: Unchanged}
	}
	w, h = atLeastOne(w), atLeastOne(h)

	if spec.letterbox != nil {
		return Result{Image: letterbox(img, w, h, *spec.letterbox, spec.filter), Outcome: Resized}
	}
	return Result{Image: imaging.Resize(img, w, h, spec.filter), Outcome: Resized}
}

// letterbox scales img uniformly to fit inside w x h and pastes it centred onto a canvas of
// exactly w x h filled with bg.
func letterbox(img image.Image, w, h int, bg domain.RGB, filter imaging.ResampleFilter) *image.NRGBA {
	b := img.Bounds()
	iw, ih := b.Dx(), b.Dy()
	scale := min(float64(w)/float64(iw), float64(h)/float64(ih))
	nw := atLeastOne(int(float64(iw) * scale))
	nh := atLeastOne(int(float64(ih) * scale))

	canvas := imaging.New(w, h, bg.NRGBA())
	scaled := imaging.Resize(img, nw, nh, filter)
	return imaging.Paste(canvas, scaled, image.Pt((w-nw)/2, (h-nh)/2))
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
