// Package pipeline normalizes one source document into page images and thumbnails.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/spherical/docprep/internal/classify"
	"github.com/spherical/docprep/internal/domain"
	"github.com/spherical/docprep/internal/expand"
	"github.com/spherical/docprep/internal/geometry"
	"github.com/spherical/docprep/internal/observability"
	"github.com/spherical/docprep/internal/orient"
	"github.com/spherical/docprep/internal/pdf"
)

// Options controls where and how pages are written.
type Options struct {
	OutputRoot string
	// ThumbnailRoot enables thumbnails when set together with Thumbnails.
	ThumbnailRoot   string
	Thumbnails      *geometry.ResizeSpec
	AllowedFormats  []string
	PreferredFormat string
	// PDFFormat is the encoding for rasterized PDF pages.
	PDFFormat string
}

// DefaultOptions returns the formats accepted by downstream labelling tools.
func DefaultOptions() Options {
	return Options{
		AllowedFormats:  []string{"jpg", "jpeg", "png"},
		PreferredFormat: "png",
		PDFFormat:       "png",
	}
}

// Pipeline implements domain.Processor.
type Pipeline struct {
	expander *expand.Expander
	opts     Options
	allowed  map[string]bool
	logger   *observability.Logger
}

var _ domain.Processor = (*Pipeline)(nil)

// New validates opts and creates a Pipeline.
func New(expander *expand.Expander, opts Options, logger *observability.Logger) (*Pipeline, error) {
	if expander == nil {
		return nil, domain.ConfigError("pipeline requires an expander", nil)
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	if opts.OutputRoot == "" {
		return nil, domain.ConfigError("output root is required", nil)
	}

	opts.PreferredFormat = classify.NormalizeExt(opts.PreferredFormat)
	if _, err := imaging.FormatFromExtension(opts.PreferredFormat); err != nil {
		return nil, domain.ConfigError(fmt.Sprintf("preferred image format %q cannot be encoded", opts.PreferredFormat), err)
	}
	if opts.PDFFormat == "" {
		opts.PDFFormat = opts.PreferredFormat
	}
	opts.PDFFormat = classify.NormalizeExt(opts.PDFFormat)
	if _, err := imaging.FormatFromExtension(opts.PDFFormat); err != nil {
		return nil, domain.ConfigError(fmt.Sprintf("PDF image format %q cannot be encoded", opts.PDFFormat), err)
	}

	allowed := make(map[string]bool, len(opts.AllowedFormats))
	for _, f := range opts.AllowedFormats {
		f = classify.NormalizeExt(f)
		if _, err := imaging.FormatFromExtension(f); err != nil {
			return nil, domain.ConfigError(fmt.Sprintf("allowed format %q cannot be encoded", f), err)
		}
		allowed[f] = true
	}

	return &Pipeline{
		expander: expander,
		opts:     opts,
		allowed:  allowed,
		logger:   logger,
	}, nil
}

// Options returns the configuration the pipeline was built with.
func (p *Pipeline) Options() Options {
	return p.opts
}

// WithRoots returns a copy of the pipeline that writes under different roots. An empty
// thumbRoot disables thumbnails.
func (p *Pipeline) WithRoots(outRoot, thumbRoot string) *Pipeline {
	cp := *p
	cp.opts.OutputRoot = outRoot
	cp.opts.ThumbnailRoot = thumbRoot
	return &cp
}

// ThumbnailsEnabled reports whether pages are also written as thumbnails.
func (p *Pipeline) ThumbnailsEnabled() bool {
	return p.opts.ThumbnailRoot != "" && p.opts.Thumbnails != nil
}

// ProcessFile reads root/rel and mirrors it under the output roots.
func (p *Pipeline) ProcessFile(ctx context.Context, root, rel string) (*domain.ExtractionResult, error) {
	src := filepath.Join(root, filepath.FromSlash(rel))
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("failed to read %s", src), err)
	}

	doc, err := classify.Classify(src, data, classify.ExtOf(rel))
	if err != nil {
		return nil, err
	}

	return p.process(ctx, doc, rel, src)
}

// ProcessDocument normalizes doc and writes its pages under the output roots at the
// relative location rel.
func (p *Pipeline) ProcessDocument(ctx context.Context, doc domain.SourceDocument, rel string) (*domain.ExtractionResult, error) {
	return p.process(ctx, doc, rel, "")
}

// process does the work for both entry points. When src names the file doc was read
// from, verbatim copies keep its modification time.
func (p *Pipeline) process(ctx context.Context, doc domain.SourceDocument, rel, src string) (*domain.ExtractionResult, error) {
	rel = filepath.ToSlash(rel)
	subdir := path.Dir(rel)
	if subdir == "." {
		subdir = ""
	}
	filename := path.Base(rel)
	origExt := strings.TrimPrefix(path.Ext(filename), ".")
	base := strings.TrimSuffix(filename, path.Ext(filename))

	log := p.logger.WithDocument(doc.ID)
	if doc.Kind == domain.KindPDF && pdf.NewValidator().IsLarge(doc.Data) {
		log.Warn().Int64("bytes", int64(len(doc.Data))).Msg("PDF is very large, processing may take a while")
	}

	outDir := filepath.Join(p.opts.OutputRoot, filepath.FromSlash(subdir))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, domain.IOError(fmt.Sprintf("failed to create %s", outDir), err)
	}
	var thumbDir string
	if p.ThumbnailsEnabled() {
		thumbDir = filepath.Join(p.opts.ThumbnailRoot, filepath.FromSlash(subdir))
		if err := os.MkdirAll(thumbDir, 0o755); err != nil {
			return nil, domain.IOError(fmt.Sprintf("failed to create %s", thumbDir), err)
		}
	}

	pages, err := p.expander.Expand(doc)
	if err != nil {
		return nil, err
	}
	defer pages.Close()

	total := pages.Count()
	convert := !p.allowed[doc.Ext]
	if total > 1 {
		log.Info().Int("pages", total).Str("kind", doc.Kind.String()).Msg("Extracting pages")
	}

	result := &domain.ExtractionResult{
		Source:     doc.ID,
		Pages:      make([]string, 0, total),
		Categories: Categories(rel),
	}

	for page, err := range pages.All() {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw := page.Orientation
		page, rotated := orient.Normalize(page)

		var name, action string
		if total == 1 && !convert && !rotated {
			name, action = filename, "copied"
			outPath := filepath.Join(outDir, name)
			if err := os.WriteFile(outPath, doc.Data, 0o644); err != nil {
				return nil, domain.IOError(fmt.Sprintf("failed to copy to %s", outPath), err)
			}
			if src != "" {
				if info, err := os.Stat(src); err == nil {
					_ = os.Chtimes(outPath, info.ModTime(), info.ModTime())
				}
			}
		} else {
			ext := origExt
			switch {
			case convert && doc.Kind == domain.KindPDF:
				ext = p.opts.PDFFormat
			case convert:
				ext = p.opts.PreferredFormat
			}
			name = base + "." + ext
			if total > 1 {
				name = fmt.Sprintf("%s-%04d.%s", base, page.Index, ext)
			}
			if err := writeImage(filepath.Join(outDir, name), page.Image); err != nil {
				return nil, err
			}
			switch {
			case convert:
				action = "converted"
			case rotated:
				action = "rotated"
			default:
				action = "extracted"
			}
		}
		result.Pages = append(result.Pages, filepath.Join(outDir, name))

		if thumbDir != "" {
			thumb := geometry.Resize(page.Image, p.opts.Thumbnails)
			thumbPath := filepath.Join(thumbDir, name)
			if err := writeImage(thumbPath, thumb.Image); err != nil {
				return nil, err
			}
			result.Thumbnails = append(result.Thumbnails, thumbPath)
		}

		log.Debug().
			Str("action", action).
			Int("page", page.Index).
			Int("orientation", raw).
			Bool("rotated", rotated).
			Str("output", name).
			Msg("Page written")
	}

	log.Info().Int("pages", len(result.Pages)).Int("thumbnails", len(result.Thumbnails)).Msg("Document processed")
	return result, nil
}

// Categories returns the directory components of rel, used as dataset labels.
func Categories(rel string) []string {
	dir := path.Dir(filepath.ToSlash(rel))
	if dir == "." || dir == "/" {
		return []string{}
	}
	var cats []string
	for _, c := range strings.Split(dir, "/") {
		if c != "" {
			cats = append(cats, c)
		}
	}
	if cats == nil {
		return []string{}
	}
	return cats
}

// writeImage encodes img in the format implied by the file extension.
func writeImage(dst string, img image.Image) error {
	format, err := imaging.FormatFromFilename(dst)
	if err != nil {
		return domain.ConfigError(fmt.Sprintf("no encoder for %s", dst), err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return domain.IOError(fmt.Sprintf("failed to create %s", dst), err)
	}
	if err := imaging.Encode(f, img, format, imaging.JPEGQuality(95)); err != nil {
		f.Close()
		os.Remove(dst)
		return domain.UnreadableSourceError(fmt.Sprintf("failed to encode %s", dst), err)
	}
	if err := f.Close(); err != nil {
		return domain.IOError(fmt.Sprintf("failed to write %s", dst), err)
	}
	return nil
}
