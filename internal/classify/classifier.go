// Package classify maps file extensions and request content types to document kinds.
package classify

import (
	"fmt"
	"mime"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spherical/docprep/internal/domain"
)

var extensionKinds = map[string]domain.Kind{
	"pdf":  domain.KindPDF,
	"tif":  domain.KindMultiFrameImage,
	"tiff": domain.KindMultiFrameImage,
	"jpg":  domain.KindSingleImage,
	"jpeg": domain.KindSingleImage,
	"png":  domain.KindSingleImage,
	"gif":  domain.KindSingleImage,
	"bmp":  domain.KindSingleImage,
}

type contentType struct {
	kind domain.Kind
	ext  string
}

// Request content types accepted by the real-time endpoint.
var contentTypes = map[string]contentType{
	"image/jpeg":      {domain.KindSingleImage, "jpg"},
	"image/jpg":       {domain.KindSingleImage, "jpg"},
	"image/png":       {domain.KindSingleImage, "png"},
	"image/tiff":      {domain.KindMultiFrameImage, "tiff"},
	"application/pdf": {domain.KindPDF, "pdf"},
}

// NormalizeExt lower-cases ext and strips a leading dot.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ExtOf returns the normalized extension of a file name.
func ExtOf(name string) string {
	return NormalizeExt(filepath.Ext(name))
}

// FromExtension classifies a file extension. Unknown extensions are KindUnsupported.
func FromExtension(ext string) domain.Kind {
	return extensionKinds[NormalizeExt(ext)]
}

// FromContentType classifies a request MIME type and returns the extension its payload is
// stored under. Parameters such as charset are ignored.
func FromContentType(value string) (domain.Kind, string, error) {
	mediaType := strings.ToLower(strings.TrimSpace(value))
	if parsed, _, err := mime.ParseMediaType(value); err == nil {
		mediaType = parsed
	}
	ct, ok := contentTypes[mediaType]
	if !ok {
		return domain.KindUnsupported, "", domain.RequestFormatError(
			fmt.Sprintf("unrecognised request content type %q, supported: %s", value, strings.Join(SupportedContentTypes(), ", ")), nil)
	}
	return ct.kind, ct.ext, nil
}

// SupportedContentTypes lists accepted request content types in sorted order.
func SupportedContentTypes() []string {
	types := make([]string, 0, len(contentTypes))
	for t := range contentTypes {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Classify builds a SourceDocument for data stored under ext. Unsupported kinds fail with
// UnsupportedFormat.
func Classify(id string, data []byte, ext string) (domain.SourceDocument, error) {
	ext = NormalizeExt(ext)
	doc := domain.SourceDocument{
		ID:   id,
		Data: data,
		Ext:  ext,
		Kind: FromExtension(ext),
	}
	if doc.Kind == domain.KindUnsupported {
		return doc, domain.UnsupportedFormatError(fmt.Sprintf("unsupported file type %q for %s", ext, id), nil)
	}
	return doc, nil
}
