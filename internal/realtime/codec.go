package realtime

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"mime"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/spherical/docprep/internal/classify"
	"github.com/spherical/docprep/internal/domain"
	"github.com/spherical/docprep/internal/npy"
)

// Response media types.
const (
	MediaNPY     = "application/x-npy"
	MediaNPZ     = "application/x-npz"
	MediaPNG     = "image/png"
	MediaJPEG    = "image/jpeg"
	MediaJPG     = "image/jpg"
	DefaultMedia = MediaNPZ
)

var (
	// ErrUnsupportedContentType marks requests whose payload type is not accepted.
	ErrUnsupportedContentType = errors.New("unsupported content type")
	// ErrNotAcceptable marks requests whose Accept type cannot be produced.
	ErrNotAcceptable = errors.New("not acceptable")
)

var imageFormats = map[string]imaging.Format{
	MediaPNG:  imaging.PNG,
	MediaJPEG: imaging.JPEG,
	MediaJPG:  imaging.JPEG,
}

// Output is the processed form of one request: a single resized image, or the encoded
// page thumbnails of a document in page order.
type Output struct {
	Image  image.Image
	Images [][]byte
}

// Response is an encoded reply.
type Response struct {
	ContentType string
	Body        []byte
}

// DecodeRequest classifies a request payload by its content type.
func DecodeRequest(id string, body []byte, contentType string) (domain.SourceDocument, error) {
	kind, ext, err := classify.FromContentType(contentType)
	if err != nil {
		var de *domain.DomainError
		if errors.As(err, &de) {
			return domain.SourceDocument{}, domain.RequestFormatError(de.Message, ErrUnsupportedContentType)
		}
		return domain.SourceDocument{}, fmt.Errorf("%w: %w", err, ErrUnsupportedContentType)
	}
	if len(body) == 0 {
		return domain.SourceDocument{}, domain.UnreadableSourceError("request body is empty", nil)
	}
	return domain.SourceDocument{ID: id, Data: body, Ext: ext, Kind: kind}, nil
}

// NormalizeAccept returns the media type of accept without parameters, mapping an empty
// or wildcard value to DefaultMedia.
func NormalizeAccept(accept string) string {
	accept = strings.TrimSpace(accept)
	if accept == "" {
		return DefaultMedia
	}
	if mt, _, err := mime.ParseMediaType(accept); err == nil {
		accept = mt
	}
	accept = strings.ToLower(accept)
	if accept == "*/*" {
		return DefaultMedia
	}
	return accept
}

// EncodeResponse serializes out for the requested accept type.
func EncodeResponse(out *Output, accept string) (Response, error) {
	media := NormalizeAccept(accept)

	if format, ok := imageFormats[media]; ok {
		if out.Image == nil {
			return Response{}, domain.RequestFormatError(fmt.Sprintf(
				"requested content type %s can only be used for single-page images, try %s", media, MediaNPZ), ErrNotAcceptable)
		}
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, out.Image, format, imaging.JPEGQuality(95)); err != nil {
			return Response{}, fmt.Errorf("encode %s response: %w", media, err)
		}
		return Response{ContentType: media, Body: buf.Bytes()}, nil
	}

	switch media {
	case MediaNPY, MediaNPZ:
	default:
		return Response{}, domain.RequestFormatError(fmt.Sprintf(
			"requested content type %s not recognised, use %s, %s or (for single images) an image type", media, MediaNPZ, MediaNPY), ErrNotAcceptable)
	}

	name, arr := "images", npy.FromByteStrings(out.Images)
	if out.Image != nil {
		name, arr = "image", npy.FromImage(out.Image)
	}

	var buf bytes.Buffer
	if media == MediaNPZ {
		if err := npy.WriteNPZ(&buf, npy.Entry{Name: name, Array: arr}); err != nil {
			return Response{}, fmt.Errorf("encode npz response: %w", err)
		}
	} else if _, err := arr.WriteTo(&buf); err != nil {
		return Response{}, fmt.Errorf("encode npy response: %w", err)
	}
	return Response{ContentType: media, Body: buf.Bytes()}, nil
}

// marshalResponse packs a response for the cache as "<content type>\n<body>".
func marshalResponse(r Response) []byte {
	b := make([]byte, 0, len(r.ContentType)+1+len(r.Body))
	b = append(b, r.ContentType...)
	b = append(b, '\n')
	return append(b, r.Body...)
}

func unmarshalResponse(b []byte) (Response, bool) {
	i := bytes.IndexByte(b, '\n')
	if i <= 0 {
		return Response{}, false
	}
	return Response{ContentType: string(b[:i]), Body: b[i+1:]}, true
}
