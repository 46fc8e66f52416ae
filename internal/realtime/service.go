// Package realtime runs the page pipeline on a single in-memory payload and encodes the
// result for a request/response caller.
package realtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/spherical/docprep/internal/cache"
	"github.com/spherical/docprep/internal/domain"
	"github.com/spherical/docprep/internal/geometry"
	"github.com/spherical/docprep/internal/observability"
	"github.com/spherical/docprep/internal/orient"
	"github.com/spherical/docprep/internal/pipeline"
)

// Request is one real-time invocation.
type Request struct {
	ID          string
	Body        []byte
	ContentType string
	Accept      string
}

// Service handles real-time requests. It is safe for concurrent use.
type Service struct {
	pipeline *pipeline.Pipeline
	thumbs   *geometry.ResizeSpec
	cache    cache.Client
	cacheTTL time.Duration
	logger   *observability.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables response caching.
func WithCache(c cache.Client, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithLogger sets the service logger.
func WithLogger(l *observability.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service. The pipeline must be configured with a thumbnail spec;
// its output roots are replaced by a temporary directory per request.
func NewService(p *pipeline.Pipeline, opts ...Option) (*Service, error) {
	if p == nil || p.Options().Thumbnails == nil {
		return nil, domain.ConfigError("real-time service requires a pipeline with a thumbnail size", nil)
	}
	s := &Service{
		pipeline: p,
		thumbs:   p.Options().Thumbnails,
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handle decodes, processes and encodes one request, consulting the cache if enabled.
func (s *Service) Handle(ctx context.Context, req Request) (Response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	log := s.logger.WithContext(ctx).WithDocument(req.ID)

	var key string
	if s.cache != nil {
		key = cache.ResponseKey(req.Body, req.ContentType, NormalizeAccept(req.Accept))
		if b, err := s.cache.Get(ctx, key); err == nil {
			if resp, ok := unmarshalResponse(b); ok {
				log.Debug().Str("content_type", resp.ContentType).Msg("Serving cached response")
				return resp, nil
			}
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn().Err(err).Msg("Cache lookup failed")
		}
	}

	doc, err := DecodeRequest(req.ID, req.Body, req.ContentType)
	if err != nil {
		return Response{}, err
	}
	resp, err := s.HandleDocument(ctx, doc, req.Accept)
	if err != nil {
		return Response{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, marshalResponse(resp), s.cacheTTL); err != nil {
			log.Warn().Err(err).Msg("Cache store failed")
		}
	}
	log.Info().
		Str("kind", doc.Kind.String()).
		Str("content_type", resp.ContentType).
		Int("bytes", len(resp.Body)).
		Msg("Request processed")
	return resp, nil
}

// HandleDocument processes an already classified document and encodes it for accept.
// An unusable accept type is rejected before any work is done.
func (s *Service) HandleDocument(ctx context.Context, doc domain.SourceDocument, accept string) (Response, error) {
	if err := checkAccept(doc.Kind, accept); err != nil {
		return Response{}, err
	}
	out, err := s.Process(ctx, doc)
	if err != nil {
		return Response{}, err
	}
	return EncodeResponse(out, accept)
}

func checkAccept(kind domain.Kind, accept string) error {
	media := NormalizeAccept(accept)
	if _, ok := imageFormats[media]; ok {
		if kind != domain.KindSingleImage {
			return domain.RequestFormatError(fmt.Sprintf(
				"requested content type %s can only be used for single-page images, try %s", media, MediaNPZ), ErrNotAcceptable)
		}
		return nil
	}
	if media != MediaNPY && media != MediaNPZ {
		return domain.RequestFormatError(fmt.Sprintf("requested content type %s not recognised", media), ErrNotAcceptable)
	}
	return nil
}

// Process resizes a single image directly, or runs the full pipeline for a document in
// a scoped temporary directory and collects its page thumbnails.
func (s *Service) Process(ctx context.Context, doc domain.SourceDocument) (*Output, error) {
	if doc.Kind == domain.KindSingleImage {
		img, err := imaging.Decode(bytes.NewReader(doc.Data))
		if err != nil {
			return nil, domain.UnidentifiedImageError("cannot identify request image", err)
		}
		page, _ := orient.Normalize(domain.NewPageBuffer(1, img, int(orient.Read(doc.Data))))
		return &Output{Image: geometry.Resize(page.Image, s.thumbs).Image}, nil
	}

	tmp, err := os.MkdirTemp("", "docprep-rt-*")
	if err != nil {
		return nil, domain.IOError("failed to create temporary directory", err)
	}
	defer os.RemoveAll(tmp)

	p := s.pipeline.WithRoots(filepath.Join(tmp, "out"), filepath.Join(tmp, "thumbs"))
	res, err := p.ProcessDocument(ctx, doc, "doc."+doc.Ext)
	if err != nil {
		return nil, err
	}

	out := &Output{Images: make([][]byte, 0, len(res.Thumbnails))}
	for _, path := range res.Thumbnails {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, domain.IOError(fmt.Sprintf("failed to read thumbnail %s", filepath.Base(path)), err)
		}
		out.Images = append(out.Images, b)
	}
	return out, nil
}
