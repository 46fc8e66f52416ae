// Package startup wires configuration into the runtime components shared by the CLI and
// the HTTP server.
package startup

import (
	"os"

	"github.com/spherical/docprep/internal/cache"
	"github.com/spherical/docprep/internal/config"
	"github.com/spherical/docprep/internal/expand"
	"github.com/spherical/docprep/internal/observability"
	"github.com/spherical/docprep/internal/pdf"
	"github.com/spherical/docprep/internal/pipeline"
	"github.com/spherical/docprep/internal/realtime"
)

// Logger builds the configured logger.
func Logger(cfg *config.Config) *observability.Logger {
	return observability.NewLogger(cfg.LogConfig())
}

// Pipeline builds a page pipeline writing under outRoot, and thumbnails under thumbRoot
// when it is set.
func Pipeline(cfg *config.Config, outRoot, thumbRoot string, logger *observability.Logger) (*pipeline.Pipeline, error) {
	raster, err := pdf.NewRasterizer(cfg.Pipeline.PDFDPI)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.PipelineOptions(outRoot, thumbRoot)
	if err != nil {
		return nil, err
	}
	return pipeline.New(expand.New(raster), opts, logger)
}

// RealtimeService builds the real-time service with the configured response cache. The
// returned cleanup releases the cache and must be called once the service is done.
func RealtimeService(cfg *config.Config, logger *observability.Logger) (*realtime.Service, func() error, error) {
	// Output roots are replaced by a per-request temporary directory.
	p, err := Pipeline(cfg, os.TempDir(), "", logger)
	if err != nil {
		return nil, nil, err
	}

	c, err := cache.Open(cfg.CacheOptions())
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() error { return nil }
	opts := []realtime.Option{}
	if logger != nil {
		opts = append(opts, realtime.WithLogger(logger.With().Str("component", "realtime").Logger()))
	}
	if c != nil {
		cleanup = c.Close
		opts = append(opts, realtime.WithCache(c, cfg.Cache.TTL))
	}

	svc, err := realtime.NewService(p, opts...)
	if err != nil {
		_ = cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}
