// Package batch runs the page pipeline over a directory tree with a pool of workers.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/spherical/docprep/internal/domain"
	"github.com/spherical/docprep/internal/observability"
)

// LockFile is created in the output root for the duration of a run.
const LockFile = ".docprep.lock"

// DefaultWorkerDelay staggers worker start-up.
const DefaultWorkerDelay = 500 * time.Millisecond

// ErrLocked is returned when another run holds the output root.
var ErrLocked = errors.New("output root is locked by another batch run")

// Config for a batch run.
type Config struct {
	InputRoot  string
	OutputRoot string
	Workers    int
	// WorkerDelay is slept by each worker before it takes its first document.
	WorkerDelay time.Duration
}

// Event reports one finished document.
type Event struct {
	Done   int // completion order, 1-based
	Total  int
	Path   string
	Result *domain.ExtractionResult
	Err    error
}

// ProgressFunc is called after every document. Calls are serialized.
type ProgressFunc func(Event)

// Summary aggregates a run.
type Summary struct {
	Total      int
	Processed  int
	Skipped    int
	Failed     int
	Pages      int
	Thumbnails int
	Duration   time.Duration
	Results    []*domain.ExtractionResult
}

// Runner fans documents out to workers.
type Runner struct {
	processor domain.Processor
	cfg       Config
	logger    *observability.Logger
	progress  ProgressFunc
}

// NewRunner creates a Runner. Workers defaults to the CPU count.
func NewRunner(processor domain.Processor, cfg Config, logger *observability.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Runner{
		processor: processor,
		cfg:       cfg,
		logger:    logger.WithOperation("batch").With().Str("input", cfg.InputRoot).Logger(),
	}
}

// OnProgress registers fn to observe completed documents.
func (r *Runner) OnProgress(fn ProgressFunc) {
	r.progress = fn
}

// Run processes every file under the input root. Skippable document errors are logged
// and counted. Other errors are counted as failures and returned joined once the queue
// is drained; no document error stops a worker.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	if err := os.MkdirAll(r.cfg.OutputRoot, 0o755); err != nil {
		return nil, domain.IOError(fmt.Sprintf("failed to create output root %s", r.cfg.OutputRoot), err)
	}
	lock := flock.New(filepath.Join(r.cfg.OutputRoot, LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, domain.IOError("failed to lock output root", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}()

	paths, err := Walk(r.cfg.InputRoot)
	if err != nil {
		return nil, err
	}

	workers := r.cfg.Workers
	if workers > len(paths) {
		workers = len(paths)
	}
	r.logger.Info().
		Str("output", r.cfg.OutputRoot).
		Int("documents", len(paths)).
		Int("workers", workers).
		Msg("Starting batch run")

	work := make(chan string, len(paths))
	for _, p := range paths {
		work <- p
	}
	close(work)

	summary := &Summary{Total: len(paths)}
	var (
		mu       sync.Mutex
		failures []error
	)
	record := func(rel string, res *domain.ExtractionResult, err error) {
		mu.Lock()
		defer mu.Unlock()

		switch {
		case err == nil:
			summary.Processed++
			summary.Pages += len(res.Pages)
			summary.Thumbnails += len(res.Thumbnails)
			summary.Results = append(summary.Results, res)
		case domain.IsSkippable(err):
			summary.Skipped++
			r.logger.Warn().Str("path", rel).Err(err).Msg("Document skipped")
		default:
			summary.Failed++
			failures = append(failures, fmt.Errorf("%s: %w", rel, err))
			r.logger.Error().Str("path", rel).Err(err).Msg("Document failed")
		}

		done := summary.Processed + summary.Skipped + summary.Failed
		r.logger.Info().Msgf("Processed doc %d of %d", done, summary.Total)
		if r.progress != nil {
			r.progress(Event{Done: done, Total: summary.Total, Path: rel, Result: res, Err: err})
		}
	}

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			if r.cfg.WorkerDelay > 0 {
				select {
				case <-time.After(r.cfg.WorkerDelay):
				case <-ctx.Done():
					return nil
				}
			}
			for rel := range work {
				if ctx.Err() != nil {
					return nil
				}
				res, err := r.processor.ProcessFile(ctx, r.cfg.InputRoot, rel)
				if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
					return nil
				}
				record(rel, res, err)
			}
			return nil
		})
	}
	waitErr := g.Wait()
	summary.Duration = time.Since(start)

	sort.Slice(summary.Results, func(i, j int) bool {
		return summary.Results[i].Source < summary.Results[j].Source
	})

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	if waitErr != nil {
		return summary, waitErr
	}
	if len(failures) > 0 {
		return summary, errors.Join(failures...)
	}

	r.logger.Info().
		Int("processed", summary.Processed).
		Int("skipped", summary.Skipped).
		Int("pages", summary.Pages).
		Dur("duration", summary.Duration).
		Msg("All done")
	return summary, nil
}

// Walk lists regular files under root as sorted slash-separated relative paths. Hidden
// files and anything below a hidden directory are skipped.
func Walk(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("cannot read input root %s", root), err)
	}
	if !info.IsDir() {
		return nil, domain.ConfigError(fmt.Sprintf("input root %s is not a directory", root), nil)
	}

	var paths []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("failed to walk %s", root), err)
	}
	sort.Strings(paths)
	return paths, nil
}
