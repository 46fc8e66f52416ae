package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spherical/docprep/cmd/docprep/ui"
	"github.com/spherical/docprep/internal/batch"
	"github.com/spherical/docprep/internal/config"
	"github.com/spherical/docprep/internal/startup"
)

var (
	batchInput      string
	batchOutput     string
	batchThumbnails string
	batchWorkers    int
	batchNoProgress bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Normalize every document under an input directory",
	Long: `Walk the input directory and write upright page images under the output directory,
mirroring the input's subfolders. Multi-page documents produce one file per page with a
4-digit suffix. When a thumbnail directory is given, fixed-size thumbnails are written there
with the same layout.

Files that cannot be decoded are logged and skipped.`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", "", "input directory (default "+config.DefaultInputRoot+")")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "output directory (default "+config.DefaultOutputRoot+")")
	batchCmd.Flags().StringVar(&batchThumbnails, "thumbnails", "", "thumbnail directory (default "+config.DefaultThumbnailRoot+" if it exists)")
	batchCmd.Flags().IntVar(&batchWorkers, "n-workers", 0, "number of workers (default CPU count)")
	batchCmd.Flags().BoolVar(&batchNoProgress, "no-progress", false, "disable the progress bar")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in := firstNonEmpty(batchInput, cfg.Batch.Input)
	out := firstNonEmpty(batchOutput, cfg.Batch.Output)
	thumbs := firstNonEmpty(batchThumbnails, cfg.Batch.Thumbnails)
	workers := cfg.Batch.Workers
	if batchWorkers > 0 {
		workers = batchWorkers
	}

	p, err := startup.Pipeline(cfg, out, thumbs, logger)
	if err != nil {
		return err
	}

	if thumbs == "" {
		logger.Debug().Msg("Thumbnails disabled")
	}

	runner := batch.NewRunner(p, batch.Config{
		InputRoot:   in,
		OutputRoot:  out,
		Workers:     workers,
		WorkerDelay: cfg.Batch.WorkerDelay,
	}, logger)

	var bar *ui.ProgressBar
	if !batchNoProgress {
		runner.OnProgress(func(ev batch.Event) {
			if bar == nil {
				bar = ui.NewProgressBar(int64(ev.Total), "Processing")
			}
			bar.Set(int64(ev.Done))
		})
	}

	summary, err := runner.Run(ctx)
	if bar != nil {
		bar.Finish()
	}
	if errors.Is(err, batch.ErrLocked) {
		return fmt.Errorf("%w: %s", err, out)
	}
	if summary != nil {
		printSummary(summary)
	}
	if err != nil {
		return fmt.Errorf("batch run: %w", err)
	}

	logger.Info().Msg("Finished processing")
	return nil
}

func printSummary(s *batch.Summary) {
	ui.Section("Batch Summary")
	ui.Table([]string{"Metric", "Value"}, [][]string{
		{"Documents", strconv.Itoa(s.Total)},
		{"Processed", strconv.Itoa(s.Processed)},
		{"Skipped", strconv.Itoa(s.Skipped)},
		{"Failed", strconv.Itoa(s.Failed)},
		{"Pages", strconv.Itoa(s.Pages)},
		{"Thumbnails", strconv.Itoa(s.Thumbnails)},
		{"Duration", ui.FormatDuration(s.Duration)},
	})
	ui.Newline()
	if s.Failed > 0 {
		ui.Error("%d document(s) failed", s.Failed)
	} else if s.Skipped > 0 {
		ui.Warning("%d document(s) skipped", s.Skipped)
	} else {
		ui.Success("All documents processed")
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
