package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/docprep/cmd/docprep/ui"
	"github.com/spherical/docprep/internal/classify"
	"github.com/spherical/docprep/internal/realtime"
	"github.com/spherical/docprep/internal/startup"
)

var (
	convertAccept string
	convertOutput string
)

var convertCmd = &cobra.Command{
	Use:   "convert FILE",
	Short: "Run the real-time conversion on a local file",
	Long: `Convert a local document the way the real-time endpoint does and write the encoded
response to disk. Single images can be returned as image/png or image/jpeg; every kind can be
returned as application/x-npy or application/x-npz.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&convertAccept, "accept", realtime.DefaultMedia, "response media type")
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "output file (default FILE with the response extension)")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if cfg.Server.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Server.RequestTimeout)
		defer cancel()
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := classify.Classify(filepath.Base(path), data, classify.ExtOf(path))
	if err != nil {
		return err
	}

	svc, cleanup, err := startup.RealtimeService(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	start := time.Now()
	resp, err := svc.HandleDocument(ctx, doc, convertAccept)
	if err != nil {
		return fmt.Errorf("convert %s: %w", path, err)
	}

	dst := convertOutput
	if dst == "" {
		dst = strings.TrimSuffix(path, filepath.Ext(path)) + responseExt(resp.ContentType)
	}
	if err := os.WriteFile(dst, resp.Body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}

	ui.Success("Wrote %s (%s, %d bytes) in %s", dst, resp.ContentType, len(resp.Body), ui.FormatDuration(time.Since(start)))
	return nil
}

func responseExt(contentType string) string {
	switch contentType {
	case realtime.MediaNPY:
		return ".npy"
	case realtime.MediaPNG:
		return ".png"
	case realtime.MediaJPEG, realtime.MediaJPG:
		return ".jpg"
	default:
		return ".npz"
	}
}
