package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/spherical/docprep/cmd/docprep/ui"
	"github.com/spherical/docprep/internal/batch"
	"github.com/spherical/docprep/internal/classify"
	"github.com/spherical/docprep/internal/expand"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect PATH...",
	Short: "Show the kind and page count of documents",
	Long: `Print the detected kind, page count and first-page size of each file. Directories are
walked the same way the batch command walks its input.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return fmt.Errorf("inspect %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		rels, err := batch.Walk(arg)
		if err != nil {
			return err
		}
		for _, rel := range rels {
			files = append(files, filepath.Join(arg, filepath.FromSlash(rel)))
		}
	}

	rows := make([][]string, 0, len(files))
	failed := 0
	for _, f := range files {
		row, err := inspectFile(f)
		if err != nil {
			failed++
			if ui.Verbose() {
				ui.Error("%s: %v", f, err)
			}
		}
		rows = append(rows, row)
	}

	ui.Table([]string{"File", "Kind", "Pages", "Size", "Status"}, rows)
	if failed > 0 {
		ui.Newline()
		ui.Warning("%d of %d file(s) could not be read", failed, len(files))
	}
	return nil
}

func inspectFile(path string) ([]string, error) {
	row := []string{path, "-", "-", "-", "ok"}

	data, err := os.ReadFile(path)
	if err != nil {
		row[4] = err.Error()
		return row, err
	}
	doc, err := classify.Classify(path, data, classify.ExtOf(path))
	row[1] = doc.Kind.String()
	if err != nil {
		row[4] = "unsupported"
		return row, err
	}

	info, err := expand.Probe(doc)
	if err != nil {
		row[4] = err.Error()
		return row, err
	}
	row[2] = strconv.Itoa(info.Pages)
	if info.Width > 0 {
		row[3] = fmt.Sprintf("%dx%d", info.Width, info.Height)
	}
	return row, nil
}
