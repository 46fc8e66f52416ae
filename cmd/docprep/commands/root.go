package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/docprep/cmd/docprep/ui"
	"github.com/spherical/docprep/internal/config"
	"github.com/spherical/docprep/internal/observability"
	"github.com/spherical/docprep/internal/startup"
)

var (
	cfgFile   string
	verbose   bool
	noColor   bool
	logFormat string

	cfg    *config.Config
	logger *observability.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docprep",
	Short: "Normalize raw documents into page images and thumbnails",
	Long: `docprep converts PDFs, single images and multi-frame TIFFs into upright page images
mirrored under an output directory, with optional fixed-size thumbnails for labelling and
inference.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.InitUI(noColor, verbose)

		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Observability.LogLevel = "debug"
		}
		if logFormat != "" {
			loaded.Observability.LogFormat = logFormat
			if err := loaded.Validate(); err != nil {
				return err
			}
		}
		cfg = loaded
		logger = startup.Logger(cfg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console or json")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
