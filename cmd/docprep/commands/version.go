package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var buildVersion = "dev"

// SetVersion records the binary version reported by the version command.
func SetVersion(v string) {
	buildVersion = v
	rootCmd.Version = v
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the docprep version",
	Args:  cobra.NoArgs,
	// Skip config loading.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "docprep %s (%s %s/%s)\n", buildVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
