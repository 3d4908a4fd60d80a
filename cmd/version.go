package cmd

import (
	"fmt"

	"github.com/kozaktomas/cbir/internal/constants"
	"github.com/spf13/cobra"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the cbir build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cbir %s (commit %s, built %s)\n", Version, CommitSHA, BuildDate)
		fmt.Printf("  Histogram: %d intensity + %d color-code bins\n", constants.IntensityBins, constants.ColorCodeBins)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
