package cmd

import (
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Ranking cache management commands",
	Long:  `Commands for managing the precomputed ranking caches of the histogram methods.`,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
}
