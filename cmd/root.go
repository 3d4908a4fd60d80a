package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cbir",
	Short: "Content-based image retrieval with relevance feedback",
	Long: `cbir indexes a fixed corpus of images by their intensity and color-code
histograms and ranks them by visual similarity to a query image.

Rankings can be refined interactively: marking results as relevant
re-weights the features so that what the relevant images have in common
counts more.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
