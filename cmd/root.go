package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "curator",
	Short: "A media index and similarity engine for local photo and video libraries",
	Long: `Curator indexes a local media library into a dual store: relational
metadata plus vector similarity indices. On top of that index it offers
semantic search, multi-signal near-duplicate detection and face
clustering, with feature extraction delegated to an analyzer sidecar.`,
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
