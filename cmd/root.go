package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "facerec",
	Short: "Real-time face recognition against an enrolled gallery",
	Long: `facerec runs frames through a detection, quality gating, embedding and
gallery search pipeline. Detection and embedding are served by HTTP model
sidecars; the gallery lives in an append-only log or PostgreSQL and is
searched through a pluggable vector index.`,
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
