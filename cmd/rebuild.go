package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facerec/internal/config"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the search index from the gallery store",
	Long: `Rebuild replays the full gallery store into a fresh index structure,
ignoring any cached snapshot. Use after switching the index backend or when
the index is suspected stale.`,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	ctx := context.Background()
	gal, err := openGallery(ctx, cfg)
	if err != nil {
		return err
	}
	defer gal.Close()

	if err := gal.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	if err := gal.SaveIndexSnapshot(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save index snapshot: %v\n", err)
	}

	stats := gal.Stats()
	fmt.Printf("Rebuilt %s index with %d records (%d identities)\n",
		stats.Backend, stats.Records, stats.Identities)
	return nil
}
