package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facerec/internal/config"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show gallery statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	ctx := context.Background()
	gal, err := openGallery(ctx, cfg)
	if err != nil {
		return err
	}
	defer gal.Close()

	stats := gal.Stats()
	fmt.Printf("Backend:    %s\n", stats.Backend)
	fmt.Printf("Records:    %d\n", stats.Records)
	fmt.Printf("Identities: %d\n", stats.Identities)

	if stats.Identities > 0 {
		fmt.Println()
		for _, label := range gal.Identities() {
			fmt.Printf("  %-30s %d\n", label, stats.PerIdentity[label])
		}
	}
	return nil
}
