package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/facerec/internal/config"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [images...]",
	Short: "Enroll labeled reference images into the gallery",
	Long: `Enroll extracts one embedding per image (the sharpest, highest-confidence
face) and appends it to the gallery under the given identity label. Images
with no usable face are reported and skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("label", "", "Identity label for all enrolled images (required)")
	_ = enrollCmd.MarkFlagRequired("label")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	label := mustGetString(cmd, "label")
	if label == "" {
		return errors.New("--label is required")
	}

	paths, err := collectImagePaths(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no image files found")
	}

	ctx := context.Background()
	gal, err := openGallery(ctx, cfg)
	if err != nil {
		return err
	}
	defer gal.Close()

	pipe := buildPipeline(cfg, gal)

	// One batch id ties the enrolled records back to this invocation.
	batchID := uuid.New().String()

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("Enrolling faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var enrolled int
	var failures []string
	for _, path := range paths {
		err := func() error {
			img, err := loadImage(path)
			if err != nil {
				return err
			}
			embedding, _, err := pipe.EmbedBestFace(ctx, img)
			if err != nil {
				return err
			}
			sourceRef := batchID + ":" + filepath.Base(path)
			if _, err := gal.Enroll(ctx, embedding, label, sourceRef); err != nil {
				return err
			}
			return nil
		}()
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", path, err))
		} else {
			enrolled++
		}
		_ = bar.Add(1)
	}
	fmt.Println()

	for _, failure := range failures {
		fmt.Fprintln(os.Stderr, failure)
	}

	if err := gal.SaveIndexSnapshot(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save index snapshot: %v\n", err)
	}

	fmt.Printf("Enrolled %d of %d images as %q (batch %s)\n", enrolled, len(paths), label, batchID)
	if enrolled == 0 {
		return errors.New("no images could be enrolled")
	}
	return nil
}
