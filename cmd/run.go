package cmd

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	_ "image/jpeg"
	_ "image/png"

	"github.com/kozaktomas/facerec/internal/config"
	"github.com/kozaktomas/facerec/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run [files or directories...]",
	Short: "Recognize faces in image frames",
	Long: `Run image frames through the recognition pipeline and print the match
for every accepted face. Directories are scanned for JPEG and PNG files.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("timings", false, "Print per-stage timings for each frame")
}

// collectImagePaths expands files and directories into a flat list of image
// paths. Directories are scanned one level deep.
func collectImagePaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read directory %s: %w", arg, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(entry.Name())) {
			case ".jpg", ".jpeg", ".png":
				paths = append(paths, filepath.Join(arg, entry.Name()))
			}
		}
	}
	return paths, nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func printFrameResult(result pipeline.FrameResult, showTimings bool) {
	if result.FailureReason != "" {
		fmt.Printf("%s: FAILED (%s)\n", result.SourceRef, result.FailureReason)
		return
	}

	fmt.Printf("%s: %d faces detected, %d blurred, %d failed\n",
		result.SourceRef, result.DetectedFaces, result.RejectedBlur,
		result.FailedEmbeds+result.FailedMatches)

	for _, m := range result.Matches {
		if m.Result.Matched {
			fmt.Printf("  %s (similarity %.3f, record %d)\n",
				m.Result.IdentityLabel, m.Result.Similarity, m.Result.CandidateID)
		} else if m.Result.CandidateID >= 0 {
			fmt.Printf("  unknown (best candidate %s at %.3f, below threshold)\n",
				m.Result.IdentityLabel, m.Result.Similarity)
		} else {
			fmt.Printf("  unknown (empty gallery)\n")
		}
	}

	if showTimings {
		t := result.Timings
		fmt.Printf("  timings: detect=%s quality=%s embed=%s search=%s total=%s\n",
			t.Detect, t.Quality, t.Embed, t.Search, t.Total)
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	showTimings := mustGetBool(cmd, "timings")

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

	if gal.Len() == 0 {
		fmt.Println("Warning: gallery is empty, every face will be reported as unknown")
	}

	pipe := buildPipeline(cfg, gal)

	frames := make(chan pipeline.Frame)
	go func() {
		defer close(frames)
		for _, path := range paths {
			img, err := loadImage(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "skipping %s: %v\n", path, err)
				continue
			}
			frames <- pipeline.Frame{SourceRef: path, Image: img}
		}
	}()

	var matched, unknown, failed int
	for result := range pipe.Run(ctx, frames, cfg.Pipeline.MaxInFlight) {
		printFrameResult(result, showTimings)
		if result.FailureReason != "" {
			failed++
			continue
		}
		for _, m := range result.Matches {
			if m.Result.Matched {
				matched++
			} else {
				unknown++
			}
		}
	}

	fmt.Printf("\nDone: %d matched, %d unknown, %d frames failed\n", matched, unknown, failed)
	return nil
}
