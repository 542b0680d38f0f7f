package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"voxview/internal/dicomweb"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var studyUID string
	var seriesUID string
	var instanceUID string
	var thumbnail bool
	var outDir string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Retrieve DICOM-web instances to local files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if cfg.DICOMWeb.URL == "" {
				return errors.New("dicomweb.url is not configured")
			}
			if seriesUID == "" {
				return errors.New("--series is required")
			}

			target := outDir
			if target == "" {
				target = cfg.Paths.StagingDir
			}
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create output directory %q: %w", target, err)
			}

			client := dicomweb.ClientForURL(cfg.DICOMWeb.URL,
				dicomweb.WithRate(cfg.DICOMWeb.RatePerSecond, cfg.DICOMWeb.RateBurst),
				dicomweb.WithLogger(logger))

			out := cmd.OutOrStdout()
			runCtx := cmd.Context()

			if thumbnail {
				if instanceUID == "" {
					return errors.New("--instance is required for a thumbnail")
				}
				data, err := client.FetchThumbnail(runCtx, studyUID, seriesUID, instanceUID)
				if err != nil {
					return err
				}
				path := filepath.Join(target, instanceUID+".jpg")
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return fmt.Errorf("write thumbnail: %w", err)
				}
				fmt.Fprintf(out, "Wrote %s\n", path)
				return nil
			}

			if instanceUID != "" {
				src, err := client.FetchInstance(runCtx, studyUID, seriesUID, instanceUID)
				if err != nil {
					return err
				}
				path := filepath.Join(target, src.Name())
				if err := os.WriteFile(path, src.Bytes(), 0o644); err != nil {
					return fmt.Errorf("write instance: %w", err)
				}
				fmt.Fprintf(out, "Wrote %s\n", path)
				return nil
			}

			sources := client.FetchSeries(runCtx, studyUID, seriesUID, func(done, total int) {
				fmt.Fprintf(out, "Retrieved %d/%d instances\r", done, total)
			})
			fmt.Fprintln(out)
			if len(sources) == 0 {
				return errors.New("series retrieval produced no instances")
			}
			for _, src := range sources {
				path := filepath.Join(target, src.Name())
				if err := os.WriteFile(path, src.Bytes(), 0o644); err != nil {
					return fmt.Errorf("write instance: %w", err)
				}
			}
			fmt.Fprintf(out, "Wrote %d instance(s) to %s\n", len(sources), target)
			return nil
		},
	}

	cmd.Flags().StringVar(&studyUID, "study", "", "DICOM-web StudyInstanceUID")
	cmd.Flags().StringVar(&seriesUID, "series", "", "DICOM-web SeriesInstanceUID")
	cmd.Flags().StringVar(&instanceUID, "instance", "", "DICOM-web SOPInstanceUID")
	cmd.Flags().BoolVar(&thumbnail, "thumbnail", false, "Fetch a rendered JPEG preview instead of raw DICOM")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (defaults to the staging directory)")
	return cmd
}
