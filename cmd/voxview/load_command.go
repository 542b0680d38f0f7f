package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"voxview/internal/catalog"
	"voxview/internal/datasource"
	"voxview/internal/dicomweb"
	"voxview/internal/importer"
	"voxview/internal/loaddata"
	"voxview/internal/notifications"
	"voxview/internal/selection"
)

func newLoadCommand(ctx *commandContext) *cobra.Command {
	var studyUID string
	var seriesUID string
	var instanceUID string

	cmd := &cobra.Command{
		Use:   "load [paths or urls...]",
		Short: "Import datasets and pick the primary selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			sources, err := datasource.Normalize(args)
			if err != nil {
				return err
			}
			if seriesUID != "" {
				if cfg.DICOMWeb.URL == "" {
					return errors.New("a DICOM-web series was requested but dicomweb.url is not configured")
				}
				sources = append(sources, datasource.FromDICOMWeb(datasource.WebQuery{
					RootURL:           cfg.DICOMWeb.URL,
					StudyInstanceUID:  studyUID,
					SeriesInstanceUID: seriesUID,
					SOPInstanceUID:    instanceUID,
				}))
			}
			if len(sources) == 0 {
				return errors.New("nothing to load: pass file paths, urls, or a DICOM-web series")
			}

			store, err := catalog.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			pipelineOpts := []importer.Option{
				importer.WithConcurrency(cfg.Import.Concurrency),
				importer.WithLogger(logger),
			}
			if cfg.DICOMWeb.URL != "" {
				pipelineOpts = append(pipelineOpts, importer.WithDICOMWebClient(
					dicomweb.ClientForURL(cfg.DICOMWeb.URL,
						dicomweb.WithRate(cfg.DICOMWeb.RatePerSecond, cfg.DICOMWeb.RateBurst),
						dicomweb.WithLogger(logger))))
			}
			pipeline := importer.New(store, pipelineOpts...)
			engine := selection.New(store, store, store, store,
				cfg.Import.SegmentationExtension, selection.WithLogger(logger))
			orchestrator := loaddata.New(cfg, notifications.NewService(cfg),
				loaddata.WithLogger(logger))

			var batch importer.Batch
			var primary importer.LoadableResult
			runErr := orchestrator.Run(cmd.Context(), func(runCtx context.Context) error {
				batch, err = pipeline.ImportBatch(runCtx, sources)
				if err != nil {
					orchestrator.RecordError(err.Error())
					return err
				}
				if len(batch.Errored) > 0 {
					orchestrator.RecordError(selection.ErrorReport(logger, batch.Errored))
				}
				if len(batch.Succeeded) == 0 {
					return nil
				}
				primary, err = engine.Apply(runCtx, batch)
				if err != nil {
					orchestrator.RecordError(err.Error())
					return err
				}
				orchestrator.RecordLoaded(len(batch.Succeeded))
				return nil
			})
			if runErr != nil {
				return runErr
			}

			out := cmd.OutOrStdout()
			if report := selection.ErrorReport(logger, batch.Errored); report != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), report)
			}
			if len(batch.Succeeded) == 0 {
				return errors.New("no loadable datasets in the batch")
			}

			fmt.Fprintln(out, renderLoadTable(cmd.Context(), store, batch, primary.DataID))
			return nil
		},
	}

	cmd.Flags().StringVar(&studyUID, "study", "", "DICOM-web StudyInstanceUID")
	cmd.Flags().StringVar(&seriesUID, "series", "", "DICOM-web SeriesInstanceUID")
	cmd.Flags().StringVar(&instanceUID, "instance", "", "DICOM-web SOPInstanceUID")
	return cmd
}

func renderLoadTable(ctx context.Context, store *catalog.Store, batch importer.Batch, primaryID string) string {
	headers := []string{"", "Name", "Type", "Modality", "Slices", "Data ID"}
	rows := make([][]string, 0, len(batch.Succeeded))
	for _, result := range batch.Succeeded {
		marker := ""
		if result.DataID == primaryID {
			marker = "*"
		}
		row := []string{marker, result.Source.Name(), string(result.DataType), "", "", result.DataID}
		if rec, err := store.GetVolume(ctx, result.DataID); err == nil {
			row[3] = rec.TrimmedModality()
			if rec.SliceCount != nil {
				row[4] = strconv.Itoa(*rec.SliceCount)
			}
		}
		rows = append(rows, row)
	}
	return renderTable(headers, rows, map[int]bool{4: true})
}
