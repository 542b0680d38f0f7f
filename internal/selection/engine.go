package selection

import (
	"context"
	"log/slog"
	"strings"

	"voxview/internal/catalog"
	"voxview/internal/importer"
	"voxview/internal/logging"
	"voxview/internal/services"
)

// Engine ranks import results and registers layer and segmentation links
// with its collaborators.
type Engine struct {
	catalog       *catalog.Store
	datasets      DatasetStore
	layers        LayerStore
	segmentGroups SegmentGroupStore
	segExt        string
	logger        *slog.Logger
}

// Option customizes engine construction.
type Option func(*Engine)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New constructs a selection engine. segExt is the dot-separated filename
// token that marks segmentations; empty disables name matching.
func New(store *catalog.Store, datasets DatasetStore, layers LayerStore, segmentGroups SegmentGroupStore, segExt string, opts ...Option) *Engine {
	e := &Engine{
		catalog:       store,
		datasets:      datasets,
		layers:        layers,
		segmentGroups: segmentGroups,
		segExt:        segExt,
		logger:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.WithComponent(e.logger, "selection")
	return e
}

// Modality display priority. CT and MR rank highest, then ultrasound, then
// radiography; anything else never wins on modality alone.
func modalityPriority(modality string) int {
	switch strings.TrimSpace(modality) {
	case "CT", "MR":
		return 3
	case "US":
		return 2
	case "DX":
		return 1
	default:
		return 0
	}
}

// FindBaseDataSource picks the primary dataset from a successful batch:
// best-ranked DICOM volume first, else the first non-segmentation image,
// else the first loadable result in batch order.
func (e *Engine) FindBaseDataSource(ctx context.Context, results []importer.LoadableResult) (importer.LoadableResult, error) {
	if len(results) == 0 {
		return importer.LoadableResult{}, services.Wrap(services.ErrNotFound, "selection", "find base", "empty batch", nil)
	}

	if best, ok, err := e.bestDICOMVolume(ctx, results); err != nil {
		return importer.LoadableResult{}, err
	} else if ok {
		return best, nil
	}

	for _, result := range results {
		if result.DataType == catalog.DataTypeImage && !isSegmentationName(result.Source.Name(), e.segExt) {
			return result, nil
		}
	}

	return results[0], nil
}

func (e *Engine) bestDICOMVolume(ctx context.Context, results []importer.LoadableResult) (importer.LoadableResult, bool, error) {
	var best importer.LoadableResult
	var bestRec catalog.VolumeRecord
	found := false

	for _, result := range results {
		if result.DataType != catalog.DataTypeDICOM {
			continue
		}
		rec, err := e.catalog.GetVolume(ctx, result.DataID)
		if err != nil {
			return importer.LoadableResult{}, false, err
		}
		if modalityPriority(rec.Modality) == 0 {
			continue
		}
		if !found || ranksAbove(rec, bestRec) {
			best, bestRec, found = result, rec, true
		}
	}
	return best, found, nil
}

// ranksAbove orders candidate a before incumbent b: higher modality priority
// wins; equal priority prefers more slices, and an unknown slice count loses
// to any known count.
func ranksAbove(a, b catalog.VolumeRecord) bool {
	pa, pb := modalityPriority(a.Modality), modalityPriority(b.Modality)
	if pa != pb {
		return pa > pb
	}
	switch {
	case a.SliceCount == nil:
		return false
	case b.SliceCount == nil:
		return true
	default:
		return *a.SliceCount > *b.SliceCount
	}
}

// isSegmentationName reports whether token appears as one of the name's
// dot-separated suffix components. Case-sensitive; an empty token never
// matches.
func isSegmentationName(name, token string) bool {
	if token == "" {
		return false
	}
	parts := strings.Split(name, ".")
	for _, part := range parts[1:] {
		if part == token {
			return true
		}
	}
	return false
}

// filenamePrefix is the substring before the first dot.
func filenamePrefix(name string) string {
	if idx := strings.IndexByte(name, '.'); idx >= 0 {
		return name[:idx]
	}
	return name
}

// LoadLayers attaches a PET layer to a CT primary. Only the first PT volume
// sharing the primary's study is used regardless of how many exist; a known
// simplification, not a bug.
func (e *Engine) LoadLayers(ctx context.Context, primary importer.LoadableResult, results []importer.LoadableResult) error {
	if primary.DataType != catalog.DataTypeDICOM {
		return nil
	}
	primaryRec, err := e.catalog.GetVolume(ctx, primary.DataID)
	if err != nil {
		return err
	}
	if primaryRec.Modality != "CT" {
		return nil
	}

	for _, result := range results {
		if result.DataType != catalog.DataTypeDICOM || result.DataID == primary.DataID {
			continue
		}
		rec, err := e.catalog.GetVolume(ctx, result.DataID)
		if err != nil {
			return err
		}
		if rec.StudyUID != primaryRec.StudyUID || rec.Modality != "PT" {
			continue
		}
		e.logger.Info("attaching PET layer",
			logging.String(logging.FieldDataID, result.DataID),
			logging.String("studyUID", rec.StudyUID))
		return e.layers.AddLayer(ctx, primary.DataID, result.DataID)
	}
	return nil
}

// LoadSegmentations registers segmentation candidates as labelmaps derived
// from the primary: same-study SEG volumes first, then name-matched
// non-DICOM results, each in discovery order. A candidate satisfying both
// predicates is registered twice; de-dup is not attempted.
func (e *Engine) LoadSegmentations(ctx context.Context, primary importer.LoadableResult, results []importer.LoadableResult) error {
	primaryRec, err := e.catalog.GetVolume(ctx, primary.DataID)
	if err != nil {
		return err
	}
	primaryPrefix := filenamePrefix(primary.Source.Name())

	for _, result := range results {
		if result.DataType != catalog.DataTypeDICOM || result.DataID == primary.DataID {
			continue
		}
		rec, err := e.catalog.GetVolume(ctx, result.DataID)
		if err != nil {
			return err
		}
		if rec.StudyUID != primaryRec.StudyUID || rec.TrimmedModality() != "SEG" {
			continue
		}
		if err := e.registerSegmentation(ctx, primary.DataID, result.DataID); err != nil {
			return err
		}
	}

	for _, result := range results {
		if result.DataType == catalog.DataTypeDICOM || result.DataID == primary.DataID {
			continue
		}
		name := result.Source.Name()
		if !isSegmentationName(name, e.segExt) || filenamePrefix(name) != primaryPrefix {
			continue
		}
		if err := e.registerSegmentation(ctx, primary.DataID, result.DataID); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) registerSegmentation(ctx context.Context, primaryID, imageID string) error {
	e.logger.Info("registering segmentation",
		logging.String(logging.FieldDataID, imageID))
	return e.segmentGroups.ConvertImageToLabelmap(ctx, primaryID, imageID)
}

// Apply runs the full selection pass over a batch: pick the primary, record
// it, then attach layers and segmentations.
func (e *Engine) Apply(ctx context.Context, batch importer.Batch) (importer.LoadableResult, error) {
	primary, err := e.FindBaseDataSource(ctx, batch.Succeeded)
	if err != nil {
		return importer.LoadableResult{}, err
	}
	if err := e.datasets.SetPrimarySelection(ctx, primary.DataID); err != nil {
		return importer.LoadableResult{}, err
	}
	if err := e.LoadLayers(ctx, primary, batch.Succeeded); err != nil {
		return importer.LoadableResult{}, err
	}
	if err := e.LoadSegmentations(ctx, primary, batch.Succeeded); err != nil {
		return importer.LoadableResult{}, err
	}
	return primary, nil
}
