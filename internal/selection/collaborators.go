package selection

import "context"

// DatasetStore receives the chosen primary dataset.
type DatasetStore interface {
	SetPrimarySelection(ctx context.Context, dataID string) error
	Remove(ctx context.Context, dataID string) error
}

// LayerStore registers secondary volumes overlaid on a primary.
type LayerStore interface {
	AddLayer(ctx context.Context, primaryID, layerID string) error
}

// SegmentGroupStore registers segmentation volumes as labelmaps derived from
// a primary.
type SegmentGroupStore interface {
	ConvertImageToLabelmap(ctx context.Context, primaryID, imageID string) error
}
