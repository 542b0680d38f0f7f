package importer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"voxview/internal/catalog"
	"voxview/internal/datasource"
	"voxview/internal/dicomweb"
	"voxview/internal/logging"
	"voxview/internal/services"
)

// Pipeline decodes batches of data sources and registers the resulting
// volumes in the catalog.
type Pipeline struct {
	catalog     *catalog.Store
	httpClient  datasource.HTTPDoer
	web         *dicomweb.Client
	concurrency int
	logger      *slog.Logger
}

// Option customizes pipeline construction.
type Option func(*Pipeline)

// WithHTTPClient overrides the client used to materialize URI sources.
func WithHTTPClient(doer datasource.HTTPDoer) Option {
	return func(p *Pipeline) { p.httpClient = doer }
}

// WithDICOMWebClient wires the client used for DICOM-web query sources.
func WithDICOMWebClient(client *dicomweb.Client) Option {
	return func(p *Pipeline) { p.web = client }
}

// WithConcurrency bounds the per-source fan-out.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// New constructs an import pipeline writing volume metadata to store.
func New(store *catalog.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		catalog:     store,
		concurrency: 4,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.WithComponent(p.logger, "importer")
	return p
}

// decoded is the per-source outcome before series grouping.
type decoded struct {
	source   *datasource.DataSource
	dataType catalog.DataType
	dicom    *instanceInfo
}

type sourceOutcome struct {
	decoded  []decoded
	failures []Failure
}

// ImportBatch processes every source independently and returns the
// partitioned batch. A returned error means the pipeline itself failed and
// no partial result should be applied; per-source problems are reported in
// Batch.Errored instead.
func (p *Pipeline) ImportBatch(ctx context.Context, sources []*datasource.DataSource) (Batch, error) {
	if p.catalog == nil {
		return Batch{}, services.Wrap(services.ErrConfiguration, "importer", "import batch", "catalog store not configured", nil)
	}
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}

	outcomes := make([]sourceOutcome, len(sources))
	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src *datasource.DataSource) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = p.processSource(ctx, src)
		}(i, src)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}
	return p.assemble(ctx, outcomes)
}

// processSource materializes one input source and decodes everything it
// expands to. All failures stay local to the source.
func (p *Pipeline) processSource(ctx context.Context, src *datasource.DataSource) sourceOutcome {
	var out sourceOutcome

	files, err := p.materialize(ctx, src)
	if err != nil {
		out.failures = append(out.failures, Failure{Source: src, Err: err})
		return out
	}

	for _, file := range files {
		item, err := p.decodeFile(file)
		if err != nil {
			p.logger.Warn("source decode failed",
				logging.String(logging.FieldSource, file.Name()),
				logging.Error(err))
			out.failures = append(out.failures, Failure{Source: file, Err: err})
			continue
		}
		out.decoded = append(out.decoded, item)
	}
	return out
}

func (p *Pipeline) materialize(ctx context.Context, src *datasource.DataSource) ([]*datasource.DataSource, error) {
	switch src.Kind() {
	case datasource.KindDICOMWeb:
		if p.web == nil {
			return nil, services.Wrap(services.ErrValidation, "importer", "materialize", "no DICOM-web client configured", nil)
		}
		return p.web.FetchQuery(ctx, *src.Web(), nil), nil
	case datasource.KindURI:
		fetched, err := datasource.Fetch(ctx, p.httpClient, src)
		if err != nil {
			return nil, err
		}
		return datasource.ExpandArchives(ctx, []*datasource.DataSource{fetched})
	default:
		return datasource.ExpandArchives(ctx, []*datasource.DataSource{src})
	}
}

func (p *Pipeline) decodeFile(src *datasource.DataSource) (decoded, error) {
	f := sniff(src.Bytes())
	dataType := f.dataType()
	if dataType == "" {
		return decoded{}, services.Wrap(services.ErrDecode, "importer", "classify", "unrecognized content in "+src.Name(), nil)
	}

	item := decoded{source: src, dataType: dataType}
	if f == formatDICOM {
		info, err := decodeDICOM(src)
		if err != nil {
			return decoded{}, err
		}
		item.dicom = &info
	}
	return item, nil
}

// assemble folds per-source outcomes into a batch: DICOM instances sharing a
// series become one volume whose slice count is the instance count, and every
// volume is registered in the catalog.
func (p *Pipeline) assemble(ctx context.Context, outcomes []sourceOutcome) (Batch, error) {
	var batch Batch
	seriesIndex := map[string]*catalog.VolumeRecord{}
	var standalone []*catalog.VolumeRecord

	for _, outcome := range outcomes {
		batch.Errored = append(batch.Errored, outcome.failures...)

		for _, item := range outcome.decoded {
			if item.dicom != nil {
				// Only a real series UID groups instances; without one,
				// each instance becomes its own volume.
				var key string
				if item.dicom.SeriesUID != "" {
					key = item.dicom.StudyUID + "|" + item.dicom.SeriesUID
					if rec, ok := seriesIndex[key]; ok {
						*rec.SliceCount += 1
						continue
					}
				}
				slices := 1
				if item.dicom.Frames > 1 {
					slices = item.dicom.Frames
				}
				record := &catalog.VolumeRecord{
					DataID:       uuid.NewString(),
					Name:         item.source.Name(),
					DataType:     catalog.DataTypeDICOM,
					Modality:     item.dicom.Modality,
					StudyUID:     item.dicom.StudyUID,
					SeriesUID:    item.dicom.SeriesUID,
					SliceCount:   &slices,
					WindowCenter: item.dicom.WindowCenter,
					WindowWidth:  item.dicom.WindowWidth,
					PatientName:  item.dicom.PatientName,
				}
				if key != "" {
					seriesIndex[key] = record
				} else {
					standalone = append(standalone, record)
				}
				batch.Succeeded = append(batch.Succeeded, LoadableResult{
					DataType: catalog.DataTypeDICOM,
					DataID:   record.DataID,
					Source:   item.source,
				})
				continue
			}

			record := catalog.VolumeRecord{
				DataID:   uuid.NewString(),
				Name:     item.source.Name(),
				DataType: item.dataType,
			}
			if err := p.catalog.PutVolume(ctx, record); err != nil {
				return Batch{}, err
			}
			batch.Succeeded = append(batch.Succeeded, LoadableResult{
				DataType: item.dataType,
				DataID:   record.DataID,
				Source:   item.source,
			})
		}
	}

	for _, record := range seriesIndex {
		if err := p.catalog.PutVolume(ctx, *record); err != nil {
			return Batch{}, err
		}
	}
	for _, record := range standalone {
		if err := p.catalog.PutVolume(ctx, *record); err != nil {
			return Batch{}, err
		}
	}

	p.logger.Info("import batch complete",
		logging.Int("succeeded", len(batch.Succeeded)),
		logging.Int("errored", len(batch.Errored)))
	return batch, nil
}
