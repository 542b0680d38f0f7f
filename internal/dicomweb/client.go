package dicomweb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"voxview/internal/datasource"
	"voxview/internal/logging"
	"voxview/internal/services"
)

const userAgent = "voxview/0.1.0"

// HTTPDoer describes the HTTP client used for DICOM-web requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ProgressFunc reports retrieval progress as instances arrive.
type ProgressFunc func(done, total int)

// Client talks to one DICOM-web root.
type Client struct {
	rootURL string
	http    HTTPDoer
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) { c.http = doer }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRate overrides request pacing.
func WithRate(perSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// NewClient builds a client for the given DICOM-web root URL.
func NewClient(rootURL string, opts ...Option) *Client {
	c := &Client{
		rootURL: strings.TrimRight(strings.TrimSpace(rootURL), "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(8), 4),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.WithComponent(c.logger, "dicomweb")
	return c
}

var (
	sharedOnce   sync.Once
	sharedClient *Client
)

// ClientForURL returns the process-wide client. The first caller's root URL
// wins; a later call with a different root still reuses the first client.
func ClientForURL(rootURL string, opts ...Option) *Client {
	sharedOnce.Do(func() {
		sharedClient = NewClient(rootURL, opts...)
	})
	return sharedClient
}

// RootURL returns the root this client was built for.
func (c *Client) RootURL() string { return c.rootURL }

// FetchSeries retrieves every instance of a series, one synthetic file per
// instance. Retrieval failures are logged and yield an empty result rather
// than propagating; the progress callback fires once per retrieved instance.
func (c *Client) FetchSeries(ctx context.Context, studyUID, seriesUID string, progress ProgressFunc) []*datasource.DataSource {
	sopUIDs, err := c.queryInstances(ctx, studyUID, seriesUID)
	if err != nil {
		c.logger.Warn("series query failed",
			logging.String("studyUID", studyUID),
			logging.String("seriesUID", seriesUID),
			logging.Error(err))
		return nil
	}

	sources := make([]*datasource.DataSource, 0, len(sopUIDs))
	for i, sop := range sopUIDs {
		src, err := c.retrieveInstance(ctx, studyUID, seriesUID, sop)
		if err != nil {
			c.logger.Warn("instance retrieval failed",
				logging.String("sopUID", sop),
				logging.Error(err))
			continue
		}
		sources = append(sources, src)
		if progress != nil {
			progress(i+1, len(sopUIDs))
		}
	}
	return sources
}

// FetchInstance retrieves one instance as a synthetic file source.
func (c *Client) FetchInstance(ctx context.Context, studyUID, seriesUID, sopUID string) (*datasource.DataSource, error) {
	return c.retrieveInstance(ctx, studyUID, seriesUID, sopUID)
}

// FetchThumbnail retrieves a rendered JPEG preview of one instance at a
// fixed low quality.
func (c *Client) FetchThumbnail(ctx context.Context, studyUID, seriesUID, sopUID string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/studies/%s/series/%s/instances/%s/rendered?quality=20",
		c.rootURL, studyUID, seriesUID, sopUID)
	return c.get(ctx, endpoint, "image/jpeg")
}

// FetchQuery materializes a normalized DICOM-web query source: whole-series
// when no SOP instance UID is present, single-instance otherwise.
func (c *Client) FetchQuery(ctx context.Context, query datasource.WebQuery, progress ProgressFunc) []*datasource.DataSource {
	if query.SOPInstanceUID == "" {
		return c.FetchSeries(ctx, query.StudyInstanceUID, query.SeriesInstanceUID, progress)
	}
	src, err := c.FetchInstance(ctx, query.StudyInstanceUID, query.SeriesInstanceUID, query.SOPInstanceUID)
	if err != nil {
		c.logger.Warn("instance retrieval failed",
			logging.String("sopUID", query.SOPInstanceUID),
			logging.Error(err))
		return nil
	}
	if progress != nil {
		progress(1, 1)
	}
	return []*datasource.DataSource{src}
}

const tagSOPInstanceUID = "00080018"

func (c *Client) queryInstances(ctx context.Context, studyUID, seriesUID string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/studies/%s/series/%s/instances", c.rootURL, studyUID, seriesUID)
	body, err := c.get(ctx, endpoint, "application/dicom+json")
	if err != nil {
		return nil, err
	}

	var entries []map[string]struct {
		Value []any `json:"Value"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, services.Wrap(services.ErrRemoteFetch, "dicomweb", "parse instance query", endpoint, err)
	}

	uids := make([]string, 0, len(entries))
	for _, entry := range entries {
		attr, ok := entry[tagSOPInstanceUID]
		if !ok || len(attr.Value) == 0 {
			continue
		}
		if uid, ok := attr.Value[0].(string); ok && uid != "" {
			uids = append(uids, uid)
		}
	}
	return uids, nil
}

func (c *Client) retrieveInstance(ctx context.Context, studyUID, seriesUID, sopUID string) (*datasource.DataSource, error) {
	endpoint := fmt.Sprintf("%s/studies/%s/series/%s/instances/%s", c.rootURL, studyUID, seriesUID, sopUID)
	body, err := c.get(ctx, endpoint, "application/dicom")
	if err != nil {
		return nil, err
	}
	return datasource.FromBytes(nextSyntheticName(), body), nil
}

func (c *Client) get(ctx context.Context, endpoint, accept string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, services.Wrap(services.ErrRemoteFetch, "dicomweb", "rate limit wait", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrRemoteFetch, "dicomweb", "build request", endpoint, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrRemoteFetch, "dicomweb", "request", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, services.Wrap(services.ErrRemoteFetch, "dicomweb", "request",
			fmt.Sprintf("%s returned %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	return io.ReadAll(resp.Body)
}
