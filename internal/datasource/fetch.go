package datasource

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"voxview/internal/services"
)

// HTTPDoer describes the HTTP client used to materialize remote sources.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetch materializes a URI source into a file source carrying the remote
// source in its lineage. File sources pass through unchanged.
func Fetch(ctx context.Context, client HTTPDoer, src *DataSource) (*DataSource, error) {
	if src.kind != KindURI {
		return src, nil
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.uri, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrRemoteFetch, "datasource", "build request", src.uri, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrRemoteFetch, "datasource", "fetch", src.uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrRemoteFetch, "datasource", "fetch", fmt.Sprintf("%s returned %d", src.uri, resp.StatusCode), nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrRemoteFetch, "datasource", "read body", src.uri, err)
	}
	return src.Child(src.name, data), nil
}
