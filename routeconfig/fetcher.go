package routeconfig

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/bitrise-io/go-uploadthing/observable"
	"github.com/bitrise-io/go-uploadthing/uploaderror"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// Fetcher loads a route manifest in the background.
// The returned cell holds the zero Payload until the fetch settles.
type Fetcher interface {
	Fetch(ctx context.Context, manifestURL string) observable.Readable[Payload]
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, manifestURL string) observable.Readable[Payload]

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, manifestURL string) observable.Readable[Payload] {
	return f(ctx, manifestURL)
}

// HTTPFetcher fetches manifests over HTTP(S). file:// URLs are read from disk.
// Failed fetches are logged and leave the cell unset.
type HTTPFetcher struct {
	client  *retryablehttp.Client
	headers http.Header
	logger  log.Logger
}

// NewHTTPFetcher creates an HTTPFetcher. A nil client is replaced by a retrying default client.
func NewHTTPFetcher(client *retryablehttp.Client, headers http.Header, logger log.Logger) *HTTPFetcher {
	if logger == nil {
		logger = log.NewLogger()
	}
	if client == nil {
		client = retryhttp.NewClient(logger)
	}
	return &HTTPFetcher{
		client:  client,
		headers: headers,
		logger:  logger,
	}
}

// Fetch starts loading manifestURL and returns the cell receiving the result.
func (f *HTTPFetcher) Fetch(ctx context.Context, manifestURL string) observable.Readable[Payload] {
	cell := observable.New(Payload{})

	go func() {
		text, err := f.load(ctx, manifestURL)
		if err != nil {
			f.logger.Warnf("Failed to fetch route manifest from %s: %s", manifestURL, err)
			return
		}
		cell.Set(Payload{Text: text})
	}()

	return cell
}

func (f *HTTPFetcher) load(ctx context.Context, manifestURL string) ([]byte, error) {
	u, err := url.Parse(manifestURL)
	if err != nil {
		return nil, fmt.Errorf("parse manifest url: %w", err)
	}
	if u.Scheme == "file" {
		data, err := os.ReadFile(u.Path)
		if err != nil {
			return nil, fmt.Errorf("read manifest file: %w", err)
		}
		return data, nil
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, err
	}
	for k, values := range f.headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			f.logger.Warnf("Failed to close response body: %s", err)
		}
	}(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, uploaderror.FromResponseBody(resp.StatusCode, body)
	}
	if body == nil {
		body = []byte{}
	}

	return body, nil
}
