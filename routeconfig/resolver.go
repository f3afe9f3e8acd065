package routeconfig

import (
	"context"

	"github.com/bitrise-io/go-uploadthing/observable"
	"github.com/bitrise-io/go-utils/v2/log"
)

// Resolver derives the configuration of one endpoint from a fetched manifest.
// Every Resolve call triggers its own fetch; concurrent requests for the same URL are
// not de-duplicated.
type Resolver struct {
	fetcher Fetcher
	logger  log.Logger
}

// NewResolver creates a Resolver loading manifests through fetcher.
func NewResolver(fetcher Fetcher, logger log.Logger) *Resolver {
	if logger == nil {
		logger = log.NewLogger()
	}
	return &Resolver{
		fetcher: fetcher,
		logger:  logger,
	}
}

// Resolve returns a view of the manifest entry for slug. The view yields nil until the
// manifest is fetched, and when no entry matches. The manifest is decoded once per fetched
// payload.
func (r *Resolver) Resolve(ctx context.Context, manifestURL, slug string) observable.Readable[*EndpointConfig] {
	payload := r.fetcher.Fetch(ctx, manifestURL)

	return observable.Derive(payload, func(p Payload) *EndpointConfig {
		if !p.Settled() {
			return nil
		}
		manifest, err := p.Decode()
		if err != nil {
			r.logger.Debugf("Ignoring route manifest from %s: %s", manifestURL, err)
			return nil
		}
		return manifest.Find(slug)
	})
}
