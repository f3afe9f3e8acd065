// Package uploadthing is the entry point of the client: GenerateHelpers binds an upload API
// URL to an Uploader and a route manifest fetcher, and hands out upload hooks per endpoint.
package uploadthing

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bitrise-io/go-uploadthing/analytics"
	"github.com/bitrise-io/go-uploadthing/network"
	"github.com/bitrise-io/go-uploadthing/routeconfig"
	"github.com/bitrise-io/go-uploadthing/session"
	"github.com/bitrise-io/go-uploadthing/upload"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// GenerateOptions configures GenerateHelpers. Every field is optional.
type GenerateOptions struct {
	// URL of the upload API: absolute, relative to the origin, or empty (see ResolveURL).
	URL string

	// Endpoints are the slugs exposed by the backend router. When set, unknown
	// endpoints are rejected.
	Endpoints []string

	// Uploader performs the transfers. Defaults to a network.DefaultUploader for URL.
	Uploader upload.Uploader

	// Fetcher loads the route manifest. Defaults to a routeconfig.HTTPFetcher.
	Fetcher routeconfig.Fetcher

	// HTTPClient is used by the default Uploader and Fetcher for API calls.
	HTTPClient *retryablehttp.Client

	// Headers are sent with every manifest fetch.
	Headers http.Header

	Logger        log.Logger
	EnvRepository env.Repository

	// Tracker receives upload session events. When nil and EnableAnalytics is set, a
	// default tracker is created for the app in UPLOADTHING_APP_ID.
	Tracker         session.Tracker
	EnableAnalytics bool

	// Package identifies the client in the x-uploadthing-package header.
	Package string
}

// Helpers are bound to one upload API.
type Helpers struct {
	url      string
	uploader upload.Uploader
	resolver *routeconfig.Resolver
	registry routeconfig.RouteRegistry
	logger   log.Logger
	tracker  session.Tracker
}

// GenerateHelpers resolves the upload API URL and wires the default collaborators.
func GenerateHelpers(opts *GenerateOptions) (*Helpers, error) {
	if opts == nil {
		opts = &GenerateOptions{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger()
	}
	envRepo := opts.EnvRepository
	if envRepo == nil {
		envRepo = env.NewRepository()
	}

	apiURL, err := ResolveURL(opts.URL, envRepo)
	if err != nil {
		return nil, fmt.Errorf("resolve url: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil && (opts.Uploader == nil || opts.Fetcher == nil) {
		httpClient = retryhttp.NewClient(logger)
	}

	uploader := opts.Uploader
	if uploader == nil {
		config := network.DefaultConfig()
		config.APIClient = httpClient
		if opts.Package != "" {
			config.Package = opts.Package
		}
		uploader = network.NewDefaultUploader(apiURL, config, logger)
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = routeconfig.NewHTTPFetcher(httpClient, opts.Headers, logger)
	}

	tracker := opts.Tracker
	if tracker == nil && opts.EnableAnalytics {
		pkg := opts.Package
		if pkg == "" {
			pkg = network.DefaultPackage
		}
		defaultTracker, err := analytics.NewDefaultClientTracker(envRepo, logger, pkg, network.Version)
		if err != nil {
			logger.Debugf("Analytics disabled: %s", err)
		} else {
			tracker = defaultTracker
		}
	}

	logger.Debugf("Upload API: %s", apiURL)

	return &Helpers{
		url:      apiURL,
		uploader: uploader,
		resolver: routeconfig.NewResolver(fetcher, logger),
		registry: routeconfig.NewRouteRegistry(opts.Endpoints...),
		logger:   logger,
		tracker:  tracker,
	}, nil
}

// URL returns the resolved upload API URL.
func (h *Helpers) URL() string {
	return h.url
}

// RouteRegistry returns the known endpoint slugs.
func (h *Helpers) RouteRegistry() routeconfig.RouteRegistry {
	return h.registry
}

// UploadFilesOptions describes a one-off upload without session bookkeeping.
type UploadFilesOptions struct {
	Files            []*upload.File
	Input            any
	Headers          http.Header
	OnUploadProgress func(upload.ProgressEvent)
	OnUploadBegin    func(upload.BeginEvent)
}

// UploadFiles uploads files to endpoint and returns the Uploader's result and error unchanged.
func (h *Helpers) UploadFiles(ctx context.Context, endpoint routeconfig.EndpointArg, opts UploadFilesOptions) ([]upload.UploadedFile, error) {
	slug, err := routeconfig.Unwrap(endpoint, h.registry)
	if err != nil {
		return nil, err
	}

	return h.uploader.Upload(ctx, slug, upload.Params{
		Files:            opts.Files,
		Input:            opts.Input,
		Headers:          opts.Headers,
		OnUploadProgress: opts.OnUploadProgress,
		OnUploadBegin:    opts.OnUploadBegin,
	})
}

// UseUploadThing creates a Hook for endpoint. The route manifest is fetched in the
// background for the Hook's RouteConfig view, bound to ctx.
func (h *Helpers) UseUploadThing(ctx context.Context, endpoint routeconfig.EndpointArg, opts *HookOptions) (*Hook, error) {
	slug, err := routeconfig.Unwrap(endpoint, h.registry)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &HookOptions{}
	}

	return newHook(ctx, h, slug, *opts), nil
}
