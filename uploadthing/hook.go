package uploadthing

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/bitrise-io/go-uploadthing/observable"
	"github.com/bitrise-io/go-uploadthing/progress"
	"github.com/bitrise-io/go-uploadthing/routeconfig"
	"github.com/bitrise-io/go-uploadthing/session"
	"github.com/bitrise-io/go-uploadthing/upload"
	"github.com/bitrise-io/go-uploadthing/uploaderror"
)

// HookOptions are the lifecycle callbacks of a Hook. Every field is optional.
type HookOptions struct {
	BeforeUploadBegin      func(ctx context.Context, files []*upload.File) ([]*upload.File, error)
	OnUploadBegin          func(file *upload.File)
	OnUploadProgress       func(percent int)
	OnClientUploadComplete func(ctx context.Context, files []upload.UploadedFile) error
	OnUploadError          func(ctx context.Context, err *uploaderror.UploadThingError)

	Headers http.Header

	// ValidateFiles checks the files against the endpoint's route config, once it is
	// fetched, before anything is sent. Violations are reported like upload failures.
	ValidateFiles bool
}

// PermittedFileInfo pairs an endpoint slug with its route config.
type PermittedFileInfo struct {
	Slug   string
	Config json.RawMessage
}

// Hook drives uploads to one endpoint and exposes their state.
type Hook struct {
	slug        string
	session     *session.Session
	endpointCfg observable.Readable[*routeconfig.EndpointConfig]
}

func newHook(ctx context.Context, h *Helpers, slug string, opts HookOptions) *Hook {
	endpointCfg := h.resolver.Resolve(ctx, h.url, slug)

	uploader := h.uploader
	if opts.ValidateFiles {
		uploader = validatingUploader{next: uploader, endpointCfg: endpointCfg}
	}

	return &Hook{
		slug: slug,
		session: session.New(slug, uploader, session.Options{
			BeforeUploadBegin:      opts.BeforeUploadBegin,
			OnUploadBegin:          opts.OnUploadBegin,
			OnUploadProgress:       opts.OnUploadProgress,
			OnClientUploadComplete: opts.OnClientUploadComplete,
			OnUploadError:          opts.OnUploadError,
			Headers:                opts.Headers,
			Logger:                 h.logger,
			Tracker:                h.tracker,
		}),
		endpointCfg: endpointCfg,
	}
}

// Endpoint returns the endpoint slug.
func (h *Hook) Endpoint() string {
	return h.slug
}

// StartUpload uploads files with input. See session.Session.Start for the result semantics:
// a cancelled ctx returns an *uploaderror.UploadAbortedError, other failures are passed to
// OnUploadError and return (nil, nil). An expired ctx deadline is not a cancellation: it is
// reported to OnUploadError like any other failure.
func (h *Hook) StartUpload(ctx context.Context, files []*upload.File, input any) ([]upload.UploadedFile, error) {
	return h.session.Start(ctx, files, input)
}

// IsUploading is true while an upload is in flight.
func (h *Hook) IsUploading() observable.Readable[bool] {
	return h.session.IsUploading()
}

// UploadProgress is the aggregate progress of the in-flight upload.
func (h *Hook) UploadProgress() observable.Readable[int] {
	return h.session.UploadProgress()
}

// FileProgress is the per-file progress of the in-flight upload.
func (h *Hook) FileProgress() observable.Readable[[]progress.Entry] {
	return h.session.FileProgress()
}

// RouteConfig is the endpoint's config from the route manifest; nil until fetched or
// when the manifest has no such endpoint.
func (h *Hook) RouteConfig() observable.Readable[json.RawMessage] {
	return observable.Map(h.endpointCfg, func(c *routeconfig.EndpointConfig) json.RawMessage {
		if c == nil {
			return nil
		}
		return c.Config
	})
}

// PermittedFileInfo returns the endpoint's slug and route config.
//
// Deprecated: use RouteConfig instead.
func (h *Hook) PermittedFileInfo() observable.Readable[*PermittedFileInfo] {
	return observable.Map(h.endpointCfg, func(c *routeconfig.EndpointConfig) *PermittedFileInfo {
		if c == nil {
			return nil
		}
		return &PermittedFileInfo{Slug: h.slug, Config: c.Config}
	})
}

type validatingUploader struct {
	next        upload.Uploader
	endpointCfg observable.Readable[*routeconfig.EndpointConfig]
}

func (u validatingUploader) Upload(ctx context.Context, endpoint string, params upload.Params) ([]upload.UploadedFile, error) {
	if entry := u.endpointCfg.Get(); entry != nil {
		config, err := entry.RouteConfig()
		if err != nil {
			return nil, uploaderror.New(uploaderror.CodeInvalidServerConfig, err.Error())
		}
		if err := config.Check(params.Files); err != nil {
			return nil, err
		}
	}
	return u.next.Upload(ctx, endpoint, params)
}
