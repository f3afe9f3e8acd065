package upload

import (
	"context"
	"encoding/json"
	"net/http"
)

// ProgressEvent reports the transfer progress of one file in percent (0-100).
type ProgressEvent struct {
	File     *File
	Progress float64
}

// BeginEvent is emitted right before the transfer of a file starts.
type BeginEvent struct {
	File *File
}

// Params describes one upload invocation.
type Params struct {
	Files   []*File
	Input   any
	Headers http.Header

	// OnUploadProgress may be called from multiple goroutines.
	OnUploadProgress func(ProgressEvent)
	// OnUploadBegin is called at most once per file.
	OnUploadBegin func(BeginEvent)
}

// UploadedFile describes a file accepted by the backend.
type UploadedFile struct {
	Key        string          `json:"key"`
	Name       string          `json:"name"`
	Size       int64           `json:"size"`
	Type       string          `json:"type"`
	URL        string          `json:"url"`
	CustomID   string          `json:"customId,omitempty"`
	ServerData json.RawMessage `json:"serverData,omitempty"`
}

// Uploader performs the network transfer for an endpoint.
//
// Implementations return an abort-classified error (see package uploaderror) when ctx
// is cancelled, an *uploaderror.UploadThingError for failures reported by the backend,
// and any other error otherwise.
type Uploader interface {
	Upload(ctx context.Context, endpoint string, params Params) ([]UploadedFile, error)
}

// UploaderFunc adapts a function to the Uploader interface.
type UploaderFunc func(ctx context.Context, endpoint string, params Params) ([]UploadedFile, error)

// Upload calls f.
func (f UploaderFunc) Upload(ctx context.Context, endpoint string, params Params) ([]UploadedFile, error) {
	return f(ctx, endpoint, params)
}

// ProgressFor returns the percentage for transferred out of total bytes.
// An empty file is reported as complete once anything was attempted.
func ProgressFor(transferred, total int64) float64 {
	if total <= 0 {
		return 100
	}
	return float64(transferred) / float64(total) * 100
}
