// Package session implements the upload session state machine: it drives one upload
// invocation from begin to a terminal state, coalesces per-file progress and dispatches
// the outcome to the caller's callbacks.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/bitrise-io/go-uploadthing/observable"
	"github.com/bitrise-io/go-uploadthing/progress"
	"github.com/bitrise-io/go-uploadthing/upload"
	"github.com/bitrise-io/go-uploadthing/uploaderror"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
	"github.com/google/uuid"
)

// ErrUploadInProgress is returned by Start while another upload of the same Session is in flight.
var ErrUploadInProgress = errors.New("an upload is already in progress for this session")

// Options configures a Session. Every callback is optional.
type Options struct {
	// BeforeUploadBegin may replace the files to upload. An empty result keeps the original files.
	// A returned error aborts Start before any state changes.
	BeforeUploadBegin func(ctx context.Context, files []*upload.File) ([]*upload.File, error)

	// OnUploadBegin is called once per file, right before its transfer starts.
	OnUploadBegin func(file *upload.File)

	// OnUploadProgress receives the aggregate progress (0, 10, ..., 100) each time it changes.
	OnUploadProgress func(percent int)

	// OnClientUploadComplete runs before Start returns a successful result.
	// A returned error is handled like an upload failure.
	OnClientUploadComplete func(ctx context.Context, files []upload.UploadedFile) error

	// OnUploadError receives every failure except caller cancellation.
	OnUploadError func(ctx context.Context, err *uploaderror.UploadThingError)

	// Headers are sent along with the upload request.
	Headers http.Header

	Logger  log.Logger
	Tracker Tracker
}

// Session drives uploads to one endpoint. One upload may be in flight at a time.
type Session struct {
	endpoint string
	uploader upload.Uploader
	opts     Options
	logger   log.Logger
	tracker  sessionTracker

	mu   sync.Mutex
	busy bool

	progressMu sync.Mutex
	aggregator *progress.Aggregator
	reported   int

	state          *observable.Value[State]
	isUploading    *observable.Value[bool]
	uploadProgress *observable.Value[int]
	fileProgress   *observable.Value[[]progress.Entry]
}

// New creates a Session uploading to endpoint through uploader.
func New(endpoint string, uploader upload.Uploader, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger()
	}

	return &Session{
		endpoint:       endpoint,
		uploader:       uploader,
		opts:           opts,
		logger:         logger,
		tracker:        newSessionTracker(opts.Tracker, endpoint),
		aggregator:     progress.NewAggregator(),
		state:          observable.New(StateIdle),
		isUploading:    observable.New(false),
		uploadProgress: observable.New(0),
		fileProgress:   observable.New[[]progress.Entry](nil),
	}
}

// Endpoint returns the endpoint slug the session uploads to.
func (s *Session) Endpoint() string {
	return s.endpoint
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state.Get()
}

// IsUploading is true while an upload is in flight.
func (s *Session) IsUploading() observable.Readable[bool] {
	return s.isUploading
}

// UploadProgress is the last reported aggregate progress.
func (s *Session) UploadProgress() observable.Readable[int] {
	return s.uploadProgress
}

// FileProgress holds the per-file progress of the in-flight upload.
func (s *Session) FileProgress() observable.Readable[[]progress.Entry] {
	return s.fileProgress
}

// Start uploads files with input.
//
// On success it returns the uploaded files. A caller cancellation (ctx) is returned as an
// *uploaderror.UploadAbortedError and OnUploadError is not called. Every other failure,
// an expired ctx deadline included, is passed to OnUploadError and Start returns (nil, nil).
func (s *Session) Start(ctx context.Context, files []*upload.File, input any) ([]upload.UploadedFile, error) {
	if !s.acquire() {
		return nil, ErrUploadInProgress
	}
	defer s.release()

	files, err := s.beforeBegin(ctx, files)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	startTime := time.Now()

	s.begin(files)
	defer s.cleanup()

	s.logger.Debugf("[%s] Uploading %d file(s) (%s) to %s", id, len(files),
		units.HumanSizeWithPrecision(float64(totalSize(files)), 3), s.endpoint)

	result, err := s.uploader.Upload(ctx, s.endpoint, upload.Params{
		Files:            files,
		Input:            input,
		Headers:          s.opts.Headers,
		OnUploadProgress: s.onUploadProgress,
		OnUploadBegin:    s.onUploadBegin,
	})
	if err == nil {
		err = s.complete(ctx, result)
	}
	if err != nil {
		return nil, s.fail(ctx, id, err, files, time.Since(startTime))
	}

	uploadTime := time.Since(startTime)
	s.state.Set(StateCompleted)
	s.tracker.logUploadCompleted(uploadTime, files)
	s.logger.Debugf("[%s] Upload completed in %s", id, uploadTime.Round(time.Millisecond))

	return result, nil
}

func (s *Session) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (s *Session) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func (s *Session) beforeBegin(ctx context.Context, files []*upload.File) ([]*upload.File, error) {
	if s.opts.BeforeUploadBegin == nil {
		return files, nil
	}

	replaced, err := s.opts.BeforeUploadBegin(ctx, files)
	if err != nil {
		return nil, err
	}
	if len(replaced) == 0 {
		return files, nil
	}
	return replaced, nil
}

func (s *Session) begin(files []*upload.File) {
	s.state.Set(StateUploading)
	s.isUploading.Set(true)

	s.progressMu.Lock()
	defer s.progressMu.Unlock()

	s.aggregator.Reset(files)
	s.reported = 0
	s.fileProgress.Set(s.aggregator.Snapshot())
	s.uploadProgress.Set(0)
	if s.opts.OnUploadProgress != nil {
		s.opts.OnUploadProgress(0)
	}
}

func (s *Session) onUploadProgress(event upload.ProgressEvent) {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()

	if !s.aggregator.Record(event.File, event.Progress) {
		return
	}
	s.fileProgress.Set(s.aggregator.Snapshot())

	aggregate := s.aggregator.Aggregate()
	if aggregate == s.reported {
		return
	}
	s.reported = aggregate
	s.uploadProgress.Set(aggregate)
	if s.opts.OnUploadProgress != nil {
		s.opts.OnUploadProgress(aggregate)
	}
}

func (s *Session) onUploadBegin(event upload.BeginEvent) {
	if s.opts.OnUploadBegin != nil {
		s.opts.OnUploadBegin(event.File)
	}
}

func (s *Session) complete(ctx context.Context, result []upload.UploadedFile) error {
	if s.opts.OnClientUploadComplete == nil {
		return nil
	}
	return s.opts.OnClientUploadComplete(ctx, result)
}

// fail returns the error Start must return: the abort error, or nil when the failure was
// delivered to OnUploadError.
func (s *Session) fail(ctx context.Context, id string, err error, files []*upload.File, uploadTime time.Duration) error {
	s.state.Set(StateErrored)

	normalized := uploaderror.Normalize(err, s.logger)
	if normalized.Kind == uploaderror.KindAborted {
		s.logger.Debugf("[%s] Upload aborted: %s", id, normalized.Aborted)
		s.tracker.logUploadAborted(uploadTime, len(files))
		return normalized.Aborted
	}

	s.logger.Debugf("[%s] Upload failed: %s", id, normalized.Err)
	s.tracker.logUploadFailed(normalized.Err.Code, normalized.Kind, len(files))
	if s.opts.OnUploadError != nil {
		s.opts.OnUploadError(ctx, normalized.Err)
	}
	return nil
}

func (s *Session) cleanup() {
	s.progressMu.Lock()
	s.aggregator.Clear()
	s.reported = 0
	s.progressMu.Unlock()

	s.isUploading.Set(false)
	s.fileProgress.Set(nil)
	s.uploadProgress.Set(0)
	s.state.Set(StateIdle)
}
