// Package network provides the reference upload.Uploader implementations: DefaultUploader
// speaks the presigned URL protocol of the upload backend, S3Uploader writes straight to
// an S3 compatible bucket.
package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bitrise-io/go-uploadthing/upload"
	"github.com/bitrise-io/go-uploadthing/uploaderror"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/docker/go-units"
)

// errHungTransfer cancels an attempt that took much longer than expected.
var errHungTransfer = errors.New("transfer hung")

// DefaultUploader uploads files through presigned URLs requested from the backend at url.
type DefaultUploader struct {
	api        apiClient
	config     Config
	httpClient *http.Client
	logger     log.Logger
	stats      *Stats
}

// NewDefaultUploader creates a DefaultUploader for the backend API at url.
func NewDefaultUploader(url string, config Config, logger log.Logger) *DefaultUploader {
	if logger == nil {
		logger = log.NewLogger()
	}
	config = config.withDefaults()

	apiClient := config.APIClient
	if apiClient == nil {
		apiClient = retryhttp.NewClient(logger)
	}

	return &DefaultUploader{
		api:        newAPIClient(apiClient, url, config.Package, logger),
		config:     config,
		httpClient: config.HTTPClient,
		logger:     logger,
		stats:      NewStats(),
	}
}

// Stats returns the transfer statistics.
func (u *DefaultUploader) Stats() *Stats {
	return u.stats
}

// CloseIdleConnections closes idle connections of the transfer client.
func (u *DefaultUploader) CloseIdleConnections() {
	if transport, ok := u.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

// Upload requests a presigned URL per file, transfers the files in parallel and
// acknowledges them.
func (u *DefaultUploader) Upload(ctx context.Context, endpoint string, params upload.Params) ([]upload.UploadedFile, error) {
	if ctx.Err() != nil {
		return nil, contextError(ctx)
	}

	u.logger.Debugf("Requesting presigned URLs for %d file(s)", len(params.Files))
	targets, err := u.api.prepareUpload(ctx, endpoint, params.Headers, newPrepareUploadRequest(params))
	if err != nil {
		return nil, abortOr(ctx, fmt.Errorf("request presigned urls: %w", err))
	}
	if len(targets) != len(params.Files) {
		return nil, uploaderror.New(uploaderror.CodeURLGenerationFailed,
			fmt.Sprintf("received %d presigned URLs for %d files", len(targets), len(params.Files)))
	}

	err = forEachFile(ctx, len(params.Files), u.config.Concurrency, func(ctx context.Context, index int) error {
		return u.uploadFileWithRetry(ctx, params, params.Files[index], targets[index])
	})
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(targets))
	for _, target := range targets {
		keys = append(keys, target.Key)
	}

	u.logger.Debugf("Acknowledging %d file(s)", len(keys))
	completed, err := u.api.completeUpload(ctx, endpoint, params.Headers, keys)
	if err != nil {
		return nil, abortOr(ctx, fmt.Errorf("acknowledge upload: %w", err))
	}

	return uploadedFiles(params.Files, targets, completed), nil
}

func uploadedFiles(files []*upload.File, targets []presignedURL, completed []completedFile) []upload.UploadedFile {
	serverData := map[string][]byte{}
	for _, c := range completed {
		serverData[c.Key] = c.ServerData
	}

	result := make([]upload.UploadedFile, 0, len(files))
	for i, f := range files {
		target := targets[i]
		contentType := target.FileType
		if contentType == "" {
			contentType = f.Type
		}
		result = append(result, upload.UploadedFile{
			Key:        target.Key,
			Name:       f.Name,
			Size:       f.Size,
			Type:       contentType,
			URL:        target.FileURL,
			CustomID:   target.CustomID,
			ServerData: serverData[target.Key],
		})
	}
	return result
}

func (u *DefaultUploader) uploadFileWithRetry(ctx context.Context, params upload.Params, file *upload.File, target presignedURL) error {
	reportBegin(params, file)
	report := reportProgress(params, file)

	var uploadErr error
	for attempt := 0; attempt < u.config.MaxRetryPerFile; attempt++ {
		if ctx.Err() != nil {
			return contextError(ctx)
		}

		u.logger.Debugf("Uploading %s (%s, attempt %d/%d) [finished=%d]",
			file.Name, units.HumanSizeWithPrecision(float64(file.Size), 3), attempt+1, u.config.MaxRetryPerFile, u.stats.FinishedCount())

		start := time.Now()
		fileCtx, cancelFile := context.WithCancelCause(ctx)

		// The last attempt is never cancelled as hung
		if attempt < u.config.MaxRetryPerFile-1 && u.config.HungThreshold > 0 {
			go u.detectHungUpload(fileCtx, cancelFile, start, file)
		}

		retryable, err := u.uploadFile(fileCtx, file, target, report)
		hung := errors.Is(context.Cause(fileCtx), errHungTransfer)
		cancelFile(nil)

		if err == nil {
			took := time.Since(start)
			u.stats.Update(file.Size, took)
			report(file.Size)
			u.logger.Debugf("%s uploaded in %s", file.Name, took.Round(time.Millisecond))
			return nil
		}
		uploadErr = err

		if ctx.Err() != nil {
			return abortOr(ctx, uploadErr)
		}
		if !retryable && !hung {
			return uploadErr
		}

		backoff := time.Duration(attempt+1) * u.config.RetryWait
		u.logger.Warnf("%s attempt %d failed: %v, retrying after %v", file.Name, attempt+1, uploadErr, backoff)
		select {
		case <-ctx.Done():
			return abortOr(ctx, uploadErr)
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("upload %s after %d attempts: %w", file.Name, u.config.MaxRetryPerFile, uploadErr)
}

func (u *DefaultUploader) detectHungUpload(ctx context.Context, cancel context.CancelCauseFunc, start time.Time, file *upload.File) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if u.stats.FinishedCount() == 0 {
				continue
			}
			elapsed := time.Since(start)
			expected := u.stats.Expected(file.Size)
			if elapsed-expected > u.config.HungThreshold {
				u.logger.Warnf("Found hung upload (%s); canceling request after %s (expected: %s)",
					file.Name, elapsed.Round(time.Second), expected.Round(time.Second))
				cancel(errHungTransfer)
				return
			}
		}
	}
}

// uploadFile performs one transfer attempt. The returned flag tells whether the failure may be retried.
func (u *DefaultUploader) uploadFile(ctx context.Context, file *upload.File, target presignedURL, report func(int64)) (bool, error) {
	content, err := file.Open()
	if err != nil {
		return false, fmt.Errorf("open file: %w", err)
	}
	defer content.Close() //nolint:errcheck

	var body io.Reader = http.NoBody
	if file.Size > 0 {
		body = &progressReader{reader: content, onRead: report}
	}

	method := target.Method
	if method == "" {
		method = http.MethodPut
	}

	req, err := http.NewRequestWithContext(ctx, method, target.URL, body)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	for k, v := range target.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Content-Type") == "" && file.Type != "" {
		req.Header.Set("Content-Type", file.Type)
	}
	req.ContentLength = file.Size

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return retryableStatus(resp.StatusCode), &uploaderror.UploadThingError{
			Code:    uploaderror.CodeUploadFailed,
			Message: fmt.Sprintf("upload failed with status %d: %s", resp.StatusCode, string(errorBody)),
			Status:  resp.StatusCode,
		}
	}

	return false, nil
}

func retryableStatus(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout
}
