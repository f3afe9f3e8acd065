package network

import (
	"context"
	"errors"
	"io"

	"github.com/bitrise-io/go-uploadthing/upload"
	"github.com/bitrise-io/go-uploadthing/uploaderror"
)

// progressReader reports the number of bytes read so far after every Read.
type progressReader struct {
	reader io.Reader
	read   int64
	onRead func(read int64)
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.read += int64(n)
		if r.onRead != nil {
			r.onRead(r.read)
		}
	}
	return n, err
}

func reportProgress(params upload.Params, file *upload.File) func(int64) {
	return func(read int64) {
		if params.OnUploadProgress != nil {
			params.OnUploadProgress(upload.ProgressEvent{File: file, Progress: upload.ProgressFor(read, file.Size)})
		}
	}
}

func reportBegin(params upload.Params, file *upload.File) {
	if params.OnUploadBegin != nil {
		params.OnUploadBegin(upload.BeginEvent{File: file})
	}
}

// contextError converts the error of a done ctx. Only a cancellation is an abort: an
// expired deadline is returned as an ordinary failure.
func contextError(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.Canceled) {
		return uploaderror.NewAbortedError(err)
	}
	return err
}

// abortOr returns an abort error when ctx was cancelled, err otherwise.
func abortOr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return uploaderror.NewAbortedError(ctx.Err())
	}
	return err
}

type fileResult struct {
	index int
	err   error
}

// forEachFile runs fn for the indexes [0, n) with at most concurrency calls in parallel.
// It returns the first failure and cancels the context of the remaining calls.
func forEachFile(ctx context.Context, n, concurrency int, fn func(ctx context.Context, index int) error) error {
	if n == 0 {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	resultChan := make(chan fileResult, n)
	semaphore := make(chan struct{}, concurrency)

	for i := 0; i < n; i++ {
		go func(index int) {
			select {
			case semaphore <- struct{}{}:
			case <-runCtx.Done():
				resultChan <- fileResult{index: index, err: runCtx.Err()}
				return
			}
			defer func() { <-semaphore }()

			resultChan <- fileResult{index: index, err: fn(runCtx, index)}
		}(i)
	}

	for completed := 0; completed < n; completed++ {
		select {
		case <-ctx.Done():
			return contextError(ctx)
		case result := <-resultChan:
			if result.err != nil {
				return abortOr(ctx, result.err)
			}
		}
	}

	return nil
}
