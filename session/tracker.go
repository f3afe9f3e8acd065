package session

import (
	"time"

	"github.com/bitrise-io/go-uploadthing/upload"
	"github.com/bitrise-io/go-uploadthing/uploaderror"
	"github.com/bitrise-io/go-utils/v2/analytics"
)

// Tracker receives session analytics events. analytics.Tracker satisfies it.
type Tracker interface {
	Enqueue(eventName string, properties ...analytics.Properties)
}

type sessionTracker struct {
	tracker  Tracker
	endpoint string
}

func newSessionTracker(tracker Tracker, endpoint string) sessionTracker {
	return sessionTracker{
		tracker:  tracker,
		endpoint: endpoint,
	}
}

func (t sessionTracker) logUploadCompleted(uploadTime time.Duration, files []*upload.File) {
	if t.tracker == nil {
		return
	}
	properties := analytics.Properties{
		"endpoint":          t.endpoint,
		"upload_time_s":     uploadTime.Truncate(time.Second).Seconds(),
		"upload_size_bytes": totalSize(files),
		"file_count":        len(files),
	}
	t.tracker.Enqueue("upload_session_completed", properties)
}

func (t sessionTracker) logUploadFailed(code uploaderror.Code, kind uploaderror.Kind, fileCount int) {
	if t.tracker == nil {
		return
	}
	properties := analytics.Properties{
		"endpoint":   t.endpoint,
		"error_code": string(code),
		"error_kind": kind.String(),
		"file_count": fileCount,
	}
	t.tracker.Enqueue("upload_session_failed", properties)
}

func (t sessionTracker) logUploadAborted(uploadTime time.Duration, fileCount int) {
	if t.tracker == nil {
		return
	}
	properties := analytics.Properties{
		"endpoint":      t.endpoint,
		"upload_time_s": uploadTime.Truncate(time.Second).Seconds(),
		"file_count":    fileCount,
	}
	t.tracker.Enqueue("upload_session_aborted", properties)
}

func totalSize(files []*upload.File) int64 {
	var size int64
	for _, f := range files {
		size += f.Size
	}
	return size
}
