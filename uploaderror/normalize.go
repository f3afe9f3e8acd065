package uploaderror

import (
	"errors"

	"github.com/bitrise-io/go-utils/v2/log"
)

const fatalNotice = "Something went wrong. Please contact UploadThing and provide the following cause:"

// Kind is the classification of a failed upload.
type Kind int

const (
	// KindAborted means the caller cancelled; it is returned to the caller, never reported.
	KindAborted Kind = iota
	// KindClient is a structured error reported by the backend or the protocol.
	KindClient
	// KindFatal is any unrecognised failure.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindAborted:
		return "aborted"
	case KindClient:
		return "client"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Normalized is the result of classifying a failure.
// Aborted is set for KindAborted, Err for the other kinds.
type Normalized struct {
	Kind    Kind
	Err     *UploadThingError
	Aborted *UploadAbortedError
}

// Normalize classifies err. Fatal causes are logged once through logger.
func Normalize(err error, logger log.Logger) Normalized {
	var aborted *UploadAbortedError
	if errors.As(err, &aborted) {
		return Normalized{Kind: KindAborted, Aborted: aborted}
	}
	if IsAborted(err) {
		return Normalized{Kind: KindAborted, Aborted: NewAbortedError(err)}
	}

	var structured *UploadThingError
	if errors.As(err, &structured) {
		return Normalized{Kind: KindClient, Err: structured}
	}

	logger.Errorf("%s %v", fatalNotice, err)
	return Normalized{Kind: KindFatal, Err: NewFatalClientError(err)}
}
