package session

// State is the lifecycle state of a Session.
type State int

const (
	// StateIdle means no upload is in flight.
	StateIdle State = iota
	// StateUploading means the uploader is transferring files.
	StateUploading
	// StateCompleted is entered after a successful upload, until cleanup.
	StateCompleted
	// StateErrored is entered after a failed or aborted upload, until cleanup.
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUploading:
		return "uploading"
	case StateCompleted:
		return "completed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}
