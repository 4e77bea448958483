package job

import "errors"

var ErrInvalidTransition = errors.New("invalid status transition")

type Status int

const (
	StatusQueued Status = iota
	StatusDownloading
	StatusPaused
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusDownloading:
		return "downloading"
	case StatusPaused:
		return "paused"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// canTransition is the full transition table of a job.
func canTransition(from, to Status) bool {
	switch from {
	case StatusQueued:
		return to == StatusDownloading || to == StatusFailed || to == StatusCancelled
	case StatusDownloading:
		return to == StatusPaused || to.Terminal()
	case StatusPaused:
		return to == StatusDownloading || to.Terminal()
	}
	return false
}
