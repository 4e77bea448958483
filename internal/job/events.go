package job

import (
	"time"

	httpdl "github.com/tanq16/segdl/internal/downloaders/http"
)

// Progress is emitted once per sample interval while a job transfers.
type Progress struct {
	ID         string
	Downloaded int64
	Total      int64
	Speed      float64
	ETA        time.Duration
	ETAKnown   bool
}

type StatusChange struct {
	ID    string
	From  Status
	To    Status
	Err   error
	Kind  httpdl.Kind
	Stamp time.Time
}

// Observer receives a job's events. Calls come from the job's own
// goroutines and must not block.
type Observer interface {
	OnProgress(Progress)
	OnStatusChange(StatusChange)
}

// Snapshot is a read-only copy of a job's state.
type Snapshot struct {
	ID         string
	URL        string
	Dest       string
	Threads    int
	Total      int64
	Downloaded int64
	Speed      float64
	ETA        time.Duration
	ETAKnown   bool
	Status     Status
	Segmented  bool
	Segments   []SegmentSnapshot // empty for a single stream
	Err        error
	ErrKind    httpdl.Kind
	CreatedAt  time.Time
}

type SegmentSnapshot struct {
	ID       int
	Range    httpdl.Range
	TempPath string
	Written  int64
	Outcome  httpdl.Outcome
}
