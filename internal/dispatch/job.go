package dispatch

import (
	"time"

	"github.com/lvcoi/ytdl-here/internal/progress"
)

type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusFinished
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// IsTerminal reports whether the job can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusFailed
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, bool) {
	switch s {
	case "pending":
		return StatusPending, true
	case "running":
		return StatusRunning, true
	case "finished":
		return StatusFinished, true
	case "failed":
		return StatusFailed, true
	}
	return StatusPending, false
}

// Job is one transfer of exactly one media item. Values passed in events
// are snapshots; the worker owns the live copy.
type Job struct {
	ID          string
	SourceURL   string
	Collection  string
	Destination string
	Selector    string
	Expression  string
	Title       string
	Status      Status
	Err         error
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type EventKind int

const (
	EventJobStarted EventKind = iota
	EventJobProgress
	EventJobFinished
	EventJobFailed
	EventExpanded
	EventExpansionFailed
)

func (k EventKind) String() string {
	switch k {
	case EventJobStarted:
		return "job_started"
	case EventJobProgress:
		return "job_progress"
	case EventJobFinished:
		return "job_finished"
	case EventJobFailed:
		return "job_failed"
	case EventExpanded:
		return "expanded"
	case EventExpansionFailed:
		return "expansion_failed"
	}
	return "unknown"
}

// Terminal reports whether the event ends a job or an expansion.
func (k EventKind) Terminal() bool {
	return k == EventJobFinished || k == EventJobFailed || k == EventExpansionFailed
}

// Event is posted by workers. Only the fields relevant to Kind are set.
type Event struct {
	Kind   EventKind
	Job    Job
	Sample progress.Sample
	// URL and Count describe a collection expansion.
	URL   string
	Count int
	Err   error
}
