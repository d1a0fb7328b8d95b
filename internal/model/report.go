package model

import "time"

// WorkerState is a state of the domain worker state machine.
type WorkerState int

const (
	// StateIdle is the state of a worker that has not started.
	StateIdle WorkerState = iota

	// StateSeeding resets per-domain state and creates the comic directory.
	StateSeeding

	// StateCrawling runs the dequeue, fetch and sleep loop.
	StateCrawling

	// StateCleaning quarantines undersized files and checks the yield.
	StateCleaning

	// StateDone is terminal: the domain was crawled and cleaned.
	StateDone

	// StateFailed is terminal: a structural error stopped the domain.
	StateFailed

	// StateTimedOut is terminal: the per-domain timeout expired before
	// cleanup. No cleanup is performed.
	StateTimedOut
)

// String returns the lower-case name of the state.
func (s WorkerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSeeding:
		return "seeding"
	case StateCrawling:
		return "crawling"
	case StateCleaning:
		return "cleaning"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition can happen.
func (s WorkerState) IsTerminal() bool {
	return s == StateDone || s == StateFailed || s == StateTimedOut
}

// ParseWorkerState converts the output of WorkerState.String back to a state.
// Unknown names map to StateIdle.
func ParseWorkerState(name string) WorkerState {
	for s := StateIdle; s <= StateTimedOut; s++ {
		if s.String() == name {
			return s
		}
	}
	return StateIdle
}

// DomainReport is the outcome of crawling one domain.
type DomainReport struct {
	// RunID identifies the run in the history database.
	RunID string      `json:"run_id"`
	Task  DomainTask  `json:"task"`
	State WorkerState `json:"state"`

	// PagesVisited counts pages dequeued and fetched, redirects included.
	PagesVisited int `json:"pages_visited"`

	// PagesWithImages counts visited pages that produced at least one kept image.
	PagesWithImages int `json:"pages_with_images"`

	ImagesKept        int `json:"images_kept"`
	ImagesTrashed     int `json:"images_trashed"`
	ImagesQuarantined int `json:"images_quarantined"`

	// AverageSize is the mean size in bytes of kept images.
	AverageSize float64 `json:"average_size"`

	// LowYield is set when fewer than a tenth of visited pages produced
	// a kept image. Such domains are listed in the concerns log.
	LowYield bool `json:"low_yield"`

	// Error holds the message of the error that ended the run, if any.
	Error string `json:"error,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewDomainReport creates an idle report for task.
func NewDomainReport(task DomainTask) *DomainReport {
	return &DomainReport{
		Task:  task,
		State: StateIdle,
	}
}

// Duration returns how long the run took. Zero until the run finishes.
func (r *DomainReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded reports whether the worker reached StateDone.
func (r *DomainReport) Succeeded() bool {
	return r.State == StateDone
}

// MarshalText encodes the state by name.
func (s WorkerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name. Unknown names decode to StateIdle.
func (s *WorkerState) UnmarshalText(text []byte) error {
	*s = ParseWorkerState(string(text))
	return nil
}
