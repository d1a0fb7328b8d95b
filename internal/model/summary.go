package model

import (
	"sort"
	"time"
)

// BatchSummary aggregates the reports of one run or of the run history.
type BatchSummary struct {
	// Reports are sorted by domain name.
	Reports     []*DomainReport `json:"reports"`
	GeneratedAt time.Time       `json:"generated_at"`

	Done     int `json:"done"`
	Failed   int `json:"failed"`
	TimedOut int `json:"timed_out"`

	PagesVisited      int `json:"pages_visited"`
	ImagesKept        int `json:"images_kept"`
	ImagesTrashed     int `json:"images_trashed"`
	ImagesQuarantined int `json:"images_quarantined"`

	// LowYield lists the domains flagged in the concerns log.
	LowYield []string `json:"low_yield,omitempty"`
}

// NewBatchSummary aggregates reports. Nil reports are ignored.
func NewBatchSummary(reports []*DomainReport, generatedAt time.Time) *BatchSummary {
	s := &BatchSummary{GeneratedAt: generatedAt}
	for _, r := range reports {
		if r == nil {
			continue
		}
		s.Reports = append(s.Reports, r)

		switch r.State {
		case StateDone:
			s.Done++
		case StateFailed:
			s.Failed++
		case StateTimedOut:
			s.TimedOut++
		}
		s.PagesVisited += r.PagesVisited
		s.ImagesKept += r.ImagesKept
		s.ImagesTrashed += r.ImagesTrashed
		s.ImagesQuarantined += r.ImagesQuarantined
		if r.LowYield {
			s.LowYield = append(s.LowYield, r.Task.DomainName)
		}
	}

	sort.SliceStable(s.Reports, func(i, j int) bool {
		return s.Reports[i].Task.DomainName < s.Reports[j].Task.DomainName
	})
	sort.Strings(s.LowYield)
	return s
}

// Domains returns the number of reports.
func (s *BatchSummary) Domains() int {
	return len(s.Reports)
}

// TotalImages returns every image outcome counted by the summary.
func (s *BatchSummary) TotalImages() int {
	return s.ImagesKept + s.ImagesTrashed + s.ImagesQuarantined
}
