package model

import "time"

// PageVisit is one fetched page as stored in the run history.
type PageVisit struct {
	// URL is the page that was scanned. It differs from RequestedURL when
	// a meta refresh replaced the requested page.
	URL          string    `json:"url"`
	RequestedURL string    `json:"requested_url"`
	StatusCode   int       `json:"status_code"`
	Redirects    int       `json:"redirects"`
	Links        int       `json:"links"`
	Images       int       `json:"images"`
	Error        string    `json:"error,omitempty"`
	VisitedAt    time.Time `json:"visited_at"`
}

// ImageRecord is the history entry of one image URL.
type ImageRecord struct {
	URL       string      `json:"url"`
	PageURL   string      `json:"page_url"`
	Filename  string      `json:"filename"`
	SizeBytes int64       `json:"size_bytes"`
	Status    ImageStatus `json:"status"`

	// Hash is the hex SHA3-256 digest of the saved file. Empty for images
	// that were never written.
	Hash string `json:"hash,omitempty"`

	// Exif holds a few EXIF tags of the saved file, keyed by tag name.
	Exif map[string]string `json:"exif,omitempty"`

	RecordedAt time.Time `json:"recorded_at"`
}
