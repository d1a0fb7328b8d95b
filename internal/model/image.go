package model

// TrashReason explains why an image was set aside.
type TrashReason string

const (
	// TrashReasonCollision marks an image whose filename already existed in
	// the comic directory when it was fetched.
	TrashReasonCollision TrashReason = "collision"

	// TrashReasonUndersized marks a saved file moved to the trash directory
	// during cleanup because it fell below the size threshold.
	TrashReasonUndersized TrashReason = "undersized"
)

// ImageCandidate is an image fetched while resolving one filename.
type ImageCandidate struct {
	// URL is the absolute image URL.
	URL string `json:"url"`

	// PageURL is the page the image reference was found on.
	PageURL string `json:"page_url"`

	// SizeBytes is the Content-Length of the response, or the number of
	// bytes read when the header was missing.
	SizeBytes int64 `json:"size_bytes"`

	// Filename is the base name of the final request URL path.
	Filename string `json:"filename"`
}

// TrashEntry records an image URL that must not be fetched again during the
// current domain run.
type TrashEntry struct {
	URL       string      `json:"url"`
	SizeBytes int64       `json:"size_bytes"`
	Filename  string      `json:"filename"`
	Reason    TrashReason `json:"reason"`
}

// ImageStatus is the final state of an image in the run history.
type ImageStatus string

const (
	// ImageStatusKept means the file was written to the comic directory.
	ImageStatusKept ImageStatus = "kept"

	// ImageStatusTrashed means the image collided with an existing filename.
	ImageStatusTrashed ImageStatus = "trashed"

	// ImageStatusQuarantined means the file was moved into trash/ by cleanup.
	ImageStatusQuarantined ImageStatus = "quarantined"
)
