package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoSource is returned when no seed list is configured.
	ErrNoSource = errors.New("no source file specified")

	// ErrInvalidBatchSize is returned when the group size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDomainTimeout is returned when the domain timeout is negative.
	ErrInvalidDomainTimeout = errors.New("invalid domain timeout: must be non-negative")

	// ErrInvalidDelay is returned when the delay between pages is negative.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidMaxPages is returned when the page limit is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidMaxRedirects is returned when the redirect limit is negative.
	ErrInvalidMaxRedirects = errors.New("invalid max redirects: must be non-negative")

	// ErrInvalidImageConcurrency is returned when the image concurrency is
	// not positive.
	ErrInvalidImageConcurrency = errors.New("invalid image concurrency: must be positive")

	// ErrInvalidMaxBodySize is returned when a size limit is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrNoOutputDir is returned when the output directory is empty.
	ErrNoOutputDir = errors.New("no output directory specified")

	// ErrConflictingTransports is returned when both --tor and --proxy are set.
	ErrConflictingTransports = errors.New("conflicting transports: --tor and --proxy cannot be used together")

	// ErrConflictingFormats is returned when both --json and --markdown are set.
	ErrConflictingFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
