package crawler

import "errors"

var (
	// ErrUnexpectedStatus is returned when a page or image request does not
	// answer with a 2xx status.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrNoRedirectTarget is returned when a meta refresh directive carries
	// no URL, for example content="30".
	ErrNoRedirectTarget = errors.New("meta refresh has no target URL")

	// ErrTooManyRedirects is returned when a page chain exceeds the
	// configured number of meta refresh hops.
	ErrTooManyRedirects = errors.New("too many meta refresh redirects")

	// ErrDomainTimeout is reported when a domain exceeds its time budget.
	ErrDomainTimeout = errors.New("domain timeout exceeded")

	// ErrInvalidFilename is returned when no usable file name can be derived
	// from an image URL.
	ErrInvalidFilename = errors.New("cannot derive file name from image URL")

	// ErrImageTooLarge is returned when an image body exceeds the size limit.
	ErrImageTooLarge = errors.New("image exceeds maximum size")
)
