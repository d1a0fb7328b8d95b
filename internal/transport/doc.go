// Package transport builds the HTTP client shared by all domain workers.
//
// Requests go out directly, through a SOCKS5 proxy, or through an embedded
// Tor daemon started with tornago. Every request carries the configured
// User-Agent and the cookie and headers configured for its host.
package transport
