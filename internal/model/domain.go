package model

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var (
	// ErrEmptySeed is returned when a task is created without a seed URL.
	ErrEmptySeed = errors.New("seed URL is empty")

	// ErrNoHost is returned when the seed URL has no host component.
	ErrNoHost = errors.New("seed URL has no host")

	// ErrPublicSuffixDomain is returned when the domain name is itself a
	// public suffix such as "co.uk" or "github.io". Scoping a crawl to a
	// public suffix would accept links to unrelated sites.
	ErrPublicSuffixDomain = errors.New("domain name is a public suffix")
)

// DomainTask is one unit of work for the batch scheduler: a seed URL and the
// domain name that bounds its crawl. It is immutable once created.
type DomainTask struct {
	// SeedURL is the first page fetched for the domain.
	SeedURL string `json:"seed_url"`

	// DomainName is the seed's host with a leading "www." removed.
	// It is both the crawl scope and the key of the comic directory.
	DomainName string `json:"domain_name"`
}

// NewDomainTask creates a task for seedURL. When domainName is empty it is
// derived from the seed's host.
func NewDomainTask(seedURL, domainName string) (DomainTask, error) {
	seedURL = strings.TrimSpace(seedURL)
	if seedURL == "" {
		return DomainTask{}, ErrEmptySeed
	}

	u, err := url.Parse(seedURL)
	if err != nil {
		return DomainTask{}, fmt.Errorf("invalid seed URL %q: %w", seedURL, err)
	}
	if u.Scheme == "" {
		u, err = url.Parse("http://" + seedURL)
		if err != nil {
			return DomainTask{}, fmt.Errorf("invalid seed URL %q: %w", seedURL, err)
		}
	}
	if u.Hostname() == "" {
		return DomainTask{}, fmt.Errorf("%w: %q", ErrNoHost, seedURL)
	}

	domainName = strings.TrimSpace(domainName)
	if domainName == "" {
		domainName = u.Hostname()
	}
	domainName = NormalizeDomain(domainName)

	if isPublicSuffix(domainName) {
		return DomainTask{}, fmt.Errorf("%w: %q", ErrPublicSuffixDomain, domainName)
	}

	return DomainTask{
		SeedURL:    u.String(),
		DomainName: domainName,
	}, nil
}

// isPublicSuffix reports whether name is a registry or private suffix.
// IP literals and single-label hosts such as "localhost" only match the
// list's default rule and are accepted.
func isPublicSuffix(name string) bool {
	if net.ParseIP(name) != nil {
		return false
	}
	suffix, icann := publicsuffix.PublicSuffix(name)
	if suffix != name {
		return false
	}
	return icann || strings.Contains(name, ".")
}

// Label returns the first dot-separated label of the domain name.
// "xkcd.com" becomes "xkcd". It names the comic directory.
func (t DomainTask) Label() string {
	return DomainLabel(t.DomainName)
}

// String implements fmt.Stringer.
func (t DomainTask) String() string {
	return t.DomainName + " (" + t.SeedURL + ")"
}

// NormalizeDomain lower-cases a host name and strips a leading "www.".
func NormalizeDomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")
	return strings.TrimPrefix(host, "www.")
}

// DomainLabel returns the first label of a domain name.
func DomainLabel(domain string) string {
	domain = NormalizeDomain(domain)
	if i := strings.IndexByte(domain, '.'); i >= 0 {
		return domain[:i]
	}
	return domain
}
