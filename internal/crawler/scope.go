package crawler

import (
	"net/url"
	"strings"

	"github.com/nao1215/comicspider/internal/model"
)

// Scope limits a crawl to one domain and its subdomains.
type Scope struct {
	domain string
}

// NewScope returns a scope for domain. The name is normalized with
// model.NormalizeDomain.
func NewScope(domain string) Scope {
	return Scope{domain: model.NormalizeDomain(domain)}
}

// Domain returns the normalized domain name.
func (s Scope) Domain() string {
	return s.domain
}

// Contains reports whether rawURL is an http(s) URL whose host is the scope
// domain or one of its subdomains. "www." is ignored on both sides, so
// "http://www.a.test/" is in the scope of "a.test" while "http://nota.test/"
// and "http://a.test.evil/" are not.
func (s Scope) Contains(rawURL string) bool {
	if s.domain == "" {
		return false
	}
	host := hostOf(rawURL)
	if host == "" {
		return false
	}
	return host == s.domain || strings.HasSuffix(host, "."+s.domain)
}

// ResolveReference turns a raw href or src found on base into an absolute
// URL. It returns "" when the reference must be ignored:
//   - references containing '#' point into a page and are dropped
//   - references starting with '/' or not starting with "http" are joined
//     against base
//   - anything else starting with "http" is used as is
//
// Results that are not absolute http(s) URLs with a host are dropped, which
// filters mailto:, javascript: and data: references.
func ResolveReference(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.Contains(ref, "#") {
		return ""
	}

	var (
		u   *url.URL
		err error
	)
	if strings.HasPrefix(ref, "/") || !strings.HasPrefix(ref, "http") {
		b, perr := url.Parse(base)
		if perr != nil {
			return ""
		}
		r, perr := url.Parse(ref)
		if perr != nil {
			return ""
		}
		u = b.ResolveReference(r)
	} else {
		u, err = url.Parse(ref)
		if err != nil {
			return ""
		}
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return u.String()
}

// normalizeURL returns the key used for visited/queued bookkeeping:
// lower-case scheme and host, and "/" for an empty path.
func normalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// hostOf returns the normalized host of an http(s) URL, or "".
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return model.NormalizeDomain(u.Hostname())
}
