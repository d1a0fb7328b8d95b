package config

import (
	"maps"
	"strings"
	"time"

	"github.com/nao1215/comicspider/internal/model"
)

// DomainConfig holds per-domain crawl settings.
type DomainConfig struct {
	// Cookie is sent with every request to the domain.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers sent to the domain.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Delay overrides the pause after each page. Nil keeps the run default;
	// an explicit 0s disables the pause.
	Delay *time.Duration `yaml:"delay,omitempty"`

	// MaxPages overrides the page limit. Zero keeps the run default.
	MaxPages int `yaml:"maxPages,omitempty"`

	// Skip excludes the domain from the run.
	Skip bool `yaml:"skip,omitempty"`
}

// File represents the structure of the .comicspider configuration file.
type File struct {
	// Domains maps domain names (without "www.") to their settings.
	Domains map[string]DomainConfig `yaml:"domains,omitempty"`

	// Defaults applies to every domain unless overridden.
	Defaults DomainConfig `yaml:"defaults,omitempty"`
}

// GetDomainConfig returns the configuration of domain, merged over the
// defaults. The lookup ignores case and a leading "www.".
func (cf *File) GetDomainConfig(domain string) DomainConfig {
	result := cf.Defaults
	if cf.Defaults.Headers != nil {
		result.Headers = maps.Clone(cf.Defaults.Headers)
	}

	dc, ok := cf.Domains[model.NormalizeDomain(domain)]
	if !ok {
		return result
	}

	if dc.Cookie != "" {
		result.Cookie = dc.Cookie
	}
	if len(dc.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		maps.Copy(result.Headers, dc.Headers)
	}
	if dc.Delay != nil {
		result.Delay = dc.Delay
	}
	if dc.MaxPages != 0 {
		result.MaxPages = dc.MaxPages
	}
	if dc.Skip {
		result.Skip = true
	}
	return result
}

// LookupHost returns the configuration of the closest configured domain
// enclosing host: "imgs.xkcd.com" uses "xkcd.com" unless "imgs.xkcd.com"
// itself is configured. Hosts outside every configured domain get the
// defaults.
func (cf *File) LookupHost(host string) DomainConfig {
	name := model.NormalizeDomain(host)
	for name != "" {
		if _, ok := cf.Domains[name]; ok {
			return cf.GetDomainConfig(name)
		}
		_, rest, found := strings.Cut(name, ".")
		if !found {
			break
		}
		name = rest
	}
	return cf.GetDomainConfig("")
}
