package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "comicspider"

	// DefaultGroupSize is the number of domains crawled at the same time.
	DefaultGroupSize = 4

	// DefaultDelay is the pause after each page of a domain.
	DefaultDelay = 3 * time.Second

	// DefaultTimeout is the timeout of a single HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRedirects is the number of meta refresh hops followed per page.
	DefaultMaxRedirects = 5

	// DefaultImageConcurrency bounds the image downloads of one domain.
	DefaultImageConcurrency = 8

	// DefaultMaxPageSize limits the page body parsed for links.
	DefaultMaxPageSize int64 = 5 * 1024 * 1024

	// DefaultMaxImageSize limits the size of a saved image.
	DefaultMaxImageSize int64 = 50 * 1024 * 1024

	// DefaultOutputDir holds one directory per domain.
	DefaultOutputDir = "comics"

	// DefaultTrashLog is the shared log of trashed image URLs.
	DefaultTrashLog = "dumpster.txt"

	// DefaultConcernsLog is the shared log of low-yield domains.
	DefaultConcernsLog = "concerns.txt"

	// DefaultSourceFile is the seed list read when no file is given.
	DefaultSourceFile = "source.txt"

	// DefaultUserAgent identifies the crawler in HTTP requests.
	DefaultUserAgent = "comicspider/1.0 (+https://github.com/nao1215/comicspider)"

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Config holds all options of a crawl run. It is populated from defaults,
// CLI flags and the configuration file, then passed down explicitly.
type Config struct {
	// SourceFile is the seed list, one "url,domain" pair per line.
	SourceFile string

	// GroupSize is the number of domains crawled concurrently.
	GroupSize int

	// Delay is the pause after each page.
	Delay time.Duration

	// Timeout is the timeout of a single HTTP request.
	Timeout time.Duration

	// DomainTimeout bounds the crawl of one domain. Zero means no limit.
	DomainTimeout time.Duration

	// MaxPages limits the pages fetched per domain. Zero means no limit.
	MaxPages int

	// MaxRedirects is the number of meta refresh hops followed per page.
	MaxRedirects int

	// ImageConcurrency bounds concurrent image downloads per domain.
	ImageConcurrency int

	MaxPageSize  int64
	MaxImageSize int64

	// OutputDir holds one comic directory per domain.
	OutputDir string

	// TrashLog and ConcernsLog are shared by all domains of the run.
	TrashLog    string
	ConcernsLog string

	// LogFile receives a copy of the log output when set.
	LogFile string

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the path to the configuration file. If empty,
	// .comicspider is searched in the current and home directories.
	ConfigFilePath string

	// Domains holds the per-domain overrides loaded from the config file.
	Domains *File

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// ProxyAddress routes requests through a SOCKS5 proxy ("host:port").
	ProxyAddress string

	// UseTor starts an embedded Tor daemon and routes requests through it.
	UseTor bool

	// TorStartupTimeout is the maximum time to wait for Tor to bootstrap.
	TorStartupTimeout time.Duration

	// DBDir is the directory of the run history database.
	DBDir string

	// SaveToDB enables the run history database.
	SaveToDB bool

	// MarkdownReport renders the summary as Markdown instead of plain text.
	MarkdownReport bool

	// JSONReport renders the summary as JSON.
	JSONReport bool

	// ReportFile receives a copy of the summary when set.
	ReportFile string

	// AssumeYes skips the confirmation prompt.
	AssumeYes bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		SourceFile:        DefaultSourceFile,
		GroupSize:         DefaultGroupSize,
		Delay:             DefaultDelay,
		Timeout:           DefaultTimeout,
		MaxRedirects:      DefaultMaxRedirects,
		ImageConcurrency:  DefaultImageConcurrency,
		MaxPageSize:       DefaultMaxPageSize,
		MaxImageSize:      DefaultMaxImageSize,
		OutputDir:         DefaultOutputDir,
		TrashLog:          DefaultTrashLog,
		ConcernsLog:       DefaultConcernsLog,
		UserAgent:         DefaultUserAgent,
		TorStartupTimeout: DefaultTorStartupTimeout,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// XDGDataDir returns the XDG data directory for comicspider.
// On Linux: ~/.local/share/comicspider
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.SourceFile == "" {
		return ErrNoSource
	}
	if c.GroupSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.DomainTimeout < 0 {
		return ErrInvalidDomainTimeout
	}
	if c.Delay < 0 {
		return ErrInvalidDelay
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.MaxRedirects < 0 {
		return ErrInvalidMaxRedirects
	}
	if c.ImageConcurrency <= 0 {
		return ErrInvalidImageConcurrency
	}
	if c.MaxPageSize <= 0 || c.MaxImageSize <= 0 {
		return ErrInvalidMaxBodySize
	}
	if c.OutputDir == "" {
		return ErrNoOutputDir
	}
	if c.UseTor && c.ProxyAddress != "" {
		return ErrConflictingTransports
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingFormats
	}
	return nil
}

// ForDomain returns the effective settings of domain: the config file
// overrides merged over the run-wide delay and page limit.
func (c *Config) ForDomain(domain string) DomainConfig {
	var dc DomainConfig
	if c.Domains != nil {
		dc = c.Domains.GetDomainConfig(domain)
	}
	if dc.Delay == nil {
		d := c.Delay
		dc.Delay = &d
	}
	if dc.MaxPages == 0 {
		dc.MaxPages = c.MaxPages
	}
	return dc
}

// SiteHeaders returns the cookie and extra headers configured for requests
// to host. It matches the transport's header lookup signature.
func (c *Config) SiteHeaders(host string) (string, map[string]string) {
	if c.Domains == nil {
		return "", nil
	}
	dc := c.Domains.LookupHost(host)
	return dc.Cookie, dc.Headers
}
