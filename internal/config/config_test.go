package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected
// default values.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default GroupSize is 4", func(t *testing.T) {
		t.Parallel()
		if cfg.GroupSize != 4 {
			t.Errorf("expected GroupSize to be 4, got %d", cfg.GroupSize)
		}
	})

	t.Run("default Delay is 3 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Delay != 3*time.Second {
			t.Errorf("expected Delay to be 3s, got %v", cfg.Delay)
		}
	})

	t.Run("default output files", func(t *testing.T) {
		t.Parallel()
		if cfg.OutputDir != "comics" || cfg.TrashLog != "dumpster.txt" || cfg.ConcernsLog != "concerns.txt" {
			t.Errorf("unexpected output files: %q %q %q", cfg.OutputDir, cfg.TrashLog, cfg.ConcernsLog)
		}
	})

	t.Run("default MaxRedirects is 5", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxRedirects != 5 {
			t.Errorf("expected MaxRedirects to be 5, got %d", cfg.MaxRedirects)
		}
	})

	t.Run("database enabled in XDG data dir", func(t *testing.T) {
		t.Parallel()
		if !cfg.SaveToDB || cfg.DBDir == "" {
			t.Errorf("expected database enabled, got SaveToDB=%v DBDir=%q", cfg.SaveToDB, cfg.DBDir)
		}
	})

	t.Run("defaults are valid", func(t *testing.T) {
		t.Parallel()
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected valid defaults, got %v", err)
		}
	})
}

// TestConfigValidate tests the Validate method, one rule per case.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		modify  func(c *Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"no source", func(c *Config) { c.SourceFile = "" }, ErrNoSource},
		{"zero group size", func(c *Config) { c.GroupSize = 0 }, ErrInvalidBatchSize},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"negative domain timeout", func(c *Config) { c.DomainTimeout = -time.Second }, ErrInvalidDomainTimeout},
		{"negative delay", func(c *Config) { c.Delay = -time.Second }, ErrInvalidDelay},
		{"zero delay is allowed", func(c *Config) { c.Delay = 0 }, nil},
		{"negative max pages", func(c *Config) { c.MaxPages = -1 }, ErrInvalidMaxPages},
		{"negative max redirects", func(c *Config) { c.MaxRedirects = -1 }, ErrInvalidMaxRedirects},
		{"zero image concurrency", func(c *Config) { c.ImageConcurrency = 0 }, ErrInvalidImageConcurrency},
		{"zero page size", func(c *Config) { c.MaxPageSize = 0 }, ErrInvalidMaxBodySize},
		{"zero image size", func(c *Config) { c.MaxImageSize = 0 }, ErrInvalidMaxBodySize},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }, ErrNoOutputDir},
		{"tor and proxy", func(c *Config) {
			c.UseTor = true
			c.ProxyAddress = "127.0.0.1:9050"
		}, ErrConflictingTransports},
		{"json and markdown", func(c *Config) {
			c.JSONReport = true
			c.MarkdownReport = true
		}, ErrConflictingFormats},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tc.modify(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

// TestFileGetDomainConfig tests merging of defaults and domain overrides.
func TestFileGetDomainConfig(t *testing.T) {
	t.Parallel()

	delay := 10 * time.Second
	zero := time.Duration(0)
	cf := &File{
		Defaults: DomainConfig{
			Cookie:  "default=1",
			Headers: map[string]string{"Accept-Language": "en"},
			Delay:   &delay,
		},
		Domains: map[string]DomainConfig{
			"xkcd.com": {
				Cookie:   "session=abc",
				Headers:  map[string]string{"Referer": "http://xkcd.com/"},
				MaxPages: 50,
			},
			"fast.test": {Delay: &zero},
			"skip.test": {Skip: true},
		},
	}

	t.Run("unknown domain gets defaults", func(t *testing.T) {
		t.Parallel()

		dc := cf.GetDomainConfig("other.test")
		if dc.Cookie != "default=1" || *dc.Delay != delay || dc.Skip {
			t.Errorf("unexpected config %+v", dc)
		}
	})

	t.Run("domain overrides merge over defaults", func(t *testing.T) {
		t.Parallel()

		dc := cf.GetDomainConfig("WWW.xkcd.com")
		if dc.Cookie != "session=abc" {
			t.Errorf("expected domain cookie, got %q", dc.Cookie)
		}
		if dc.Headers["Accept-Language"] != "en" || dc.Headers["Referer"] != "http://xkcd.com/" {
			t.Errorf("headers not merged: %v", dc.Headers)
		}
		if dc.MaxPages != 50 || *dc.Delay != delay {
			t.Errorf("unexpected limits %+v", dc)
		}
	})

	t.Run("merging does not modify defaults", func(t *testing.T) {
		t.Parallel()

		_ = cf.GetDomainConfig("xkcd.com")
		if _, ok := cf.Defaults.Headers["Referer"]; ok {
			t.Error("default headers were modified")
		}
	})

	t.Run("explicit zero delay", func(t *testing.T) {
		t.Parallel()

		dc := cf.GetDomainConfig("fast.test")
		if dc.Delay == nil || *dc.Delay != 0 {
			t.Errorf("expected zero delay, got %v", dc.Delay)
		}
	})

	t.Run("skip", func(t *testing.T) {
		t.Parallel()

		if !cf.GetDomainConfig("skip.test").Skip {
			t.Error("expected skip")
		}
	})
}

// TestConfigForDomain tests run-wide fallbacks of domain settings.
func TestConfigForDomain(t *testing.T) {
	t.Parallel()

	t.Run("without config file", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.MaxPages = 7
		dc := cfg.ForDomain("a.test")
		if dc.Delay == nil || *dc.Delay != DefaultDelay || dc.MaxPages != 7 {
			t.Errorf("unexpected config %+v", dc)
		}
	})

	t.Run("file overrides win", func(t *testing.T) {
		t.Parallel()

		d := time.Second
		cfg := NewConfig()
		cfg.Domains = &File{Domains: map[string]DomainConfig{"a.test": {Delay: &d, MaxPages: 3}}}
		dc := cfg.ForDomain("a.test")
		if *dc.Delay != time.Second || dc.MaxPages != 3 {
			t.Errorf("unexpected config %+v", dc)
		}
	})
}

func TestSiteHeaders(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	if cookie, headers := cfg.SiteHeaders("xkcd.com"); cookie != "" || headers != nil {
		t.Errorf("SiteHeaders() without file = %q, %v", cookie, headers)
	}

	cfg.Domains = &File{
		Defaults: DomainConfig{Headers: map[string]string{"Accept-Language": "en"}},
		Domains: map[string]DomainConfig{
			"xkcd.com":      {Cookie: "sid=1"},
			"imgs.xkcd.com": {Cookie: "sid=2"},
		},
	}

	tests := []struct {
		host       string
		wantCookie string
	}{
		{host: "xkcd.com", wantCookie: "sid=1"},
		{host: "www.xkcd.com", wantCookie: "sid=1"},
		{host: "comics.xkcd.com", wantCookie: "sid=1"},
		{host: "imgs.xkcd.com", wantCookie: "sid=2"},
		{host: "example.com", wantCookie: ""},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			t.Parallel()

			cookie, headers := cfg.SiteHeaders(tt.host)
			if cookie != tt.wantCookie {
				t.Errorf("cookie = %q, want %q", cookie, tt.wantCookie)
			}
			if headers["Accept-Language"] != "en" {
				t.Errorf("default headers missing: %v", headers)
			}
		})
	}
}

// TestLoadConfigFile tests reading the YAML configuration file.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.comicspider")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".comicspider")
		content := `defaults:
  delay: 5s
  cookie: "default=abc"
domains:
  WWW.XKCD.com:
    maxPages: 100
    cookie: "session=xyz"
    headers:
      Authorization: "Bearer token"
  smbc-comics.com:
    skip: true
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Defaults.Delay == nil || *cfg.Defaults.Delay != 5*time.Second {
			t.Errorf("expected default delay 5s, got %v", cfg.Defaults.Delay)
		}
		dc, ok := cfg.Domains["xkcd.com"]
		if !ok {
			t.Fatalf("expected normalized xkcd.com key, got %v", cfg.Domains)
		}
		if dc.MaxPages != 100 || dc.Headers["Authorization"] != "Bearer token" {
			t.Errorf("unexpected domain config %+v", dc)
		}
		if !cfg.GetDomainConfig("smbc-comics.com").Skip {
			t.Error("expected smbc-comics.com to be skipped")
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".comicspider")
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfigFile(configPath)
		if err == nil || !strings.Contains(err.Error(), "failed to parse") {
			t.Errorf("expected parse error, got %v", err)
		}
	})

	t.Run("rejects a domain configured twice", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".comicspider")
		content := "domains:\n  xkcd.com:\n    maxPages: 1\n  www.xkcd.com:\n    maxPages: 2\n"
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfigFile(configPath)
		if err == nil || !strings.Contains(err.Error(), "configured more than once") {
			t.Errorf("expected duplicate domain error, got %v", err)
		}
	})

	t.Run("initializes nil Domains map", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".comicspider")
		if err := os.WriteFile(configPath, []byte("defaults:\n  maxPages: 25\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Domains == nil {
			t.Error("expected Domains map to be initialized")
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})
}

// TestXDGDataDir tests the XDG data directory.
func TestXDGDataDir(t *testing.T) {
	t.Parallel()

	dir := XDGDataDir()
	if dir == "" || filepath.Base(dir) != AppName {
		t.Errorf("unexpected XDG data dir %q", dir)
	}
}
