// Package config provides the configuration of a crawl run: defaults,
// validation, and the optional YAML file with per-domain overrides.
package config
