package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/comicspider/internal/model"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".comicspider"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// UnmarshalYAML decodes a configuration file and keys its domains by their
// normalized name, so "WWW.XKCD.com:" configures xkcd.com. Two entries that
// normalize to the same domain are rejected.
func (cf *File) UnmarshalYAML(value *yaml.Node) error {
	type plain File
	var raw plain
	if err := value.Decode(&raw); err != nil {
		return err
	}

	cf.Defaults = raw.Defaults
	cf.Domains = make(map[string]DomainConfig, len(raw.Domains))
	for name, dc := range raw.Domains {
		domain := model.NormalizeDomain(name)
		if _, dup := cf.Domains[domain]; dup {
			return fmt.Errorf("domain %s is configured more than once", domain)
		}
		cf.Domains[domain] = dc
	}
	return nil
}

// LoadConfigFile reads the YAML configuration file at path. A missing file
// yields ErrConfigNotFound; whether that matters is up to the caller.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cf := &File{Domains: map[string]DomainConfig{}}
	if err := yaml.Unmarshal(data, cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cf, nil
}

// FindConfigFile returns the first configuration file that exists, or "".
// An explicit configPath is the only candidate when set; otherwise
// .comicspider is looked up in the working directory, then in the home
// directory.
func FindConfigFile(configPath string) string {
	var candidates []string
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		if cwd, err := os.Getwd(); err == nil {
			candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
		}
		if home, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
		}
	}

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}
