// Package config loads the server configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration.
type Config struct {
	Addr string `yaml:"addr"`

	Repo struct {
		// Path is the default framework repository when a session does not
		// name one.
		Path string `yaml:"path"`
		// CloneBase is where remote repositories are cloned.
		CloneBase string `yaml:"clone_base"`
		// Remote is the git remote pushed to.
		Remote string `yaml:"remote"`
	} `yaml:"repo"`

	Sessions struct {
		Dir string `yaml:"dir"`
	} `yaml:"sessions"`

	Flows struct {
		// Dir holds refined recorder-flow artifacts (*.refined.json).
		Dir string `yaml:"dir"`
	} `yaml:"flows"`

	Credentials struct {
		File string `yaml:"file"`
	} `yaml:"credentials"`

	Generator struct {
		// Executable and Args invoke the external generation capability.
		Executable string   `yaml:"executable"`
		Args       []string `yaml:"args"`
		TimeoutMS  int      `yaml:"timeout_ms"`
	} `yaml:"generator"`

	Search struct {
		// URL is the vector step-search endpoint. Empty disables the source.
		URL string `yaml:"url"`
	} `yaml:"search"`

	Trial struct {
		TimeoutMS int `yaml:"timeout_ms"`
	} `yaml:"trial"`
}

// TrialTimeout returns the configured trial timeout.
func (c *Config) TrialTimeout() time.Duration {
	return time.Duration(c.Trial.TimeoutMS) * time.Millisecond
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:8484"
	}
	base := stateDir()
	if c.Repo.CloneBase == "" {
		c.Repo.CloneBase = filepath.Join(base, "clones")
	}
	if c.Repo.Remote == "" {
		c.Repo.Remote = "origin"
	}
	if c.Sessions.Dir == "" {
		c.Sessions.Dir = filepath.Join(base, "sessions")
	}
	if c.Flows.Dir == "" {
		c.Flows.Dir = filepath.Join(base, "flows")
	}
	if c.Trial.TimeoutMS <= 0 {
		c.Trial.TimeoutMS = 300_000
	}
	if c.Generator.TimeoutMS <= 0 {
		c.Generator.TimeoutMS = 120_000
	}
}

// GeneratorTimeout returns the configured generator timeout.
func (c *Config) GeneratorTimeout() time.Duration {
	return time.Duration(c.Generator.TimeoutMS) * time.Millisecond
}

func stateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".specwright"
	}
	return filepath.Join(home, ".specwright")
}

// Load reads the config at path. An empty path loads pure defaults.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	c.applyDefaults()
	return &c, nil
}
