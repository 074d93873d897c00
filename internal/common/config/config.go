package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrConfigNotFound = errors.New("config file does not exist")
	ErrConfigExists   = errors.New("config file already exists")
	ErrInvalidJobs    = errors.New("check.jobs must be positive")
	ErrInvalidTimeout = errors.New("check.timeout must be a positive duration")
	ErrInvalidRetries = errors.New("check.retries must not be negative")
)

// Defaults applied to values the config file leaves out
const (
	DefaultJobs      = 8
	DefaultTimeout   = "30s"
	DefaultRetries   = 3
	DefaultUserAgent = "findupdate"
	DefaultGitHubAPI = "https://api.github.com"
	DefaultGitLabURL = "https://gitlab.com"
	DefaultAnityaURL = "https://release-monitoring.org"
)

// Config represents the application configuration
type Config struct {
	Tree   TreeConfig   `yaml:"tree"`
	Check  CheckConfig  `yaml:"check"`
	GitHub GitHubConfig `yaml:"github"`
	GitLab GitLabConfig `yaml:"gitlab"`
	Anitya AnityaConfig `yaml:"anitya"`
	Style  StyleConfig  `yaml:"style"`
}

// TreeConfig locates the abbs tree
type TreeConfig struct {
	Path string `yaml:"path"`
}

// CheckConfig holds upstream query settings
type CheckConfig struct {
	Jobs      int               `yaml:"jobs"`
	Timeout   string            `yaml:"timeout"` // Go duration, per request
	Retries   int               `yaml:"retries"`
	UserAgent string            `yaml:"user_agent"`
	Headers   map[string]string `yaml:"headers,omitempty"` // Sent with every request, ${VAR} substituted
}

// GitHubConfig holds GitHub API settings
type GitHubConfig struct {
	Token  string `yaml:"token"` // Personal access token for higher rate limits
	APIURL string `yaml:"api_url"`
}

// GitLabConfig holds settings for the default GitLab instance
type GitLabConfig struct {
	Token string `yaml:"token"`
	URL   string `yaml:"url"`
}

// AnityaConfig locates the release-monitoring.org instance
type AnityaConfig struct {
	URL string `yaml:"url"`
}

// StyleConfig holds comply-mode settings
type StyleConfig struct {
	Rules string `yaml:"rules"` // TOML rules file, built-in rules when empty
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Check: CheckConfig{
			Jobs:      DefaultJobs,
			Timeout:   DefaultTimeout,
			Retries:   DefaultRetries,
			UserAgent: DefaultUserAgent,
		},
		GitHub: GitHubConfig{APIURL: DefaultGitHubAPI},
		GitLab: GitLabConfig{URL: DefaultGitLabURL},
		Anitya: AnityaConfig{URL: DefaultAnityaURL},
	}
}

// ConfigPaths returns all possible config file paths in priority order
// 1. ~/.config/findupdate/config.yaml (XDG standard - priority)
// 2. ~/.findupdate/config.yaml (legacy fallback)
func ConfigPaths() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	// Check XDG_CONFIG_HOME first, fallback to ~/.config
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}

	return []string{
		filepath.Join(xdgConfig, "findupdate", "config.yaml"),
		filepath.Join(home, ".findupdate", "config.yaml"),
	}, nil
}

// DefaultConfigPath returns the default config file path (XDG standard)
func DefaultConfigPath() (string, error) {
	paths, err := ConfigPaths()
	if err != nil {
		return "", err
	}
	return paths[0], nil
}

// FindConfigPath returns the first existing config file path, or "" when
// there is none.
func FindConfigPath() (string, error) {
	paths, err := ConfigPaths()
	if err != nil {
		return "", err
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

// Load reads the first available config file, or returns the defaults
// when there is none. Nothing is written to disk.
func Load() (*Config, error) {
	configPath, err := FindConfigPath()
	if err != nil {
		return nil, err
	}
	if configPath == "" {
		cfg := Default()
		cfg.applyEnv()
		return cfg, nil
	}
	return LoadFrom(configPath)
}

// LoadFrom reads configuration from a specific file path. Keys missing
// from the file keep their defaults.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv expands ${VAR} references in tokens and falls back to the
// GITHUB_TOKEN and GITLAB_TOKEN environment variables.
func (c *Config) applyEnv() {
	c.GitHub.Token = os.ExpandEnv(c.GitHub.Token)
	if c.GitHub.Token == "" {
		c.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
	c.GitLab.Token = os.ExpandEnv(c.GitLab.Token)
	if c.GitLab.Token == "" {
		c.GitLab.Token = os.Getenv("GITLAB_TOKEN")
	}
}

// Validate checks the values a run depends on.
func (c *Config) Validate() error {
	if c.Check.Jobs <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidJobs, c.Check.Jobs)
	}
	if _, err := c.TimeoutDuration(); err != nil {
		return err
	}
	if c.Check.Retries < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRetries, c.Check.Retries)
	}
	return nil
}

// TimeoutDuration parses Check.Timeout.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Check.Timeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeout, c.Check.Timeout)
	}
	return d, nil
}

// TreePath returns Tree.Path with a leading ~ expanded.
func (c *Config) TreePath() (string, error) {
	path := c.Tree.Path
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return path, nil
}

// Init writes the default configuration to path, refusing to overwrite
// an existing file.
func Init(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	return Default().SaveTo(path)
}

// SaveTo writes configuration to a specific file path
func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
