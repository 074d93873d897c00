package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genValidPath generates valid path strings (alphanumeric with slashes)
func genValidPath() gopter.Gen {
	return gen.RegexMatch(`^/[a-z][a-z0-9/]{0,20}$`)
}

// genToken generates literal tokens without $ references
func genToken() gopter.Gen {
	return gen.RegexMatch(`^[a-z][a-zA-Z0-9_]{4,20}$`)
}

// genConfig generates valid Config structs
func genConfig() gopter.Gen {
	return gopter.CombineGens(
		genValidPath(),
		gen.IntRange(1, 64),
		gen.IntRange(1, 120),
		gen.IntRange(0, 10),
		genToken(),
		genToken(),
	).Map(func(values []interface{}) *Config {
		cfg := Default()
		cfg.Tree.Path = values[0].(string)
		cfg.Check.Jobs = values[1].(int)
		cfg.Check.Timeout = (time.Duration(values[2].(int)) * time.Second).String()
		cfg.Check.Retries = values[3].(int)
		cfg.GitHub.Token = values[4].(string)
		cfg.GitLab.Token = values[5].(string)
		return cfg
	})
}

// TestConfigRoundTrip tests that saving then loading preserves every value
func TestConfigRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Config YAML round-trip preserves data", prop.ForAll(
		func(cfg *Config) bool {
			configPath := filepath.Join(t.TempDir(), "config.yaml")

			if err := cfg.SaveTo(configPath); err != nil {
				t.Logf("Failed to save config: %v", err)
				return false
			}
			loaded, err := LoadFrom(configPath)
			if err != nil {
				t.Logf("Failed to load config: %v", err)
				return false
			}
			return reflect.DeepEqual(cfg, loaded) && loaded.Validate() == nil
		},
		genConfig(),
	))

	properties.TestingRun(t)
}

// TestLoadWithoutFileUsesDefaults tests that a missing config file is not created
func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "xdg"))
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GITLAB_TOKEN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
	if _, err := os.Stat(filepath.Join(home, "xdg", "findupdate", "config.yaml")); !os.IsNotExist(err) {
		t.Error("Load() should not create a config file")
	}
}

func TestLoadFromMissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("LoadFrom() error = %v, want %v", err, ErrConfigNotFound)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "from-env")
	t.Setenv("FINDUPDATE_GL", "gl-secret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "tree:\n  path: /srv/aosc-os-abbs\ncheck:\n  jobs: 16\n  headers:\n    X-Mirror: internal\ngitlab:\n  token: ${FINDUPDATE_GL}\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Tree.Path != "/srv/aosc-os-abbs" || cfg.Check.Jobs != 16 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Check.Timeout != DefaultTimeout || cfg.Check.Retries != DefaultRetries || cfg.Check.UserAgent != DefaultUserAgent {
		t.Errorf("defaults lost: %+v", cfg.Check)
	}
	if cfg.Check.Headers["X-Mirror"] != "internal" {
		t.Errorf("Headers = %v", cfg.Check.Headers)
	}
	if cfg.GitHub.Token != "from-env" {
		t.Errorf("GitHub.Token = %q, want GITHUB_TOKEN fallback", cfg.GitHub.Token)
	}
	if cfg.GitLab.Token != "gl-secret" {
		t.Errorf("GitLab.Token = %q, want expanded value", cfg.GitLab.Token)
	}
}

func TestLoadFromInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("check: [unclosed\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("LoadFrom() should fail on invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"defaults", func(*Config) {}, nil},
		{"zero jobs", func(c *Config) { c.Check.Jobs = 0 }, ErrInvalidJobs},
		{"bad timeout", func(c *Config) { c.Check.Timeout = "soon" }, ErrInvalidTimeout},
		{"negative timeout", func(c *Config) { c.Check.Timeout = "-1s" }, ErrInvalidTimeout},
		{"negative retries", func(c *Config) { c.Check.Retries = -1 }, ErrInvalidRetries},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("Validate() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTreePathExpandsHome(t *testing.T) {
	t.Setenv("HOME", "/home/builder")
	cfg := &Config{Tree: TreeConfig{Path: "~/abbs"}}
	path, err := cfg.TreePath()
	if err != nil {
		t.Fatalf("TreePath() error = %v", err)
	}
	if path != "/home/builder/abbs" {
		t.Errorf("TreePath() = %q", path)
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "findupdate", "config.yaml")
	if err := Init(path); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if err := Init(path); !errors.Is(err, ErrConfigExists) {
		t.Errorf("second Init() error = %v, want %v", err, ErrConfigExists)
	}
}

func TestConfigPathsPriority(t *testing.T) {
	t.Setenv("HOME", "/home/builder")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	paths, err := ConfigPaths()
	if err != nil {
		t.Fatalf("ConfigPaths() error = %v", err)
	}
	want := []string{"/xdg/findupdate/config.yaml", "/home/builder/.findupdate/config.yaml"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("ConfigPaths() = %v, want %v", paths, want)
	}
}
