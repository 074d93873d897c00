package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"time"

	"github.com/obentoo/findupdate/internal/common/config"
	"github.com/obentoo/findupdate/internal/common/logger"
	"github.com/obentoo/findupdate/internal/common/output"
	"github.com/obentoo/findupdate/internal/common/version"
	"github.com/obentoo/findupdate/internal/survey"
	"github.com/obentoo/findupdate/internal/tree"
	"github.com/obentoo/findupdate/internal/upstream"
	"github.com/obentoo/findupdate/internal/vercmp"
)

// options collects the root command's flags. Zero values defer to the
// configuration file.
type options struct {
	configFile  string
	logFile     string
	listFile    string
	include     string
	dir         string
	rules       string
	dryRun      bool
	comply      bool
	versionOnly bool
	quiet       bool
	jobs        int
	timeout     time.Duration
}

// run performs one survey of the tree. Only errors that stop the whole run
// are returned; per-package failures end up in the printed results.
func run(ctx context.Context, o options, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	root, err := treeRoot(o, cfg)
	if err != nil {
		return err
	}
	filter, err := tree.NewFilter(o.include, o.listFile, root)
	if err != nil {
		return err
	}
	pkgs, err := tree.Scan(root)
	if err != nil {
		return fmt.Errorf("cannot read tree %s: %w", root, err)
	}
	pkgs = filter.Apply(pkgs)
	if len(pkgs) == 0 {
		logger.Warn("no packages selected under %s", root)
		return nil
	}

	dryRun := o.dryRun || o.versionOnly
	driverOpts := []survey.Option{
		survey.WithWorkers(cfg.Check.Jobs),
		survey.WithDryRun(dryRun),
		survey.WithLocator(upstream.NewLocator(upstream.Endpoints{
			GitHubAPI: cfg.GitHub.APIURL,
			GitLab:    cfg.GitLab.URL,
			Anitya:    cfg.Anitya.URL,
		})),
		survey.WithLogger(logger.Default()),
	}
	if o.comply {
		normalizer, err := vercmp.LoadNormalizer(cfg.Style.Rules)
		if err != nil {
			return fmt.Errorf("failed to load style rules: %w", err)
		}
		driverOpts = append(driverOpts, survey.WithComply(true), survey.WithNormalizer(normalizer))
	}
	if o.logFile != "" {
		report, err := survey.OpenReport(o.logFile)
		if err != nil {
			return fmt.Errorf("failed to open result log: %w", err)
		}
		defer report.Close()
		driverOpts = append(driverOpts, survey.WithReport(report))
	}
	if !o.quiet && output.IsStderrTerminal() {
		driverOpts = append(driverOpts, survey.WithProgressWriter(stderr))
	}

	client, err := newHTTPClient(cfg)
	if err != nil {
		return err
	}
	driver, err := survey.NewDriver(upstream.NewExtractor(client), driverOpts...)
	if err != nil {
		return err
	}

	logger.Info("Checking %d package(s) in %s", len(pkgs), root)
	outcomes := driver.Run(ctx, pkgs)

	if o.versionOnly {
		printLatest(stdout, outcomes)
		return nil
	}
	if !o.quiet {
		displayResults(stdout, outcomes, dryRun)
	}
	return nil
}

// loadConfig reads the configuration and applies flag overrides.
func loadConfig(o options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if o.configFile != "" {
		cfg, err = config.LoadFrom(o.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if o.jobs > 0 {
		cfg.Check.Jobs = o.jobs
	}
	if o.timeout > 0 {
		cfg.Check.Timeout = o.timeout.String()
	}
	if o.rules != "" {
		cfg.Style.Rules = o.rules
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// treeRoot picks the tree from --dir, then tree.path, then the working
// directory.
func treeRoot(o options, cfg *config.Config) (string, error) {
	if o.dir != "" {
		return o.dir, nil
	}
	path, err := cfg.TreePath()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	if path == "" {
		return ".", nil
	}
	return path, nil
}

func newHTTPClient(cfg *config.Config) (*upstream.RetryableHTTPClient, error) {
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	retry := upstream.DefaultRetryConfig()
	retry.MaxRetries = cfg.Check.Retries
	retry.Timeout = timeout
	client := upstream.NewRetryableHTTPClientWithConfig(retry)

	headers := make(map[string]string, len(cfg.Check.Headers)+1)
	maps.Copy(headers, cfg.Check.Headers)
	userAgent := cfg.Check.UserAgent
	if userAgent == config.DefaultUserAgent {
		userAgent = version.UserAgent(userAgent)
	}
	if userAgent != "" {
		headers["User-Agent"] = userAgent
	}
	client.SetDefaultHeaders(headers)
	client.SetGitHubToken(cfg.GitHub.Token)
	client.SetGitLabToken(cfg.GitLab.Token)
	return client, nil
}
