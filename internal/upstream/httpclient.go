package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/rs/dnscache"
	circuit "github.com/rubyist/circuitbreaker"
)

// maxBodySize caps how much of a listing response is read.
const maxBodySize = 10 << 20

// DefaultUserAgent is sent when no User-Agent header is configured.
const DefaultUserAgent = "findupdate"

// envVarPattern matches ${VAR_NAME} syntax for environment variable substitution
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// RetryConfig holds configuration for retry behavior.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 3)
	MaxRetries int
	// BaseDelay is the initial delay before first retry (default: 1s)
	BaseDelay time.Duration
	// MaxDelay is the maximum delay between retries (default: 4s)
	MaxDelay time.Duration
	// Timeout is the timeout for each individual request (default: 30s)
	Timeout time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
// Uses exponential backoff with delays of 1s, 2s, 4s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   4 * time.Second,
		Timeout:    30 * time.Second,
	}
}

// RetryableHTTPClient wraps an HTTP client with retry logic, a DNS cache and
// per-host circuit breakers.
type RetryableHTTPClient struct {
	client *http.Client
	config RetryConfig
	// delayFunc allows overriding the delay function for testing
	delayFunc func(time.Duration)
	// defaultHeaders are headers applied to all requests
	defaultHeaders map[string]string
	githubToken    string
	gitlabToken    string
	breakers       *breakerSet
}

// NewRetryableHTTPClient creates a new HTTP client with retry support.
// Uses the default retry configuration.
func NewRetryableHTTPClient() *RetryableHTTPClient {
	return NewRetryableHTTPClientWithConfig(DefaultRetryConfig())
}

// NewRetryableHTTPClientWithConfig creates a new HTTP client with custom retry configuration.
func NewRetryableHTTPClientWithConfig(config RetryConfig) *RetryableHTTPClient {
	return &RetryableHTTPClient{
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: newCachingTransport(),
		},
		config:         config,
		delayFunc:      time.Sleep,
		defaultHeaders: map[string]string{"User-Agent": DefaultUserAgent},
		breakers:       newBreakerSet(defaultBreakerThreshold),
	}
}

var (
	resolverOnce   sync.Once
	sharedResolver *dnscache.Resolver
)

// dnsResolver returns the process-wide DNS cache shared by every client,
// starting its refresh loop on first use.
func dnsResolver() *dnscache.Resolver {
	resolverOnce.Do(func() {
		sharedResolver = &dnscache.Resolver{}
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				sharedResolver.Refresh(true)
			}
		}()
	})
	return sharedResolver
}

// newCachingTransport returns a transport that resolves hosts through a
// DNS cache, so a run touching the same mirror many times resolves it once.
func newCachingTransport() *http.Transport {
	resolver := dnsResolver()

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var lastErr error
			for _, ip := range ips {
				conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
				if err == nil {
					return conn, nil
				}
				lastErr = err
			}
			return nil, fmt.Errorf("failed to dial any resolved IP for %s: %v", host, lastErr)
		},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// SetHTTPClient sets a custom underlying HTTP client (useful for testing).
func (c *RetryableHTTPClient) SetHTTPClient(client *http.Client) {
	c.client = client
}

// SetDelayFunc sets a custom delay function (useful for testing).
// The function receives the delay duration that would normally be slept.
func (c *RetryableHTTPClient) SetDelayFunc(fn func(time.Duration)) {
	c.delayFunc = fn
}

// SetBreakerThreshold sets how many consecutive failures open a host's
// circuit breaker. Existing breakers are discarded.
func (c *RetryableHTTPClient) SetBreakerThreshold(n int64) {
	c.breakers = newBreakerSet(n)
}

// Do executes an HTTP request with retry logic.
func (c *RetryableHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext executes an HTTP request with retry logic and context support.
// It retries on network errors and 5xx server errors with exponential backoff.
func (c *RetryableHTTPClient) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt > 0 {
			c.delayFunc(c.calculateDelay(attempt))
		}

		resp, err := c.client.Do(req.Clone(ctx))
		if err != nil {
			lastErr = err
			if isTimeoutError(err) {
				lastErr = fmt.Errorf("%w: %v", ErrRequestTimeout, err)
			}
			continue
		}

		if c.shouldRetry(resp.StatusCode) {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
			continue
		}

		return resp, nil
	}

	if c.config.MaxRetries == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, lastErr)
}

// GetWithContext performs an HTTP GET request with retry logic and context support.
func (c *RetryableHTTPClient) GetWithContext(ctx context.Context, url string) (*http.Response, error) {
	return c.GetWithHeadersContext(ctx, url, nil)
}

// GetWithHeadersContext performs an HTTP GET request with custom headers, context, and retry logic.
// Header values are processed for environment variable substitution using ${VAR_NAME} syntax.
func (c *RetryableHTTPClient) GetWithHeadersContext(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.applyHeaders(req, headers)
	return c.DoWithContext(ctx, req)
}

// Fetch GETs url through the host's circuit breaker and returns the body.
// Non-2xx responses and oversized bodies are errors; only transport
// failures and exhausted retries count against the breaker.
// Every error is a *FetchError.
func (c *RetryableHTTPClient) Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	host := hostOf(url)
	breaker := c.breakers.get(host)
	if !breaker.Ready() {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("%w for %s", ErrCircuitOpen, host)}
	}

	var body []byte
	var respErr error
	err := breaker.Call(func() error {
		resp, err := c.GetWithHeadersContext(ctx, url, headers)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			respErr = fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
			return nil
		}
		body, respErr = readLimited(resp.Body)
		return nil
	}, 0)
	if errors.Is(err, circuit.ErrBreakerOpen) {
		err = fmt.Errorf("%w for %s", ErrCircuitOpen, host)
	}
	if err == nil {
		err = respErr
	}
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return body, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, maxBodySize)
	}
	return body, nil
}

// calculateDelay calculates the delay for a given retry attempt.
// Uses exponential backoff: delay = baseDelay * 2^(attempt-1)
func (c *RetryableHTTPClient) calculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := c.config.BaseDelay * time.Duration(1<<(attempt-1))
	if delay > c.config.MaxDelay {
		delay = c.config.MaxDelay
	}
	return delay
}

// shouldRetry determines if a request should be retried based on status code.
// Retries on 5xx server errors and 429 (Too Many Requests).
func (c *RetryableHTTPClient) shouldRetry(statusCode int) bool {
	return (statusCode >= 500 && statusCode < 600) || statusCode == http.StatusTooManyRequests
}

// isTimeoutError checks if an error is a timeout error.
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	if errors.As(err, &te) {
		return te.Timeout()
	}
	return false
}

// Config returns the current retry configuration.
func (c *RetryableHTTPClient) Config() RetryConfig {
	return c.config
}

// SetGitHubToken sets the token sent to the GitHub tags API.
func (c *RetryableHTTPClient) SetGitHubToken(token string) {
	c.githubToken = token
}

// GetGitHubToken returns the configured GitHub token.
func (c *RetryableHTTPClient) GetGitHubToken() string {
	return c.githubToken
}

// SetGitLabToken sets the token sent to GitLab tags APIs.
func (c *RetryableHTTPClient) SetGitLabToken(token string) {
	c.gitlabToken = token
}

// SetDefaultHeaders sets default headers that will be applied to all requests.
// The default User-Agent is kept unless headers overrides it.
func (c *RetryableHTTPClient) SetDefaultHeaders(headers map[string]string) {
	merged := map[string]string{"User-Agent": DefaultUserAgent}
	for k, v := range headers {
		merged[k] = v
	}
	c.defaultHeaders = merged
}

// GetDefaultHeaders returns the configured default headers.
func (c *RetryableHTTPClient) GetDefaultHeaders() map[string]string {
	return c.defaultHeaders
}

// applyHeaders applies default headers, then request-specific ones.
// All header values are processed for environment variable substitution.
func (c *RetryableHTTPClient) applyHeaders(req *http.Request, customHeaders map[string]string) {
	for key, value := range c.defaultHeaders {
		req.Header.Set(key, SubstituteEnvVars(value))
	}
	for key, value := range customHeaders {
		req.Header.Set(key, SubstituteEnvVars(value))
	}
}

// SubstituteEnvVars replaces ${VAR_NAME} patterns in a string with
// the corresponding environment variable values.
// If an environment variable is not set, the pattern is replaced with an empty string.
func SubstituteEnvVars(value string) string {
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}
