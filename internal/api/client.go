package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/mrd/ca-drive/internal/config"
	"github.com/mrd/ca-drive/internal/constants"
	"github.com/mrd/ca-drive/internal/http"
	"github.com/mrd/ca-drive/internal/logging"
	"github.com/mrd/ca-drive/internal/ratelimit"
)

// retryLogger implements the retryablehttp.LeveledLogger interface on top of our logger.
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg("[RETRY] " + msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Only log errors and warnings
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("[RETRY] " + msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg("[RETRY] " + msg)
}

// Client talks to the CA dashboard REST backend.
//
// Idempotent GETs go through a retrying client; mutations are sent exactly once.
type Client struct {
	readClient     *nethttp.Client
	writeClient    *nethttp.Client
	config         *config.Config
	baseURL        string
	requestTimeout time.Duration
	uploadTimeout  time.Duration
	logger         *logging.Logger
	limiter        *ratelimit.RateLimiter

	mu    sync.RWMutex
	token string
}

// NewClient creates a new API client
func NewClient(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, fmt.Errorf("API base URL is empty (set %s or run 'ca-drive config set api.url <url>')", config.EnvAPIURL)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	httpClient, err := http.ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = constants.APIMaxRetries
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = &retryLogger{logger: logger}
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = constants.APIRequestTimeout
	}
	uploadTimeout := cfg.UploadTimeout
	if uploadTimeout <= 0 {
		uploadTimeout = constants.UploadRequestTimeout
	}

	return &Client{
		readClient:     retryClient.StandardClient(),
		writeClient:    httpClient,
		config:         cfg,
		baseURL:        strings.TrimSuffix(cfg.APIBaseURL, "/"),
		requestTimeout: requestTimeout,
		uploadTimeout:  uploadTimeout,
		logger:         logger,
		limiter:        ratelimit.NewAPIRateLimiter(logger),
		token:          cfg.Token,
	}, nil
}

// GetConfig returns the configuration used by this API client
func (c *Client) GetConfig() *config.Config {
	return c.config
}

// SetToken replaces the bearer token, e.g. after login.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// BaseURL returns the API root, e.g. http://localhost:5001/api.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs a JSON request and returns the fully read response body.
// The whole exchange, body included, is bounded by the client's request timeout.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (int, []byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := nethttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.writeClient
	if method == nethttp.MethodGet {
		client = c.readClient
	}
	return c.send(client, req)
}

// doUpload sends a prepared multipart body with the upload timeout.
func (c *Client) doUpload(ctx context.Context, path, contentType string, body io.Reader) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPost, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.send(c.writeClient, req)
}

func (c *Client) send(client *nethttp.Client, req *nethttp.Request) (int, []byte, error) {
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if err := c.limiter.Wait(req.Context()); err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		c.logger.Debug().Str("request_id", requestID).Err(err).
			Msgf("API call failed: %s %s", req.Method, req.URL.Path)
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, nil, fmt.Errorf("%s %s timed out after %s: %w", req.Method, req.URL.Path, c.requestTimeout, err)
		}
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug().
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msgf("%s %s", req.Method, req.URL.Path)

	return resp.StatusCode, data, nil
}

// getJSON issues a GET and decodes a 200 response into out.
func (c *Client) getJSON(ctx context.Context, path, what string, out interface{}) error {
	return c.callJSON(ctx, nethttp.MethodGet, path, nil, what, out)
}

// callJSON issues a request, maps non-2xx to *StatusError and decodes the body into out (if non-nil).
func (c *Client) callJSON(ctx context.Context, method, path string, body interface{}, what string, out interface{}) error {
	status, data, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if status < 200 || status > 299 {
		return newStatusError(method, path, status, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		if out != nil {
			return malformed(what, errors.New("empty body"))
		}
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return malformed(what, err)
	}
	return nil
}

// DownloadURL resolves a file's fileUrl against the API origin when it is relative.
func (c *Client) DownloadURL(fileURL string) (string, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("invalid file url %q: %w", fileURL, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	origin := &url.URL{Scheme: base.Scheme, Host: base.Host}
	return origin.ResolveReference(u).String(), nil
}

func escape(id string) string {
	return url.PathEscape(id)
}
