// Package mmsapi talks to the MMS uploader endpoints that receive TDDF files.
package mmsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	pingPath   = "/api/uploader/ping"
	statusPath = "/api/uploader/status"
	uploadPath = "/api/uploader/upload"

	pingTimeout   = 15 * time.Second
	statusTimeout = 30 * time.Second
	uploadTimeout = 5 * time.Minute
)

// Defaults for the wake-up sequence run before every batch
const (
	DefaultWakeUpAttempts = 30
	DefaultWakeUpInterval = 5 * time.Second
)

var (
	ErrUnauthorized = errors.New("api key rejected")
	ErrDuplicate    = errors.New("file already uploaded")
	ErrNotReady     = errors.New("server did not become ready")
)

// StatusError is returned for any unexpected HTTP status
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Code, e.Body)
}

// Options configures a Client
type Options struct {
	BaseURL           string
	APIKey            string
	RequestsPerSecond float64 // <= 0 means unlimited
	Version           string
	HTTPClient        *http.Client
	Logger            zerolog.Logger
}

// Client is the HTTP wrapper for the MMS uploader API
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// PingResponse is the body of GET /api/uploader/ping
type PingResponse struct {
	Status        string `json:"status"`
	Environment   string `json:"environment"`
	Message       string `json:"message"`
	ServiceStatus string `json:"serviceStatus"`
	KeyStatus     string `json:"keyStatus"`
	KeyUser       string `json:"keyUser"`
}

// Ready reports whether the service runs and accepted the API key
func (p PingResponse) Ready() bool {
	return p.ServiceStatus == "running" && p.KeyStatus == "valid"
}

// QueueStatus is the body of GET /api/uploader/status
type QueueStatus struct {
	Pending    int  `json:"pending"`
	Processing int  `json:"processing"`
	Completed  int  `json:"completed"`
	Failed     int  `json:"failed"`
	IsBusy     bool `json:"isBusy"`
}

// NewClient creates a client for the server at opts.BaseURL
func NewClient(opts Options) *Client {
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		userAgent:  UserAgent(opts.Version),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     opts.Logger,
	}
}

// UserAgent builds the User-Agent header sent with every request
func UserAgent(version string) string {
	if version == "" {
		version = "dev"
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("tddf-uploader/%s (Go; %s)", version, host)
}

// BaseURL returns the server URL without trailing slash
func (c *Client) BaseURL() string { return c.baseURL }

// Ping performs an authenticated ping
func (c *Client) Ping(ctx context.Context) (*PingResponse, error) {
	var ping PingResponse
	if err := c.getJSON(ctx, "ping", pingPath, pingTimeout, &ping); err != nil {
		return nil, err
	}
	return &ping, nil
}

// Status fetches the server's upload queue counters
func (c *Client) Status(ctx context.Context) (*QueueStatus, error) {
	var status QueueStatus
	if err := c.getJSON(ctx, "status", statusPath, statusTimeout, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// WakeUp pings until the server reports ready, waiting interval between
// attempts. Hosted servers sleep when idle and need a few pings to start.
func (c *Client) WakeUp(ctx context.Context, attempts int, interval time.Duration) (*PingResponse, error) {
	if attempts <= 0 {
		attempts = DefaultWakeUpAttempts
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		ping, err := c.Ping(ctx)
		switch {
		case errors.Is(err, ErrUnauthorized):
			return nil, err
		case err != nil:
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("wake-up ping failed, server may be starting up")
		case ping.Ready():
			c.logger.Info().Int("attempt", attempt).Str("environment", ping.Environment).Msg("server awake, api key validated")
			return ping, nil
		default:
			c.logger.Info().
				Int("attempt", attempt).
				Str("service_status", ping.ServiceStatus).
				Str("key_status", ping.KeyStatus).
				Msg("server not ready yet")
		}

		if attempt == attempts {
			break
		}

		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("%w after %d attempts", ErrNotReady, attempts)
}

// Upload sends r as multipart field "file" named name
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, uploadPath, pr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		io.Copy(io.Discard, resp.Body)
		return nil
	case http.StatusConflict:
		return fmt.Errorf("upload %s: %w", name, ErrDuplicate)
	default:
		return statusError("upload", resp)
	}
}

func (c *Client) getJSON(ctx context.Context, op, path string, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(op, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request %s %s: %w", method, path, err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}

func statusError(op string, resp *http.Response) error {
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
}
