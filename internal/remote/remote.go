// Package remote fetches the published version marker and the news feed.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tinoosan/launcher/internal/metrics"
)

var (
	// ErrOffline means the remote could not be reached at all.
	ErrOffline = errors.New("remote unreachable")
	// ErrBadResponse means the remote answered with a non-2xx status or a
	// body that could not be used.
	ErrBadResponse = errors.New("unexpected remote response")
)

const (
	DefaultVersionURL = "https://dl.unvanquished.net/current.txt"
	DefaultNewsURL    = "https://www.unvanquished.net/?cat=3&json=1"

	maxVersionBytes = 1 << 10
	maxNewsBytes    = 4 << 20
)

type Config struct {
	VersionURL string
	NewsURL    string
	Timeout    time.Duration
}

// Client talks to the release host. The zero Config uses the public
// defaults.
type Client struct {
	versionURL string
	newsURL    string
	http       *http.Client
	log        *slog.Logger
}

func New(cfg Config) *Client {
	if cfg.VersionURL == "" {
		cfg.VersionURL = DefaultVersionURL
	}
	if cfg.NewsURL == "" {
		cfg.NewsURL = DefaultNewsURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		versionURL: cfg.VersionURL,
		newsURL:    cfg.NewsURL,
		http:       &http.Client{Timeout: cfg.Timeout},
		log:        slog.Default(),
	}
}

// SetLogger allows wiring a shared application logger into the client.
func (c *Client) SetLogger(l *slog.Logger) {
	if l != nil {
		c.log = l
	}
}

// SetHTTPClient replaces the transport, mainly for tests.
func (c *Client) SetHTTPClient(h *http.Client) {
	if h != nil {
		c.http = h
	}
}

// FetchVersion returns the trimmed body of the version URL. An empty string
// with a nil error means the host published an empty marker.
func (c *Client) FetchVersion(ctx context.Context) (string, error) {
	body, err := c.get(ctx, c.versionURL, maxVersionBytes)
	if err != nil {
		metrics.RemoteFetchErrors.WithLabelValues("version").Inc()
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func (c *Client) get(ctx context.Context, url string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOffline, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: GET %s: http %d", ErrBadResponse, url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrOffline, url, err)
	}
	return body, nil
}
