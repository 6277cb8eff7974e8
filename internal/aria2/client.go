package aria2

import (
	"net/http"
	"net/url"
	"time"
)

const defaultRPCURL = "http://127.0.0.1:6800/jsonrpc"

// Config selects the aria2 daemon to talk to. The launcher fills it from
// its own config file and the ARIA2_* environment.
type Config struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

type Client struct {
	baseURL *url.URL
	secret  string
	http    *http.Client
}

// NewClient builds a client from cfg. An empty or unparsable URL falls back
// to the local default daemon address.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	rawURL := cfg.URL
	if rawURL == "" {
		rawURL = defaultRPCURL
	}
	baseURL, err := url.Parse(rawURL)
	if err != nil {
		baseURL, err = url.Parse(defaultRPCURL)
		if err != nil {
			return nil, err
		}
	}
	return &Client{
		baseURL: baseURL,
		secret:  cfg.Secret,
		http:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *Client) BaseURL() *url.URL  { return c.baseURL }
func (c *Client) Secret() string     { return c.secret }
func (c *Client) HTTP() *http.Client { return c.http }
