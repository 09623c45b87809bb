package confluence

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// NewAPI builds a client for one Confluence site.  site is either the Atlassian ORG name (as in
// ORG.atlassian.net) or a full wiki base URL such as https://wiki.example.com/wiki.
//
// With a username the token is sent as HTTP basic auth, without one it's sent as a bearer token.
func NewAPI(site string, username string, token string, opts ...Option) (*API, error) {
	site = strings.TrimSpace(site)
	if site == "" {
		return nil, fmt.Errorf("confluence: configure your Confluence site with --base-url or --confluence-instance")
	}
	if token == "" {
		return nil, fmt.Errorf("confluence: auth token is empty, please check CMT_CONF_TOKEN or auth-token-cmd")
	}

	raw := site
	if !strings.Contains(site, "://") {
		raw = fmt.Sprintf("https://%s.atlassian.net/wiki", site)
	}

	u, err := url.ParseRequestURI(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("confluence: couldn't parse REST API URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("confluence: unsupported URL scheme %q in %s", u.Scheme, raw)
	}

	a := &API{
		BaseURI:  u,
		Client:   &http.Client{Timeout: 30 * time.Second},
		Retry:    DefaultRetryPolicy(),
		token:    token,
		username: username,
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		a.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return a, nil
}

type API struct {
	// Wiki root, e.g. https://INSTANCE.atlassian.net/wiki.  Endpoints are resolved below it.
	BaseURI *url.URL

	// An HTTP client - you can substitute VCR or whatnot.
	Client *http.Client

	Retry RetryPolicy

	logger *slog.Logger

	// Auth info
	username, token string
}

// Option tweaks an API at construction time.
type Option func(*API)

func WithLogger(logger *slog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

func WithHTTPClient(client *http.Client) Option {
	return func(a *API) {
		if client != nil {
			a.Client = client
		}
	}
}

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(a *API) { a.Retry = policy }
}

func WithTimeout(timeout time.Duration) Option {
	return func(a *API) {
		if timeout > 0 {
			a.Client.Timeout = timeout
		}
	}
}
