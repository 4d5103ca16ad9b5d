// Package jira is a thin client for the Jira issue and remote-link calls
// openmr performs. Authentication uses a bearer token through oauth2's
// static token source.
package jira

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/openmr-run/openmr/pkg/rest"
)

const (
	defaultBaseURL = "https://jira.atlassian.com/rest/api/2"
	defaultTimeout = 30 * time.Second
)

// Client talks to one Jira instance.
type Client struct {
	baseURL    string
	browseURL  string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root (e.g. for test servers).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithBrowseURL overrides the root of user-facing ticket links.
func WithBrowseURL(browseURL string) Option {
	return func(c *Client) {
		c.browseURL = browseURL
	}
}

// WithTimeout overrides the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the HTTP client entirely (used by replay tests).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Jira client authenticating with the given bearer
// token. The token is injected here rather than read from the environment.
func NewClient(token string, opts ...Option) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = defaultTimeout

	c := &Client{
		baseURL:    defaultBaseURL,
		browseURL:  "https://jira.atlassian.com/browse",
		httpClient: httpClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type issue struct {
	Fields struct {
		Summary string `json:"summary"`
	} `json:"fields"`
}

type remoteLink struct {
	Object linkObject `json:"object"`
}

type linkObject struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Icon  *icon  `json:"icon,omitempty"`
}

type icon struct {
	URL16x16 string `json:"url16x16"`
}

// IssueSummary fetches the summary (title) of the issue with the given key.
func (c *Client) IssueSummary(ctx context.Context, key string) (string, error) {
	var iss issue
	if err := c.get(ctx, "/issue/"+key, &iss); err != nil {
		return "", err
	}
	return iss.Fields.Summary, nil
}

// HasRemoteLink reports whether the issue already carries a remote link
// with exactly the given URL. This is the idempotence guard before
// AddRemoteLink.
func (c *Client) HasRemoteLink(ctx context.Context, key, url string) (bool, error) {
	var links []remoteLink
	if err := c.get(ctx, "/issue/"+key+"/remotelink", &links); err != nil {
		return false, err
	}

	for _, link := range links {
		if link.Object.URL == url {
			return true, nil
		}
	}
	return false, nil
}

// RemoteLink describes the link record added to an issue.
type RemoteLink struct {
	// URL is the merge request web URL.
	URL string
	// Title is the display title, the service name derived from the URL.
	Title string
	// IconURL is an optional 16x16 icon shown next to the link.
	IconURL string
}

// AddRemoteLink attaches a remote link to the issue.
func (c *Client) AddRemoteLink(ctx context.Context, key string, link RemoteLink) error {
	body := remoteLink{
		Object: linkObject{
			URL:   link.URL,
			Title: link.Title,
		},
	}
	if link.IconURL != "" {
		body.Object.Icon = &icon{URL16x16: link.IconURL}
	}

	url := c.baseURL + "/issue/" + key + "/remotelink"
	return rest.Do(ctx, c.httpClient, http.MethodPost, url, nil, body, http.StatusCreated, nil)
}

// BrowseURL returns the user-facing link to the issue.
func (c *Client) BrowseURL(key string) string {
	return fmt.Sprintf("%s/%s", c.browseURL, key)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return rest.Do(ctx, c.httpClient, http.MethodGet, c.baseURL+path, nil, nil, http.StatusOK, out)
}
