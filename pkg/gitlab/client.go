// Package gitlab is a thin client for the handful of GitLab REST calls
// openmr performs: resolving the project behind the local remote, looking
// up and creating merge requests, and identifying the caller.
package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/openmr-run/openmr/pkg/rest"
)

const (
	// minAccessLevel filters the project search to repositories the caller
	// can at least develop in (GitLab "Developer" access).
	minAccessLevel = 30

	// maxPerPage is the GitLab API page-size cap. Only one page is fetched,
	// so a search returning more than this many projects can miss the true
	// match in very large accounts.
	maxPerPage = 100

	defaultBaseURL = "https://gitlab.com/api/v4"
	defaultTimeout = 30 * time.Second
)

// projectNamePattern extracts the repository name from a clone URL,
// e.g. git@gitlab.com:group/my-service.git -> my-service.
var projectNamePattern = regexp.MustCompile(`/([a-zA-Z0-9-]*)\.git`)

// Client talks to one GitLab instance with a private token.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root (e.g. for self-hosted instances or
// test servers).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
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

// NewClient creates a GitLab client authenticating with the given private
// token. The token is injected here rather than read from the environment.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:      token,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NotFoundError reports that no project in the search result matched the
// local remote URL.
type NotFoundError struct {
	RemoteURL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cannot find project with url: %s", e.RemoteURL)
}

// project is the subset of the projects listing we compare against the
// local remote.
type project struct {
	ID      int    `json:"id"`
	SSHURL  string `json:"ssh_url_to_repo"`
	HTTPURL string `json:"http_url_to_repo"`
}

type mergeRequest struct {
	WebURL string `json:"web_url"`
}

type user struct {
	ID int `json:"id"`
}

// ProjectName derives the repository name from a git clone URL. It is used
// as the search term when resolving the project id.
func ProjectName(remoteURL string) (string, error) {
	matches := projectNamePattern.FindStringSubmatch(remoteURL)
	if matches == nil {
		return "", fmt.Errorf("cannot derive project name from remote url %q", remoteURL)
	}
	return matches[1], nil
}

// ResolveProjectID finds the numeric id of the project whose SSH or HTTPS
// clone URL equals remoteURL. The search term is the repository name taken
// from the remote URL; the match itself is by exact clone-URL equality.
func (c *Client) ResolveProjectID(ctx context.Context, remoteURL string) (int, error) {
	name, err := ProjectName(remoteURL)
	if err != nil {
		return 0, err
	}

	query := url.Values{}
	query.Set("archived", "false")
	query.Set("min_access_level", strconv.Itoa(minAccessLevel))
	query.Set("simple", "true")
	query.Set("with_merge_requests_enabled", "true")
	query.Set("pagination", "keyset")
	query.Set("per_page", strconv.Itoa(maxPerPage))
	query.Set("sort", "desc")
	query.Set("order_by", "id")
	query.Set("search", name)

	var projects []project
	if err := c.get(ctx, "/projects?"+query.Encode(), &projects); err != nil {
		return 0, err
	}

	for _, p := range projects {
		if remoteURL == p.SSHURL || remoteURL == p.HTTPURL {
			return p.ID, nil
		}
	}

	return 0, &NotFoundError{RemoteURL: remoteURL}
}

// FindOpenMergeRequest returns the web URL of an already-open merge request
// from source to target, or "" when none exists.
func (c *Client) FindOpenMergeRequest(ctx context.Context, projectID int, source, target string) (string, error) {
	query := url.Values{}
	query.Set("state", "opened")
	query.Set("source_branch", source)
	query.Set("target_branch", target)

	var mrs []mergeRequest
	path := fmt.Sprintf("/projects/%d/merge_requests?%s", projectID, query.Encode())
	if err := c.get(ctx, path, &mrs); err != nil {
		return "", err
	}

	if len(mrs) == 0 {
		return "", nil
	}
	return mrs[0].WebURL, nil
}

// CreateMergeRequestOptions are the parameters for opening a merge request.
type CreateMergeRequestOptions struct {
	Title              string `json:"title"`
	SourceBranch       string `json:"source_branch"`
	TargetBranch       string `json:"target_branch"`
	AssigneeID         int    `json:"assignee_id"`
	Squash             bool   `json:"squash"`
	RemoveSourceBranch bool   `json:"remove_source_branch"`
}

// CreateMergeRequest opens a merge request and returns its web URL.
func (c *Client) CreateMergeRequest(ctx context.Context, projectID int, opts CreateMergeRequestOptions) (string, error) {
	var mr mergeRequest
	path := fmt.Sprintf("/projects/%d/merge_requests", projectID)
	err := rest.Do(ctx, c.httpClient, http.MethodPost, c.baseURL+path, c.headers(), opts, http.StatusCreated, &mr)
	if err != nil {
		return "", err
	}
	return mr.WebURL, nil
}

// CurrentUserID resolves the authenticated caller's numeric id. It is used
// as the assignee of newly created merge requests.
func (c *Client) CurrentUserID(ctx context.Context) (int, error) {
	var u user
	if err := c.get(ctx, "/user", &u); err != nil {
		return 0, err
	}
	return u.ID, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return rest.Do(ctx, c.httpClient, http.MethodGet, c.baseURL+path, c.headers(), nil, http.StatusOK, out)
}

func (c *Client) headers() http.Header {
	headers := http.Header{}
	headers.Set("PRIVATE-TOKEN", c.token)
	return headers
}
