// Package git wraps the system git commands openmr needs. All queries are
// read-only; the tool never mutates the local repository.
package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// Client runs git commands in a fixed working directory. An empty Dir means
// the current working directory.
type Client struct {
	Dir string
}

// NewClient creates a git client rooted at dir.
func NewClient(dir string) *Client {
	return &Client{Dir: dir}
}

// CurrentBranch returns the name of the currently checked-out branch.
// The result is empty on a detached HEAD.
func (c *Client) CurrentBranch() (string, error) {
	return c.output("branch", "--show-current")
}

// RemoteURL returns the fetch URL of the named remote (usually "origin").
func (c *Client) RemoteURL(name string) (string, error) {
	return c.output("remote", "get-url", name)
}

// RepoRoot returns the absolute path of the repository root. It is used to
// locate the optional config file; a failure just means no config file.
func (c *Client) RepoRoot() (string, error) {
	return c.output("rev-parse", "--show-toplevel")
}

func (c *Client) output(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}
