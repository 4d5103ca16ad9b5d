// Package ticket extracts identifiers from branch names and merge request
// URLs. Both mirror the conventions the team encodes in branch naming:
// the ticket key leads the branch name, and GitLab web URLs carry the
// project path before "/-/merge_requests".
package ticket

import (
	"fmt"
	"regexp"
)

// serviceNamePattern extracts the repository path segment from a merge
// request web URL, e.g. .../group/my-service/-/merge_requests/7.
var serviceNamePattern = regexp.MustCompile(`/([a-zA-Z-]*)/-/merge_requests`)

// MatchError reports a branch name that does not encode a ticket key.
type MatchError struct {
	Branch  string
	Pattern string
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("branch name %q does not start with a ticket key matching %q", e.Branch, e.Pattern)
}

// FromBranch returns the ticket key at the start of the branch name.
// The pattern is expected to be anchored (config.CompiledPattern does that).
func FromBranch(branch string, pattern *regexp.Regexp) (string, error) {
	key := pattern.FindString(branch)
	if key == "" {
		return "", &MatchError{Branch: branch, Pattern: pattern.String()}
	}
	return key, nil
}

// ServiceName derives a display title for a remote link from a merge
// request web URL by taking the repository path segment.
func ServiceName(mrURL string) string {
	matches := serviceNamePattern.FindStringSubmatch(mrURL)
	if matches == nil {
		return ""
	}
	return matches[1]
}
