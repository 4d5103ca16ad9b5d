// Package flow sequences one openmr run: inspect the local branch, find or
// create the merge request, and make sure the ticket links back to it.
// Every step is a gate; the first failure aborts the run. There is no
// rollback: a merge request created before a later failure stays valid.
package flow

import (
	"context"
	"fmt"

	"github.com/openmr-run/openmr/pkg/config"
	"github.com/openmr-run/openmr/pkg/gitlab"
	"github.com/openmr-run/openmr/pkg/jira"
	"github.com/openmr-run/openmr/pkg/log"
	"github.com/openmr-run/openmr/pkg/ticket"
)

// Host is the code-hosting side of the workflow. *gitlab.Client satisfies it.
type Host interface {
	ResolveProjectID(ctx context.Context, remoteURL string) (int, error)
	FindOpenMergeRequest(ctx context.Context, projectID int, source, target string) (string, error)
	CreateMergeRequest(ctx context.Context, projectID int, opts gitlab.CreateMergeRequestOptions) (string, error)
	CurrentUserID(ctx context.Context) (int, error)
}

// Tracker is the issue-tracking side of the workflow. *jira.Client
// satisfies it.
type Tracker interface {
	IssueSummary(ctx context.Context, key string) (string, error)
	HasRemoteLink(ctx context.Context, key, url string) (bool, error)
	AddRemoteLink(ctx context.Context, key string, link jira.RemoteLink) error
	BrowseURL(key string) string
}

// Repo answers the local version-control queries. *git.Client satisfies it.
type Repo interface {
	CurrentBranch() (string, error)
	RemoteURL(name string) (string, error)
}

// PreconditionError reports that the checked-out branch is the target
// branch itself, so there is nothing to open a merge request from.
type PreconditionError struct {
	Branch string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("cannot open merge request: current branch is the target branch (%s)", e.Branch)
}

// Result is what a completed run produced or reused.
type Result struct {
	// Ticket is the key extracted from the branch name.
	Ticket string
	// MergeRequestURL points at the open merge request, created or reused.
	MergeRequestURL string
	// TicketURL is the user-facing link to the ticket.
	TicketURL string
	// CreatedMergeRequest is false when an open merge request already existed.
	CreatedMergeRequest bool
	// AddedLink is false when the ticket already linked the merge request.
	AddedLink bool
}

// Runner stitches the pieces of one run together.
type Runner struct {
	Config  config.Config
	Host    Host
	Tracker Tracker
	Repo    Repo
}

// Run executes the workflow from branch inspection to the reciprocal
// ticket link. The returned Result is valid only when err is nil.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	pattern, err := r.Config.CompiledPattern()
	if err != nil {
		return nil, err
	}

	log.Progressf("getting current branch name")
	branch, err := r.Repo.CurrentBranch()
	if err != nil {
		return nil, err
	}
	log.Infof("current branch: %s", branch)

	if branch == r.Config.TargetBranch {
		return nil, &PreconditionError{Branch: branch}
	}

	log.Progressf("extracting ticket key from branch name")
	key, err := ticket.FromBranch(branch, pattern)
	if err != nil {
		return nil, err
	}
	log.Infof("ticket: %s", key)

	remoteURL, err := r.Repo.RemoteURL("origin")
	if err != nil {
		return nil, err
	}

	log.Progressf("resolving gitlab project id")
	projectID, err := r.Host.ResolveProjectID(ctx, remoteURL)
	if err != nil {
		return nil, err
	}
	log.Infof("project id: %d", projectID)

	result := &Result{
		Ticket:    key,
		TicketURL: r.Tracker.BrowseURL(key),
	}

	log.Progressf("checking for an already-open merge request")
	mrURL, err := r.Host.FindOpenMergeRequest(ctx, projectID, branch, r.Config.TargetBranch)
	if err != nil {
		return nil, err
	}

	if mrURL != "" {
		log.Infof("merge request already open: %s", mrURL)
	} else {
		log.Infof("no open merge request found, creating one")

		log.Progressf("fetching ticket summary")
		summary, err := r.Tracker.IssueSummary(ctx, key)
		if err != nil {
			return nil, err
		}
		title := key + summary
		log.Infof("title: %s", title)

		userID, err := r.Host.CurrentUserID(ctx)
		if err != nil {
			return nil, err
		}

		log.Progressf("creating merge request")
		mrURL, err = r.Host.CreateMergeRequest(ctx, projectID, gitlab.CreateMergeRequestOptions{
			Title:              title,
			SourceBranch:       branch,
			TargetBranch:       r.Config.TargetBranch,
			AssigneeID:         userID,
			Squash:             r.Config.Squash,
			RemoveSourceBranch: r.Config.RemoveSourceBranch,
		})
		if err != nil {
			return nil, err
		}
		result.CreatedMergeRequest = true
		log.Infof("merge request opened: %s", mrURL)
	}
	result.MergeRequestURL = mrURL

	log.Progressf("checking for an existing merge request link on the ticket")
	linked, err := r.Tracker.HasRemoteLink(ctx, key, mrURL)
	if err != nil {
		return nil, err
	}

	if linked {
		log.Infof("merge request link already on ticket")
	} else {
		log.Progressf("adding merge request link to ticket")
		err = r.Tracker.AddRemoteLink(ctx, key, jira.RemoteLink{
			URL:     mrURL,
			Title:   ticket.ServiceName(mrURL),
			IconURL: fmt.Sprintf("https://%s/favicon.ico", r.Config.GitLabHost),
		})
		if err != nil {
			return nil, err
		}
		result.AddedLink = true
		log.Infof("merge request link added to ticket")
	}

	return result, nil
}
