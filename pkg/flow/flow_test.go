package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/openmr-run/openmr/pkg/config"
	"github.com/openmr-run/openmr/pkg/gitlab"
	"github.com/openmr-run/openmr/pkg/jira"
	"github.com/openmr-run/openmr/pkg/ticket"
)

// fakeRepo answers the local git queries.
type fakeRepo struct {
	branch    string
	remoteURL string
}

func (f *fakeRepo) CurrentBranch() (string, error) { return f.branch, nil }
func (f *fakeRepo) RemoteURL(string) (string, error) {
	return f.remoteURL, nil
}

// fakeHost counts every GitLab call.
type fakeHost struct {
	openMR string // returned by FindOpenMergeRequest

	resolveCalls int
	findCalls    int
	createCalls  int
	userCalls    int

	createdOpts gitlab.CreateMergeRequestOptions
}

func (f *fakeHost) ResolveProjectID(context.Context, string) (int, error) {
	f.resolveCalls++
	return 1234, nil
}

func (f *fakeHost) FindOpenMergeRequest(context.Context, int, string, string) (string, error) {
	f.findCalls++
	return f.openMR, nil
}

func (f *fakeHost) CreateMergeRequest(_ context.Context, _ int, opts gitlab.CreateMergeRequestOptions) (string, error) {
	f.createCalls++
	f.createdOpts = opts
	return "https://gitlab.com/group/my-service/-/merge_requests/7", nil
}

func (f *fakeHost) CurrentUserID(context.Context) (int, error) {
	f.userCalls++
	return 99, nil
}

func (f *fakeHost) totalCalls() int {
	return f.resolveCalls + f.findCalls + f.createCalls + f.userCalls
}

// fakeTracker counts every Jira call.
type fakeTracker struct {
	summary string
	linked  bool

	summaryCalls int
	hasLinkCalls int
	addCalls     int

	addedLink jira.RemoteLink
}

func (f *fakeTracker) IssueSummary(context.Context, string) (string, error) {
	f.summaryCalls++
	return f.summary, nil
}

func (f *fakeTracker) HasRemoteLink(context.Context, string, string) (bool, error) {
	f.hasLinkCalls++
	return f.linked, nil
}

func (f *fakeTracker) AddRemoteLink(_ context.Context, _ string, link jira.RemoteLink) error {
	f.addCalls++
	f.addedLink = link
	return nil
}

func (f *fakeTracker) BrowseURL(key string) string {
	return "https://jira.atlassian.com/browse/" + key
}

func (f *fakeTracker) totalCalls() int {
	return f.summaryCalls + f.hasLinkCalls + f.addCalls
}

func newRunner(repo *fakeRepo, host *fakeHost, tracker *fakeTracker) *Runner {
	return &Runner{
		Config:  config.Default(),
		Host:    host,
		Tracker: tracker,
		Repo:    repo,
	}
}

func TestRunBranchEqualsTarget(t *testing.T) {
	host := &fakeHost{}
	tracker := &fakeTracker{}
	runner := newRunner(&fakeRepo{branch: "develop"}, host, tracker)

	_, err := runner.Run(context.Background())

	var precondErr *PreconditionError
	if !errors.As(err, &precondErr) {
		t.Fatalf("error = %v, want *PreconditionError", err)
	}
	if host.totalCalls() != 0 || tracker.totalCalls() != 0 {
		t.Error("no network call should happen when the branch is the target branch")
	}
}

func TestRunBranchWithoutTicketKey(t *testing.T) {
	host := &fakeHost{}
	tracker := &fakeTracker{}
	runner := newRunner(&fakeRepo{branch: "quick-fix"}, host, tracker)

	_, err := runner.Run(context.Background())

	var matchErr *ticket.MatchError
	if !errors.As(err, &matchErr) {
		t.Fatalf("error = %v, want *ticket.MatchError", err)
	}
	if host.totalCalls() != 0 || tracker.totalCalls() != 0 {
		t.Error("no network call should happen when the branch encodes no ticket key")
	}
}

func TestRunCreatesMergeRequestWhenNoneOpen(t *testing.T) {
	host := &fakeHost{openMR: ""}
	tracker := &fakeTracker{summary: " Fix the bug"}
	repo := &fakeRepo{
		branch:    "TCRM-42-fix-bug",
		remoteURL: "git@gitlab.com:group/my-service.git",
	}
	runner := newRunner(repo, host, tracker)

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if host.createCalls != 1 {
		t.Errorf("createCalls = %d, want exactly 1", host.createCalls)
	}
	if !result.CreatedMergeRequest {
		t.Error("Result.CreatedMergeRequest should be true")
	}
	if result.Ticket != "TCRM-42" {
		t.Errorf("Result.Ticket = %q, want TCRM-42", result.Ticket)
	}

	opts := host.createdOpts
	if opts.Title != "TCRM-42 Fix the bug" {
		t.Errorf("Title = %q, want ticket key + summary", opts.Title)
	}
	if opts.SourceBranch != "TCRM-42-fix-bug" || opts.TargetBranch != "develop" {
		t.Errorf("branches = %q -> %q, want TCRM-42-fix-bug -> develop", opts.SourceBranch, opts.TargetBranch)
	}
	if opts.AssigneeID != 99 {
		t.Errorf("AssigneeID = %d, want the caller's id 99", opts.AssigneeID)
	}
	if !opts.Squash || !opts.RemoveSourceBranch {
		t.Error("Squash and RemoveSourceBranch should follow the config defaults")
	}
}

func TestRunReusesOpenMergeRequest(t *testing.T) {
	const existing = "https://gitlab.com/group/my-service/-/merge_requests/3"
	host := &fakeHost{openMR: existing}
	tracker := &fakeTracker{}
	repo := &fakeRepo{
		branch:    "TCRM-42-fix-bug",
		remoteURL: "git@gitlab.com:group/my-service.git",
	}
	runner := newRunner(repo, host, tracker)

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if host.createCalls != 0 {
		t.Errorf("createCalls = %d, want 0 when a merge request is already open", host.createCalls)
	}
	if tracker.summaryCalls != 0 {
		t.Errorf("summaryCalls = %d, want 0 when no merge request is created", tracker.summaryCalls)
	}
	if result.MergeRequestURL != existing {
		t.Errorf("MergeRequestURL = %q, want the existing %q", result.MergeRequestURL, existing)
	}
	if result.CreatedMergeRequest {
		t.Error("Result.CreatedMergeRequest should be false")
	}
}

func TestRunSkipsLinkWhenAlreadyPresent(t *testing.T) {
	host := &fakeHost{openMR: "https://gitlab.com/group/my-service/-/merge_requests/3"}
	tracker := &fakeTracker{linked: true}
	repo := &fakeRepo{
		branch:    "TCRM-42-fix-bug",
		remoteURL: "git@gitlab.com:group/my-service.git",
	}
	runner := newRunner(repo, host, tracker)

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if tracker.addCalls != 0 {
		t.Errorf("addCalls = %d, want 0 when the link already exists", tracker.addCalls)
	}
	if result.AddedLink {
		t.Error("Result.AddedLink should be false")
	}
}

func TestRunAddsLinkWhenAbsent(t *testing.T) {
	host := &fakeHost{}
	tracker := &fakeTracker{summary: " Fix the bug"}
	repo := &fakeRepo{
		branch:    "TCRM-42-fix-bug",
		remoteURL: "git@gitlab.com:group/my-service.git",
	}
	runner := newRunner(repo, host, tracker)

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if tracker.addCalls != 1 {
		t.Fatalf("addCalls = %d, want exactly 1", tracker.addCalls)
	}
	link := tracker.addedLink
	if link.URL != "https://gitlab.com/group/my-service/-/merge_requests/7" {
		t.Errorf("link.URL = %q, want the merge request URL", link.URL)
	}
	if link.Title != "my-service" {
		t.Errorf("link.Title = %q, want the service name from the URL", link.Title)
	}
	if link.IconURL != "https://gitlab.com/favicon.ico" {
		t.Errorf("link.IconURL = %q, want the GitLab favicon", link.IconURL)
	}
	if !result.AddedLink {
		t.Error("Result.AddedLink should be true")
	}
	if result.TicketURL != "https://jira.atlassian.com/browse/TCRM-42" {
		t.Errorf("TicketURL = %q", result.TicketURL)
	}
}

func TestRunSurfacesHostErrors(t *testing.T) {
	repo := &fakeRepo{
		branch:    "TCRM-42-fix-bug",
		remoteURL: "https://gitlab.com/group/my-service",
	}
	runner := newRunner(repo, &fakeHost{}, &fakeTracker{})

	// The remote URL has no .git suffix, so the project name cannot be
	// derived and resolution fails before any merge request work.
	runner.Host = gitlab.NewClient("token")
	if _, err := runner.Run(context.Background()); err == nil {
		t.Fatal("Run() should surface project resolution errors")
	}
}
