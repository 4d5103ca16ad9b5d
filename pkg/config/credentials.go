package config

import (
	"fmt"
	"os"
)

// Environment variables holding the API tokens.
const (
	GitLabTokenEnv = "GITLAB_TOKEN"
	JiraTokenEnv   = "JIRA_TOKEN"
)

// Credentials carries the API tokens for one run. They are read once at
// startup and handed to the client constructors; the clients themselves
// never touch the environment.
type Credentials struct {
	GitLabToken string
	JiraToken   string
}

// CredentialError reports a missing token environment variable. It is
// raised before any network call is made.
type CredentialError struct {
	// Name is the environment variable that was not set.
	Name string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("there is no %q in env variables", e.Name)
}

// CredentialsFromEnv reads both tokens from the environment. The first
// missing variable fails the run.
func CredentialsFromEnv() (Credentials, error) {
	jira := os.Getenv(JiraTokenEnv)
	if jira == "" {
		return Credentials{}, &CredentialError{Name: JiraTokenEnv}
	}

	gitlab := os.Getenv(GitLabTokenEnv)
	if gitlab == "" {
		return Credentials{}, &CredentialError{Name: GitLabTokenEnv}
	}

	return Credentials{GitLabToken: gitlab, JiraToken: jira}, nil
}
