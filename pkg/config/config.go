// Package config holds the settings that drive an openmr run.
// Defaults are compiled in; a .openmr.yaml at the repository root (or a file
// passed via --config) can override any of them.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up at the git repository root.
const DefaultFileName = ".openmr.yaml"

// Config describes the hosts, the target branch, and the merge request
// options for one run. It is passed explicitly to the orchestrator; nothing
// reads it from globals.
type Config struct {
	// GitLabHost is the GitLab instance serving the repository.
	GitLabHost string `yaml:"gitlab_host"`

	// GitLabAPIVersion selects the GitLab REST API version (e.g. "v4").
	GitLabAPIVersion string `yaml:"gitlab_api_version"`

	// JiraHost is the Jira instance tracking the tickets.
	JiraHost string `yaml:"jira_host"`

	// JiraAPIVersion selects the Jira REST API version (e.g. "2").
	JiraAPIVersion string `yaml:"jira_api_version"`

	// TargetBranch is the branch every merge request is opened against.
	TargetBranch string `yaml:"target_branch"`

	// TicketPattern is the regular expression, anchored at the start of the
	// branch name, whose match is the ticket key.
	TicketPattern string `yaml:"ticket_pattern"`

	// Squash asks GitLab to squash commits on merge.
	Squash bool `yaml:"squash"`

	// RemoveSourceBranch asks GitLab to delete the branch after merging.
	RemoveSourceBranch bool `yaml:"remove_source_branch"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		GitLabHost:         "gitlab.com",
		GitLabAPIVersion:   "v4",
		JiraHost:           "jira.atlassian.com",
		JiraAPIVersion:     "2",
		TargetBranch:       "develop",
		TicketPattern:      "TCRM-[0-9]*",
		Squash:             true,
		RemoveSourceBranch: true,
	}
}

// Load overlays the YAML file at path on top of the defaults. Fields absent
// from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the fields a run cannot proceed without.
func (c Config) Validate() error {
	if c.GitLabHost == "" {
		return fmt.Errorf("gitlab_host must not be empty")
	}
	if c.JiraHost == "" {
		return fmt.Errorf("jira_host must not be empty")
	}
	if c.TargetBranch == "" {
		return fmt.Errorf("target_branch must not be empty")
	}
	if _, err := c.CompiledPattern(); err != nil {
		return err
	}
	return nil
}

// CompiledPattern compiles TicketPattern anchored at the start of the
// branch name.
func (c Config) CompiledPattern() (*regexp.Regexp, error) {
	re, err := regexp.Compile("^(?:" + c.TicketPattern + ")")
	if err != nil {
		return nil, fmt.Errorf("invalid ticket_pattern %q: %w", c.TicketPattern, err)
	}
	return re, nil
}

// GitLabBaseURL returns the API root for the configured GitLab instance.
func (c Config) GitLabBaseURL() string {
	return fmt.Sprintf("https://%s/api/%s", c.GitLabHost, c.GitLabAPIVersion)
}

// JiraBaseURL returns the API root for the configured Jira instance.
func (c Config) JiraBaseURL() string {
	return fmt.Sprintf("https://%s/rest/api/%s", c.JiraHost, c.JiraAPIVersion)
}
