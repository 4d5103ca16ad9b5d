package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/openmr-run/openmr/pkg/config"
	"github.com/openmr-run/openmr/pkg/flow"
	"github.com/openmr-run/openmr/pkg/git"
	"github.com/openmr-run/openmr/pkg/gitlab"
	"github.com/openmr-run/openmr/pkg/jira"
	"github.com/openmr-run/openmr/pkg/log"
)

var (
	configPath   string
	targetBranch string
	logLevel     string
)

var (
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	linkStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
)

var rootCmd = &cobra.Command{
	Use:   "openmr",
	Short: "Open a merge request from the current branch and link it to its Jira ticket",
	Long: `openmr opens a GitLab merge request from the currently checked-out branch
against the configured target branch, reusing an already-open one when it
exists, and makes sure the Jira ticket encoded in the branch name carries a
link back to the merge request.

Credentials are read from the GITLAB_TOKEN and JIRA_TOKEN environment
variables. Defaults can be overridden with a .openmr.yaml at the repository
root or a file passed via --config.`,
	Run: func(cmd *cobra.Command, args []string) {
		log.Init(log.Config{Level: log.Level(logLevel)})
		defer log.Sync()

		creds, err := config.CredentialsFromEnv()
		if err != nil {
			fail(err)
		}

		repo := git.NewClient("")

		cfg, err := loadConfig(repo)
		if err != nil {
			fail(err)
		}
		if targetBranch != "" {
			cfg.TargetBranch = targetBranch
		}
		if err := cfg.Validate(); err != nil {
			fail(err)
		}

		runner := &flow.Runner{
			Config: cfg,
			Host: gitlab.NewClient(creds.GitLabToken,
				gitlab.WithBaseURL(cfg.GitLabBaseURL()),
			),
			Tracker: jira.NewClient(creds.JiraToken,
				jira.WithBaseURL(cfg.JiraBaseURL()),
				jira.WithBrowseURL(fmt.Sprintf("https://%s/browse", cfg.JiraHost)),
			),
			Repo: repo,
		}

		result, err := runner.Run(context.Background())
		if err != nil {
			fail(err)
		}

		if result.CreatedMergeRequest {
			fmt.Println(okStyle.Render("merge request opened:"))
		} else {
			fmt.Println("merge request already open:")
		}
		fmt.Println(linkStyle.Render(result.MergeRequestURL))

		if result.AddedLink {
			fmt.Println(okStyle.Render("merge request link added to " + result.Ticket))
		} else {
			fmt.Println("merge request link already on " + result.Ticket)
		}
		fmt.Println(linkStyle.Render(result.TicketURL))
	},
}

// loadConfig reads --config when given, otherwise looks for the default
// file at the repository root and falls back to the compiled defaults.
func loadConfig(repo *git.Client) (config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}

	root, err := repo.RepoRoot()
	if err != nil {
		// Not in a git repository; the branch inspection will fail with a
		// clearer message than a config lookup would.
		return config.Default(), nil
	}

	path := filepath.Join(root, config.DefaultFileName)
	if _, err := os.Stat(path); err != nil {
		return config.Default(), nil
	}
	return config.Load(path)
}

// fail prints the error in red and exits. Every failure is fatal; nothing
// is retried or rolled back.
func fail(err error) {
	log.Sync()
	fmt.Fprintln(os.Stderr, errStyle.Render(err.Error()))
	os.Exit(1)
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a config file (default: .openmr.yaml at the repo root)")
	rootCmd.Flags().StringVarP(&targetBranch, "target", "t", "", "Override the target branch")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "progress", "Log level: debug, info, progress, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
