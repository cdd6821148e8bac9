package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cadencehq/cadence/internal/importer"
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import work items from external trackers",
	}

	cmd.AddCommand(newImportGitHubCmd())
	return cmd
}

func newImportGitHubCmd() *cobra.Command {
	var (
		configPath string
		projectID  string
		owner      string
		repo       string
		token      string
		state      string
		labels     []string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "github",
		Short: "Import GitHub issues into a project",
		Long: `Imports issues from a GitHub repository into a project's backlog.

Pull requests are skipped. Labels map to issue types: "bug" imports as a
bug, "enhancement" or "feature" as a story, anything else as a task.
Owner, repo, and token default from the config's github section; with no
token the import runs anonymously against GitHub's public rate limit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if owner == "" {
				owner = cfg.GitHub.Owner
			}
			if repo == "" {
				repo = cfg.GitHub.Repo
			}
			if token == "" {
				token = cfg.GitHub.Token
			}
			if token == "" {
				token, err = readSecret(cmd, "GitHub token (blank for anonymous): ")
				if err != nil {
					return err
				}
			}

			res, err := importer.FromGitHub(cmd.Context(), gormDB, importer.Options{
				ProjectID: projectID,
				Owner:     owner,
				Repo:      repo,
				Token:     token,
				State:     state,
				Labels:    labels,
				Actor:     actorOrDefault(actor, cfg),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d issues from %s/%s (%d skipped)\n",
				res.Imported, owner, repo, res.Skipped)
			for _, e := range res.Errors {
				fmt.Fprintf(out, "  error: %s\n", e)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&projectID, "project", "", "destination project id (required)")
	cmd.Flags().StringVar(&owner, "owner", "", "GitHub repository owner (defaults from config)")
	cmd.Flags().StringVar(&repo, "repo", "", "GitHub repository name (defaults from config)")
	cmd.Flags().StringVar(&token, "token", "", "GitHub API token (defaults from config)")
	cmd.Flags().StringVar(&state, "state", "open", "issue state to import: open, closed, or all")
	cmd.Flags().StringSliceVar(&labels, "label", nil, "only import issues with this label (repeatable)")
	cmd.Flags().StringVar(&actor, "actor", "", "user id recorded as creator (defaults to config actor)")
	cmd.MarkFlagRequired("project")
	return cmd
}
