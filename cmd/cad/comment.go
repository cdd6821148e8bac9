package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cadencehq/cadence/internal/comment"
)

func newCommentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comment",
		Short: "Comment commands",
	}

	cmd.AddCommand(newCommentAddCmd())
	cmd.AddCommand(newCommentListCmd())
	cmd.AddCommand(newCommentRmCmd())
	return cmd
}

// addTargetFlags registers the four mutually exclusive target flags. Exactly
// one must be set; the comment package enforces that.
func addTargetFlags(cmd *cobra.Command, t *comment.Target) {
	cmd.Flags().StringVar(&t.ProjectID, "project", "", "comment on a project")
	cmd.Flags().StringVar(&t.EpicID, "epic", "", "comment on an epic")
	cmd.Flags().StringVar(&t.SprintID, "sprint", "", "comment on a sprint")
	cmd.Flags().StringVar(&t.IssueID, "issue", "", "comment on an issue")
}

func newCommentAddCmd() *cobra.Command {
	var (
		configPath string
		target     comment.Target
		actor      string
		body       string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a comment to a work item",
		Long:  "Attaches a comment to exactly one of --project, --epic, --sprint, or --issue.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			c, err := comment.Add(gormDB, target, actorOrDefault(actor, cfg), body)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added comment %s\n", c.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	addTargetFlags(cmd, &target)
	cmd.Flags().StringVar(&actor, "actor", "", "comment author (defaults to config actor)")
	cmd.Flags().StringVar(&body, "body", "", "comment text (required)")
	cmd.MarkFlagRequired("body")
	return cmd
}

func newCommentListCmd() *cobra.Command {
	var (
		configPath string
		target     comment.Target
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List comments on a work item",
		Long:  "Lists comments for exactly one of --project, --epic, --sprint, or --issue, oldest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			comments, err := comment.ListFor(gormDB, target)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, comments)
			}
			if len(comments) == 0 {
				fmt.Fprintln(out, "No comments found.")
				return nil
			}
			for _, c := range comments {
				fmt.Fprintf(out, "[%s] %s at %s\n%s\n\n",
					c.ID, c.Author, c.CreatedAt.Format("2006-01-02 15:04"), c.Body)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	addTargetFlags(cmd, &target)
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newCommentRmCmd() *cobra.Command {
	var (
		configPath string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "rm <comment-id>",
		Short: "Remove a comment",
		Long:  "Soft-deletes a comment. Only its author or an admin may remove it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := comment.Delete(gormDB, args[0], actorOrDefault(actor, cfg)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed comment %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&actor, "actor", "", "user id performing the action (defaults to config actor)")
	return cmd
}
