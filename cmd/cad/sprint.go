package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cadencehq/cadence/internal/models"
	"github.com/cadencehq/cadence/internal/sprint"
)

func newSprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sprint",
		Short: "Sprint lifecycle commands",
	}

	cmd.AddCommand(newSprintCreateCmd())
	cmd.AddCommand(newSprintListCmd())
	cmd.AddCommand(newSprintShowCmd())
	cmd.AddCommand(newSprintStartCmd())
	cmd.AddCommand(newSprintCompleteCmd())
	cmd.AddCommand(newSprintAssignCmd())
	cmd.AddCommand(newSprintDeleteCmd())
	cmd.AddCommand(newSprintRunningCmd())
	return cmd
}

// parseDate accepts YYYY-MM-DD for sprint date flags.
func parseDate(flag, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", flag, value)
	}
	return &t, nil
}

func newSprintCreateCmd() *cobra.Command {
	var (
		configPath string
		projectID  string
		name       string
		goal       string
		start      string
		end        string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new sprint",
		Long:  "Creates a sprint in the planned state. Without --project the sprint is global and aggregates issues across projects.",
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := parseDate("start", start)
			if err != nil {
				return err
			}
			endDate, err := parseDate("end", end)
			if err != nil {
				return err
			}

			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			s, err := sprint.Create(gormDB, sprint.CreateOpts{
				ProjectID: projectID,
				Name:      name,
				Goal:      goal,
				StartDate: startDate,
				EndDate:   endDate,
			})
			if err != nil {
				return err
			}
			scope := "project " + s.ProjectID
			if s.IsGlobal() {
				scope = "global"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created sprint %s (%s, %s)\n", s.ID, s.Name, scope)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&projectID, "project", "", "owning project id (empty for a global sprint)")
	cmd.Flags().StringVar(&name, "name", "", "sprint name (required)")
	cmd.Flags().StringVar(&goal, "goal", "", "sprint goal")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newSprintListCmd() *cobra.Command {
	var (
		configPath string
		projectID  string
		completed  bool
		global     bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sprints",
		Long:  "Lists a project's active sprints. --completed switches to finished sprints with their done-issue counts; --global lists project-less sprints.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if global {
				sprints, err := sprint.ListGlobal(gormDB)
				if err != nil {
					return err
				}
				return printSprintTable(out, sprints)
			}

			if completed {
				list, err := sprint.ListCompleted(gormDB, projectID)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintln(out, "No sprints found.")
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tCOMPLETED\tDONE")
				for _, cs := range list {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
						cs.Sprint.ID, truncate(cs.Sprint.Name, titleWidth()),
						formatDate(cs.Sprint.CompletedAt), len(cs.DoneIssues))
				}
				w.Flush()
				return nil
			}

			sprints, err := sprint.ListActive(gormDB, projectID)
			if err != nil {
				return err
			}
			return printSprintTable(out, sprints)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&projectID, "project", "", "owning project id")
	cmd.Flags().BoolVar(&completed, "completed", false, "list completed sprints instead")
	cmd.Flags().BoolVar(&global, "global", false, "list global sprints instead")
	return cmd
}

func printSprintTable(out io.Writer, sprints []models.Sprint) error {
	if len(sprints) == 0 {
		fmt.Fprintln(out, "No sprints found.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPROJECT\tSTATUS\tSTART\tEND")
	for _, s := range sprints {
		project := s.ProjectID
		if s.IsGlobal() {
			project = "(global)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, truncate(s.Name, titleWidth()), project, s.Status,
			formatDate(s.StartDate), formatDate(s.EndDate))
	}
	return w.Flush()
}

func newSprintShowCmd() *cobra.Command {
	var (
		configPath string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show sprint details and its issues",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			s, err := sprint.Get(gormDB, args[0])
			if err != nil {
				return err
			}
			issues, err := sprint.Issues(gormDB, s.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, map[string]interface{}{"sprint": s, "issues": issues})
			}

			fmt.Fprintf(out, "ID:          %s\n", s.ID)
			fmt.Fprintf(out, "Name:        %s\n", s.Name)
			if s.IsGlobal() {
				fmt.Fprintf(out, "Scope:       global\n")
			} else {
				fmt.Fprintf(out, "Project:     %s\n", s.ProjectID)
			}
			fmt.Fprintf(out, "Status:      %s\n", s.Status)
			fmt.Fprintf(out, "Active:      %v\n", s.Active)
			fmt.Fprintf(out, "Start:       %s\n", formatDate(s.StartDate))
			fmt.Fprintf(out, "End:         %s\n", formatDate(s.EndDate))
			if s.CompletedAt != nil {
				fmt.Fprintf(out, "Completed:   %s\n", s.CompletedAt.Format("2006-01-02 15:04:05"))
			}
			if s.Goal != "" {
				fmt.Fprintf(out, "\nGoal:\n%s\n", s.Goal)
			}

			if len(issues) > 0 {
				fmt.Fprintf(out, "\nIssues (%d):\n", len(issues))
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "  KEY\tTITLE\tSTATUS\tASSIGNEE")
				for _, iss := range issues {
					fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n",
						iss.Key, truncate(iss.Title, titleWidth()), iss.Status, dash(iss.Assignee))
				}
				w.Flush()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newSprintStartCmd() *cobra.Command {
	var (
		configPath string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "start <id>",
		Short: "Start a sprint",
		Long:  "Moves a planned sprint to running and places its issues on the board. Requires the manage_sprint capability.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			res, err := sprint.Start(gormDB, args[0], actorOrDefault(actor, cfg))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Started sprint %s (%s)\n", res.Sprint.ID, res.Sprint.Name)
			fmt.Fprintf(out, "Moved %d issues to the board\n", res.Moved)
			for _, e := range res.Errors {
				fmt.Fprintf(out, "  error: %s\n", e)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&actor, "actor", "", "user id performing the action (defaults to config actor)")
	return cmd
}

func newSprintCompleteCmd() *cobra.Command {
	var (
		configPath string
		actor      string
		target     string
	)

	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Complete a sprint",
		Long: `Runs the sprint completion protocol.

Without --to: if every issue is finished the sprint completes; otherwise
the unfinished issues are listed and nothing changes — rerun with --to to
choose where they go. With --to ("backlog" or a target sprint id) the
unfinished issues are relocated and the sprint completes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			res, err := sprint.Complete(gormDB, args[0], target, actorOrDefault(actor, cfg))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !res.Completed {
				fmt.Fprintf(out, "Sprint %s has %d unfinished issues:\n", res.Sprint.ID, len(res.Pending))
				for _, id := range res.Pending {
					fmt.Fprintf(out, "  %s\n", id)
				}
				fmt.Fprintln(out, "\nRerun with --to backlog or --to <sprint-id> to relocate them.")
				return nil
			}

			fmt.Fprintf(out, "Completed sprint %s (%s)\n", res.Sprint.ID, res.Sprint.Name)
			fmt.Fprintf(out, "Done: %d, moved: %d\n", len(res.Done), res.Moved)
			for _, e := range res.Errors {
				fmt.Fprintf(out, "  error: %s\n", e)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&actor, "actor", "", "user id performing the action (defaults to config actor)")
	cmd.Flags().StringVar(&target, "to", "", "destination for unfinished issues (backlog or a sprint id)")
	return cmd
}

func newSprintAssignCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "assign <sprint-id> <issue-id>...",
		Short: "Assign issues to a sprint",
		Long:  "Places issues on a sprint: each one leaves its old sprint and the backlog. Per-issue failures are reported without aborting.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			res, err := sprint.Assign(gormDB, args[0], args[1:])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Assigned %d issues to sprint %s\n", res.Moved, args[0])
			for _, e := range res.Errors {
				fmt.Fprintf(out, "  error: %s\n", e)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	return cmd
}

func newSprintDeleteCmd() *cobra.Command {
	var (
		configPath string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a sprint, returning its issues to the backlog",
		Long:  "Soft-deletes the sprint after moving its live issues back to their project backlogs. Requires the manage_sprint capability.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			res, err := sprint.Delete(gormDB, args[0], actorOrDefault(actor, cfg))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Deleted sprint %s\n", args[0])
			fmt.Fprintf(out, "Moved %d issues to the backlog\n", res.Moved)
			for _, e := range res.Errors {
				fmt.Fprintf(out, "  error: %s\n", e)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&actor, "actor", "", "user id performing the action (defaults to config actor)")
	return cmd
}

func newSprintRunningCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "running",
		Short: "List running sprints across all projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			sprints, err := sprint.ListRunning(gormDB)
			if err != nil {
				return err
			}
			return printSprintTable(cmd.OutOrStdout(), sprints)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	return cmd
}
