package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cadencehq/cadence/internal/workitem"
)

func newBacklogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backlog",
		Short: "Backlog commands",
	}

	cmd.AddCommand(newBacklogShowCmd())
	return cmd
}

func newBacklogShowCmd() *cobra.Command {
	var (
		configPath string
		projectID  string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a project's backlog",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			issues, err := workitem.BacklogIssues(gormDB, projectID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, issues)
			}
			if len(issues) == 0 {
				fmt.Fprintln(out, "Backlog is empty.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tTITLE\tTYPE\tPRI\tASSIGNEE")
			for _, iss := range issues {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					iss.Key, truncate(iss.Title, titleWidth()), iss.Type,
					iss.Priority, dash(iss.Assignee))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&projectID, "project", "", "project id (required)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.MarkFlagRequired("project")
	return cmd
}
