package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cadencehq/cadence/internal/workitem"
)

func newEpicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "epic",
		Short: "Epic management commands",
	}

	cmd.AddCommand(newEpicCreateCmd())
	cmd.AddCommand(newEpicListCmd())
	cmd.AddCommand(newEpicShowCmd())
	return cmd
}

func newEpicCreateCmd() *cobra.Command {
	var (
		configPath  string
		projectID   string
		name        string
		description string
		status      string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new epic",
		Long:  "Creates an epic under a project with an auto-generated key ({KEY}-EPIC-{n}).",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			e, err := workitem.CreateEpic(gormDB, workitem.CreateEpicOpts{
				ProjectID:   projectID,
				Name:        name,
				Description: description,
				Status:      status,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created epic %s (%s)\n", e.ID, e.Key)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&projectID, "project", "", "owning project id (required)")
	cmd.Flags().StringVar(&name, "name", "", "epic name (required)")
	cmd.Flags().StringVar(&description, "description", "", "epic description")
	cmd.Flags().StringVar(&status, "status", "", "initial status (default todo)")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newEpicListCmd() *cobra.Command {
	var (
		configPath string
		projectID  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List epics in a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			epics, err := workitem.ListEpics(gormDB, projectID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(epics) == 0 {
				fmt.Fprintln(out, "No epics found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKEY\tNAME\tSTATUS")
			for _, e := range epics {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					e.ID, e.Key, truncate(e.Name, titleWidth()), e.Status)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&projectID, "project", "", "owning project id (required)")
	cmd.MarkFlagRequired("project")
	return cmd
}

func newEpicShowCmd() *cobra.Command {
	var (
		configPath string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show epic details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			e, err := workitem.GetEpic(gormDB, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, e)
			}

			fmt.Fprintf(out, "ID:          %s\n", e.ID)
			fmt.Fprintf(out, "Key:         %s\n", e.Key)
			fmt.Fprintf(out, "Name:        %s\n", e.Name)
			fmt.Fprintf(out, "Project:     %s\n", e.ProjectID)
			fmt.Fprintf(out, "Status:      %s\n", e.Status)
			fmt.Fprintf(out, "Created:     %s\n", e.CreatedAt.Format("2006-01-02 15:04:05"))
			if e.Description != "" {
				fmt.Fprintf(out, "\nDescription:\n%s\n", e.Description)
			}

			issues, err := workitem.ListIssues(gormDB, workitem.IssueFilters{EpicID: e.ID})
			if err != nil {
				return err
			}
			if len(issues) > 0 {
				fmt.Fprintln(out, "\nIssues:")
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "  KEY\tTITLE\tSTATUS")
				for _, iss := range issues {
					fmt.Fprintf(w, "  %s\t%s\t%s\n", iss.Key, truncate(iss.Title, titleWidth()), iss.Status)
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
