package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cadencehq/cadence/internal/cascade"
	"github.com/cadencehq/cadence/internal/sprint"
	"github.com/cadencehq/cadence/internal/timelog"
	"github.com/cadencehq/cadence/internal/workitem"
)

func newIssueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue management commands",
	}

	cmd.AddCommand(newIssueCreateCmd())
	cmd.AddCommand(newIssueListCmd())
	cmd.AddCommand(newIssueShowCmd())
	cmd.AddCommand(newIssueUpdateCmd())
	cmd.AddCommand(newIssueMoveCmd())
	cmd.AddCommand(newIssueSubtaskCmd())
	cmd.AddCommand(newIssueDeleteCmd())
	return cmd
}

func newIssueCreateCmd() *cobra.Command {
	var (
		configPath  string
		projectID   string
		title       string
		description string
		issueType   string
		priority    string
		status      string
		epicID      string
		sprintID    string
		featureID   string
		assignee    string
		actor       string
		points      int
		estimate    float64
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new issue",
		Long:  "Creates an issue in the project backlog with an auto-generated key ({KEY}-{n}).",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			opts := workitem.CreateIssueOpts{
				ProjectID:      projectID,
				Title:          title,
				Description:    description,
				Type:           issueType,
				Priority:       priority,
				Status:         status,
				EpicID:         epicID,
				SprintID:       sprintID,
				FeatureID:      featureID,
				Assignee:       assignee,
				CreatedBy:      actorOrDefault(actor, cfg),
				EstimatedHours: estimate,
			}
			if cmd.Flags().Changed("points") {
				opts.StoryPoints = &points
			}
			iss, err := workitem.CreateIssue(gormDB, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created issue %s (%s)\n", iss.ID, iss.Key)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&projectID, "project", "", "owning project id (required)")
	cmd.Flags().StringVar(&title, "title", "", "issue title (required)")
	cmd.Flags().StringVar(&description, "description", "", "detailed description")
	cmd.Flags().StringVar(&issueType, "type", "", "issue type (story, task, bug; default task)")
	cmd.Flags().StringVar(&priority, "priority", "", "priority (highest, high, medium, low, lowest; default medium)")
	cmd.Flags().StringVar(&status, "status", "", "initial status (default todo)")
	cmd.Flags().StringVar(&epicID, "epic", "", "parent epic id")
	cmd.Flags().StringVar(&sprintID, "sprint", "", "sprint to place the issue on")
	cmd.Flags().StringVar(&featureID, "feature", "", "parent feature id")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee user id")
	cmd.Flags().StringVar(&actor, "actor", "", "creating user id (defaults to config actor)")
	cmd.Flags().IntVar(&points, "points", 0, "story points (Fibonacci scale)")
	cmd.Flags().Float64Var(&estimate, "estimate", 0, "estimated hours")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("title")
	return cmd
}

func newIssueListCmd() *cobra.Command {
	var (
		configPath string
		projectID  string
		epicID     string
		sprintID   string
		assignee   string
		status     string
		location   string
		issueType  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues",
		Long:  "Lists issues with optional filters. Output is formatted as a table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			issues, err := workitem.ListIssues(gormDB, workitem.IssueFilters{
				ProjectID: projectID,
				EpicID:    epicID,
				SprintID:  sprintID,
				Assignee:  assignee,
				Status:    status,
				Location:  location,
				Type:      issueType,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(issues) == 0 {
				fmt.Fprintln(out, "No issues found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tTITLE\tTYPE\tSTATUS\tPRI\tLOC\tASSIGNEE")
			for _, iss := range issues {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					iss.Key, truncate(iss.Title, titleWidth()), iss.Type, iss.Status,
					iss.Priority, iss.Location, dash(iss.Assignee))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&projectID, "project", "", "filter by project")
	cmd.Flags().StringVar(&epicID, "epic", "", "filter by epic")
	cmd.Flags().StringVar(&sprintID, "sprint", "", "filter by sprint")
	cmd.Flags().StringVar(&assignee, "assignee", "", "filter by assignee")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&location, "location", "", "filter by location (backlog, sprint, board, archived)")
	cmd.Flags().StringVar(&issueType, "type", "", "filter by type")
	return cmd
}

func newIssueShowCmd() *cobra.Command {
	var (
		configPath string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show issue details",
		Long:  "Displays full details of an issue including description, subtasks, and time tracking.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIssueShow(cmd, configPath, args[0], asJSON)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func runIssueShow(cmd *cobra.Command, configPath, id string, asJSON bool) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	iss, err := workitem.GetIssue(gormDB, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, iss)
	}

	fmt.Fprintf(out, "ID:          %s\n", iss.ID)
	fmt.Fprintf(out, "Key:         %s\n", iss.Key)
	fmt.Fprintf(out, "Title:       %s\n", iss.Title)
	fmt.Fprintf(out, "Project:     %s\n", iss.ProjectID)
	fmt.Fprintf(out, "Type:        %s\n", iss.Type)
	fmt.Fprintf(out, "Status:      %s\n", iss.Status)
	fmt.Fprintf(out, "Priority:    %s\n", iss.Priority)
	fmt.Fprintf(out, "Location:    %s\n", iss.Location)
	if iss.EpicID != "" {
		fmt.Fprintf(out, "Epic:        %s\n", iss.EpicID)
	}
	if iss.SprintID != "" {
		fmt.Fprintf(out, "Sprint:      %s\n", iss.SprintID)
	}
	if iss.ParentID != nil && *iss.ParentID != "" {
		fmt.Fprintf(out, "Parent:      %s\n", *iss.ParentID)
	}
	if iss.Assignee != "" {
		fmt.Fprintf(out, "Assignee:    %s\n", iss.Assignee)
	}
	if iss.StoryPoints != nil {
		fmt.Fprintf(out, "Points:      %d\n", *iss.StoryPoints)
	}
	if iss.EstimatedHours > 0 {
		fmt.Fprintf(out, "Estimate:    %.1fh\n", iss.EstimatedHours)
	}
	if iss.TimeSpentHours > 0 {
		fmt.Fprintf(out, "Spent:       %.1fh\n", iss.TimeSpentHours)
	}
	fmt.Fprintf(out, "Created:     %s\n", iss.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Updated:     %s\n", iss.UpdatedAt.Format("2006-01-02 15:04:05"))

	if iss.Description != "" {
		fmt.Fprintf(out, "\nDescription:\n%s\n", iss.Description)
	}

	subtasks, err := workitem.Subtasks(gormDB, iss.ID)
	if err != nil {
		return err
	}
	if len(subtasks) > 0 {
		fmt.Fprintln(out, "\nSubtasks:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  KEY\tTITLE\tSTATUS")
		for _, st := range subtasks {
			fmt.Fprintf(w, "  %s\t%s\t%s\n", st.Key, truncate(st.Title, titleWidth()), st.Status)
		}
		w.Flush()
	}

	entries, err := timelog.List(gormDB, iss.ID)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		fmt.Fprintln(out, "\nTime entries:")
		for _, e := range entries {
			clockOut := "(open)"
			if e.ClockOut != nil {
				clockOut = e.ClockOut.Format("15:04")
			}
			fmt.Fprintf(out, "  [%s] %s %s–%s %s\n",
				e.ClockIn.Format("2006-01-02"), e.UserID,
				e.ClockIn.Format("15:04"), clockOut, formatSeconds(e.Seconds))
		}
	}

	return nil
}

func newIssueUpdateCmd() *cobra.Command {
	var (
		configPath  string
		title       string
		description string
		issueType   string
		priority    string
		status      string
		location    string
		assignee    string
		epicID      string
		sprintID    string
		parentID    string
		points      int
		estimate    float64
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an issue",
		Long:  "Updates issue fields. Status is normalized, story points validated against the scale, and the subtask/parent pairing enforced.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates := make(map[string]interface{})
			if cmd.Flags().Changed("title") {
				updates["title"] = title
			}
			if cmd.Flags().Changed("description") {
				updates["description"] = description
			}
			if cmd.Flags().Changed("type") {
				updates["type"] = issueType
			}
			if cmd.Flags().Changed("priority") {
				updates["priority"] = priority
			}
			if cmd.Flags().Changed("status") {
				updates["status"] = status
			}
			if cmd.Flags().Changed("location") {
				updates["location"] = location
			}
			if cmd.Flags().Changed("assignee") {
				updates["assignee"] = assignee
			}
			if cmd.Flags().Changed("epic") {
				updates["epic_id"] = epicID
			}
			if cmd.Flags().Changed("sprint") {
				updates["sprint_id"] = sprintID
			}
			if cmd.Flags().Changed("parent") {
				updates["parent_id"] = parentID
			}
			if cmd.Flags().Changed("points") {
				updates["story_points"] = points
			}
			if cmd.Flags().Changed("estimate") {
				updates["estimated_hours"] = estimate
			}
			if len(updates) == 0 {
				return fmt.Errorf("no fields to update; see --help for available flags")
			}

			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if _, err := workitem.UpdateIssue(gormDB, args[0], updates); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated issue %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&issueType, "type", "", "new type")
	cmd.Flags().StringVar(&priority, "priority", "", "new priority")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&location, "location", "", "new location")
	cmd.Flags().StringVar(&assignee, "assignee", "", "new assignee")
	cmd.Flags().StringVar(&epicID, "epic", "", "new epic id")
	cmd.Flags().StringVar(&sprintID, "sprint", "", "new sprint id")
	cmd.Flags().StringVar(&parentID, "parent", "", "new parent issue id (subtasks)")
	cmd.Flags().IntVar(&points, "points", 0, "new story points")
	cmd.Flags().Float64Var(&estimate, "estimate", 0, "new estimated hours")
	return cmd
}

func newIssueMoveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "move <id> <target>",
		Short: "Move an issue between backlog and sprints",
		Long:  "Moves an issue to a sprint (target \"sprint:<id>\") or back to its project backlog (target \"backlog\").",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := sprint.Move(gormDB, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved issue %s to %s\n", args[0], args[1])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	return cmd
}

func newIssueSubtaskCmd() *cobra.Command {
	var (
		configPath  string
		title       string
		description string
		assignee    string
		actor       string
	)

	cmd := &cobra.Command{
		Use:   "subtask <parent-id>",
		Short: "Add a subtask to an issue",
		Long:  "Creates a subtask under the parent issue. The child inherits the parent's project, epic, sprint and location.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			st, err := workitem.AddSubtask(gormDB, args[0], workitem.CreateIssueOpts{
				Title:       title,
				Description: description,
				Assignee:    assignee,
				CreatedBy:   actorOrDefault(actor, cfg),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created subtask %s (%s) under %s\n", st.ID, st.Key, args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&title, "title", "", "subtask title (required)")
	cmd.Flags().StringVar(&description, "description", "", "subtask description")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee user id")
	cmd.Flags().StringVar(&actor, "actor", "", "creating user id (defaults to config actor)")
	cmd.MarkFlagRequired("title")
	return cmd
}

func newIssueDeleteCmd() *cobra.Command {
	var (
		configPath string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Move an issue to the recycle bin",
		Long:  "Soft-deletes the issue and its subtasks, comments, time entries and links. Restore with \"cad bin restore\".",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			res, err := cascade.SoftDeleteIssue(gormDB, args[0], actorOrDefault(actor, cfg))
			if err != nil {
				return err
			}
			printCascadeResult(cmd, "Deleted", res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&actor, "actor", "", "user id performing the action (defaults to config actor)")
	return cmd
}
