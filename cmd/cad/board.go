package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cadencehq/cadence/internal/board"
	"github.com/cadencehq/cadence/internal/models"
	"github.com/cadencehq/cadence/internal/sprint"
	"github.com/cadencehq/cadence/internal/workitem"
)

func newBoardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Kanban board commands",
	}

	cmd.AddCommand(newBoardShowCmd())
	cmd.AddCommand(newBoardColumnCmd())
	cmd.AddCommand(newBoardReorderCmd())
	return cmd
}

func newBoardShowCmd() *cobra.Command {
	var (
		configPath string
		projectID  string
		sprintID   string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a board with issues grouped by column",
		Long:  "Shows a project board (--project) or a sprint board (--sprint). Global sprints use their own board; project sprints share the project's columns.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (projectID == "") == (sprintID == "") {
				return fmt.Errorf("exactly one of --project or --sprint is required")
			}

			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			var (
				cols   []models.BoardColumn
				issues []models.Issue
			)
			if sprintID != "" {
				s, err := sprint.Get(gormDB, sprintID)
				if err != nil {
					return err
				}
				if s.IsGlobal() {
					cols, err = board.SprintColumns(gormDB, s.ID)
				} else {
					cols, err = board.Columns(gormDB, s.ProjectID)
				}
				if err != nil {
					return err
				}
				issues, err = sprint.Issues(gormDB, s.ID)
				if err != nil {
					return err
				}
			} else {
				cols, err = board.Columns(gormDB, projectID)
				if err != nil {
					return err
				}
				issues, err = workitem.ListIssues(gormDB, workitem.IssueFilters{
					ProjectID: projectID, Location: models.LocationBoard,
				})
				if err != nil {
					return err
				}
			}

			groups := board.Group(cols, issues)
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, groups)
			}
			for _, g := range groups {
				fmt.Fprintf(out, "[%d] %s (%s): %d issues\n",
					g.Column.Position, g.Column.Name, g.Column.Status, len(g.Issues))
				for _, iss := range g.Issues {
					fmt.Fprintf(out, "  %s  %s\n", iss.Key, truncate(iss.Title, titleWidth()))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&sprintID, "sprint", "", "sprint id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newBoardColumnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "column",
		Short: "Manage board columns",
	}

	cmd.AddCommand(newBoardColumnAddCmd())
	cmd.AddCommand(newBoardColumnUpdateCmd())
	cmd.AddCommand(newBoardColumnRmCmd())
	return cmd
}

func newBoardColumnAddCmd() *cobra.Command {
	var (
		configPath string
		projectID  string
		name       string
		status     string
		position   int
		color      string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a column to a project board",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			col, err := board.AddColumn(gormDB, projectID, board.ColumnSpec{
				Name:     name,
				Status:   status,
				Position: position,
				Color:    color,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added column %q (%s) at position %d\n",
				col.Name, col.Status, col.Position)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&projectID, "project", "", "project id (required)")
	cmd.Flags().StringVar(&name, "name", "", "column name (required)")
	cmd.Flags().StringVar(&status, "status", "", "status mapped to the column (required)")
	cmd.Flags().IntVar(&position, "position", 0, "column position (required)")
	cmd.Flags().StringVar(&color, "color", "", "column color, e.g. #4ECDC4")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("status")
	cmd.MarkFlagRequired("position")
	return cmd
}

func newBoardColumnUpdateCmd() *cobra.Command {
	var (
		configPath string
		projectID  string
		name       string
		status     string
		position   int
		color      string
	)

	cmd := &cobra.Command{
		Use:   "update <position>",
		Short: "Update a column on a project board",
		Long:  "Updates the column at the given position. Only the flags you pass change.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("position must be an integer, got %q", args[0])
			}

			var patch board.ColumnPatch
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("status") {
				patch.Status = &status
			}
			if cmd.Flags().Changed("position") {
				patch.Position = &position
			}
			if cmd.Flags().Changed("color") {
				patch.Color = &color
			}
			if patch.Name == nil && patch.Status == nil && patch.Position == nil && patch.Color == nil {
				return fmt.Errorf("no fields to update; use --name, --status, --position, or --color")
			}

			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			col, err := board.UpdateColumn(gormDB, projectID, at, patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated column %q (%s) at position %d\n",
				col.Name, col.Status, col.Position)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&projectID, "project", "", "project id (required)")
	cmd.Flags().StringVar(&name, "name", "", "new column name")
	cmd.Flags().StringVar(&status, "status", "", "new status mapping")
	cmd.Flags().IntVar(&position, "position", 0, "new position")
	cmd.Flags().StringVar(&color, "color", "", "new color")
	cmd.MarkFlagRequired("project")
	return cmd
}

func newBoardColumnRmCmd() *cobra.Command {
	var (
		configPath string
		projectID  string
	)

	cmd := &cobra.Command{
		Use:   "rm <position>",
		Short: "Remove a column from a project board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("position must be an integer, got %q", args[0])
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := board.DeleteColumn(gormDB, projectID, at); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed column at position %d\n", at)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&projectID, "project", "", "project id (required)")
	cmd.MarkFlagRequired("project")
	return cmd
}

func newBoardReorderCmd() *cobra.Command {
	var (
		configPath string
		projectID  string
	)

	cmd := &cobra.Command{
		Use:   "reorder <position>...",
		Short: "Reorder a project board's columns",
		Long:  "Takes the current positions in their new order. The order must be a permutation of the existing positions.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			order := make([]int, 0, len(args))
			for _, a := range args {
				n, err := strconv.Atoi(a)
				if err != nil {
					return fmt.Errorf("positions must be integers, got %q", a)
				}
				order = append(order, n)
			}

			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			cols, err := board.Reorder(gormDB, projectID, order)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Reordered %d columns\n", len(cols))
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "  POS\tNAME\tSTATUS")
			for _, col := range cols {
				fmt.Fprintf(w, "  %d\t%s\t%s\n", col.Position, col.Name, col.Status)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&projectID, "project", "", "project id (required)")
	cmd.MarkFlagRequired("project")
	return cmd
}
