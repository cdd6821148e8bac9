package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/cadencehq/cadence/internal/cascade"
	"github.com/cadencehq/cadence/internal/config"
	"github.com/cadencehq/cadence/internal/db"
	"github.com/cadencehq/cadence/internal/workitem"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project management commands",
	}

	cmd.AddCommand(newProjectCreateCmd())
	cmd.AddCommand(newProjectListCmd())
	cmd.AddCommand(newProjectShowCmd())
	cmd.AddCommand(newProjectUpdateCmd())
	cmd.AddCommand(newProjectDeleteCmd())
	cmd.AddCommand(newProjectMemberCmd())
	return cmd
}

func newProjectCreateCmd() *cobra.Command {
	var (
		configPath  string
		key         string
		name        string
		description string
		lead        string
		public      bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new project",
		Long:  "Creates a project with a unique key and an empty backlog. The board is created on first access.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			p, err := workitem.CreateProject(gormDB, workitem.CreateProjectOpts{
				Key:         key,
				Name:        name,
				Description: description,
				Lead:        lead,
				Public:      public,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %s (%s)\n", p.ID, p.Key)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&key, "key", "", "short uppercase project tag, e.g. APOLLO (required)")
	cmd.Flags().StringVar(&name, "name", "", "project name (required)")
	cmd.Flags().StringVar(&description, "description", "", "project description")
	cmd.Flags().StringVar(&lead, "lead", "", "user id of the project lead")
	cmd.Flags().BoolVar(&public, "public", false, "make the project visible to everyone")
	cmd.MarkFlagRequired("key")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newProjectListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			projects, err := workitem.ListProjects(gormDB)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(projects) == 0 {
				fmt.Fprintln(out, "No projects found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKEY\tNAME\tLEAD\tPUBLIC")
			for _, p := range projects {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n",
					p.ID, p.Key, truncate(p.Name, titleWidth()), dash(p.Lead), p.Public)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	return cmd
}

func newProjectShowCmd() *cobra.Command {
	var (
		configPath string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show project details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			p, err := workitem.GetProject(gormDB, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, p)
			}

			fmt.Fprintf(out, "ID:          %s\n", p.ID)
			fmt.Fprintf(out, "Key:         %s\n", p.Key)
			fmt.Fprintf(out, "Name:        %s\n", p.Name)
			fmt.Fprintf(out, "Lead:        %s\n", dash(p.Lead))
			fmt.Fprintf(out, "Public:      %v\n", p.Public)
			fmt.Fprintf(out, "Created:     %s\n", p.CreatedAt.Format("2006-01-02 15:04:05"))
			if p.Description != "" {
				fmt.Fprintf(out, "\nDescription:\n%s\n", p.Description)
			}
			if len(p.Members) > 0 {
				users := make([]string, 0, len(p.Members))
				for user := range p.Members {
					users = append(users, user)
				}
				sort.Strings(users)
				fmt.Fprintln(out, "\nMembers:")
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "  USER\tROLE")
				for _, user := range users {
					fmt.Fprintf(w, "  %s\t%s\n", user, p.Members[user])
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

func newProjectUpdateCmd() *cobra.Command {
	var (
		configPath  string
		name        string
		description string
		lead        string
		public      bool
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a project",
		Long:  "Updates project fields. The key is immutable.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates := make(map[string]interface{})
			if cmd.Flags().Changed("name") {
				updates["name"] = name
			}
			if cmd.Flags().Changed("description") {
				updates["description"] = description
			}
			if cmd.Flags().Changed("lead") {
				updates["lead"] = lead
			}
			if cmd.Flags().Changed("public") {
				updates["public"] = public
			}
			if len(updates) == 0 {
				return fmt.Errorf("no fields to update; use --name, --description, --lead, or --public")
			}

			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if _, err := workitem.UpdateProject(gormDB, args[0], updates); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated project %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&lead, "lead", "", "new lead user id")
	cmd.Flags().BoolVar(&public, "public", false, "public visibility")
	return cmd
}

func newProjectDeleteCmd() *cobra.Command {
	var (
		configPath string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Move a project to the recycle bin",
		Long:  "Soft-deletes the project and every child it owns: epics, sprints, issues, comments, time entries, links, boards and backlog. Restore with \"cad bin restore\".",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			res, err := cascade.SoftDeleteProject(gormDB, args[0], actorOrDefault(actor, cfg))
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

func newProjectMemberCmd() *cobra.Command {
	var (
		configPath string
		user       string
		role       string
	)

	cmd := &cobra.Command{
		Use:   "member <project-id>",
		Short: "Set a member's role on a project",
		Long:  "Grants a role (project_admin, scrum_master, developer, viewer) to a user, or removes the membership with --role \"\".",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			p, err := workitem.SetMember(gormDB, args[0], user, role)
			if err != nil {
				return err
			}
			if role == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from project %s\n", user, p.Key)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s to %s on project %s\n", user, role, p.Key)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&user, "user", "", "user id (required)")
	cmd.Flags().StringVar(&role, "role", "", "role tag; empty removes the membership")
	cmd.MarkFlagRequired("user")
	return cmd
}

// connectFromConfig loads config and opens the configured database.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	return cfg, gormDB, nil
}

// actorOrDefault resolves the acting user: an explicit --actor flag wins,
// otherwise the config actor applies.
func actorOrDefault(actor string, cfg *config.Config) string {
	if actor != "" {
		return actor
	}
	return cfg.Actor
}

// printCascadeResult reports a cascade run: affected row counts per child
// table plus any per-step errors.
func printCascadeResult(cmd *cobra.Command, verb string, res *cascade.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s %s\n", verb, res.Kind, res.ID)
	tables := make([]string, 0, len(res.Affected))
	for table := range res.Affected {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		if n := res.Affected[table]; n > 0 {
			fmt.Fprintf(out, "  %s: %d\n", table, n)
		}
	}
	for _, e := range res.Errors {
		fmt.Fprintf(out, "  error: %s\n", e)
	}
}
