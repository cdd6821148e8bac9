package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cadencehq/cadence/internal/db"
	"github.com/cadencehq/cadence/internal/ident"
	"github.com/cadencehq/cadence/internal/models"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
	}

	cmd.AddCommand(newUserAddCmd())
	cmd.AddCommand(newUserListCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var (
		configPath string
		name       string
		email      string
		role       string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user",
		Long:  "Creates a user account. Role \"admin\" bypasses every permission check; project-level roles are granted with \"cad project member\".",
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != "admin" && role != "member" {
				return fmt.Errorf("role must be admin or member (got %q)", role)
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			id, err := ident.NewID("usr")
			if err != nil {
				return err
			}
			if err := db.SeedUser(gormDB, id, name, email, role); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (%s)\n", id, email)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&email, "email", "", "email address, unique (required)")
	cmd.Flags().StringVar(&role, "role", "member", "global role (admin or member)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("email")
	return cmd
}

func newUserListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			var users []models.User
			if err := gormDB.Order("created_at ASC").Find(&users).Error; err != nil {
				return fmt.Errorf("list users: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(out, "No users found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	return cmd
}
