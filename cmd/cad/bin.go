package main

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cadencehq/cadence/internal/cascade"
)

func newBinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bin",
		Short: "Recycle bin commands",
	}

	cmd.AddCommand(newBinListCmd())
	cmd.AddCommand(newBinRestoreCmd())
	cmd.AddCommand(newBinPurgeCmd())
	return cmd
}

func newBinListCmd() *cobra.Command {
	var (
		configPath string
		actor      string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List soft-deleted items",
		Long:  "Lists recoverable items, newest deletion first. Admins see everything; members see items from projects they can view.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			entries, err := cascade.ListBin(gormDB, actorOrDefault(actor, cfg))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "Recycle bin is empty.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tID\tNAME\tPROJECT\tDELETED")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.Kind, e.ID, truncate(e.Name, titleWidth()),
					dash(e.ProjectID), formatDate(e.DeletedAt))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&actor, "actor", "", "user id listing the bin (defaults to config actor)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newBinRestoreCmd() *cobra.Command {
	var (
		configPath string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "restore <kind> <id>",
		Short: "Restore a soft-deleted item",
		Long:  "Restores an item and everything its deletion cascaded over. Kinds: project, epic, sprint, issue, feature.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cascade.ValidKind(args[0]) {
				return fmt.Errorf("unknown kind %q; expected project, epic, sprint, issue, or feature", args[0])
			}
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			res, err := cascade.Restore(gormDB, args[0], args[1], actorOrDefault(actor, cfg))
			if err != nil {
				return err
			}
			printCascadeResult(cmd, "Restored", res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&actor, "actor", "", "user id performing the action (defaults to config actor)")
	return cmd
}

func newBinPurgeCmd() *cobra.Command {
	var (
		configPath string
		actor      string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "purge <kind> <id>",
		Short: "Permanently delete a soft-deleted item",
		Long:  "Erases an item and its cascaded children from the database. Admin only, and only for items already in the recycle bin.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cascade.ValidKind(args[0]) {
				return fmt.Errorf("unknown kind %q; expected project, epic, sprint, issue, or feature", args[0])
			}

			if !yes {
				if !confirmPurge(cmd, args[0], args[1]) {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			res, err := cascade.PermanentDelete(gormDB, args[0], args[1], actorOrDefault(actor, cfg))
			if err != nil {
				return err
			}
			printCascadeResult(cmd, "Purged", res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&actor, "actor", "", "user id performing the action (defaults to config actor)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func confirmPurge(cmd *cobra.Command, kind, id string) bool {
	out := cmd.OutOrStdout()
	in := cmd.InOrStdin()

	fmt.Fprintf(out, "WARNING: This will permanently delete %s %s and everything deleted with it.\n", kind, id)
	fmt.Fprintln(out, "This action cannot be undone.")
	fmt.Fprintln(out)
	fmt.Fprint(out, "Type \"yes\" to confirm: ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()) == "yes"
	}
	return false
}
