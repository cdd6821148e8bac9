package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cadencehq/cadence/internal/link"
)

func newLinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Work-item relation commands",
	}

	cmd.AddCommand(newLinkAddCmd())
	cmd.AddCommand(newLinkListCmd())
	cmd.AddCommand(newLinkRmCmd())
	return cmd
}

func newLinkAddCmd() *cobra.Command {
	var (
		configPath string
		source     string
		sourceType string
		target     string
		targetType string
		reason     string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Link two work items",
		Long:  "Creates a typed relation between two items. Reasons: blocks, is_blocked_by, relates_to, duplicates, is_duplicated_by. Types: project, epic, sprint, issue, feature.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			l, err := link.Create(gormDB, source, sourceType, target, targetType, reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created link %s: %s %s %s\n",
				l.ID, l.SourceID, l.Reason, l.TargetID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&source, "source", "", "source item id (required)")
	cmd.Flags().StringVar(&sourceType, "source-type", "issue", "source item type")
	cmd.Flags().StringVar(&target, "target", "", "target item id (required)")
	cmd.Flags().StringVar(&targetType, "target-type", "issue", "target item type")
	cmd.Flags().StringVar(&reason, "reason", "", "relation reason (default relates_to)")
	cmd.MarkFlagRequired("source")
	cmd.MarkFlagRequired("target")
	return cmd
}

func newLinkListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list <item-id>",
		Short: "List links touching an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			links, err := link.List(gormDB, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(links) == 0 {
				fmt.Fprintln(out, "No links found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSOURCE\tREASON\tTARGET")
			for _, l := range links {
				fmt.Fprintf(w, "%s\t%s (%s)\t%s\t%s (%s)\n",
					l.ID, l.SourceID, l.SourceType, l.Reason, l.TargetID, l.TargetType)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	return cmd
}

func newLinkRmCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "rm <link-id>",
		Short: "Remove a link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := link.Delete(gormDB, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed link %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	return cmd
}
