package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cadencehq/cadence/internal/timelog"
)

func newTimeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "time",
		Short: "Time tracking commands",
	}

	cmd.AddCommand(newTimeInCmd())
	cmd.AddCommand(newTimeOutCmd())
	cmd.AddCommand(newTimeAddCmd())
	cmd.AddCommand(newTimeListCmd())
	return cmd
}

func newTimeInCmd() *cobra.Command {
	var (
		configPath string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "in <issue-id>",
		Short: "Clock in on an issue",
		Long:  "Opens a time entry on the issue. A user can hold one open entry per issue at a time.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			e, err := timelog.ClockIn(gormDB, args[0], actorOrDefault(actor, cfg))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Clocked in on %s (entry %s at %s)\n",
				e.IssueID, e.ID, e.ClockIn.Format("15:04:05"))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&actor, "actor", "", "user id clocking in (defaults to config actor)")
	return cmd
}

func newTimeOutCmd() *cobra.Command {
	var (
		configPath string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "out <entry-id>",
		Short: "Clock out of an open time entry",
		Long:  "Closes the entry and adds its duration to the issue's time spent. Only the entry's owner or an admin may close it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			e, err := timelog.ClockOut(gormDB, args[0], actorOrDefault(actor, cfg))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Clocked out of %s (%s)\n",
				e.IssueID, formatSeconds(e.Seconds))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&actor, "actor", "", "user id clocking out (defaults to config actor)")
	return cmd
}

func newTimeAddCmd() *cobra.Command {
	var (
		configPath string
		actor      string
		hours      float64
	)

	cmd := &cobra.Command{
		Use:   "add <issue-id>",
		Short: "Record time spent on an issue",
		Long:  "Adds a closed time entry ending now, e.g. --hours 1.5 for ninety minutes.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if hours <= 0 {
				return fmt.Errorf("--hours must be positive, got %v", hours)
			}
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			seconds := int64(hours * 3600)
			e, err := timelog.AddManual(gormDB, args[0], actorOrDefault(actor, cfg), seconds)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s on %s (entry %s)\n",
				formatSeconds(e.Seconds), e.IssueID, e.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	cmd.Flags().StringVar(&actor, "actor", "", "user id logging time (defaults to config actor)")
	cmd.Flags().Float64Var(&hours, "hours", 0, "hours spent (required)")
	cmd.MarkFlagRequired("hours")
	return cmd
}

func newTimeListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list <issue-id>",
		Short: "List time entries for an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			entries, err := timelog.List(gormDB, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No time entries found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSER\tDATE\tIN\tOUT\tTIME")
			var total int64
			for _, e := range entries {
				clockOut := "(open)"
				if e.ClockOut != nil {
					clockOut = e.ClockOut.Format("15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.ID, e.UserID, e.ClockIn.Format("2006-01-02"),
					e.ClockIn.Format("15:04"), clockOut, formatSeconds(e.Seconds))
				total += e.Seconds
			}
			w.Flush()
			fmt.Fprintf(out, "\nTotal: %s\n", formatSeconds(total))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	return cmd
}
