package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cad",
		Short: "Cadence — work-item and sprint lifecycle engine",
		Long:  "Cadence tracks projects, epics, issues and sprints, and runs the sprint lifecycle from planning to completion.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newUserCmd())
	cmd.AddCommand(newProjectCmd())
	cmd.AddCommand(newEpicCmd())
	cmd.AddCommand(newIssueCmd())
	cmd.AddCommand(newSprintCmd())
	cmd.AddCommand(newBoardCmd())
	cmd.AddCommand(newBacklogCmd())
	cmd.AddCommand(newLinkCmd())
	cmd.AddCommand(newTimeCmd())
	cmd.AddCommand(newCommentCmd())
	cmd.AddCommand(newBinCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newNotifyCmd())
	cmd.AddCommand(newImportCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cad %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
