package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestTimeCmd_Help(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"time", "--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("time --help failed: %v", err)
	}

	out := buf.String()
	for _, sub := range []string{"in", "out", "add", "list"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help to list %q subcommand, got: %s", sub, out)
		}
	}
}

func TestTimeAddCmd_RejectsNonPositiveHours(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"time", "add", "iss-11111", "--hours", "-2"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for negative hours")
	}
	if !strings.Contains(err.Error(), "--hours must be positive") {
		t.Errorf("error = %q, want positivity complaint", err.Error())
	}
}

func TestTimeClockInOut(t *testing.T) {
	env := newTestEnv(t)

	out := runCLI(t, "project", "create", "--config", env.cfgPath,
		"--key", "CAD", "--name", "Cadence")
	projectID := createdID(t, out, "prj")

	out = runCLI(t, "issue", "create", "--config", env.cfgPath,
		"--project", projectID, "--title", "Timed work", "--actor", env.adminID)
	issueID := createdID(t, out, "iss")

	out = runCLI(t, "time", "in", issueID, "--config", env.cfgPath,
		"--actor", env.adminID)
	if !strings.Contains(out, "Clocked in on "+issueID) {
		t.Fatalf("expected clock-in notice, got: %s", out)
	}
	entryID := createdID(t, out, "tme")

	// A second clock-in on the same issue is rejected while one is open.
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"time", "in", issueID, "--config", env.cfgPath,
		"--actor", env.adminID})
	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for double clock-in")
	}
	if !strings.Contains(err.Error(), "already clocked in") {
		t.Errorf("error = %q, want already-clocked-in complaint", err.Error())
	}

	out = runCLI(t, "time", "list", issueID, "--config", env.cfgPath)
	if !strings.Contains(out, "(open)") {
		t.Errorf("expected open entry in list, got: %s", out)
	}

	out = runCLI(t, "time", "out", entryID, "--config", env.cfgPath,
		"--actor", env.adminID)
	if !strings.Contains(out, "Clocked out of "+issueID) {
		t.Errorf("expected clock-out notice, got: %s", out)
	}

	out = runCLI(t, "time", "list", issueID, "--config", env.cfgPath)
	if strings.Contains(out, "(open)") {
		t.Errorf("expected entry closed, got: %s", out)
	}
}

func TestTimeAddAndList(t *testing.T) {
	env := newTestEnv(t)

	out := runCLI(t, "project", "create", "--config", env.cfgPath,
		"--key", "CAD", "--name", "Cadence")
	projectID := createdID(t, out, "prj")

	out = runCLI(t, "issue", "create", "--config", env.cfgPath,
		"--project", projectID, "--title", "Manual log", "--actor", env.adminID)
	issueID := createdID(t, out, "iss")

	out = runCLI(t, "time", "list", issueID, "--config", env.cfgPath)
	if !strings.Contains(out, "No time entries found.") {
		t.Fatalf("expected empty list, got: %s", out)
	}

	out = runCLI(t, "time", "add", issueID, "--config", env.cfgPath,
		"--hours", "1.5", "--actor", env.adminID)
	if !strings.Contains(out, "Recorded 1h 30m on "+issueID) {
		t.Fatalf("expected record notice, got: %s", out)
	}

	out = runCLI(t, "time", "add", issueID, "--config", env.cfgPath,
		"--hours", "0.5", "--actor", env.adminID)
	if !strings.Contains(out, "Recorded 30m on "+issueID) {
		t.Errorf("expected record notice, got: %s", out)
	}

	out = runCLI(t, "time", "list", issueID, "--config", env.cfgPath)
	if !strings.Contains(out, "Total: 2h 0m") {
		t.Errorf("expected summed total, got: %s", out)
	}

	// The issue's spent figure tracks the entries.
	out = runCLI(t, "issue", "show", issueID, "--config", env.cfgPath)
	if !strings.Contains(out, "Spent:       2.0h") {
		t.Errorf("expected time spent on issue, got: %s", out)
	}
}
