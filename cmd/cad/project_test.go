package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestProjectCmd_Help(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"project", "--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("project --help failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Project management") {
		t.Errorf("expected help to mention 'Project management', got: %s", out)
	}
	for _, sub := range []string{"create", "list", "show", "update", "delete", "member"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help to list %q subcommand, got: %s", sub, out)
		}
	}
}

func TestNewProjectCreateCmd(t *testing.T) {
	cmd := newProjectCreateCmd()
	if cmd.Use != "create" {
		t.Errorf("Use = %q, want %q", cmd.Use, "create")
	}
	for _, name := range []string{"key", "name", "description", "lead", "public", "config"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected --%s flag", name)
		}
	}
	cfgFlag := cmd.Flags().Lookup("config")
	if cfgFlag.DefValue != "cadence.yaml" {
		t.Errorf("--config default = %q, want %q", cfgFlag.DefValue, "cadence.yaml")
	}
}

func TestProjectCreateCmd_MissingRequiredFlags(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	// Missing --key and --name
	cmd.SetArgs([]string{"project", "create"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing required flags")
	}
}

func TestProjectCreateCmd_MissingConfig(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"project", "create",
		"--key", "CAD",
		"--name", "Cadence",
		"--config", "/nonexistent/cadence.yaml",
	})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "load config")
	}
}

func TestProjectLifecycle(t *testing.T) {
	env := newTestEnv(t)

	out := runCLI(t, "project", "create", "--config", env.cfgPath,
		"--key", "CAD", "--name", "Cadence Core", "--lead", env.adminID)
	if !strings.Contains(out, "Created project prj-") {
		t.Fatalf("expected creation notice, got: %s", out)
	}
	projectID := createdID(t, out, "prj")

	out = runCLI(t, "project", "list", "--config", env.cfgPath)
	if !strings.Contains(out, projectID) || !strings.Contains(out, "CAD") {
		t.Errorf("expected project in list, got: %s", out)
	}

	out = runCLI(t, "project", "show", projectID, "--config", env.cfgPath)
	if !strings.Contains(out, "Cadence Core") {
		t.Errorf("expected show to include name, got: %s", out)
	}
	if !strings.Contains(out, env.adminID) {
		t.Errorf("expected show to include lead, got: %s", out)
	}

	out = runCLI(t, "project", "update", projectID, "--config", env.cfgPath,
		"--description", "Sprint engine")
	if !strings.Contains(out, "Updated project "+projectID) {
		t.Errorf("expected update notice, got: %s", out)
	}

	out = runCLI(t, "project", "show", projectID, "--config", env.cfgPath)
	if !strings.Contains(out, "Sprint engine") {
		t.Errorf("expected updated description, got: %s", out)
	}
}

func TestProjectShowCmd_JSON(t *testing.T) {
	env := newTestEnv(t)

	out := runCLI(t, "project", "create", "--config", env.cfgPath,
		"--key", "API", "--name", "API Project")
	projectID := createdID(t, out, "prj")

	out = runCLI(t, "project", "show", projectID, "--json", "--config", env.cfgPath)
	if !strings.Contains(out, `"Key": "API"`) {
		t.Errorf("expected JSON output with key, got: %s", out)
	}
}

func TestProjectUpdateCmd_NoFlags(t *testing.T) {
	env := newTestEnv(t)

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"project", "update", "prj-12345", "--config", env.cfgPath})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for no update flags")
	}
	if !strings.Contains(err.Error(), "no fields to update") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "no fields to update")
	}
}

func TestProjectMemberCmd(t *testing.T) {
	env := newTestEnv(t)

	out := runCLI(t, "user", "add", "--config", env.cfgPath,
		"--name", "Omar", "--email", "omar@example.com")
	memberID := createdID(t, out, "usr")

	out = runCLI(t, "project", "create", "--config", env.cfgPath,
		"--key", "CAD", "--name", "Cadence")
	projectID := createdID(t, out, "prj")

	out = runCLI(t, "project", "member", projectID, "--config", env.cfgPath,
		"--user", memberID, "--role", "developer")
	if !strings.Contains(out, "Set "+memberID+" to developer") {
		t.Errorf("expected member grant notice, got: %s", out)
	}

	out = runCLI(t, "project", "show", projectID, "--config", env.cfgPath)
	if !strings.Contains(out, memberID) || !strings.Contains(out, "developer") {
		t.Errorf("expected member in show output, got: %s", out)
	}

	// Empty role revokes.
	out = runCLI(t, "project", "member", projectID, "--config", env.cfgPath,
		"--user", memberID, "--role", "")
	if !strings.Contains(out, "Removed "+memberID) {
		t.Errorf("expected member removal notice, got: %s", out)
	}
}

func TestProjectDeleteCmd_Cascades(t *testing.T) {
	env := newTestEnv(t)

	out := runCLI(t, "project", "create", "--config", env.cfgPath,
		"--key", "CAD", "--name", "Cadence")
	projectID := createdID(t, out, "prj")

	out = runCLI(t, "issue", "create", "--config", env.cfgPath,
		"--project", projectID, "--title", "Doomed issue", "--actor", env.adminID)
	issueID := createdID(t, out, "iss")

	out = runCLI(t, "project", "delete", projectID, "--config", env.cfgPath,
		"--actor", env.adminID)
	if !strings.Contains(out, "Deleted project "+projectID) {
		t.Errorf("expected delete notice, got: %s", out)
	}
	if !strings.Contains(out, "issues: 1") {
		t.Errorf("expected cascade count for issues, got: %s", out)
	}

	// Both land in the recycle bin.
	out = runCLI(t, "bin", "list", "--config", env.cfgPath, "--actor", env.adminID)
	if !strings.Contains(out, projectID) || !strings.Contains(out, issueID) {
		t.Errorf("expected project and issue in bin, got: %s", out)
	}
}
