package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"
)

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// termWidth returns the current terminal width, or a sane default when
// stdout is not a terminal (pipes, tests).
func termWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 100
}

// titleWidth derives the title column budget from the terminal width,
// clamped so narrow terminals stay readable and wide ones don't sprawl.
func titleWidth() int {
	w := termWidth() - 48
	if w < 20 {
		w = 20
	}
	if w > 64 {
		w = 64
	}
	return w
}

// dash substitutes "-" for empty table cells.
func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatDate renders a nullable date for tables.
func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

// formatSeconds renders a duration in seconds as "1h 30m".
func formatSeconds(sec int64) string {
	if sec < 0 {
		sec = 0
	}
	h := sec / 3600
	m := (sec % 3600) / 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

// printJSON writes v as indented JSON, the output of every --json flag.
func printJSON(out io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

// readSecret prompts for a secret with echo disabled. Returns "" without
// prompting when stdin is not a terminal (pipes, tests).
func readSecret(cmd interface {
	InOrStdin() io.Reader
	OutOrStdout() io.Writer
}, prompt string) (string, error) {
	stdin, ok := cmd.InOrStdin().(*os.File)
	if !ok || !term.IsTerminal(int(stdin.Fd())) {
		return "", nil
	}
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	secret, err := term.ReadPassword(int(stdin.Fd()))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return string(secret), nil
}
