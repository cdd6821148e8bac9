package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/cadencehq/cadence/internal/models"
)

// Color constants for event severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// severityColor maps a severity string to a sidebar color.
func severityColor(severity string) string {
	switch severity {
	case "success":
		return ColorSuccess
	case "info":
		return ColorInfo
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// sprintStatusVerb returns a human-friendly verb for a sprint status transition.
func sprintStatusVerb(newStatus string) string {
	switch newStatus {
	case models.SprintPlanned:
		return "planned"
	case models.SprintRunning:
		return "started"
	case models.SprintCompleted:
		return "completed"
	default:
		return newStatus
	}
}

// sprintStatusSeverity returns the appropriate severity for a sprint status.
func sprintStatusSeverity(newStatus string) string {
	switch newStatus {
	case models.SprintCompleted:
		return "success"
	default:
		return "info"
	}
}

// binKindLabel returns a display label for a recycle-bin item kind.
func binKindLabel(kind string) string {
	switch strings.ToLower(kind) {
	case "project":
		return "Project"
	case "sprint":
		return "Sprint"
	case "issue":
		return "Issue"
	default:
		return "Item"
	}
}

// FormatSprintEvent formats a sprint status change event.
func FormatSprintEvent(event DetectedEvent) FormattedEvent {
	verb := sprintStatusVerb(event.NewStatus)
	severity := sprintStatusSeverity(event.NewStatus)

	title := fmt.Sprintf("Sprint %s %s", event.Name, verb)

	var bodyParts []string
	if event.OldStatus != "" {
		bodyParts = append(bodyParts, fmt.Sprintf("%s → %s", event.OldStatus, event.NewStatus))
	}
	if event.NewStatus == models.SprintRunning && event.EndDate != nil {
		bodyParts = append(bodyParts, fmt.Sprintf("Ends %s", event.EndDate.Format("2006-01-02")))
	}
	body := strings.Join(bodyParts, "\n")

	fields := []Field{
		{Name: "Sprint", Value: event.Name, Short: true},
		{Name: "Status", Value: event.NewStatus, Short: true},
	}
	if event.ProjectID != "" {
		fields = append(fields, Field{Name: "Project", Value: event.ProjectID, Short: true})
	}

	return FormattedEvent{
		Title:    title,
		Body:     body,
		Severity: severity,
		Color:    severityColor(severity),
		Fields:   fields,
	}
}

// FormatBinEvent formats a recycle-bin enter or leave event.
func FormatBinEvent(event DetectedEvent) FormattedEvent {
	label := binKindLabel(event.Kind)

	var title, severity string
	if event.Type == EventBinLeave {
		title = fmt.Sprintf("%s %s restored", label, event.Name)
		severity = "success"
	} else {
		title = fmt.Sprintf("%s %s moved to recycle bin", label, event.Name)
		severity = "warning"
	}

	fields := []Field{
		{Name: label, Value: event.ItemID, Short: true},
	}
	if event.ProjectID != "" && event.Kind != "project" {
		fields = append(fields, Field{Name: "Project", Value: event.ProjectID, Short: true})
	}

	return FormattedEvent{
		Title:    title,
		Severity: severity,
		Color:    severityColor(severity),
		Fields:   fields,
	}
}

// FormatOverdueEvent formats an overdue running sprint event.
func FormatOverdueEvent(event DetectedEvent) FormattedEvent {
	title := fmt.Sprintf("Sprint %s is overdue", event.Name)

	var bodyParts []string
	if event.EndDate != nil {
		bodyParts = append(bodyParts, fmt.Sprintf("Ended %s and still running", event.EndDate.Format("2006-01-02")))
	}
	body := strings.Join(bodyParts, "\n")

	fields := []Field{
		{Name: "Sprint", Value: event.Name, Short: true},
	}
	if event.EndDate != nil {
		fields = append(fields, Field{Name: "End Date", Value: event.EndDate.Format("2006-01-02"), Short: true})
	}
	if event.ProjectID != "" {
		fields = append(fields, Field{Name: "Project", Value: event.ProjectID, Short: true})
	}

	return FormattedEvent{
		Title:    title,
		Body:     body,
		Severity: "warning",
		Color:    ColorWarning,
		Fields:   fields,
	}
}

// FormatDigest formats a periodic digest of running sprints, recent
// completions and recycle-bin depth.
func FormatDigest(running []models.Sprint, stats digestStats, now time.Time) FormattedEvent {
	var bodyLines []string
	bodyLines = append(bodyLines, fmt.Sprintf("**Sprints**: %d running, %d completed recently",
		stats.Running, stats.Completed))

	const maxListed = 8
	for i, s := range running {
		if i == maxListed {
			bodyLines = append(bodyLines, fmt.Sprintf("… and %d more", len(running)-maxListed))
			break
		}
		line := "• " + s.Name
		if s.EndDate != nil {
			suffix := fmt.Sprintf(" (due %s)", s.EndDate.Format("2006-01-02"))
			if s.EndDate.Before(now) {
				suffix = fmt.Sprintf(" (overdue since %s)", s.EndDate.Format("2006-01-02"))
			}
			line += suffix
		}
		bodyLines = append(bodyLines, line)
	}

	if stats.BinDepth > 0 {
		bodyLines = append(bodyLines, fmt.Sprintf("**Recycle bin**: %d items", stats.BinDepth))
	}

	body := strings.Join(bodyLines, "\n")

	fields := []Field{
		{Name: "Running", Value: fmt.Sprintf("%d", stats.Running), Short: true},
		{Name: "Completed", Value: fmt.Sprintf("%d", stats.Completed), Short: true},
	}
	if stats.BinDepth > 0 {
		fields = append(fields, Field{Name: "Recycle Bin", Value: fmt.Sprintf("%d", stats.BinDepth), Short: true})
	}

	return FormattedEvent{
		Title:    "Cadence Digest",
		Body:     body,
		Severity: "info",
		Color:    ColorInfo,
		Fields:   fields,
	}
}
