package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Summary is the machine-readable outcome of a replay
type Summary struct {
	Name   string        `json:"name"`
	Passed bool          `json:"passed"`
	Failed int           `json:"failed"`
	Steps  []StepSummary `json:"steps"`
}

// StepSummary condenses one step for the JSON report
type StepSummary struct {
	At            string            `json:"at"`
	Description   string            `json:"description"`
	Scores        map[string]int    `json:"scores"`
	Remaining     map[string]int    `json:"remaining_minutes,omitempty"`
	Notifications map[string]string `json:"notifications,omitempty"`
	Failures      []string          `json:"failures,omitempty"`
}

// Summarize builds the JSON summary of a result
func Summarize(result *Result) Summary {
	s := Summary{
		Name:   result.Scenario.Name,
		Passed: result.Passed,
		Failed: result.FailedCount(),
		Steps:  make([]StepSummary, 0, len(result.Steps)),
	}

	for _, step := range result.Steps {
		ss := StepSummary{
			At:          step.Step.At.String(),
			Description: step.Step.Description,
			Scores:      make(map[string]int, len(step.Rooms)),
			Failures:    step.Failures,
		}
		for _, view := range step.Rooms {
			ss.Scores[view.Room.ID] = view.Analysis.Score
			if r := view.Analysis.RemainingMinutes; r != nil {
				if ss.Remaining == nil {
					ss.Remaining = make(map[string]int)
				}
				ss.Remaining[view.Room.ID] = *r
			}
		}
		for _, n := range step.Sent {
			if ss.Notifications == nil {
				ss.Notifications = make(map[string]string)
			}
			ss.Notifications[n.RoomID] = n.Body
		}
		s.Steps = append(s.Steps, ss)
	}
	return s
}

// Timeline renders a human-readable account of a replay
func Timeline(result *Result) string {
	var sb strings.Builder

	sb.WriteString("╔══════════════════════════════════════════════════════════╗\n")
	sb.WriteString(fmt.Sprintf("║  Scenario: %-46s║\n", truncate(result.Scenario.Name, 46)))
	sb.WriteString(fmt.Sprintf("║  Start:    %-46s║\n", result.Scenario.Start.Format("2006-01-02 15:04 MST")))
	sb.WriteString("╚══════════════════════════════════════════════════════════╝\n\n")

	for _, step := range result.Steps {
		icon := "✓"
		if !step.Passed() {
			icon = "✗"
		}
		sb.WriteString(fmt.Sprintf("[%8s] %s %s\n", step.Step.At, icon, step.Step.Description))

		for _, n := range step.Sent {
			alert := ""
			if n.RequireReattention {
				alert = " (alert)"
			}
			sb.WriteString(fmt.Sprintf("           → %-10s %s%s\n", n.RoomID, n.Body, alert))
		}
		for _, failure := range step.Failures {
			sb.WriteString(fmt.Sprintf("           ✗ %s\n", failure))
		}
	}

	status := "✓ ALL EXPECTATIONS MET"
	if !result.Passed {
		status = fmt.Sprintf("✗ %d EXPECTATION(S) FAILED", result.FailedCount())
	}

	sb.WriteString("\n╔══════════════════════════════════════════════════════════╗\n")
	sb.WriteString(fmt.Sprintf("║  Steps:  %-48d║\n", len(result.Steps)))
	sb.WriteString(fmt.Sprintf("║  Status: %-48s║\n", status))
	sb.WriteString("╚══════════════════════════════════════════════════════════╝\n")

	return sb.String()
}

// SaveReport writes a report, creating the directory if needed
func SaveReport(content []byte, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(filename, content, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// SaveSummary writes the JSON summary of a result
func SaveSummary(result *Result, filename string) error {
	data, err := json.MarshalIndent(Summarize(result), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	return SaveReport(data, filename)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
