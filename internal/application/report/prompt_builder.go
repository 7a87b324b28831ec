// Package report turns computed attendance statistics into prompts for an
// external text generator. It performs formatting only; the numbers it
// prints are the ones it is given.
package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/smartattd/smartattd/internal/domain/attendance"
)

// ══════════════════════════════════════════════════════════════════════════════
// NARRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Narrator produces free text from a prompt.
type Narrator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Fixed narratives used instead of calling the narrator.
const (
	NarrativeNoData      = "No attendance data available for this month."
	NarrativeUnavailable = "AI analytics unavailable"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXTS
// ══════════════════════════════════════════════════════════════════════════════

// ReportContext is everything the class report prompt mentions.
type ReportContext struct {
	Subject string
	Branch  string
	Batch   string
	Period  attendance.Period
	Stats   attendance.ClassStats
}

// SubjectLine is one row of a student brief.
type SubjectLine struct {
	Subject     string
	Period      attendance.Period
	Attended    int
	Total       int
	Percentage  float64
	Band        attendance.Band
	HoursNeeded int
}

// StudentReportContext is everything the student brief mentions.
type StudentReportContext struct {
	Name    string
	RollNo  string
	Branch  string
	Batch   string
	Overall float64
	Lines   []SubjectLine
}

// ══════════════════════════════════════════════════════════════════════════════
// BUILDER
// ══════════════════════════════════════════════════════════════════════════════

// PromptBuilder formats prompts. The zero value is not usable; call
// NewPromptBuilder.
type PromptBuilder struct {
	thresholds attendance.Thresholds
}

// NewPromptBuilder creates a builder that labels the critical band with the
// given thresholds.
func NewPromptBuilder(thresholds attendance.Thresholds) *PromptBuilder {
	return &PromptBuilder{thresholds: thresholds}
}

// Build returns the monthly class report prompt for the Head of Department.
func (b *PromptBuilder) Build(rc ReportContext) string {
	var sb strings.Builder

	sb.WriteString("Generate a professional, short Monthly Attendance Report for the College Head of Department.\n")
	fmt.Fprintf(&sb, "Subject: %s\n", orAll(rc.Subject, "All subjects"))
	fmt.Fprintf(&sb, "Class: %s\n", strings.TrimSpace(rc.Branch+" "+rc.Batch))
	fmt.Fprintf(&sb, "Month: %s\n", rc.Period.String())
	fmt.Fprintf(&sb, "Total Students: %d\n", rc.Stats.TotalStudents)
	fmt.Fprintf(&sb, "Class Average Attendance: %s%%\n", FormatPercent(rc.Stats.AvgPercentage))
	fmt.Fprintf(&sb, "Safe Zone Students: %d\n", rc.Stats.Safe)
	fmt.Fprintf(&sb, "Warning Zone Students: %d\n", rc.Stats.Warning)
	fmt.Fprintf(&sb, "Critical Zone Students (<%d%%): %d\n", b.thresholds.WarningPercent, rc.Stats.Critical)
	sb.WriteString("\n")
	sb.WriteString("Please summarize the class performance, highlight the critical risk situation, ")
	sb.WriteString("and suggest 2 specific actions for the lecturer to improve attendance. ")
	sb.WriteString("Format with clear headings.")

	return sb.String()
}

// BuildStudentPrompt returns a short advisory prompt about one student.
func (b *PromptBuilder) BuildStudentPrompt(sc StudentReportContext) string {
	var sb strings.Builder

	sb.WriteString("Write a brief, encouraging attendance summary addressed to a college student and their guardian.\n")
	fmt.Fprintf(&sb, "Student: %s (%s)\n", sc.Name, sc.RollNo)
	fmt.Fprintf(&sb, "Class: %s\n", strings.TrimSpace(sc.Branch+" "+sc.Batch))
	fmt.Fprintf(&sb, "Overall Attendance: %s%%\n", FormatPercent(sc.Overall))
	fmt.Fprintf(&sb, "Required Attendance: %d%%\n", b.thresholds.SafePercent)
	sb.WriteString("Subjects:\n")
	for _, l := range sc.Lines {
		fmt.Fprintf(&sb, "- %s, %s: %d/%d hours (%s%%), %s",
			l.Subject, l.Period.String(), l.Attended, l.Total, FormatPercent(l.Percentage), l.Band.Label())
		if l.HoursNeeded > 0 {
			fmt.Fprintf(&sb, ", needs %d more consecutive hours", l.HoursNeeded)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString("Point out the subjects at risk and give one concrete recovery step for each. Keep it under 150 words.")

	return sb.String()
}

// FormatPercent renders a percentage with exactly one decimal place.
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.1f", attendance.Round1(v))
}

func orAll(v, all string) string {
	if strings.TrimSpace(v) == "" {
		return all
	}
	return v
}
