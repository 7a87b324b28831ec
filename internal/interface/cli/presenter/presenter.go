// Package presenter renders query results as terminal tables.
package presenter

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/smartattd/smartattd/internal/application/command"
	"github.com/smartattd/smartattd/internal/application/query"
	"github.com/smartattd/smartattd/internal/application/report"
	"github.com/smartattd/smartattd/internal/domain/attendance"
	"github.com/smartattd/smartattd/internal/infrastructure/persistence/postgres"
	"github.com/smartattd/smartattd/pkg/timeutil"
)

var (
	safe     = color.New(color.FgGreen).SprintFunc()
	warning  = color.New(color.FgYellow).SprintFunc()
	critical = color.New(color.FgRed, color.Bold).SprintFunc()
	heading  = color.New(color.FgCyan, color.Bold).SprintFunc()
	muted    = color.New(color.Faint).SprintFunc()
)

// Band returns the band label coloured by severity.
func Band(b attendance.Band) string {
	switch b {
	case attendance.BandSafe:
		return safe(b.Label())
	case attendance.BandWarning:
		return warning(b.Label())
	case attendance.BandCritical:
		return critical(b.Label())
	default:
		return string(b)
	}
}

// Percent formats a percentage with one decimal.
func Percent(v float64) string {
	return report.FormatPercent(v) + "%"
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	return table
}

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS
// ══════════════════════════════════════════════════════════════════════════════

// ClassAnalytics renders class statistics and the narrative.
func ClassAnalytics(w io.Writer, q query.GetClassAnalyticsQuery, res *query.ClassAnalyticsResult) {
	subject := q.Subject
	if subject == "" {
		subject = "All subjects"
	}
	fmt.Fprintln(w, heading(fmt.Sprintf("\n%s %s · %s · %s", q.Branch, q.Batch, subject, res.Period)))

	a := res.Analytics
	table := newTable(w, "Metric", "Value")
	table.Append([]string{"Total students", strconv.Itoa(a.TotalStudents)})
	table.Append([]string{"Average attendance", a.AvgAttendance + "%"})
	table.Append([]string{safe("Safe"), strconv.Itoa(a.Safe)})
	table.Append([]string{warning("Warning"), strconv.Itoa(a.Warning)})
	table.Append([]string{critical("Critical"), strconv.Itoa(a.Critical)})
	table.Render()

	if res.FromCache {
		fmt.Fprintln(w, muted("(cached)"))
	}

	fmt.Fprintln(w, heading("\nInsight"))
	if res.NarrativeAvailable {
		fmt.Fprintln(w, res.Narrative)
	} else {
		fmt.Fprintln(w, muted(res.Narrative))
	}
}

// ClassAttendance renders the class register.
func ClassAttendance(w io.Writer, res *query.GetClassAttendanceResult) {
	if len(res.Rows) == 0 {
		fmt.Fprintln(w, muted("No attendance records."))
		return
	}

	table := newTable(w, "Roll No", "Name", "Subject", "Period", "Attended", "Total", "%", "Band")
	for _, row := range res.Rows {
		table.Append([]string{
			row.RollNo,
			row.Name,
			row.Subject,
			attendance.Period{Month: row.Month, Year: row.Year}.String(),
			strconv.Itoa(row.AttendedHours),
			strconv.Itoa(row.TotalHours),
			Percent(row.Percentage),
			Band(row.Band),
		})
	}
	table.Render()
}

// ClassRoster renders the students of a class.
func ClassRoster(w io.Writer, res *query.GetClassRosterResult) {
	if len(res.Students) == 0 {
		fmt.Fprintln(w, muted("No students registered."))
		return
	}

	table := newTable(w, "Roll No", "Name", "Email", "Branch", "Batch", "Guardian email")
	for _, s := range res.Students {
		table.Append([]string{s.RollNo, s.Name, s.Email, s.Branch, s.Batch, s.GuardianEmail})
	}
	table.Render()
	fmt.Fprintln(w, muted(fmt.Sprintf("%d student(s)", len(res.Students))))
}

// StudentReport renders a student's per-subject report.
func StudentReport(w io.Writer, res *query.GetStudentReportResult) {
	s := res.Student
	fmt.Fprintln(w, heading(fmt.Sprintf("\n%s (%s) · %s %s", s.Name, s.RollNo, s.Branch, s.Batch)))

	if len(res.Subjects) == 0 {
		fmt.Fprintln(w, muted("No attendance records."))
		return
	}

	table := newTable(w, "Subject", "Period", "Attended", "Total", "%", "Band", "Hours needed")
	for _, line := range res.Subjects {
		needed := "-"
		if line.HoursNeeded > 0 {
			needed = fmt.Sprintf("%d (→ %s)", line.HoursNeeded, Percent(line.ProjectedPercentage))
		}
		table.Append([]string{
			line.Subject,
			attendance.Period{Month: line.Month, Year: line.Year}.String(),
			strconv.Itoa(line.AttendedHours),
			strconv.Itoa(line.TotalHours),
			Percent(line.Percentage),
			Band(line.Band),
			needed,
		})
	}
	table.SetFooter([]string{"Overall", "", strconv.Itoa(res.AttendedHours), strconv.Itoa(res.TotalHours),
		Percent(res.Overall), res.OverallBand.Label(), ""})
	table.Render()
}

// Narrative prints a generated text block, or the fallback muted.
func Narrative(w io.Writer, title, text string, available bool) {
	fmt.Fprintln(w, heading("\n"+title))
	if available {
		fmt.Fprintln(w, text)
		return
	}
	fmt.Fprintln(w, muted(text))
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITES
// ══════════════════════════════════════════════════════════════════════════════

// BulkResult renders a bulk update summary with skipped and failed entries.
// lines maps entry index to a source line number; it may be nil.
func BulkResult(w io.Writer, res *command.BulkUpdateResult, lines []int) {
	fmt.Fprintf(w, "%s %d applied (%d new) · %d skipped · %d failed · %s\n",
		heading("Import:"), res.AppliedCount, res.CreatedCount, len(res.Skipped), len(res.Failed), res.Period)

	if len(res.Skipped) == 0 && len(res.Failed) == 0 {
		return
	}

	table := newTable(w, "Line", "Student", "Subject", "Status", "Reason")
	for _, s := range res.Skipped {
		table.Append([]string{lineOf(lines, s.Index), s.Key.StudentID, s.Key.Subject, warning("skipped"), s.Reason})
	}
	for _, f := range res.Failed {
		table.Append([]string{lineOf(lines, f.Index), f.Key.StudentID, f.Key.Subject, critical("failed"), f.Reason()})
	}
	table.Render()
}

// Record renders one written record.
func Record(w io.Writer, r *attendance.Record) {
	pct, _ := r.Percentage()
	fmt.Fprintf(w, "%s %s · %s · %s: %d/%d (%s) %s\n",
		heading("saved"), r.StudentID, r.Subject, r.Key().Period, r.AttendedHours, r.TotalHours, Percent(pct), Band(r.Band()))
}

// Prediction renders an hours-needed calculation.
func Prediction(w io.Writer, attended, total int, target float64, needed int) {
	current, _ := attendance.Percentage(attended, total)
	band := attendance.Classify(attended, total)

	table := newTable(w, "Attended", "Total", "Current", "Band", "Target", "Hours needed", "Projected")
	table.Append([]string{
		strconv.Itoa(attended),
		strconv.Itoa(total),
		Percent(current),
		Band(band),
		Percent(target * 100),
		strconv.Itoa(needed),
		Percent(attendance.ProjectedPercentage(attended, total, needed)),
	})
	table.Render()
}

func lineOf(lines []int, index int) string {
	if index >= 0 && index < len(lines) {
		return strconv.Itoa(lines[index])
	}
	return strconv.Itoa(index + 1)
}

// ══════════════════════════════════════════════════════════════════════════════
// OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Migrations renders the schema migration status with dates in loc.
func Migrations(w io.Writer, migrations []postgres.Migration, loc *time.Location) {
	table := newTable(w, "Version", "Name", "Status", "Applied at")
	for _, m := range migrations {
		status, at := warning("pending"), ""
		if m.IsApplied {
			status, at = safe("applied"), timeutil.FormatDate(m.AppliedAt, loc)
		}
		table.Append([]string{strconv.Itoa(m.Version), m.Name, status, at})
	}
	table.Render()
}

// HealthResult is the outcome of one service check.
type HealthResult struct {
	Name    string
	Err     error
	Latency time.Duration
}

// Health renders service check results.
func Health(w io.Writer, results []HealthResult) {
	table := newTable(w, "Service", "Status", "Latency", "Detail")
	for _, r := range results {
		status, detail := safe("ok"), ""
		if r.Err != nil {
			status, detail = critical("down"), r.Err.Error()
		}
		latency := "-"
		if r.Latency > 0 {
			latency = r.Latency.Round(time.Millisecond).String()
		}
		table.Append([]string{r.Name, status, latency, detail})
	}
	table.Render()
}
