package cli

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/smartattd/smartattd/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// CSV IMPORT
// Files carry a header row; column order is free and names are
// case-insensitive.
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceRow is one parsed row of an attendance file.
type AttendanceRow struct {
	Line          int
	StudentID     string
	RollNo        string
	Subject       string
	TotalHours    int
	AttendedHours int
}

// StudentRow is one parsed row of a student roster file.
type StudentRow struct {
	Line          int
	RollNo        string
	Name          string
	Email         string
	Phone         string
	Branch        string
	Batch         string
	YearOfStudy   int
	GuardianName  string
	GuardianEmail string
	GuardianPhone string
}

// RowError is a row that could not be parsed.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// ParseAttendanceCSV reads rows with columns
// student_id or roll_no, subject, total_hours, attended_hours.
// Rows with unparseable hours are returned as RowErrors; range checks are
// left to the attendance command.
func ParseAttendanceCSV(r io.Reader) ([]AttendanceRow, []RowError, error) {
	cols, records, err := readCSV(r)
	if err != nil {
		return nil, nil, err
	}

	if !cols.has("student_id") && !cols.has("roll_no") {
		return nil, nil, errors.New("csv: need a student_id or roll_no column")
	}
	for _, name := range []string{"subject", "total_hours", "attended_hours"} {
		if !cols.has(name) {
			return nil, nil, fmt.Errorf("csv: missing column %q", name)
		}
	}

	var (
		rows    []AttendanceRow
		rowErrs []RowError
	)
	for i, rec := range records {
		line := i + 2

		total, err := parseHours(cols.get(rec, "total_hours"))
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Err: fmt.Errorf("total_hours: %w", err)})
			continue
		}
		attended, err := parseHours(cols.get(rec, "attended_hours"))
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Err: fmt.Errorf("attended_hours: %w", err)})
			continue
		}

		rows = append(rows, AttendanceRow{
			Line:          line,
			StudentID:     cols.get(rec, "student_id"),
			RollNo:        cols.get(rec, "roll_no"),
			Subject:       cols.get(rec, "subject"),
			TotalHours:    total,
			AttendedHours: attended,
		})
	}

	return rows, rowErrs, nil
}

// ParseStudentCSV reads a roster with columns roll_no, name, email, branch
// and either batch or year (year of study). Phone and guardian_* columns are
// optional.
func ParseStudentCSV(r io.Reader) ([]StudentRow, []RowError, error) {
	cols, records, err := readCSV(r)
	if err != nil {
		return nil, nil, err
	}

	for _, name := range []string{"roll_no", "name", "email", "branch"} {
		if !cols.has(name) {
			return nil, nil, fmt.Errorf("csv: missing column %q", name)
		}
	}
	if !cols.has("batch") && !cols.has("year") {
		return nil, nil, errors.New("csv: need a batch or year column")
	}

	var (
		rows    []StudentRow
		rowErrs []RowError
	)
	for i, rec := range records {
		line := i + 2

		row := StudentRow{
			Line:          line,
			RollNo:        cols.get(rec, "roll_no"),
			Name:          cols.get(rec, "name"),
			Email:         cols.get(rec, "email"),
			Phone:         cols.get(rec, "phone"),
			Branch:        student.ParseBranch(cols.get(rec, "branch")).String(),
			Batch:         cols.get(rec, "batch"),
			GuardianName:  cols.get(rec, "guardian_name"),
			GuardianEmail: cols.get(rec, "guardian_email"),
			GuardianPhone: cols.get(rec, "guardian_phone"),
		}

		if row.Batch == "" {
			year, err := strconv.Atoi(cols.get(rec, "year"))
			if err != nil {
				rowErrs = append(rowErrs, RowError{Line: line, Err: errors.New("year: not a number")})
				continue
			}
			row.YearOfStudy = year
		}

		rows = append(rows, row)
	}

	return rows, rowErrs, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

type columns map[string]int

func (c columns) has(name string) bool {
	_, ok := c[name]
	return ok
}

func (c columns) get(rec []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func readCSV(r io.Reader) (columns, [][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, errors.New("csv: empty file")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("csv: read header: %w", err)
	}

	cols := make(columns, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		cols[name] = i
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("csv: %w", err)
	}

	return cols, records, nil
}

func parseHours(s string) (int, error) {
	if s == "" {
		return 0, errors.New("empty")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("not a whole number")
	}
	return n, nil
}
