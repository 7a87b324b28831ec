// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system; here that
// means writing attendance hour counts.
package command

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/smartattd/smartattd/internal/domain/attendance"
	"github.com/smartattd/smartattd/internal/domain/shared"
	"github.com/smartattd/smartattd/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE ENTRY
// One row of lecturer input, shared by single and bulk updates.
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceEntry is one (student, subject) hour count.
type AttendanceEntry struct {
	StudentID     string `json:"studentId" validate:"required"`
	Subject       string `json:"subject" validate:"required"`
	TotalHours    int    `json:"totalHours" validate:"min=0"`
	AttendedHours int    `json:"attendedHours" validate:"min=0,ltefield=TotalHours"`
}

// normalized returns the entry with identifying fields trimmed.
func (e AttendanceEntry) normalized() AttendanceEntry {
	e.StudentID = strings.TrimSpace(e.StudentID)
	e.Subject = strings.TrimSpace(e.Subject)
	return e
}

// Hours returns the counters of the entry.
func (e AttendanceEntry) Hours() attendance.Hours {
	return attendance.Hours{Total: e.TotalHours, Attended: e.AttendedHours}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func entryValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// isMissingField reports entries that lack an identifying field.
// Bulk updates skip them; single updates reject them.
func isMissingField(err error) bool {
	return errors.Is(err, shared.ErrMissingStudentID) || errors.Is(err, shared.ErrMissingSubject)
}

// checkEntry validates a normalized entry and maps tag failures to domain
// errors. Missing identifiers win over hour problems, negative hours win over
// attended > total.
func checkEntry(e AttendanceEntry) error {
	err := entryValidator().Struct(e)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.WrapError("attendance", "Validate", shared.ErrValidation, "invalid entry", err)
	}

	var missing, negative, exceeds error
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			if missing != nil {
				continue
			}
			if fe.StructField() == "StudentID" {
				missing = shared.ErrMissingStudentID
			} else {
				missing = shared.ErrMissingSubject
			}
		case "min":
			negative = shared.ErrNegativeHours
		case "ltefield":
			exceeds = shared.ErrAttendedExceedsTotal
		}
	}

	switch {
	case missing != nil:
		return missing
	case negative != nil:
		return negative
	case exceeds != nil:
		return exceeds
	default:
		return shared.WrapError("attendance", "Validate", shared.ErrValidation, "invalid entry", err)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PERIOD RESOLUTION
// ══════════════════════════════════════════════════════════════════════════════

// resolvePeriod fills a zero period from the clock and canonicalises the
// month label ("oct", "10" -> "October").
func resolvePeriod(p attendance.Period, clock timeutil.Clock, loc *time.Location) (attendance.Period, error) {
	if p.IsZero() {
		month, year := timeutil.CurrentPeriod(clock, loc)
		return attendance.Period{Month: month, Year: year}, nil
	}

	month, err := timeutil.ParseMonth(p.Month)
	if err != nil || p.Year <= 0 {
		return attendance.Period{}, shared.ErrInvalidPeriod
	}
	return attendance.Period{Month: month, Year: p.Year}, nil
}
