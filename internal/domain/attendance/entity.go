// Package attendance contains the attendance hour-count model and the pure
// analytics built on it: risk bands, recovery prediction and class statistics.
// There are no infrastructure dependencies here.
package attendance

import (
	"fmt"
	"strings"
	"time"

	"github.com/smartattd/smartattd/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Period is the reporting window: an English month label and a year.
type Period struct {
	Month string `json:"month"`
	Year  int    `json:"year"`
}

// IsZero reports whether the period was left unset.
func (p Period) IsZero() bool {
	return p.Month == "" && p.Year == 0
}

// IsValid checks that both parts of the period are present.
func (p Period) IsValid() bool {
	return strings.TrimSpace(p.Month) != "" && p.Year > 0
}

// String returns "October 2026".
func (p Period) String() string {
	return fmt.Sprintf("%s %d", p.Month, p.Year)
}

// Key identifies exactly one attendance record.
type Key struct {
	StudentID string `json:"studentId"`
	Subject   string `json:"subject"`
	Period
}

// NewKey builds a key, trimming surrounding whitespace from the string parts.
func NewKey(studentID, subject string, period Period) Key {
	return Key{
		StudentID: strings.TrimSpace(studentID),
		Subject:   strings.TrimSpace(subject),
		Period: Period{
			Month: strings.TrimSpace(period.Month),
			Year:  period.Year,
		},
	}
}

// Validate checks the identifying fields of the key.
func (k Key) Validate() error {
	if k.StudentID == "" {
		return shared.ErrMissingStudentID
	}
	if k.Subject == "" {
		return shared.ErrMissingSubject
	}
	if !k.Period.IsValid() {
		return shared.ErrInvalidPeriod
	}
	return nil
}

// String returns a stable textual form used for logging and grouping.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%d", k.StudentID, k.Subject, k.Month, k.Year)
}

// Hours holds the two mutable counters of a record.
type Hours struct {
	Total    int `json:"totalHours"`
	Attended int `json:"attendedHours"`
}

// Validate enforces 0 <= attended <= total.
func (h Hours) Validate() error {
	if h.Total < 0 || h.Attended < 0 {
		return shared.ErrNegativeHours
	}
	if h.Attended > h.Total {
		return shared.ErrAttendedExceedsTotal
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record is the stored hour count of one student in one subject for one period.
// Records handed out by a Repository are snapshots; mutating them has no effect
// on the store.
type Record struct {
	// ID is the surrogate identifier. The natural key is Key().
	ID string `json:"id"`

	StudentID     string    `json:"studentId"`
	Subject       string    `json:"subject"`
	TotalHours    int       `json:"totalHours"`
	AttendedHours int       `json:"attendedHours"`
	Month         string    `json:"month"`
	Year          int       `json:"year"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NewRecord creates a record for the key with the given hours.
func NewRecord(id string, key Key, hours Hours, now time.Time) (*Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if err := hours.Validate(); err != nil {
		return nil, err
	}
	return &Record{
		ID:            id,
		StudentID:     key.StudentID,
		Subject:       key.Subject,
		TotalHours:    hours.Total,
		AttendedHours: hours.Attended,
		Month:         key.Month,
		Year:          key.Year,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Key returns the natural key of the record.
func (r *Record) Key() Key {
	return Key{
		StudentID: r.StudentID,
		Subject:   r.Subject,
		Period:    Period{Month: r.Month, Year: r.Year},
	}
}

// Hours returns the counters of the record.
func (r *Record) Hours() Hours {
	return Hours{Total: r.TotalHours, Attended: r.AttendedHours}
}

// Apply overwrites the counters in place.
func (r *Record) Apply(hours Hours, now time.Time) error {
	if err := hours.Validate(); err != nil {
		return err
	}
	r.TotalHours = hours.Total
	r.AttendedHours = hours.Attended
	r.UpdatedAt = now
	return nil
}

// Percentage returns the attendance percentage of the record.
// ok is false when no hours have been conducted yet.
func (r *Record) Percentage() (pct float64, ok bool) {
	return Percentage(r.AttendedHours, r.TotalHours)
}

// Band classifies the record with the default thresholds.
func (r *Record) Band() Band {
	return Classify(r.AttendedHours, r.TotalHours)
}

// Clone returns an independent copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
