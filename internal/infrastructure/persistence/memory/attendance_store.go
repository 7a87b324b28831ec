// Package memory implements the repositories in process memory.
// It backs the CLI when no database is configured and the handler tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smartattd/smartattd/internal/domain/attendance"
	"github.com/smartattd/smartattd/internal/domain/shared"
	"github.com/smartattd/smartattd/internal/domain/student"
)

// StudentLookup resolves class membership for filter queries.
type StudentLookup interface {
	ClassOf(studentID string) (branch, batch string, ok bool)
}

// AttendanceStore implements attendance.Repository.
// Every method holds the lock for its whole duration, so Upsert is atomic
// per key and readers never observe a half-applied write.
type AttendanceStore struct {
	mu      sync.RWMutex
	records map[attendance.Key]*attendance.Record
	lookup  StudentLookup
	now     func() time.Time
	newID   func() string
}

// NewAttendanceStore creates an empty store. With a lookup, Upsert rejects
// student ids the lookup does not know. lookup may be nil, in which case any
// student id is accepted and Branch/Batch filters match nothing.
func NewAttendanceStore(lookup StudentLookup) *AttendanceStore {
	return &AttendanceStore{
		records: make(map[attendance.Key]*attendance.Record),
		lookup:  lookup,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// WithClock replaces the timestamp source.
func (s *AttendanceStore) WithClock(now func() time.Time) *AttendanceStore {
	s.now = now
	return s
}

// FindByKey returns a copy of the record for the key.
func (s *AttendanceStore) FindByKey(ctx context.Context, key attendance.Key) (*attendance.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, shared.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

// Upsert creates or overwrites the record for the key.
func (s *AttendanceStore) Upsert(ctx context.Context, key attendance.Key, hours attendance.Hours) (*attendance.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if err := key.Validate(); err != nil {
		return nil, false, err
	}
	if err := hours.Validate(); err != nil {
		return nil, false, err
	}
	if s.lookup != nil {
		if _, _, ok := s.lookup.ClassOf(key.StudentID); !ok {
			return nil, false, shared.ErrUnknownStudent
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if rec, ok := s.records[key]; ok {
		if err := rec.Apply(hours, now); err != nil {
			return nil, false, err
		}
		return rec.Clone(), false, nil
	}

	rec, err := attendance.NewRecord(s.newID(), key, hours, now)
	if err != nil {
		return nil, false, err
	}
	s.records[key] = rec
	return rec.Clone(), true, nil
}

// QueryByFilter returns copies of the matching records ordered by student,
// subject and period.
func (s *AttendanceStore) QueryByFilter(ctx context.Context, filter attendance.Filter) ([]*attendance.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*attendance.Record
	for _, rec := range s.records {
		if s.matches(rec, filter) {
			out = append(out, rec.Clone())
		}
	}
	sortRecords(out)
	return out, nil
}

// ListByStudent returns copies of a student's records, newest period first.
func (s *AttendanceStore) ListByStudent(ctx context.Context, studentID string) ([]*attendance.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*attendance.Record
	for _, rec := range s.records {
		if rec.StudentID == studentID {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		if ma, mb := monthIndex(a.Month), monthIndex(b.Month); ma != mb {
			return ma > mb
		}
		return a.Subject < b.Subject
	})
	return out, nil
}

// Len returns the number of stored records.
func (s *AttendanceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *AttendanceStore) matches(rec *attendance.Record, f attendance.Filter) bool {
	if f.Subject != "" && rec.Subject != f.Subject {
		return false
	}
	if f.Month != "" && rec.Month != f.Month {
		return false
	}
	if f.Year != 0 && rec.Year != f.Year {
		return false
	}
	if f.Branch == "" && f.Batch == "" {
		return true
	}
	if s.lookup == nil {
		return false
	}
	branch, batch, ok := s.lookup.ClassOf(rec.StudentID)
	if !ok {
		return false
	}
	if f.Branch != "" && branch != student.ParseBranch(f.Branch).String() {
		return false
	}
	if f.Batch != "" && batch != f.Batch {
		return false
	}
	return true
}

func sortRecords(recs []*attendance.Record) {
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.StudentID != b.StudentID {
			return a.StudentID < b.StudentID
		}
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return monthIndex(a.Month) < monthIndex(b.Month)
	})
}

func monthIndex(name string) int {
	for m := time.January; m <= time.December; m++ {
		if m.String() == name {
			return int(m)
		}
	}
	return 0
}
