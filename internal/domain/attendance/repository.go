package attendance

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository is the keyed store of attendance records. It is the only holder
// of mutable attendance state; everything it returns is a copy.
type Repository interface {
	// FindByKey returns the record for the key.
	// Returns ErrRecordNotFound if no record exists.
	FindByKey(ctx context.Context, key Key) (*Record, error)

	// Upsert creates the record for the key or overwrites its hours.
	// It is atomic per key: concurrent calls for the same key never produce
	// two records. created reports whether a new record was inserted.
	Upsert(ctx context.Context, key Key, hours Hours) (rec *Record, created bool, err error)

	// QueryByFilter returns the records matching every non-empty filter field.
	QueryByFilter(ctx context.Context, filter Filter) ([]*Record, error)

	// ListByStudent returns all records of one student, newest period first.
	ListByStudent(ctx context.Context, studentID string) ([]*Record, error)
}

// Filter selects records. Zero-valued fields are not applied.
// Branch and Batch are attributes of the referenced student.
type Filter struct {
	Branch  string
	Batch   string
	Subject string
	Month   string
	Year    int
}

// WithPeriod returns a copy of the filter restricted to the period.
func (f Filter) WithPeriod(p Period) Filter {
	f.Month = p.Month
	f.Year = p.Year
	return f
}

// Period returns the month/year part of the filter.
func (f Filter) Period() Period {
	return Period{Month: f.Month, Year: f.Year}
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// StatsCache caches computed class statistics. Implementations may be absent;
// callers treat every cache error as a miss.
type StatsCache interface {
	// GetStats returns cached stats for the filter.
	GetStats(ctx context.Context, filter Filter) (*ClassStats, error)

	// SetStats stores stats for the filter.
	SetStats(ctx context.Context, filter Filter, stats ClassStats) error

	// InvalidateSubject drops every cached entry of the subject in the period.
	InvalidateSubject(ctx context.Context, subject string, period Period) error
}
