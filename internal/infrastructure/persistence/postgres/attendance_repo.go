package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/smartattd/smartattd/internal/domain/attendance"
	"github.com/smartattd/smartattd/internal/domain/shared"
	"github.com/smartattd/smartattd/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceRepository implements attendance.Repository for PostgreSQL.
type AttendanceRepository struct {
	conn *Connection
	now  func() time.Time
}

// NewAttendanceRepository creates a new AttendanceRepository.
func NewAttendanceRepository(conn *Connection) *AttendanceRepository {
	return &AttendanceRepository{
		conn: conn,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

const recordColumns = `
	r.id::text, r.student_id::text, r.subject, r.total_hours, r.attended_hours,
	r.month, r.year, r.created_at, r.updated_at`

// FindByKey returns the record for the key.
func (r *AttendanceRepository) FindByKey(ctx context.Context, key attendance.Key) (*attendance.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM attendance_records r
		WHERE r.student_id::text = $1 AND r.subject = $2 AND r.month = $3 AND r.year = $4
	`

	rec, err := scanRecord(r.conn.QueryRow(ctx, query, key.StudentID, key.Subject, key.Month, key.Year))
	if IsNoRows(err) {
		return nil, shared.ErrRecordNotFound
	}
	return rec, err
}

// upsertSQL relies on the attendance_records_key unique constraint.
// xmax is 0 only for a freshly inserted row version.
const upsertSQL = `
	INSERT INTO attendance_records AS r (
		id, student_id, subject, total_hours, attended_hours, month, year, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	ON CONFLICT ON CONSTRAINT attendance_records_key DO UPDATE SET
		total_hours = EXCLUDED.total_hours,
		attended_hours = EXCLUDED.attended_hours,
		updated_at = EXCLUDED.updated_at
	RETURNING ` + recordColumns + `, (r.xmax = 0) AS inserted
`

// Upsert inserts or overwrites the record for the key in one statement.
func (r *AttendanceRepository) Upsert(ctx context.Context, key attendance.Key, hours attendance.Hours) (*attendance.Record, bool, error) {
	if err := key.Validate(); err != nil {
		return nil, false, err
	}
	if err := hours.Validate(); err != nil {
		return nil, false, err
	}
	if _, err := uuid.Parse(key.StudentID); err != nil {
		return nil, false, shared.ErrUnknownStudent
	}

	row := r.conn.QueryRow(ctx, upsertSQL,
		uuid.NewString(),
		key.StudentID,
		key.Subject,
		hours.Total,
		hours.Attended,
		key.Month,
		key.Year,
		r.now(),
	)

	var rec attendance.Record
	var inserted bool
	err := row.Scan(
		&rec.ID,
		&rec.StudentID,
		&rec.Subject,
		&rec.TotalHours,
		&rec.AttendedHours,
		&rec.Month,
		&rec.Year,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return nil, false, translateWriteError(err)
	}

	return &rec, inserted, nil
}

// QueryByFilter returns records joined with their students for the class filters.
func (r *AttendanceRepository) QueryByFilter(ctx context.Context, filter attendance.Filter) ([]*attendance.Record, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Branch != "" {
		add("s.branch = $%d", student.ParseBranch(filter.Branch).String())
	}
	if filter.Batch != "" {
		add("s.batch = $%d", filter.Batch)
	}
	if filter.Subject != "" {
		add("r.subject = $%d", filter.Subject)
	}
	if filter.Month != "" {
		add("r.month = $%d", filter.Month)
	}
	if filter.Year != 0 {
		add("r.year = $%d", filter.Year)
	}

	query := `
		SELECT ` + recordColumns + `
		FROM attendance_records r
		JOIN students s ON s.id = r.student_id`
	if len(conds) > 0 {
		query += "\n\t\tWHERE " + strings.Join(conds, " AND ")
	}
	query += "\n\t\tORDER BY s.roll_no, r.subject"

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	return collectRecords(rows)
}

// ListByStudent returns all records of a student, newest period first.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID string) ([]*attendance.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM attendance_records r
		WHERE r.student_id::text = $1
		ORDER BY r.year DESC,
			EXTRACT(MONTH FROM to_date(r.month, 'Month')) DESC,
			r.subject
	`

	rows, err := r.conn.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list student attendance: %w", err)
	}
	return collectRecords(rows)
}

func collectRecords(rows pgx.Rows) ([]*attendance.Record, error) {
	defer rows.Close()

	var records []*attendance.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read attendance rows: %w", err)
	}
	return records, nil
}

func scanRecord(row pgx.Row) (*attendance.Record, error) {
	var rec attendance.Record
	err := row.Scan(
		&rec.ID,
		&rec.StudentID,
		&rec.Subject,
		&rec.TotalHours,
		&rec.AttendedHours,
		&rec.Month,
		&rec.Year,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan attendance record: %w", err)
	}
	return &rec, nil
}

// translateWriteError maps constraint violations back to domain errors so a
// check failing in the database reads the same as one failing in Go.
func translateWriteError(err error) error {
	switch {
	case IsForeignKeyViolation(err), IsInvalidTextRepresentation(err):
		return shared.WrapError("attendance", "Upsert", shared.ErrValidation, shared.ErrUnknownStudent.Message, err)
	case IsCheckViolation(err):
		return shared.WrapError("attendance", "Upsert", shared.ErrDataInconsistency, "hours rejected by store", err)
	default:
		return shared.WrapError("attendance", "Upsert", shared.ErrCollaboratorUnavailable, "failed to upsert attendance", err)
	}
}
