package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/smartattd/smartattd/internal/domain/shared"
	"github.com/smartattd/smartattd/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

const studentColumns = `
	id::text, roll_no, name, email, phone, branch, batch,
	guardian_name, guardian_email, guardian_phone, created_at, updated_at`

// Create creates a new student.
func (r *StudentRepository) Create(ctx context.Context, s *student.Student) error {
	query := `
		INSERT INTO students (
			id, roll_no, name, email, phone, branch, batch,
			guardian_name, guardian_email, guardian_phone, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.conn.Exec(ctx, query,
		s.ID,
		s.RollNo,
		s.Name,
		s.Email,
		s.Phone,
		string(s.Branch),
		string(s.Batch),
		s.GuardianName,
		s.GuardianEmail,
		s.GuardianPhone,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrStudentAlreadyExists
		}
		return fmt.Errorf("failed to create student: %w", err)
	}

	return nil
}

// GetByID returns a student by internal ID.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*student.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id::text = $1`
	return scanStudent(r.conn.QueryRow(ctx, query, id))
}

// GetByRollNo returns a student by roll number.
func (r *StudentRepository) GetByRollNo(ctx context.Context, rollNo string) (*student.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE roll_no = $1`
	return scanStudent(r.conn.QueryRow(ctx, query, rollNo))
}

// ListByClass returns the students of a branch/batch ordered by roll number.
func (r *StudentRepository) ListByClass(ctx context.Context, branch, batch string) ([]*student.Student, error) {
	query := `
		SELECT ` + studentColumns + `
		FROM students
		WHERE ($1 = '' OR branch = $1)
		  AND ($2 = '' OR batch = $2)
		ORDER BY roll_no
	`

	rows, err := r.conn.Query(ctx, query, student.ParseBranch(branch).String(), batch)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var students []*student.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, s)
	}

	return students, rows.Err()
}

// CountByClass returns the number of students in a branch/batch.
func (r *StudentRepository) CountByClass(ctx context.Context, branch, batch string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM students
		WHERE ($1 = '' OR branch = $1)
		  AND ($2 = '' OR batch = $2)
	`

	var count int
	if err := r.conn.QueryRow(ctx, query, student.ParseBranch(branch).String(), batch).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}
	return count, nil
}

// scanStudent works for both pgx.Row and pgx.Rows.
func scanStudent(row pgx.Row) (*student.Student, error) {
	var s student.Student
	var branch, batch string

	err := row.Scan(
		&s.ID,
		&s.RollNo,
		&s.Name,
		&s.Email,
		&s.Phone,
		&branch,
		&batch,
		&s.GuardianName,
		&s.GuardianEmail,
		&s.GuardianPhone,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrStudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan student: %w", err)
	}

	s.Branch = student.Branch(branch)
	s.Batch = student.Batch(batch)
	return &s, nil
}
