package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create students table
-- Version: 001

CREATE TABLE IF NOT EXISTS students (
    id UUID PRIMARY KEY,
    roll_no VARCHAR(30) NOT NULL UNIQUE,
    name VARCHAR(100) NOT NULL,
    email VARCHAR(255) NOT NULL,
    phone VARCHAR(30) NOT NULL DEFAULT '',
    branch VARCHAR(20) NOT NULL,
    batch VARCHAR(9) NOT NULL,
    guardian_name VARCHAR(100) NOT NULL DEFAULT '',
    guardian_email VARCHAR(255) NOT NULL DEFAULT '',
    guardian_phone VARCHAR(30) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_batch CHECK (batch ~ '^[0-9]{4}-[0-9]{4}$')
);

-- Class filters: analytics always select by branch and batch
CREATE INDEX IF NOT EXISTS idx_students_class ON students(branch, batch);
`

const migration001Down = `
DROP INDEX IF EXISTS idx_students_class;
DROP TABLE IF EXISTS students;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE ATTENDANCE RECORDS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create attendance_records table
-- Version: 002

CREATE TABLE IF NOT EXISTS attendance_records (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    subject VARCHAR(100) NOT NULL,
    total_hours INTEGER NOT NULL DEFAULT 0,
    attended_hours INTEGER NOT NULL DEFAULT 0,
    month VARCHAR(9) NOT NULL,
    year INTEGER NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- One row per key; the upsert relies on this constraint
    CONSTRAINT attendance_records_key UNIQUE (student_id, subject, month, year),

    CONSTRAINT valid_hours CHECK (total_hours >= 0 AND attended_hours >= 0),
    CONSTRAINT attended_within_total CHECK (attended_hours <= total_hours),
    CONSTRAINT valid_year CHECK (year > 0)
);

CREATE INDEX IF NOT EXISTS idx_attendance_period_subject
    ON attendance_records(year, month, subject);
CREATE INDEX IF NOT EXISTS idx_attendance_student
    ON attendance_records(student_id);
`

const migration002Down = `
DROP INDEX IF EXISTS idx_attendance_student;
DROP INDEX IF EXISTS idx_attendance_period_subject;
DROP TABLE IF EXISTS attendance_records;
`

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_students",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_attendance_records",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
	}
}
