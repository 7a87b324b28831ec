package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartattd/smartattd/internal/domain/attendance"
	"github.com/smartattd/smartattd/internal/domain/shared"
)

func TestTranslateWriteError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"foreign key", &pgconn.PgError{Code: "23503"}, shared.IsValidation},
		{"malformed uuid", &pgconn.PgError{Code: "22P02"}, shared.IsValidation},
		{"check constraint", &pgconn.PgError{Code: "23514"}, shared.IsDataInconsistency},
		{"wrapped malformed uuid", fmt.Errorf("scan: %w", &pgconn.PgError{Code: "22P02"}), shared.IsValidation},
		{"connection", errors.New("connection refused"), shared.IsCollaboratorUnavailable},
	}

	for _, tt := range tests {
		tt := tt // per-iteration copy (Go 1.22+ loop semantics)
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(translateWriteError(tt.err)))
		})
	}
}

func TestUpsert_RejectsNonUUIDStudentBeforeQuery(t *testing.T) {
	// conn is nil: the call must fail before reaching the database.
	repo := NewAttendanceRepository(nil)
	key := attendance.NewKey("24CSE101", "Physics", attendance.Period{Month: "October", Year: 2026})

	_, _, err := repo.Upsert(context.Background(), key, attendance.Hours{Total: 10, Attended: 5})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
	assert.ErrorIs(t, err, shared.ErrUnknownStudent)
}
