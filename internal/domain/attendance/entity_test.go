package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartattd/smartattd/internal/domain/shared"
)

func TestNewKey_Trims(t *testing.T) {
	key := NewKey("  s1 ", " Physics ", Period{Month: " March ", Year: 2026})

	assert.Equal(t, "s1", key.StudentID)
	assert.Equal(t, "Physics", key.Subject)
	assert.Equal(t, "March", key.Month)
	assert.NoError(t, key.Validate())
	assert.Equal(t, "s1/Physics/March/2026", key.String())
}

func TestKey_Validate(t *testing.T) {
	period := Period{Month: "March", Year: 2026}

	assert.ErrorIs(t, NewKey("", "Physics", period).Validate(), shared.ErrMissingStudentID)
	assert.ErrorIs(t, NewKey("s1", "", period).Validate(), shared.ErrMissingSubject)
	assert.ErrorIs(t, NewKey("s1", "Physics", Period{}).Validate(), shared.ErrInvalidPeriod)
}

func TestHours_Validate(t *testing.T) {
	assert.NoError(t, Hours{Total: 0, Attended: 0}.Validate())
	assert.NoError(t, Hours{Total: 10, Attended: 10}.Validate())

	err := Hours{Total: 10, Attended: 11}.Validate()
	assert.ErrorIs(t, err, shared.ErrAttendedExceedsTotal)
	assert.True(t, shared.IsDataInconsistency(err))

	err = Hours{Total: -1, Attended: 0}.Validate()
	assert.ErrorIs(t, err, shared.ErrNegativeHours)
	assert.True(t, shared.IsValidation(err))
}

func TestRecord_ApplyAndClone(t *testing.T) {
	created := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	key := NewKey("s1", "Physics", Period{Month: "October", Year: 2026})

	r, err := NewRecord("r1", key, Hours{Total: 10, Attended: 5}, created)
	require.NoError(t, err)
	assert.Equal(t, key, r.Key())
	assert.Equal(t, BandCritical, r.Band())

	clone := r.Clone()

	later := created.Add(time.Hour)
	require.NoError(t, r.Apply(Hours{Total: 12, Attended: 10}, later))
	assert.Equal(t, Hours{Total: 12, Attended: 10}, r.Hours())
	assert.Equal(t, created, r.CreatedAt)
	assert.Equal(t, later, r.UpdatedAt)

	// The clone is unaffected.
	assert.Equal(t, 5, clone.AttendedHours)

	// Invalid hours leave the record unchanged.
	assert.Error(t, r.Apply(Hours{Total: 5, Attended: 6}, later))
	assert.Equal(t, 10, r.AttendedHours)
}

func TestPeriod(t *testing.T) {
	assert.True(t, Period{}.IsZero())
	assert.False(t, Period{Month: "May"}.IsValid())
	assert.Equal(t, "May 2026", Period{Month: "May", Year: 2026}.String())
}
