package student

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartattd/smartattd/internal/domain/shared"
)

func validParams() NewStudentParams {
	return NewStudentParams{
		ID:     "3f1c1f8e-2b4a-4f64-9d7e-0a6f1c2b9e11",
		RollNo: "24CSE101",
		Name:   "Student 1",
		Email:  "student1@college.edu",
		Branch: Branch("CSE"),
		Batch:  Batch("2024-2028"),
	}
}

func TestNewStudent(t *testing.T) {
	params := validParams()
	params.RollNo = "  24CSE101 "
	params.GuardianEmail = "parent@example.com"

	s, err := NewStudent(params)
	require.NoError(t, err)

	assert.Equal(t, "24CSE101", s.RollNo)
	assert.Equal(t, Branch("CSE"), s.Branch)
	assert.False(t, s.CreatedAt.IsZero())
	assert.Equal(t, s.CreatedAt, s.UpdatedAt)
}

func TestParseBranch(t *testing.T) {
	assert.Equal(t, Branch("CSE"), ParseBranch("cse"))
	assert.Equal(t, Branch("ECE"), ParseBranch("  Ece "))
	assert.Equal(t, Branch(""), ParseBranch("   "))
}

func TestNewStudent_NormalizesBranch(t *testing.T) {
	params := validParams()
	params.Branch = " cse "
	params.Batch = " 2024-2028 "

	s, err := NewStudent(params)
	require.NoError(t, err)
	assert.Equal(t, Branch("CSE"), s.Branch)
	assert.Equal(t, Batch("2024-2028"), s.Batch)
}

func TestNewStudent_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *NewStudentParams)
	}{
		{"missing id", func(p *NewStudentParams) { p.ID = "" }},
		{"missing roll", func(p *NewStudentParams) { p.RollNo = " " }},
		{"missing name", func(p *NewStudentParams) { p.Name = "" }},
		{"bad email", func(p *NewStudentParams) { p.Email = "not-an-email" }},
		{"bad branch", func(p *NewStudentParams) { p.Branch = "C S E" }},
		{"bad batch", func(p *NewStudentParams) { p.Batch = "2024" }},
		{"reversed batch", func(p *NewStudentParams) { p.Batch = "2028-2024" }},
		{"bad guardian email", func(p *NewStudentParams) { p.GuardianEmail = "nope" }},
	}

	for _, tt := range tests {
		tt := tt // per-iteration copy (Go 1.22+ loop semantics)
		t.Run(tt.name, func(t *testing.T) {
			params := validParams()
			tt.mutate(&params)

			_, err := NewStudent(params)
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestBatch_Years(t *testing.T) {
	start, end, ok := Batch("2023-2027").Years()
	require.True(t, ok)
	assert.Equal(t, 2023, start)
	assert.Equal(t, 2027, end)

	_, _, ok = Batch("abcd-efgh").Years()
	assert.False(t, ok)
}

func TestBatchForYear(t *testing.T) {
	tests := []struct {
		year int
		want Batch
	}{
		{1, "2024-2028"},
		{2, "2023-2027"},
		{3, "2022-2026"},
		{4, "2021-2025"},
	}

	for _, tt := range tests {
		got, err := BatchForYear(tt.year, 2024)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.True(t, got.IsValid())
	}

	_, err := BatchForYear(0, 2024)
	assert.True(t, shared.IsValidation(err))

	_, err = BatchForYear(5, 2024)
	assert.True(t, shared.IsValidation(err))
}

func TestStudent_InClass(t *testing.T) {
	s, err := NewStudent(validParams())
	require.NoError(t, err)

	assert.True(t, s.InClass("CSE", "2024-2028"))
	assert.True(t, s.InClass("", ""))
	assert.True(t, s.InClass("CSE", ""))
	assert.False(t, s.InClass("ECE", "2024-2028"))
	assert.False(t, s.InClass("CSE", "2023-2027"))
	assert.True(t, s.InClass(" cse ", "2024-2028"))
}

func TestStudent_Clone(t *testing.T) {
	s, err := NewStudent(validParams())
	require.NoError(t, err)

	c := s.Clone()
	c.Name = "Changed"
	assert.Equal(t, "Student 1", s.Name)

	var nilStudent *Student
	assert.Nil(t, nilStudent.Clone())
}
