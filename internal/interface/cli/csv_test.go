package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAttendanceCSV(t *testing.T) {
	in := "\ufeffRoll_No, Subject ,Total_Hours,Attended_Hours\n" +
		"24CSE101,Physics,40,32\n" +
		"24CSE102, Physics ,40,abc\n" +
		"24CSE103,Maths,,10\n" +
		"24CSE104,Maths,20,25\n"

	rows, rowErrs, err := ParseAttendanceCSV(strings.NewReader(in))
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, AttendanceRow{Line: 2, RollNo: "24CSE101", Subject: "Physics", TotalHours: 40, AttendedHours: 32}, rows[0])
	// Range checks belong to the attendance command.
	assert.Equal(t, 5, rows[1].Line)
	assert.Equal(t, 25, rows[1].AttendedHours)

	require.Len(t, rowErrs, 2)
	assert.Equal(t, 3, rowErrs[0].Line)
	assert.Contains(t, rowErrs[0].Error(), "attended_hours")
	assert.Equal(t, 4, rowErrs[1].Line)
	assert.Contains(t, rowErrs[1].Error(), "total_hours: empty")
}

func TestParseAttendanceCSV_StudentIDColumn(t *testing.T) {
	in := "student_id,subject,total_hours,attended_hours\nabc-123,Chemistry,10,9\n"

	rows, rowErrs, err := ParseAttendanceCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, rows, 1)
	assert.Equal(t, "abc-123", rows[0].StudentID)
	assert.Empty(t, rows[0].RollNo)
}

func TestParseAttendanceCSV_HeaderErrors(t *testing.T) {
	tests := map[string]string{
		"empty file":         "",
		"no student column":  "subject,total_hours,attended_hours\nPhysics,1,1\n",
		"no attended column": "roll_no,subject,total_hours\n24CSE101,Physics,1\n",
	}

	for name, in := range tests {
		in := in // per-iteration copy (Go 1.22+ loop semantics)
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseAttendanceCSV(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestParseStudentCSV(t *testing.T) {
	in := "roll_no,name,email,branch,year,guardian_email\n" +
		"24CSE101,Asha,asha@college.edu,cse,1,parent@example.com\n" +
		"23ECE201,Ravi,ravi@college.edu,ECE,second,\n"

	rows, rowErrs, err := ParseStudentCSV(strings.NewReader(in))
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "CSE", rows[0].Branch)
	assert.Equal(t, 1, rows[0].YearOfStudy)
	assert.Empty(t, rows[0].Batch)
	assert.Equal(t, "parent@example.com", rows[0].GuardianEmail)

	require.Len(t, rowErrs, 1)
	assert.Equal(t, 3, rowErrs[0].Line)
}

func TestParseStudentCSV_BatchColumn(t *testing.T) {
	in := "roll_no,name,email,branch,batch\n24CSE101,Asha,asha@college.edu,CSE,2024-2028\n"

	rows, rowErrs, err := ParseStudentCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-2028", rows[0].Batch)
	assert.Zero(t, rows[0].YearOfStudy)
}

func TestParseStudentCSV_HeaderErrors(t *testing.T) {
	_, _, err := ParseStudentCSV(strings.NewReader("roll_no,name,email,branch\n"))
	assert.ErrorContains(t, err, "batch or year")

	_, _, err = ParseStudentCSV(strings.NewReader("roll_no,name,branch,batch\n"))
	assert.ErrorContains(t, err, "email")
}
