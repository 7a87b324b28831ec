package query

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartattd/smartattd/internal/application/report"
	"github.com/smartattd/smartattd/internal/domain/attendance"
	"github.com/smartattd/smartattd/internal/domain/shared"
	"github.com/smartattd/smartattd/internal/domain/student"
	"github.com/smartattd/smartattd/internal/infrastructure/persistence/memory"
	"github.com/smartattd/smartattd/pkg/retry"
	"github.com/smartattd/smartattd/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURES
// ══════════════════════════════════════════════════════════════════════════════

var october = attendance.Period{Month: "October", Year: 2026}

func testConfig() Config {
	return Config{
		Thresholds:     attendance.DefaultThresholds(),
		TargetFraction: 0.75,
		Clock:          timeutil.FixedClock(time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)),
		Location:       time.UTC,
		Retrier:        retry.New(retry.WithMaxAttempts(2), retry.WithInitialDelay(time.Millisecond)),
	}
}

type fixture struct {
	students *memory.StudentStore
	records  *memory.AttendanceStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	students := memory.NewStudentStore()
	f := &fixture{students: students, records: memory.NewAttendanceStore(students)}

	f.addStudent(t, "s1", "24CSE101", "Asha", "CSE", "2024-2028")
	f.addStudent(t, "s2", "24CSE102", "Ravi", "CSE", "2024-2028")
	f.addStudent(t, "s3", "24ECE101", "Meera", "ECE", "2024-2028")
	return f
}

func (f *fixture) addStudent(t *testing.T, id, roll, name, branch, batch string) {
	t.Helper()
	s, err := student.NewStudent(student.NewStudentParams{
		ID:     id,
		RollNo: roll,
		Name:   name,
		Email:  strings.ToLower(name) + "@college.edu",
		Branch: student.Branch(branch),
		Batch:  student.Batch(batch),
	})
	require.NoError(t, err)
	require.NoError(t, f.students.Create(context.Background(), s))
}

func (f *fixture) put(t *testing.T, id, subject string, period attendance.Period, attended, total int) {
	t.Helper()
	_, _, err := f.records.Upsert(context.Background(), attendance.NewKey(id, subject, period),
		attendance.Hours{Total: total, Attended: attended})
	require.NoError(t, err)
}

type fakeNarrator struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	text    string
	err     error
}

func (n *fakeNarrator) Generate(_ context.Context, prompt string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	n.prompts = append(n.prompts, prompt)
	return n.text, n.err
}

type mapCache struct {
	mu    sync.Mutex
	items map[attendance.Filter]attendance.ClassStats
	sets  int
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[attendance.Filter]attendance.ClassStats)}
}

func (c *mapCache) GetStats(_ context.Context, f attendance.Filter) (*attendance.ClassStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.items[f]
	if !ok {
		return nil, errors.New("miss")
	}
	return &s, nil
}

func (c *mapCache) SetStats(_ context.Context, f attendance.Filter, s attendance.ClassStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[f] = s
	c.sets++
	return nil
}

func (c *mapCache) InvalidateSubject(context.Context, string, attendance.Period) error {
	return nil
}

// failingStudents fails every call.
type failingStudents struct {
	student.Repository
	calls int
}

func (f *failingStudents) CountByClass(context.Context, string, string) (int, error) {
	f.calls++
	return 0, errors.New("connection refused")
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASS ANALYTICS
// ══════════════════════════════════════════════════════════════════════════════

func TestClassAnalytics_WithNarrative(t *testing.T) {
	f := newFixture(t)
	f.put(t, "s1", "Physics", october, 28, 40)
	f.put(t, "s2", "Physics", october, 18, 40)
	f.put(t, "s3", "Physics", october, 40, 40)

	narrator := &fakeNarrator{text: "## Summary\nAttendance is low."}
	h := NewGetClassAnalyticsHandler(f.records, f.students, nil, narrator, testConfig(), nil)

	res, err := h.Handle(context.Background(), GetClassAnalyticsQuery{
		Branch:  "CSE",
		Batch:   "2024-2028",
		Subject: "Physics",
	})
	require.NoError(t, err)

	assert.Equal(t, AnalyticsDTO{
		TotalStudents: 2,
		Safe:          0,
		Warning:       1,
		Critical:      1,
		AvgAttendance: "57.5",
	}, res.Analytics)
	assert.Equal(t, october, res.Period)
	assert.True(t, res.NarrativeAvailable)
	assert.Equal(t, narrator.text, res.Narrative)

	require.Equal(t, 1, narrator.calls)
	prompt := narrator.prompts[0]
	assert.Contains(t, prompt, "Subject: Physics")
	assert.Contains(t, prompt, "Month: October 2026")
	assert.Contains(t, prompt, "Class Average Attendance: 57.5%")
	assert.Contains(t, prompt, "Critical Zone Students (<65%): 1")
}

func TestClassAnalytics_NoDataSkipsNarrator(t *testing.T) {
	f := newFixture(t)
	narrator := &fakeNarrator{text: "should not be used"}
	h := NewGetClassAnalyticsHandler(f.records, f.students, nil, narrator, testConfig(), nil)

	res, err := h.Handle(context.Background(), GetClassAnalyticsQuery{Branch: "CSE", Batch: "2024-2028"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Analytics.TotalStudents)
	assert.Equal(t, 2, res.Analytics.Critical)
	assert.Equal(t, "0.0", res.Analytics.AvgAttendance)
	assert.Equal(t, report.NarrativeNoData, res.Narrative)
	assert.False(t, res.NarrativeAvailable)
	assert.Equal(t, 0, narrator.calls)
}

func TestClassAnalytics_NarratorFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.put(t, "s1", "Physics", october, 38, 40)

	for _, narrator := range []*fakeNarrator{
		{err: shared.ErrNarratorTimeout},
		{text: "   "},
	} {
		h := NewGetClassAnalyticsHandler(f.records, f.students, nil, narrator, testConfig(), nil)

		res, err := h.Handle(context.Background(), GetClassAnalyticsQuery{Branch: "CSE", Batch: "2024-2028"})
		require.NoError(t, err)

		assert.Equal(t, 1, res.Analytics.Safe)
		assert.Equal(t, "95.0", res.Analytics.AvgAttendance)
		assert.Equal(t, report.NarrativeUnavailable, res.Narrative)
		assert.False(t, res.NarrativeAvailable)
	}
}

func TestClassAnalytics_NilNarratorAndSkip(t *testing.T) {
	f := newFixture(t)
	f.put(t, "s1", "Physics", october, 38, 40)

	h := NewGetClassAnalyticsHandler(f.records, f.students, nil, nil, testConfig(), nil)
	res, err := h.Handle(context.Background(), GetClassAnalyticsQuery{Branch: "CSE", Batch: "2024-2028"})
	require.NoError(t, err)
	assert.Equal(t, report.NarrativeUnavailable, res.Narrative)

	narrator := &fakeNarrator{text: "ok"}
	h = NewGetClassAnalyticsHandler(f.records, f.students, nil, narrator, testConfig(), nil)
	res, err = h.Handle(context.Background(), GetClassAnalyticsQuery{Branch: "CSE", Batch: "2024-2028", SkipNarrative: true})
	require.NoError(t, err)
	assert.False(t, res.NarrativeAvailable)
	assert.Equal(t, 0, narrator.calls)
}

func TestClassAnalytics_PeriodFilter(t *testing.T) {
	f := newFixture(t)
	f.put(t, "s1", "Physics", october, 38, 40)
	f.put(t, "s1", "Physics", attendance.Period{Month: "September", Year: 2026}, 10, 40)

	h := NewGetClassAnalyticsHandler(f.records, f.students, nil, nil, testConfig(), nil)

	res, err := h.Handle(context.Background(), GetClassAnalyticsQuery{
		Branch: "CSE",
		Batch:  "2024-2028",
		Period: attendance.Period{Month: "sep", Year: 2026},
	})
	require.NoError(t, err)
	assert.Equal(t, attendance.Period{Month: "September", Year: 2026}, res.Period)
	assert.Equal(t, "25.0", res.Analytics.AvgAttendance)
	assert.Equal(t, 1, res.Analytics.Critical)
}

func TestClassAnalytics_UsesCache(t *testing.T) {
	f := newFixture(t)
	f.put(t, "s1", "Physics", october, 38, 40)

	cache := newMapCache()
	h := NewGetClassAnalyticsHandler(f.records, f.students, cache, nil, testConfig(), nil)
	q := GetClassAnalyticsQuery{Branch: "CSE", Batch: "2024-2028", SkipNarrative: true}

	first, err := h.Handle(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, 1, cache.sets)

	second, err := h.Handle(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Analytics, second.Analytics)
}

func TestClassAnalytics_NewStudentRefreshesCachedStats(t *testing.T) {
	f := newFixture(t)
	cache := newMapCache()
	h := NewGetClassAnalyticsHandler(f.records, f.students, cache, nil, testConfig(), nil)
	q := GetClassAnalyticsQuery{Branch: "CSE", Batch: "2024-2028", SkipNarrative: true}

	before, err := h.Handle(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 2, before.Analytics.TotalStudents)
	assert.Equal(t, 2, before.Analytics.Critical)

	f.addStudent(t, "s4", "24CSE103", "Kiran", "CSE", "2024-2028")

	after, err := h.Handle(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, after.FromCache)
	assert.Equal(t, 3, after.Analytics.TotalStudents)
	assert.Equal(t, 3, after.Analytics.Critical)

	again, err := h.Handle(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, again.FromCache)
	assert.Equal(t, after.Analytics, again.Analytics)
}

func TestClassAnalytics_BranchIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.put(t, "s1", "Physics", october, 38, 40)
	h := NewGetClassAnalyticsHandler(f.records, f.students, nil, nil, testConfig(), nil)

	res, err := h.Handle(context.Background(), GetClassAnalyticsQuery{
		Branch: " cse ", Batch: "2024-2028", SkipNarrative: true,
	})
	require.NoError(t, err)
	assert.True(t, res.Stats.HasData)
	assert.Equal(t, 2, res.Analytics.TotalStudents)
	assert.Equal(t, 1, res.Analytics.Safe)
	assert.Equal(t, "95.0", res.Analytics.AvgAttendance)
}

// slowStudents blocks until the read context ends.
type slowStudents struct {
	student.Repository
	calls int
}

func (s *slowStudents) CountByClass(ctx context.Context, _, _ string) (int, error) {
	s.calls++
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestClassAnalytics_QueryTimeout(t *testing.T) {
	f := newFixture(t)
	students := &slowStudents{Repository: f.students}
	cfg := testConfig()
	cfg.QueryTimeout = 10 * time.Millisecond
	h := NewGetClassAnalyticsHandler(f.records, students, nil, nil, cfg, nil)

	_, err := h.Handle(context.Background(), GetClassAnalyticsQuery{Branch: "CSE", Batch: "2024-2028"})
	require.Error(t, err)
	assert.True(t, shared.IsCollaboratorUnavailable(err))
	assert.Equal(t, 1, students.calls)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(errors.New("connection reset")))
	assert.True(t, isTransient(shared.ErrStoreUnavailable))
	assert.False(t, isTransient(shared.ErrUnknownStudent))
	assert.False(t, isTransient(shared.ErrStudentNotFound))
	assert.False(t, isTransient(context.Canceled))
}

func TestClassAnalytics_Validation(t *testing.T) {
	f := newFixture(t)
	h := NewGetClassAnalyticsHandler(f.records, f.students, nil, nil, testConfig(), nil)

	_, err := h.Handle(context.Background(), GetClassAnalyticsQuery{Batch: "2024-2028"})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(context.Background(), GetClassAnalyticsQuery{
		Branch: "CSE", Batch: "2024-2028", Period: attendance.Period{Month: "Thermidor", Year: 2026},
	})
	assert.ErrorIs(t, err, shared.ErrInvalidPeriod)
}

func TestClassAnalytics_StoreFailureFailsQuery(t *testing.T) {
	f := newFixture(t)
	students := &failingStudents{Repository: f.students}
	narrator := &fakeNarrator{text: "x"}
	h := NewGetClassAnalyticsHandler(f.records, students, nil, narrator, testConfig(), nil)

	_, err := h.Handle(context.Background(), GetClassAnalyticsQuery{Branch: "CSE", Batch: "2024-2028"})
	require.Error(t, err)
	assert.True(t, shared.IsCollaboratorUnavailable(err))
	assert.Equal(t, 2, students.calls, "read is retried")
	assert.Equal(t, 0, narrator.calls)
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASS ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

func TestClassAttendance(t *testing.T) {
	f := newFixture(t)
	f.put(t, "s1", "Physics", october, 38, 40)
	f.put(t, "s2", "Physics", october, 26, 40)
	f.put(t, "s2", "Chemistry", attendance.Period{Month: "September", Year: 2026}, 10, 40)
	f.put(t, "s3", "Physics", october, 40, 40)

	h := NewGetClassAttendanceHandler(f.records, f.students, testConfig())

	res, err := h.Handle(context.Background(), GetClassAttendanceQuery{Branch: "CSE", Batch: "2024-2028"})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 3)

	res, err = h.Handle(context.Background(), GetClassAttendanceQuery{
		Branch: "CSE", Batch: "2024-2028", Subject: "Physics", Period: october,
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	assert.Equal(t, "24CSE101", res.Rows[0].RollNo)
	assert.Equal(t, "Asha", res.Rows[0].Name)
	assert.Equal(t, 95.0, res.Rows[0].Percentage)
	assert.Equal(t, attendance.BandSafe, res.Rows[0].Band)

	assert.Equal(t, "24CSE102", res.Rows[1].RollNo)
	assert.Equal(t, 65.0, res.Rows[1].Percentage)
	assert.Equal(t, attendance.BandWarning, res.Rows[1].Band)
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPORT
// ══════════════════════════════════════════════════════════════════════════════

func TestStudentReport(t *testing.T) {
	f := newFixture(t)
	f.put(t, "s1", "Physics", october, 38, 40)
	f.put(t, "s1", "Mathematics", october, 18, 40)
	f.put(t, "s1", "Chemistry", attendance.Period{Month: "September", Year: 2026}, 20, 20)

	h := NewGetStudentReportHandler(f.records, f.students, testConfig())

	res, err := h.Handle(context.Background(), GetStudentReportQuery{RollNo: "24CSE101", Period: october})
	require.NoError(t, err)

	assert.Equal(t, "s1", res.Student.ID)
	require.Len(t, res.Subjects, 2)

	math := res.Subjects[0]
	assert.Equal(t, "Mathematics", math.Subject)
	assert.Equal(t, 45.0, math.Percentage)
	assert.Equal(t, attendance.BandCritical, math.Band)
	assert.Equal(t, 48, math.HoursNeeded)
	assert.Equal(t, 75.0, math.ProjectedPercentage)

	physics := res.Subjects[1]
	assert.Equal(t, 0, physics.HoursNeeded)
	assert.Equal(t, attendance.BandSafe, physics.Band)

	// Overall is summed hours, not the mean of percentages.
	assert.Equal(t, 80, res.TotalHours)
	assert.Equal(t, 56, res.AttendedHours)
	assert.Equal(t, 70.0, res.Overall)
	assert.Equal(t, attendance.BandWarning, res.OverallBand)

	assert.Contains(t, res.Prompt, "Student: Asha (24CSE101)")
	assert.Contains(t, res.Prompt, "needs 48 more consecutive hours")
}

func TestStudentReport_AllPeriods(t *testing.T) {
	f := newFixture(t)
	f.put(t, "s1", "Physics", october, 38, 40)
	f.put(t, "s1", "Chemistry", attendance.Period{Month: "September", Year: 2026}, 20, 20)

	h := NewGetStudentReportHandler(f.records, f.students, testConfig())

	res, err := h.Handle(context.Background(), GetStudentReportQuery{StudentID: "s1"})
	require.NoError(t, err)
	require.Len(t, res.Subjects, 2)
	assert.Equal(t, "October", res.Subjects[0].Month)
	assert.Equal(t, 96.7, res.Overall)
}

func TestStudentReport_NotFoundAndValidation(t *testing.T) {
	f := newFixture(t)
	h := NewGetStudentReportHandler(f.records, f.students, testConfig())

	_, err := h.Handle(context.Background(), GetStudentReportQuery{RollNo: "nope"})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(context.Background(), GetStudentReportQuery{})
	assert.True(t, shared.IsValidation(err))
}

func TestStudentReport_NoRecords(t *testing.T) {
	f := newFixture(t)
	h := NewGetStudentReportHandler(f.records, f.students, testConfig())

	res, err := h.Handle(context.Background(), GetStudentReportQuery{StudentID: "s2"})
	require.NoError(t, err)
	assert.Empty(t, res.Subjects)
	assert.Equal(t, 0.0, res.Overall)
	assert.Equal(t, attendance.BandCritical, res.OverallBand)
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASS ROSTER
// ══════════════════════════════════════════════════════════════════════════════

func TestClassRoster(t *testing.T) {
	f := newFixture(t)
	h := NewGetClassRosterHandler(f.students, testConfig())

	res, err := h.Handle(context.Background(), GetClassRosterQuery{Branch: "cse", Batch: "2024-2028"})
	require.NoError(t, err)
	require.Len(t, res.Students, 2)
	assert.Equal(t, "24CSE101", res.Students[0].RollNo)
	assert.Equal(t, "Ravi", res.Students[1].Name)
	assert.Equal(t, "CSE", res.Students[1].Branch)

	res, err = h.Handle(context.Background(), GetClassRosterQuery{})
	require.NoError(t, err)
	assert.Len(t, res.Students, 3)
}

func TestClassRoster_StoreFailure(t *testing.T) {
	f := newFixture(t)
	h := NewGetClassRosterHandler(&failingRoster{Repository: f.students}, testConfig())

	_, err := h.Handle(context.Background(), GetClassRosterQuery{Branch: "CSE"})
	require.Error(t, err)
	assert.True(t, shared.IsCollaboratorUnavailable(err))
}

type failingRoster struct {
	student.Repository
}

func (f *failingRoster) ListByClass(context.Context, string, string) ([]*student.Student, error) {
	return nil, errors.New("connection refused")
}
