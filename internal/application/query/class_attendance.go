package query

import (
	"context"
	"strings"

	"github.com/smartattd/smartattd/internal/domain/attendance"
	"github.com/smartattd/smartattd/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CLASS ATTENDANCE QUERY
// Ведомость группы: все записи студентов направления/потока с процентом
// и зоной риска. Предмет и период необязательны.
// ══════════════════════════════════════════════════════════════════════════════

// GetClassAttendanceQuery содержит фильтры ведомости.
type GetClassAttendanceQuery struct {
	Branch  string
	Batch   string
	Subject string

	// Period - нулевое значение означает "все периоды".
	Period attendance.Period
}

// Validate проверяет корректность параметров запроса.
func (q GetClassAttendanceQuery) Validate() error {
	if err := requireField("GetClassAttendance", "branch", q.Branch); err != nil {
		return err
	}
	return requireField("GetClassAttendance", "batch", q.Batch)
}

// AttendanceRowDTO - строка ведомости.
type AttendanceRowDTO struct {
	RecordID      string          `json:"id"`
	StudentID     string          `json:"studentId"`
	RollNo        string          `json:"rollNo"`
	Name          string          `json:"name"`
	Subject       string          `json:"subject"`
	Month         string          `json:"month"`
	Year          int             `json:"year"`
	TotalHours    int             `json:"totalHours"`
	AttendedHours int             `json:"attendedHours"`
	Percentage    float64         `json:"percentage"`
	Band          attendance.Band `json:"band"`
}

// GetClassAttendanceResult содержит строки ведомости.
type GetClassAttendanceResult struct {
	Rows []AttendanceRowDTO `json:"rows"`
}

// GetClassAttendanceHandler обрабатывает запросы ведомости.
type GetClassAttendanceHandler struct {
	records  attendance.Repository
	students student.Repository
	config   Config
}

// NewGetClassAttendanceHandler создаёт новый обработчик.
func NewGetClassAttendanceHandler(
	records attendance.Repository,
	students student.Repository,
	config Config,
) *GetClassAttendanceHandler {
	return &GetClassAttendanceHandler{
		records:  records,
		students: students,
		config:   config.withDefaults(),
	}
}

// Handle выполняет запрос ведомости.
func (h *GetClassAttendanceHandler) Handle(ctx context.Context, q GetClassAttendanceQuery) (*GetClassAttendanceResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	filter := attendance.Filter{
		Branch:  student.ParseBranch(q.Branch).String(),
		Batch:   strings.TrimSpace(q.Batch),
		Subject: strings.TrimSpace(q.Subject),
	}
	if !q.Period.IsZero() {
		period, err := resolvePeriod(q.Period, h.config)
		if err != nil {
			return nil, err
		}
		filter = filter.WithPeriod(period)
	}

	students, err := load(ctx, h.config, func(ctx context.Context) ([]*student.Student, error) {
		return h.students.ListByClass(ctx, filter.Branch, filter.Batch)
	})
	if err != nil {
		return nil, storeFailure("GetClassAttendance", "failed to list students", err)
	}

	records, err := load(ctx, h.config, func(ctx context.Context) ([]*attendance.Record, error) {
		return h.records.QueryByFilter(ctx, filter)
	})
	if err != nil {
		return nil, storeFailure("GetClassAttendance", "failed to load attendance", err)
	}

	byID := make(map[string]*student.Student, len(students))
	for _, s := range students {
		byID[s.ID] = s
	}

	rows := make([]AttendanceRowDTO, 0, len(records))
	for _, r := range records {
		pct, _ := r.Percentage()
		row := AttendanceRowDTO{
			RecordID:      r.ID,
			StudentID:     r.StudentID,
			Subject:       r.Subject,
			Month:         r.Month,
			Year:          r.Year,
			TotalHours:    r.TotalHours,
			AttendedHours: r.AttendedHours,
			Percentage:    attendance.Round1(pct),
			Band:          h.config.Thresholds.Classify(r.AttendedHours, r.TotalHours),
		}
		if s, ok := byID[r.StudentID]; ok {
			row.RollNo = s.RollNo
			row.Name = s.Name
		}
		rows = append(rows, row)
	}

	return &GetClassAttendanceResult{Rows: rows}, nil
}
