package query

import (
	"context"
	"strings"

	"github.com/smartattd/smartattd/internal/application/report"
	"github.com/smartattd/smartattd/internal/domain/attendance"
	"github.com/smartattd/smartattd/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT REPORT QUERY
// Отчёт по одному студенту: записи по предметам, зона риска, сколько часов
// подряд нужно посетить до целевого процента и общий процент.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentReportQuery идентифицирует студента по ID или номеру в журнале.
type GetStudentReportQuery struct {
	StudentID string
	RollNo    string

	// Period - нулевое значение означает "все периоды".
	Period attendance.Period
}

// Validate проверяет корректность параметров запроса.
func (q GetStudentReportQuery) Validate() error {
	if strings.TrimSpace(q.StudentID) == "" && strings.TrimSpace(q.RollNo) == "" {
		return requireField("GetStudentReport", "studentId or rollNo", "")
	}
	return nil
}

// SubjectReportDTO - строка отчёта по предмету.
type SubjectReportDTO struct {
	Subject       string          `json:"subject"`
	Month         string          `json:"month"`
	Year          int             `json:"year"`
	TotalHours    int             `json:"totalHours"`
	AttendedHours int             `json:"attendedHours"`
	Percentage    float64         `json:"percentage"`
	Band          attendance.Band `json:"band"`

	// HoursNeeded - часов подряд до целевого процента (0 = цель достигнута).
	HoursNeeded int `json:"hoursNeeded"`

	// ProjectedPercentage - процент после HoursNeeded часов.
	ProjectedPercentage float64 `json:"projectedPercentage"`
}

// GetStudentReportResult содержит отчёт по студенту.
type GetStudentReportResult struct {
	Student  *student.Student   `json:"student"`
	Subjects []SubjectReportDTO `json:"subjects"`

	// TotalHours и AttendedHours - суммы по всем строкам.
	TotalHours    int `json:"totalHours"`
	AttendedHours int `json:"attendedHours"`

	// Overall - общий процент по суммарным часам.
	Overall     float64         `json:"overall"`
	OverallBand attendance.Band `json:"overallBand"`

	// Prompt - запрос для генератора текста (письмо студенту и опекуну).
	Prompt string `json:"-"`
}

// GetStudentReportHandler обрабатывает запросы отчёта по студенту.
type GetStudentReportHandler struct {
	records  attendance.Repository
	students student.Repository
	builder  *report.PromptBuilder
	config   Config
}

// NewGetStudentReportHandler создаёт новый обработчик.
func NewGetStudentReportHandler(
	records attendance.Repository,
	students student.Repository,
	config Config,
) *GetStudentReportHandler {
	config = config.withDefaults()
	return &GetStudentReportHandler{
		records:  records,
		students: students,
		builder:  report.NewPromptBuilder(config.Thresholds),
		config:   config,
	}
}

// Handle выполняет запрос отчёта по студенту.
func (h *GetStudentReportHandler) Handle(ctx context.Context, q GetStudentReportQuery) (*GetStudentReportResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var period attendance.Period
	if !q.Period.IsZero() {
		p, err := resolvePeriod(q.Period, h.config)
		if err != nil {
			return nil, err
		}
		period = p
	}

	s, err := h.findStudent(ctx, q)
	if err != nil {
		return nil, err
	}

	records, err := load(ctx, h.config, func(ctx context.Context) ([]*attendance.Record, error) {
		return h.records.ListByStudent(ctx, s.ID)
	})
	if err != nil {
		return nil, storeFailure("GetStudentReport", "failed to load attendance", err)
	}

	result := &GetStudentReportResult{
		Student:  s,
		Subjects: make([]SubjectReportDTO, 0, len(records)),
	}
	lines := make([]report.SubjectLine, 0, len(records))

	for _, r := range records {
		if !period.IsZero() && (r.Month != period.Month || r.Year != period.Year) {
			continue
		}

		needed, err := attendance.HoursNeeded(r.AttendedHours, r.TotalHours, h.config.TargetFraction)
		if err != nil {
			return nil, err
		}
		pct, _ := r.Percentage()
		band := h.config.Thresholds.Classify(r.AttendedHours, r.TotalHours)

		result.Subjects = append(result.Subjects, SubjectReportDTO{
			Subject:             r.Subject,
			Month:               r.Month,
			Year:                r.Year,
			TotalHours:          r.TotalHours,
			AttendedHours:       r.AttendedHours,
			Percentage:          attendance.Round1(pct),
			Band:                band,
			HoursNeeded:         needed,
			ProjectedPercentage: attendance.Round1(attendance.ProjectedPercentage(r.AttendedHours, r.TotalHours, needed)),
		})
		lines = append(lines, report.SubjectLine{
			Subject:     r.Subject,
			Period:      attendance.Period{Month: r.Month, Year: r.Year},
			Attended:    r.AttendedHours,
			Total:       r.TotalHours,
			Percentage:  pct,
			Band:        band,
			HoursNeeded: needed,
		})

		result.TotalHours += r.TotalHours
		result.AttendedHours += r.AttendedHours
	}

	overall, _ := attendance.Percentage(result.AttendedHours, result.TotalHours)
	result.Overall = attendance.Round1(overall)
	result.OverallBand = h.config.Thresholds.Classify(result.AttendedHours, result.TotalHours)

	result.Prompt = h.builder.BuildStudentPrompt(report.StudentReportContext{
		Name:    s.Name,
		RollNo:  s.RollNo,
		Branch:  string(s.Branch),
		Batch:   string(s.Batch),
		Overall: overall,
		Lines:   lines,
	})

	return result, nil
}

// findStudent ищет студента по ID, иначе по номеру в журнале.
func (h *GetStudentReportHandler) findStudent(ctx context.Context, q GetStudentReportQuery) (*student.Student, error) {
	var (
		s   *student.Student
		err error
	)
	if id := strings.TrimSpace(q.StudentID); id != "" {
		s, err = h.students.GetByID(ctx, id)
	} else {
		s, err = h.students.GetByRollNo(ctx, strings.TrimSpace(q.RollNo))
	}
	if err != nil {
		return nil, storeFailure("GetStudentReport", "failed to find student", err)
	}
	return s, nil
}
