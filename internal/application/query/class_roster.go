package query

import (
	"context"
	"strings"

	"github.com/smartattd/smartattd/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CLASS ROSTER QUERY
// Список студентов группы по номеру в журнале. Пустые фильтры = все студенты.
// ══════════════════════════════════════════════════════════════════════════════

// GetClassRosterQuery содержит необязательные фильтры группы.
type GetClassRosterQuery struct {
	Branch string
	Batch  string
}

// StudentDTO - строка списка группы.
type StudentDTO struct {
	ID            string `json:"id"`
	RollNo        string `json:"rollNo"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	Branch        string `json:"branch"`
	Batch         string `json:"batch"`
	GuardianName  string `json:"guardianName,omitempty"`
	GuardianEmail string `json:"guardianEmail,omitempty"`
	GuardianPhone string `json:"guardianPhone,omitempty"`
}

// GetClassRosterResult содержит студентов, упорядоченных по номеру.
type GetClassRosterResult struct {
	Students []StudentDTO `json:"students"`
}

// GetClassRosterHandler обрабатывает запросы списка группы.
type GetClassRosterHandler struct {
	students student.Repository
	config   Config
}

// NewGetClassRosterHandler создаёт новый обработчик.
func NewGetClassRosterHandler(students student.Repository, config Config) *GetClassRosterHandler {
	return &GetClassRosterHandler{
		students: students,
		config:   config.withDefaults(),
	}
}

// Handle выполняет запрос списка группы.
func (h *GetClassRosterHandler) Handle(ctx context.Context, q GetClassRosterQuery) (*GetClassRosterResult, error) {
	branch := student.ParseBranch(q.Branch).String()
	batch := strings.TrimSpace(q.Batch)

	students, err := load(ctx, h.config, func(ctx context.Context) ([]*student.Student, error) {
		return h.students.ListByClass(ctx, branch, batch)
	})
	if err != nil {
		return nil, storeFailure("GetClassRoster", "failed to list students", err)
	}

	out := make([]StudentDTO, 0, len(students))
	for _, s := range students {
		out = append(out, StudentDTO{
			ID:            s.ID,
			RollNo:        s.RollNo,
			Name:          s.Name,
			Email:         s.Email,
			Phone:         s.Phone,
			Branch:        s.Branch.String(),
			Batch:         s.Batch.String(),
			GuardianName:  s.GuardianName,
			GuardianEmail: s.GuardianEmail,
			GuardianPhone: s.GuardianPhone,
		})
	}

	return &GetClassRosterResult{Students: out}, nil
}
