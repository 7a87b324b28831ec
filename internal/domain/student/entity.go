// Package student содержит доменную модель студента колледжа.
// Студент здесь нужен только как источник фильтров (branch, batch) и
// численности группы для аналитики посещаемости.
package student

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/smartattd/smartattd/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Branch - направление обучения (например, "CSE", "ECE").
// Хранится в верхнем регистре.
type Branch string

// ParseBranch приводит направление к каноническому виду: без пробелов
// по краям и в верхнем регистре. Через него проходят и запись студента,
// и фильтры запросов.
func ParseBranch(s string) Branch {
	return Branch(strings.ToUpper(strings.TrimSpace(s)))
}

// IsValid проверяет, что направление не пустое и без пробелов.
func (b Branch) IsValid() bool {
	s := string(b)
	return len(s) >= 2 && len(s) <= 20 && !strings.ContainsAny(s, " \t\n\r")
}

// String возвращает строковое представление направления.
func (b Branch) String() string {
	return string(b)
}

// Batch - поток студентов в формате "2024-2028".
type Batch string

// IsValid проверяет формат "YYYY-YYYY", где второй год больше первого.
func (b Batch) IsValid() bool {
	start, end, ok := b.Years()
	return ok && end > start
}

// Years разбирает поток на год поступления и год выпуска.
func (b Batch) Years() (start, end int, ok bool) {
	parts := strings.Split(string(b), "-")
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	end, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return start, end, true
}

// String возвращает строковое представление потока.
func (b Batch) String() string {
	return string(b)
}

// ProgramLength - длительность программы бакалавриата в годах.
const ProgramLength = 4

// BatchForYear вычисляет поток по курсу обучения.
// referenceIntake - год последнего набора (для него курс = 1).
// Например, при referenceIntake=2024: 1 -> "2024-2028", 4 -> "2021-2025".
func BatchForYear(yearOfStudy, referenceIntake int) (Batch, error) {
	if yearOfStudy < 1 || yearOfStudy > ProgramLength {
		return "", shared.WrapError("student", "BatchForYear", shared.ErrValidation,
			fmt.Sprintf("year of study must be 1-%d", ProgramLength), nil)
	}
	intake := referenceIntake - (yearOfStudy - 1)
	return Batch(fmt.Sprintf("%d-%d", intake, intake+ProgramLength)), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student - студент колледжа, на которого ссылаются записи посещаемости.
type Student struct {
	// ID - внутренний уникальный идентификатор (UUID в строковом формате).
	ID string `json:"id"`

	// RollNo - номер в журнале, уникален (например, "24CSE101").
	RollNo string `json:"rollNo"`

	// Name - полное имя.
	Name string `json:"name"`

	// Email - адрес для отчётов.
	Email string `json:"email"`

	// Phone - телефон (необязательно).
	Phone string `json:"phone,omitempty"`

	// Branch - направление.
	Branch Branch `json:"branch"`

	// Batch - поток.
	Batch Batch `json:"batch"`

	// Guardian - контакты родителя или опекуна.
	GuardianName  string `json:"guardianName,omitempty"`
	GuardianEmail string `json:"guardianEmail,omitempty"`
	GuardianPhone string `json:"guardianPhone,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewStudentParams содержит параметры для создания нового студента.
type NewStudentParams struct {
	ID            string
	RollNo        string
	Name          string
	Email         string
	Phone         string
	Branch        Branch
	Batch         Batch
	GuardianName  string
	GuardianEmail string
	GuardianPhone string
}

// NewStudent создаёт нового студента с валидацией всех полей.
func NewStudent(params NewStudentParams) (*Student, error) {
	if params.ID == "" {
		return nil, invalid("student id is required")
	}

	rollNo := strings.TrimSpace(params.RollNo)
	if rollNo == "" {
		return nil, invalid("roll number is required")
	}

	name := strings.TrimSpace(params.Name)
	if len(name) == 0 || len(name) > 100 {
		return nil, invalid("name must be 1-100 chars")
	}

	if _, err := mail.ParseAddress(params.Email); err != nil {
		return nil, invalid("invalid email")
	}

	branch := ParseBranch(string(params.Branch))
	if !branch.IsValid() {
		return nil, invalid("invalid branch")
	}

	batch := Batch(strings.TrimSpace(string(params.Batch)))
	if !batch.IsValid() {
		return nil, invalid("invalid batch: expected YYYY-YYYY")
	}

	if params.GuardianEmail != "" {
		if _, err := mail.ParseAddress(params.GuardianEmail); err != nil {
			return nil, invalid("invalid guardian email")
		}
	}

	now := time.Now().UTC()

	return &Student{
		ID:            params.ID,
		RollNo:        rollNo,
		Name:          name,
		Email:         params.Email,
		Phone:         params.Phone,
		Branch:        branch,
		Batch:         batch,
		GuardianName:  params.GuardianName,
		GuardianEmail: params.GuardianEmail,
		GuardianPhone: params.GuardianPhone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func invalid(msg string) error {
	return shared.WrapError("student", "Validate", shared.ErrValidation, msg, nil)
}

// InClass проверяет принадлежность студента группе.
// Пустые branch/batch означают "любой".
func (s *Student) InClass(branch, batch string) bool {
	if branch != "" && s.Branch != ParseBranch(branch) {
		return false
	}
	if batch != "" && string(s.Batch) != batch {
		return false
	}
	return true
}

// String возвращает строковое представление студента для логирования.
func (s *Student) String() string {
	return fmt.Sprintf("Student{ID: %s, RollNo: %s, Branch: %s, Batch: %s}",
		s.ID, s.RollNo, s.Branch, s.Batch)
}

// Clone создаёт копию студента.
func (s *Student) Clone() *Student {
	if s == nil {
		return nil
	}

	clone := *s
	return &clone
}
