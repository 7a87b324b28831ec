package student

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции со студентами, нужные аналитике.
type Repository interface {
	// Create создаёт нового студента.
	// Возвращает ErrStudentAlreadyExists, если ID или RollNo заняты.
	Create(ctx context.Context, student *Student) error

	// GetByID возвращает студента по внутреннему ID.
	// Возвращает ErrStudentNotFound, если студент не найден.
	GetByID(ctx context.Context, id string) (*Student, error)

	// GetByRollNo возвращает студента по номеру в журнале.
	// Возвращает ErrStudentNotFound, если студент не найден.
	GetByRollNo(ctx context.Context, rollNo string) (*Student, error)

	// ListByClass возвращает студентов группы.
	// Пустые branch/batch не фильтруют.
	ListByClass(ctx context.Context, branch, batch string) ([]*Student, error)

	// CountByClass возвращает численность группы.
	CountByClass(ctx context.Context, branch, batch string) (int, error)
}
