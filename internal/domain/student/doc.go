// Package student содержит доменную модель студента колледжа.
//
// Пакет определяет:
//
//   - Сущность Student и её конструктор NewStudent
//   - Value Objects: Branch, Batch
//   - Интерфейс репозитория Repository
//
// Записи посещаемости ссылаются на студента только по ID; направление и
// поток используются аналитикой как фильтры:
//
//	s, err := NewStudent(NewStudentParams{
//	    ID:     uuid.NewString(),
//	    RollNo: "24CSE101",
//	    Name:   "Student 1",
//	    Email:  "student1@college.edu",
//	    Branch: Branch("CSE"),
//	    Batch:  Batch("2024-2028"),
//	})
//
// Поток можно вычислить по курсу обучения:
//
//	batch, _ := BatchForYear(2, 2024) // "2023-2027"
package student
