package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/smartattd/smartattd/internal/domain/shared"
	"github.com/smartattd/smartattd/internal/domain/student"
)

// StudentStore implements student.Repository and StudentLookup.
type StudentStore struct {
	mu       sync.RWMutex
	byID     map[string]*student.Student
	byRollNo map[string]string
}

// NewStudentStore creates an empty store.
func NewStudentStore() *StudentStore {
	return &StudentStore{
		byID:     make(map[string]*student.Student),
		byRollNo: make(map[string]string),
	}
}

// Create stores a copy of the student.
func (s *StudentStore) Create(ctx context.Context, st *student.Student) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[st.ID]; ok {
		return shared.ErrStudentAlreadyExists
	}
	if _, ok := s.byRollNo[st.RollNo]; ok {
		return shared.ErrStudentAlreadyExists
	}

	s.byID[st.ID] = st.Clone()
	s.byRollNo[st.RollNo] = st.ID
	return nil
}

// GetByID returns a copy of the student.
func (s *StudentStore) GetByID(ctx context.Context, id string) (*student.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.byID[id]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	return st.Clone(), nil
}

// GetByRollNo returns a copy of the student with the roll number.
func (s *StudentStore) GetByRollNo(ctx context.Context, rollNo string) (*student.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byRollNo[rollNo]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	return s.byID[id].Clone(), nil
}

// ListByClass returns copies of the class members ordered by roll number.
func (s *StudentStore) ListByClass(ctx context.Context, branch, batch string) ([]*student.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*student.Student
	for _, st := range s.byID {
		if st.InClass(branch, batch) {
			out = append(out, st.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RollNo < out[j].RollNo })
	return out, nil
}

// CountByClass returns the number of class members.
func (s *StudentStore) CountByClass(ctx context.Context, branch, batch string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, st := range s.byID {
		if st.InClass(branch, batch) {
			n++
		}
	}
	return n, nil
}

// ClassOf implements StudentLookup.
func (s *StudentStore) ClassOf(studentID string) (string, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.byID[studentID]
	if !ok {
		return "", "", false
	}
	return string(st.Branch), string(st.Batch), true
}
