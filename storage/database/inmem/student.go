package inmemdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/theoremz/black/core"
	"github.com/theoremz/black/core/student"
)

type StudentRepository struct {
	db *DB
}

var _ student.Repository = (*StudentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (repo *StudentRepository) CreateStudent(_ context.Context, s student.Student, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if s.UID.Valid {
		for _, other := range repo.db.students {
			if other.UID.Valid && other.UID.String == s.UID.String {
				return student.Student{}, student.ErrUIDTaken
			}
		}
	}
	now := core.NowFunc().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}
	s.ID = uuid.New().String()
	s.Readiness = student.ClampReadiness(s.Readiness)
	repo.db.students = append(repo.db.students, s)
	return s, nil
}

func (repo *StudentRepository) GetStudent(_ context.Context, id string, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, s := range repo.db.students {
		if s.ID == id {
			return s, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *StudentRepository) GetStudentByUID(_ context.Context, uid string, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, s := range repo.db.students {
		if s.UID.Valid && s.UID.String == uid {
			return s, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *StudentRepository) ListReadiness(_ context.Context, _ ...core.DBExecutor) ([]student.Readiness, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	out := make([]student.Readiness, 0, len(repo.db.students))
	for _, s := range repo.db.students {
		out = append(out, student.Readiness{StudentID: s.ID, Value: s.Readiness})
	}
	return out, nil
}

func (repo *StudentRepository) SetReadiness(_ context.Context, batch []student.Readiness, at time.Time, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	values := make(map[string]int, len(batch))
	for _, r := range batch {
		values[r.StudentID] = student.ClampReadiness(r.Value)
	}
	var n int
	for i := range repo.db.students {
		s := &repo.db.students[i]
		if v, ok := values[s.ID]; ok {
			s.Readiness = v
			s.ReadinessUpdatedAt = null.TimeFrom(at.UTC())
			s.UpdatedAt = at.UTC()
			n++
		}
	}
	return n, nil
}
