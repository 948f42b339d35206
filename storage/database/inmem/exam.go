package inmemdb

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/theoremz/black/core"
	"github.com/theoremz/black/core/exam"
)

var errDuplicateExamGrade = errors.New("exam already has a grade")

type ExamRepository struct {
	db *DB
}

var _ exam.Repository = (*ExamRepository)(nil) // interface compliance check

func NewExamRepository(db *DB) *ExamRepository {
	return &ExamRepository{db: db}
}

func examCreatedAt(e exam.Exam) time.Time   { return e.CreatedAt }
func examDate(e exam.Exam) string           { return e.Date.String() }
func examID(e exam.Exam) string             { return e.ID }
func gradeCreatedAt(g exam.Grade) time.Time { return g.CreatedAt }
func gradeDate(g exam.Grade) string         { return g.Date.String() }

func (repo *ExamRepository) CreateExam(_ context.Context, e exam.Exam, _ ...core.DBExecutor) (exam.Exam, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	e.ID = uuid.New().String()
	repo.db.exams = append(repo.db.exams, e)
	return e, nil
}

func (repo *ExamRepository) UpdateExam(_ context.Context, e exam.Exam, _ ...core.DBExecutor) (exam.Exam, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i := range repo.db.exams {
		orig := &repo.db.exams[i]
		if orig.ID == e.ID && orig.UserID == e.UserID {
			e.CreatedAt = orig.CreatedAt
			*orig = e
			return e, nil
		}
	}
	return exam.Exam{}, exam.ErrNotFound
}

func (repo *ExamRepository) GetExam(_ context.Context, userID, id string, _ ...core.DBExecutor) (exam.Exam, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, e := range repo.db.exams {
		if e.ID == id && e.UserID == userID {
			return e, nil
		}
	}
	return exam.Exam{}, exam.ErrNotFound
}

func (repo *ExamRepository) QueryExams(_ context.Context, userID string, _ ...core.DBExecutor) ([]exam.Exam, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	out := make([]exam.Exam, 0)
	for _, e := range repo.db.exams {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	newestFirst(out, examDate, examCreatedAt)
	return out, nil
}

func (repo *ExamRepository) QueryExamsOn(_ context.Context, userID string, date civil.Date, _ ...core.DBExecutor) ([]exam.Exam, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var out []exam.Exam
	for _, e := range repo.db.exams {
		if e.UserID == userID && e.Date == date {
			out = append(out, e)
		}
	}
	storeOrder(out, examCreatedAt, examID)
	return out, nil
}

// DeleteExam unlinks the exam's grades, like the FK does.
func (repo *ExamRepository) DeleteExam(_ context.Context, userID, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i, e := range repo.db.exams {
		if e.ID == id && e.UserID == userID {
			repo.db.exams = append(repo.db.exams[:i:i], repo.db.exams[i+1:]...)
			for j := range repo.db.examGrades {
				if g := &repo.db.examGrades[j]; g.ExamID.Valid && g.ExamID.String == id {
					g.ExamID = null.String{}
				}
			}
			return nil
		}
	}
	return exam.ErrNotFound
}

func (repo *ExamRepository) UpsertExamGrade(_ context.Context, g exam.Grade, _ ...core.DBExecutor) (exam.Grade, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i := range repo.db.examGrades {
		orig := &repo.db.examGrades[i]
		if orig.ExamID.Valid && orig.ExamID == g.ExamID {
			orig.Date = g.Date
			orig.Subject = g.Subject
			orig.Grade = g.Grade
			orig.UpdatedAt = g.UpdatedAt
			return *orig, nil
		}
	}
	g.ID = uuid.New().String()
	repo.db.examGrades = append(repo.db.examGrades, g)
	return g, nil
}

func (repo *ExamRepository) CreateGrade(_ context.Context, g exam.Grade, _ ...core.DBExecutor) (exam.Grade, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if g.ExamID.Valid {
		for _, other := range repo.db.examGrades {
			if other.ExamID == g.ExamID {
				return exam.Grade{}, errDuplicateExamGrade
			}
		}
	}
	g.ID = uuid.New().String()
	repo.db.examGrades = append(repo.db.examGrades, g)
	return g, nil
}

func (repo *ExamRepository) QueryGrades(_ context.Context, userID string, _ ...core.DBExecutor) ([]exam.Grade, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	out := make([]exam.Grade, 0)
	for _, g := range repo.db.examGrades {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	newestFirst(out, gradeDate, gradeCreatedAt)
	return out, nil
}
