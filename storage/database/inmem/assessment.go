package inmemdb

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/theoremz/black/core"
	"github.com/theoremz/black/core/assessment"
)

type AssessmentRepository struct {
	db *DB
}

var _ assessment.Repository = (*AssessmentRepository)(nil) // interface compliance check

func NewAssessmentRepository(db *DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

func (repo *AssessmentRepository) GetAssessment(_ context.Context, id string, _ ...core.DBExecutor) (assessment.Assessment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, a := range repo.db.assessments {
		if a.ID == id {
			return a, nil
		}
	}
	return assessment.Assessment{}, assessment.ErrNotFound
}

func (repo *AssessmentRepository) QueryAssessmentsOn(_ context.Context, studentID string, date civil.Date, _ ...core.DBExecutor) ([]assessment.Assessment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var out []assessment.Assessment
	for _, a := range repo.db.assessments {
		if a.StudentID == studentID && a.WhenAt == date {
			out = append(out, a)
		}
	}
	storeOrder(out,
		func(a assessment.Assessment) time.Time { return a.CreatedAt },
		func(a assessment.Assessment) string { return a.ID },
	)
	return out, nil
}

func (repo *AssessmentRepository) CreateAssessment(_ context.Context, a assessment.Assessment, _ ...core.DBExecutor) (assessment.Assessment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if !a.ReadinessSnapshot.Valid {
		for _, s := range repo.db.students {
			if s.ID == a.StudentID {
				a.ReadinessSnapshot = null.IntFrom(s.Readiness)
				break
			}
		}
	}
	now := core.NowFunc().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}
	a.ID = uuid.New().String()
	repo.db.assessments = append(repo.db.assessments, a)
	return a, nil
}

func (repo *AssessmentRepository) UpdateAssessment(_ context.Context, a assessment.Assessment, _ ...core.DBExecutor) (assessment.Assessment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i := range repo.db.assessments {
		orig := &repo.db.assessments[i]
		if orig.ID == a.ID {
			orig.Subject = a.Subject
			orig.Topics = a.Topics
			orig.WhenAt = a.WhenAt
			orig.UpdatedAt = a.UpdatedAt
			return *orig, nil
		}
	}
	return assessment.Assessment{}, assessment.ErrNotFound
}

func (repo *AssessmentRepository) DeleteAssessment(_ context.Context, studentID, id string, _ ...core.DBExecutor) (int, error) {
	return repo.deleteWhere(func(a assessment.Assessment) bool {
		return a.ID == id && a.StudentID == studentID
	}), nil
}

func (repo *AssessmentRepository) DeleteAssessmentsOn(_ context.Context, studentID string, date civil.Date, _ ...core.DBExecutor) (int, error) {
	return repo.deleteWhere(func(a assessment.Assessment) bool {
		return a.StudentID == studentID && a.WhenAt == date
	}), nil
}

// deleteWhere unlinks grades and exams of deleted assessments, like the FKs do.
func (repo *AssessmentRepository) deleteWhere(match func(assessment.Assessment) bool) int {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	deleted := make(map[string]bool)
	kept := repo.db.assessments[:0:0]
	for _, a := range repo.db.assessments {
		if match(a) {
			deleted[a.ID] = true
			continue
		}
		kept = append(kept, a)
	}
	repo.db.assessments = kept

	for i := range repo.db.grades {
		if g := &repo.db.grades[i]; deleted[g.AssessmentID.String] {
			g.AssessmentID = null.String{}
		}
	}
	for i := range repo.db.exams {
		if e := &repo.db.exams[i]; deleted[e.AssessmentID.String] {
			e.AssessmentID = null.String{}
		}
	}
	return len(deleted)
}

// LockStudentDay is a no-op: RunInTx already serializes transactions.
func (repo *AssessmentRepository) LockStudentDay(context.Context, string, civil.Date, ...core.DBExecutor) error {
	return nil
}

func (repo *AssessmentRepository) CreateGrade(_ context.Context, g assessment.Grade, _ ...core.DBExecutor) (assessment.Grade, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if g.CreatedAt.IsZero() {
		g.CreatedAt = core.NowFunc().UTC()
	}
	g.ID = uuid.New().String()
	repo.db.grades = append(repo.db.grades, g)
	return g, nil
}

func (repo *AssessmentRepository) RefreshBrief(_ context.Context, studentID string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.briefs[studentID]++
	return nil
}
