package exam_test

import (
	"context"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremz/black/core"
	"github.com/theoremz/black/core/assessment"
	"github.com/theoremz/black/core/exam"
	logsvc "github.com/theoremz/black/services/logger"
	inmemdb "github.com/theoremz/black/storage/database/inmem"
)

// fakeSyncer records calls and answers with canned values.
type fakeSyncer struct {
	assessmentID string
	err          error

	synced  []string // dates
	deleted []assessment.ExamLink
	grades  []assessment.GradeSync
}

func (s *fakeSyncer) SyncAssessment(_ context.Context, _ string, date civil.Date, _, _ string) (string, error) {
	s.synced = append(s.synced, date.String())
	return s.assessmentID, s.err
}

func (s *fakeSyncer) DeleteAssessment(_ context.Context, _ string, link assessment.ExamLink) error {
	s.deleted = append(s.deleted, link)
	return s.err
}

func (s *fakeSyncer) SyncGrade(_ context.Context, gs assessment.GradeSync) (assessment.GradeSyncResult, error) {
	s.grades = append(s.grades, gs)
	return assessment.GradeSyncResult{}, s.err
}

func setup() (*inmemdb.ExamRepository, *fakeSyncer, *exam.Service) {
	db := inmemdb.Open()
	repo := inmemdb.NewExamRepository(db)
	syncer := &fakeSyncer{assessmentID: "a-1"}
	return repo, syncer, exam.NewService(repo, db, syncer, logsvc.NewNopLogger())
}

func TestService_SaveExam(t *testing.T) {
	repo, syncer, svc := setup()
	ctx := context.Background()

	ex, err := svc.SaveExam(ctx, "u1", exam.NewExam{Date: "2024-03-01", Subject: "Matematica"})
	require.NoError(t, err)
	assert.Equal(t, "a-1", ex.AssessmentID.String)
	stored, err := repo.GetExam(ctx, "u1", ex.ID)
	require.NoError(t, err)
	assert.Equal(t, "a-1", stored.AssessmentID.String)

	t.Run("Same day edit keeps the link", func(t *testing.T) {
		_, err := svc.SaveExam(ctx, "u1", exam.NewExam{ID: ex.ID, Date: "2024-03-01", Notes: "limiti"})
		require.NoError(t, err)
		assert.Empty(t, syncer.deleted)
	})

	t.Run("Moving the exam drops the old assessment", func(t *testing.T) {
		syncer.assessmentID = "a-2"
		moved, err := svc.SaveExam(ctx, "u1", exam.NewExam{ID: ex.ID, Date: "2024-03-05"})
		require.NoError(t, err)
		require.Len(t, syncer.deleted, 1)
		assert.Equal(t, "a-1", syncer.deleted[0].AssessmentID)
		assert.Equal(t, "2024-03-01", syncer.deleted[0].Date.String())
		assert.Equal(t, "a-2", moved.AssessmentID.String)
	})

	t.Run("Someone else's exam", func(t *testing.T) {
		_, err := svc.SaveExam(ctx, "u2", exam.NewExam{ID: ex.ID, Date: "2024-03-05"})
		assert.ErrorIs(t, err, exam.ErrNotFound)
	})

	t.Run("Sync failures are not the caller's problem", func(t *testing.T) {
		syncer.err = errors.New("db down")
		defer func() { syncer.err = nil }()

		ex, err := svc.SaveExam(ctx, "u1", exam.NewExam{Date: "2024-04-01"})
		require.NoError(t, err)
		assert.False(t, ex.AssessmentID.Valid)
	})

	t.Run("Missing date", func(t *testing.T) {
		_, err := svc.SaveExam(ctx, "u1", exam.NewExam{})
		assert.Equal(t, exam.ErrMissingDate, err)
	})
}

func TestService_DeleteExam(t *testing.T) {
	repo, syncer, svc := setup()
	ctx := context.Background()

	ex, err := svc.SaveExam(ctx, "u1", exam.NewExam{Date: "2024-03-01"})
	require.NoError(t, err)
	_, err = svc.GradeExam(ctx, "u1", ex.ID, exam.ExamGrade{Grade: exam.ScoreFrom(6)})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteExam(ctx, "u2", ex.ID), exam.ErrNotFound)
	require.NoError(t, svc.DeleteExam(ctx, "u1", ex.ID))
	require.Len(t, syncer.deleted, 1)
	assert.Equal(t, assessment.ExamLink{AssessmentID: "a-1", Date: ex.Date}, syncer.deleted[0])

	grades, err := repo.QueryGrades(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, grades, 1, "the grade stays")
	assert.False(t, grades[0].ExamID.Valid)
}

func TestService_GradeExam(t *testing.T) {
	repo, syncer, svc := setup()
	ctx := context.Background()

	past, err := svc.SaveExam(ctx, "u1", exam.NewExam{Date: "2024-03-01", Subject: "Fisica"})
	require.NoError(t, err)
	future, err := svc.SaveExam(ctx, "u1", exam.NewExam{Date: core.Today().AddDays(1).String()})
	require.NoError(t, err)
	today, err := svc.SaveExam(ctx, "u1", exam.NewExam{Date: core.Today().String()})
	require.NoError(t, err)

	t.Run("Future exam", func(t *testing.T) {
		_, err := svc.GradeExam(ctx, "u1", future.ID, exam.ExamGrade{Grade: exam.ScoreFrom(8)})
		assert.Equal(t, exam.ErrFutureExam, err)

		grades, err := repo.QueryGrades(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, grades, "nothing written")
		assert.Empty(t, syncer.grades)
	})

	t.Run("Today is gradable", func(t *testing.T) {
		_, err := svc.GradeExam(ctx, "u1", today.ID, exam.ExamGrade{Grade: exam.ScoreFrom(5)})
		assert.NoError(t, err)
	})

	t.Run("Invalid grade", func(t *testing.T) {
		_, err := svc.GradeExam(ctx, "u1", past.ID, exam.ExamGrade{})
		assert.Equal(t, exam.ErrInvalidGrade, err)
	})

	t.Run("Clamped and synced", func(t *testing.T) {
		syncer.grades = nil
		ex, err := svc.GradeExam(ctx, "u1", past.ID, exam.ExamGrade{Grade: exam.ScoreFrom(10.96), Subject: "Fisica II"})
		require.NoError(t, err)
		assert.Equal(t, 10.0, ex.Grade.Float64)
		assert.Equal(t, "Fisica II", ex.GradeSubject.String)

		require.Len(t, syncer.grades, 1)
		gs := syncer.grades[0]
		assert.Equal(t, "u1", gs.Identity.UID)
		assert.Equal(t, 10.0, gs.Grade)
		assert.Equal(t, "a-1", gs.AssessmentID)
		assert.Equal(t, "Fisica", gs.ExamSubject)
		assert.Equal(t, "Fisica II", gs.Subject)
	})

	t.Run("Regrading replaces the grade", func(t *testing.T) {
		_, err := svc.GradeExam(ctx, "u1", past.ID, exam.ExamGrade{Grade: exam.ScoreFrom(4)})
		require.NoError(t, err)

		var forPast int
		grades, err := repo.QueryGrades(ctx, "u1")
		require.NoError(t, err)
		for _, g := range grades {
			if g.ExamID.String == past.ID {
				forPast++
				assert.Equal(t, 4.0, g.Grade)
				assert.Equal(t, "Fisica", g.Subject.String, "exam subject when none given")
			}
		}
		assert.Equal(t, 1, forPast)
	})

	t.Run("Students outside Black", func(t *testing.T) {
		syncer.err = assessment.ErrNoStudent
		defer func() { syncer.err = nil }()

		_, err := svc.GradeExam(ctx, "u1", past.ID, exam.ExamGrade{Grade: exam.ScoreFrom(7)})
		assert.NoError(t, err)
	})
}

func TestService_AddGrade(t *testing.T) {
	repo, syncer, svc := setup()
	ctx := context.Background()

	ex, err := svc.SaveExam(ctx, "u1", exam.NewExam{Date: "2024-06-03", Subject: "Chimica"})
	require.NoError(t, err)

	g, err := svc.AddGrade(ctx, "u1", exam.NewGrade{Date: "2024-06-03", Subject: "Chimica", Grade: exam.ScoreFrom(-1)})
	require.NoError(t, err)
	assert.Equal(t, ex.ID, g.ExamID.String)
	assert.Equal(t, 0.0, g.Grade)

	graded, err := repo.GetExam(ctx, "u1", ex.ID)
	require.NoError(t, err)
	assert.True(t, graded.IsGraded())

	require.Len(t, syncer.grades, 1)
	assert.Equal(t, "a-1", syncer.grades[0].AssessmentID)

	t.Run("Graded exams are not reused", func(t *testing.T) {
		g, err := svc.AddGrade(ctx, "u1", exam.NewGrade{Date: "2024-06-03", Grade: exam.ScoreFrom(9)})
		require.NoError(t, err)
		assert.False(t, g.ExamID.Valid)
		assert.Empty(t, syncer.grades[len(syncer.grades)-1].AssessmentID)
	})

	t.Run("Invalid input", func(t *testing.T) {
		_, err := svc.AddGrade(ctx, "u1", exam.NewGrade{Grade: exam.ScoreFrom(9)})
		assert.Equal(t, exam.ErrMissingDate, err)
		_, err = svc.AddGrade(ctx, "u1", exam.NewGrade{Date: "2024-06-03"})
		assert.Equal(t, exam.ErrInvalidGrade, err)
	})
}

func TestService_list(t *testing.T) {
	_, _, svc := setup()
	ctx := context.Background()

	for _, d := range []string{"2024-01-05", "2024-03-05", "2024-02-05"} {
		_, err := svc.SaveExam(ctx, "u1", exam.NewExam{Date: d})
		require.NoError(t, err)
	}
	exams, err := svc.ListExams(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, exams, 3)
	assert.Equal(t, "2024-03-05", exams[0].Date.String())
	assert.Equal(t, "2024-01-05", exams[2].Date.String())

	exams, err = svc.ListExams(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, exams)
}
