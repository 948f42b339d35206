package assessment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/theoremz/black/core"
	"github.com/theoremz/black/core/assessment"
	logsvc "github.com/theoremz/black/services/logger"
	inmemdb "github.com/theoremz/black/storage/database/inmem"
	"github.com/theoremz/black/testutil"
)

type recordedMetrics struct {
	mu       sync.Mutex
	outcomes []string // op:outcome
}

func (m *recordedMetrics) SyncOutcome(op, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, op+":"+outcome)
}

func (m *recordedMetrics) JobRun(string, string, int, int, time.Duration) {}

func (m *recordedMetrics) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.outcomes) == 0 {
		return ""
	}
	return m.outcomes[len(m.outcomes)-1]
}

// flakyRepository fails the best-effort steps on demand.
type flakyRepository struct {
	*inmemdb.AssessmentRepository
	failBrief bool
	failGrade bool
}

func (r *flakyRepository) RefreshBrief(ctx context.Context, studentID string, exec ...core.DBExecutor) error {
	if r.failBrief {
		return errors.New("brief view unavailable")
	}
	return r.AssessmentRepository.RefreshBrief(ctx, studentID, exec...)
}

func (r *flakyRepository) CreateGrade(ctx context.Context, g assessment.Grade, exec ...core.DBExecutor) (assessment.Grade, error) {
	if r.failGrade {
		return assessment.Grade{}, errors.New("grades table locked")
	}
	return r.AssessmentRepository.CreateGrade(ctx, g, exec...)
}

type fixture struct {
	stack   *testutil.Stack
	repo    *flakyRepository
	metrics *recordedMetrics
	svc     *assessment.Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	conf := testutil.NewConfig()
	logger := logsvc.NewNopLogger()
	stack := testutil.NewStack(conf, logger)

	f := &fixture{
		stack:   stack,
		repo:    &flakyRepository{AssessmentRepository: stack.Assessments},
		metrics: new(recordedMetrics),
	}
	f.svc = assessment.NewService(f.repo, stack.Directory, stack.DB, logger, f.metrics)
	return f
}

func (f *fixture) assessment(t *testing.T, id string) assessment.Assessment {
	t.Helper()
	a, err := f.stack.Assessments.GetAssessment(context.Background(), id)
	require.NoError(t, err)
	return a
}

func TestService_SyncAssessment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	stud := testutil.CreateStudent(t, f.stack.Students, "Giulia", "uid-1", 65)
	day := testutil.Date(t, "2024-03-01")

	id, err := f.svc.SyncAssessment(ctx, "uid-1", day, " Matematica ", "derivate\n")
	require.NoError(t, err)
	assert.Equal(t, "sync_assessment:ok", f.metrics.last())

	a := f.assessment(t, id)
	assert.Equal(t, stud.ID, a.StudentID)
	assert.Equal(t, "Matematica", a.Subject.String)
	assert.Equal(t, "derivate", a.Topics.String)
	assert.Equal(t, day, a.WhenAt)
	assert.Equal(t, 65, a.ReadinessSnapshot.Int, "snapshot taken from the student")
	assert.Equal(t, 1, f.stack.DB.BriefRefreshes(stud.ID))

	t.Run("Same day updates in place", func(t *testing.T) {
		again, err := f.svc.SyncAssessment(ctx, "uid-1", day, "Fisica", "")
		require.NoError(t, err)
		assert.Equal(t, id, again)
		assert.Len(t, f.stack.DB.Assessments(), 1)

		a := f.assessment(t, id)
		assert.Equal(t, "Fisica", a.Subject.String)
		assert.False(t, a.Topics.Valid)
	})

	t.Run("Result line survives new notes", func(t *testing.T) {
		_, err := f.svc.SyncGrade(ctx, assessment.GradeSync{
			Identity: assessment.Identity{UID: "uid-1"}, Date: day, Grade: 8,
		})
		require.NoError(t, err)

		_, err = f.svc.SyncAssessment(ctx, "uid-1", day, "Fisica", "moto rettilineo")
		require.NoError(t, err)
		assert.Equal(t, "moto rettilineo\nEsito verifica: 8/10", f.assessment(t, id).Topics.String)
	})

	t.Run("Not a Black student", func(t *testing.T) {
		_, err := f.svc.SyncAssessment(ctx, "uid-404", day, "", "")
		assert.ErrorIs(t, err, assessment.ErrNoStudent)
		assert.Equal(t, "sync_assessment:no_student", f.metrics.last())
	})

	t.Run("Brief refresh failures are ignored", func(t *testing.T) {
		f.repo.failBrief = true
		defer func() { f.repo.failBrief = false }()

		_, err := f.svc.SyncAssessment(ctx, "uid-1", testutil.Date(t, "2024-03-02"), "Chimica", "")
		assert.NoError(t, err)
	})
}

func TestService_SyncAssessment_concurrent(t *testing.T) {
	f := setup(t)
	testutil.CreateStudent(t, f.stack.Students, "Luca", "uid-2", 50)
	day := testutil.Date(t, "2024-04-10")

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := f.svc.SyncAssessment(context.Background(), "uid-2", day, "Storia", "")
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	assert.Len(t, f.stack.DB.Assessments(), 1)
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestService_SyncGrade(t *testing.T) {
	ctx := context.Background()

	t.Run("No assessment", func(t *testing.T) {
		f := setup(t)
		stud := testutil.CreateStudent(t, f.stack.Students, "A", "uid-a", 50)

		res, err := f.svc.SyncGrade(ctx, assessment.GradeSync{
			Identity: assessment.Identity{UID: "uid-a"}, Date: testutil.Date(t, "2024-01-10"), Subject: "Latino", Grade: 11,
		})
		require.NoError(t, err)
		assert.Equal(t, stud.ID, res.StudentID)
		assert.NotEmpty(t, res.GradeID)
		assert.Empty(t, res.AssessmentID)

		grades := f.stack.DB.Grades()
		require.Len(t, grades, 1)
		assert.Equal(t, 10.0, grades[0].Score)
		assert.Equal(t, assessment.DefaultMaxScore, grades[0].MaxScore)
		assert.False(t, grades[0].AssessmentID.Valid)
	})

	t.Run("Direct student id", func(t *testing.T) {
		f := setup(t)
		stud := testutil.CreateStudent(t, f.stack.Students, "B", "", 50)

		res, err := f.svc.SyncGrade(ctx, assessment.GradeSync{
			Identity: assessment.Identity{StudentID: stud.ID}, Date: testutil.Date(t, "2024-01-10"), Grade: 6,
		})
		require.NoError(t, err)
		assert.Equal(t, stud.ID, res.StudentID)
	})

	t.Run("Foreign hint falls back to the date", func(t *testing.T) {
		f := setup(t)
		testutil.CreateStudent(t, f.stack.Students, "C", "uid-c", 50)
		testutil.CreateStudent(t, f.stack.Students, "D", "uid-d", 50)
		day := testutil.Date(t, "2024-02-01")

		own, err := f.svc.SyncAssessment(ctx, "uid-c", day, "Inglese", "")
		require.NoError(t, err)
		foreign, err := f.svc.SyncAssessment(ctx, "uid-d", day, "Inglese", "")
		require.NoError(t, err)

		res, err := f.svc.SyncGrade(ctx, assessment.GradeSync{
			Identity: assessment.Identity{UID: "uid-c"}, Date: day, Grade: 7, AssessmentID: foreign,
		})
		require.NoError(t, err)
		assert.Equal(t, own, res.AssessmentID)
		assert.Equal(t, "Esito verifica: 7/10", f.assessment(t, own).Topics.String)
		assert.False(t, f.assessment(t, foreign).Topics.Valid)
	})

	t.Run("Subject breaks ties", func(t *testing.T) {
		f := setup(t)
		stud := testutil.CreateStudent(t, f.stack.Students, "E", "uid-e", 50)
		day := testutil.Date(t, "2024-02-05")

		for _, subject := range []string{"Matematica", "Fisica"} {
			_, err := f.stack.Assessments.CreateAssessment(ctx, assessment.Assessment{
				StudentID: stud.ID, WhenAt: day, Subject: null.StringFrom(subject),
				CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
			})
			require.NoError(t, err)
		}

		res, err := f.svc.SyncGrade(ctx, assessment.GradeSync{
			Identity: assessment.Identity{UID: "uid-e"}, Date: day, Grade: 9, ExamSubject: "fisica",
		})
		require.NoError(t, err)
		a := f.assessment(t, res.AssessmentID)
		assert.Equal(t, "Fisica", a.Subject.String)
		assert.Equal(t, "Esito fisica: 9/10", a.Topics.String)
	})

	t.Run("Ambiguous match takes the first", func(t *testing.T) {
		f := setup(t)
		stud := testutil.CreateStudent(t, f.stack.Students, "F", "uid-f", 50)
		day := testutil.Date(t, "2024-02-06")

		var first string
		for i, subject := range []string{"Matematica", "Fisica"} {
			a, err := f.stack.Assessments.CreateAssessment(ctx, assessment.Assessment{
				StudentID: stud.ID, WhenAt: day, Subject: null.StringFrom(subject),
				CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second), UpdatedAt: time.Now().UTC(),
			})
			require.NoError(t, err)
			if i == 0 {
				first = a.ID
			}
		}

		res, err := f.svc.SyncGrade(ctx, assessment.GradeSync{
			Identity: assessment.Identity{UID: "uid-f"}, Date: day, Grade: 5, Subject: "Chimica",
		})
		require.NoError(t, err)
		assert.Equal(t, first, res.AssessmentID)
	})

	t.Run("Failed grade insert is not fatal", func(t *testing.T) {
		f := setup(t)
		testutil.CreateStudent(t, f.stack.Students, "G", "uid-g", 50)
		day := testutil.Date(t, "2024-02-07")
		id, err := f.svc.SyncAssessment(ctx, "uid-g", day, "Arte", "")
		require.NoError(t, err)

		f.repo.failGrade = true
		res, err := f.svc.SyncGrade(ctx, assessment.GradeSync{Identity: assessment.Identity{UID: "uid-g"}, Date: day, Grade: 7})
		require.NoError(t, err)
		assert.Empty(t, res.GradeID)
		assert.Equal(t, id, res.AssessmentID)
		assert.Equal(t, "Esito verifica: 7/10", f.assessment(t, id).Topics.String)
		assert.Equal(t, "sync_grade:degraded", f.metrics.last())
	})

	t.Run("Regrade with a failing brief refresh", func(t *testing.T) {
		f := setup(t)
		stud := testutil.CreateStudent(t, f.stack.Students, "I", "uid-i", 50)
		day := testutil.Date(t, "2024-02-08")
		a, err := f.stack.Assessments.CreateAssessment(ctx, assessment.Assessment{
			StudentID: stud.ID, WhenAt: day, Subject: null.StringFrom("Matematica"),
			Topics: null.StringFrom("derivate\nEsito matematica: 6/10"),
			CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
		})
		require.NoError(t, err)

		f.repo.failBrief = true
		res, err := f.svc.SyncGrade(ctx, assessment.GradeSync{
			Identity: assessment.Identity{UID: "uid-i"}, Date: day, Subject: "matematica", Grade: 8,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, res.GradeID)
		assert.Equal(t, a.ID, res.AssessmentID)
		assert.Equal(t, "derivate\nEsito matematica: 8/10", f.assessment(t, a.ID).Topics.String)
		assert.Len(t, f.stack.DB.Grades(), 1)
		assert.Equal(t, 0, f.stack.DB.BriefRefreshes(stud.ID))
	})

	t.Run("Not a Black student", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.SyncGrade(ctx, assessment.GradeSync{Identity: assessment.Identity{UID: "nobody"}, Grade: 7})
		assert.ErrorIs(t, err, assessment.ErrNoStudent)
		assert.Empty(t, f.stack.DB.Grades())
	})
}

func TestService_DeleteAssessment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.CreateStudent(t, f.stack.Students, "H", "uid-h", 50)
	day1 := testutil.Date(t, "2024-05-01")
	day2 := testutil.Date(t, "2024-05-02")

	id1, err := f.svc.SyncAssessment(ctx, "uid-h", day1, "", "")
	require.NoError(t, err)
	_, err = f.svc.SyncAssessment(ctx, "uid-h", day2, "", "")
	require.NoError(t, err)
	_, err = f.svc.SyncGrade(ctx, assessment.GradeSync{Identity: assessment.Identity{UID: "uid-h"}, Date: day1, Grade: 6})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteAssessment(ctx, "uid-h", assessment.ExamLink{AssessmentID: id1}))
	require.Len(t, f.stack.DB.Assessments(), 1)
	grades := f.stack.DB.Grades()
	require.Len(t, grades, 1)
	assert.False(t, grades[0].AssessmentID.Valid, "grades outlive their assessment")

	require.NoError(t, f.svc.DeleteAssessment(ctx, "uid-h", assessment.ExamLink{Date: day2}))
	assert.Empty(t, f.stack.DB.Assessments())

	assert.NoError(t, f.svc.DeleteAssessment(ctx, "uid-h", assessment.ExamLink{}), "nothing to delete")
	assert.ErrorIs(t, f.svc.DeleteAssessment(ctx, "nobody", assessment.ExamLink{Date: day1}), assessment.ErrNoStudent)
}
