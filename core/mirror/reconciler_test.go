package mirror

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/theoremz/black/core"
	logsvc "github.com/theoremz/black/services/logger"
)

type fakeSource struct {
	assessments []AssessmentRecord
	grades      []GradeRecord
	err         error
}

func (s fakeSource) MirrorAssessments(context.Context) ([]AssessmentRecord, error) {
	return s.assessments, s.err
}

func (s fakeSource) MirrorGrades(context.Context) ([]GradeRecord, error) {
	return s.grades, nil
}

type fakeWriter struct {
	docs   map[string]map[string]interface{}
	failOn map[string]bool
}

func (w *fakeWriter) Upsert(_ context.Context, uid, collection, id string, doc map[string]interface{}) error {
	if w.failOn[id] {
		return errors.New("deadline exceeded")
	}
	if w.docs == nil {
		w.docs = make(map[string]map[string]interface{})
	}
	w.docs["users/"+uid+"/"+collection+"/"+id] = doc
	return nil
}

func TestReconciler_Run(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	defer func() { core.NowFunc = time.Now }()
	core.NowFunc = func() time.Time { return now }

	day := null.TimeFrom(time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC))
	src := fakeSource{
		assessments: []AssessmentRecord{
			{ID: "a1", UID: null.StringFrom("u1"), Subject: null.StringFrom("Matematica"), WhenAt: day, UpdatedAt: now},
			{ID: "a2", UID: null.StringFrom("u1"), WhenAt: day, UpdatedAt: now},
			{ID: "a3", WhenAt: day},
			{ID: "a4", UID: null.StringFrom("u2")},
			{ID: "a5", UID: null.StringFrom(""), WhenAt: day},
		},
		grades: []GradeRecord{
			{ID: "g1", UID: null.StringFrom("u1"), AssessmentID: null.StringFrom("a1"), Score: 7.5, MaxScore: 10, WhenAt: day, CreatedAt: now},
			{ID: "g2", UID: null.StringFrom("u2"), Score: 4, MaxScore: 10, WhenAt: day, CreatedAt: now},
		},
	}
	logger := logsvc.NewNopLogger()

	t.Run("Dry run", func(t *testing.T) {
		w := new(fakeWriter)
		rep, err := NewReconciler(src, w, logger, nil).Run(context.Background(), true)
		require.NoError(t, err)
		assert.True(t, rep.DryRun)
		assert.Equal(t, Counts{Total: 5, Mirrored: 2, SkippedNoUID: 2, SkippedNoDate: 1}, rep.Exams)
		assert.Equal(t, Counts{Total: 2, Mirrored: 2}, rep.Grades)
		assert.Empty(t, w.docs)
	})

	t.Run("Write", func(t *testing.T) {
		w := &fakeWriter{failOn: map[string]bool{"a2": true}}
		rep, err := NewReconciler(src, w, logger, nil).Run(context.Background(), false)
		require.NoError(t, err)
		assert.Equal(t, Counts{Total: 5, Mirrored: 1, SkippedNoUID: 2, SkippedNoDate: 1, Failed: 1}, rep.Exams)
		assert.Equal(t, Counts{Total: 2, Mirrored: 2}, rep.Grades)

		assert.Equal(t, map[string]interface{}{
			"date":              "2024-05-06",
			"subject":           "Matematica",
			"notes":             nil,
			"blackAssessmentId": "a1",
			"source":            "black",
			"updatedAt":         now,
			"syncedAt":          now,
		}, w.docs["users/u1/exams/a1"])

		g1 := w.docs["users/u1/grades/g1"]
		require.NotNil(t, g1)
		assert.Equal(t, 7.5, g1["grade"])
		assert.Equal(t, "a1", g1["blackAssessmentId"])
		assert.Nil(t, w.docs["users/u2/grades/g2"]["blackAssessmentId"])
	})

	t.Run("Source failure", func(t *testing.T) {
		broken := src
		broken.err = errors.New("connection refused")
		_, err := NewReconciler(broken, new(fakeWriter), logger, nil).Run(context.Background(), false)
		assert.Error(t, err)
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewReconciler(src, new(fakeWriter), logger, nil).Run(ctx, false)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestReport_Summary(t *testing.T) {
	rep := Report{Exams: Counts{Total: 3, Mirrored: 2, SkippedNoUID: 1}, Grades: Counts{Total: 1, Failed: 1}}
	assert.Equal(t,
		"dry_run=false exams[total=3 mirrored=2 skipped_no_uid=1 skipped_no_date=0 failed=0] "+
			"grades[total=1 mirrored=0 skipped_no_uid=0 skipped_no_date=0 failed=1]",
		rep.Summary(),
	)
}
