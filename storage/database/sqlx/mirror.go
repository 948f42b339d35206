package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theoremz/black/core"
	"github.com/theoremz/black/core/mirror"
)

type mirrorAssessmentRow struct {
	ID        string      `db:"id"`
	StudentID string      `db:"student_id"`
	UID       null.String `db:"uid"`
	Subject   null.String `db:"subject"`
	Topics    null.String `db:"topics"`
	WhenAt    null.Time   `db:"when_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

type mirrorGradeRow struct {
	ID           string      `db:"id"`
	StudentID    string      `db:"student_id"`
	UID          null.String `db:"uid"`
	AssessmentID null.String `db:"assessment_id"`
	Subject      null.String `db:"subject"`
	Score        float64     `db:"score"`
	MaxScore     float64     `db:"max_score"`
	WhenAt       null.Time   `db:"when_at"`
	CreatedAt    time.Time   `db:"created_at"`
}

type mirrorSource struct {
	repository
}

var _ mirror.Source = (*mirrorSource)(nil) // interface compliance check

func NewMirrorSource(exec core.DBExecutor) *mirrorSource {
	return &mirrorSource{repository{exec: exec}}
}

func (src mirrorSource) MirrorAssessments(ctx context.Context) ([]mirror.AssessmentRecord, error) {
	var rows []mirrorAssessmentRow
	err := sqlxSelect(ctx, src.exec, &rows, `
		SELECT a.id, a.student_id, s.uid, a.subject, a.topics, a.when_at, a.updated_at
		  FROM black_assessments a
		  JOIN black_students s ON s.id = a.student_id
		 ORDER BY a.created_at, a.id`)
	if err != nil {
		return nil, errors.Wrap(err, "loading assessments to mirror")
	}
	out := make([]mirror.AssessmentRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, mirror.AssessmentRecord{
			ID:        r.ID,
			StudentID: r.StudentID,
			UID:       r.UID,
			Subject:   r.Subject,
			Topics:    r.Topics,
			WhenAt:    r.WhenAt,
			UpdatedAt: r.UpdatedAt.UTC(),
		})
	}
	return out, nil
}

func (src mirrorSource) MirrorGrades(ctx context.Context) ([]mirror.GradeRecord, error) {
	var rows []mirrorGradeRow
	err := sqlxSelect(ctx, src.exec, &rows, `
		SELECT g.id, g.student_id, s.uid, g.assessment_id, g.subject, g.score, g.max_score, g.when_at, g.created_at
		  FROM black_grades g
		  JOIN black_students s ON s.id = g.student_id
		 ORDER BY g.created_at, g.id`)
	if err != nil {
		return nil, errors.Wrap(err, "loading grades to mirror")
	}
	out := make([]mirror.GradeRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, mirror.GradeRecord{
			ID:           r.ID,
			StudentID:    r.StudentID,
			UID:          r.UID,
			AssessmentID: r.AssessmentID,
			Subject:      r.Subject,
			Score:        r.Score,
			MaxScore:     r.MaxScore,
			WhenAt:       r.WhenAt,
			CreatedAt:    r.CreatedAt.UTC(),
		})
	}
	return out, nil
}
