package inmemdb

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/volatiletech/null/v8"

	"github.com/theoremz/black/core/mirror"
)

type MirrorSource struct {
	db *DB
}

var _ mirror.Source = (*MirrorSource)(nil) // interface compliance check

func NewMirrorSource(db *DB) *MirrorSource {
	return &MirrorSource{db: db}
}

func (src *MirrorSource) uids() map[string]null.String {
	uids := make(map[string]null.String, len(src.db.students))
	for _, s := range src.db.students {
		uids[s.ID] = s.UID
	}
	return uids
}

func nullDate(d civil.Date) null.Time {
	if d == (civil.Date{}) {
		return null.Time{}
	}
	return null.TimeFrom(d.In(time.UTC))
}

func (src *MirrorSource) MirrorAssessments(context.Context) ([]mirror.AssessmentRecord, error) {
	src.db.mu.RLock()
	defer src.db.mu.RUnlock()

	uids := src.uids()
	out := make([]mirror.AssessmentRecord, 0, len(src.db.assessments))
	for _, a := range src.db.assessments {
		out = append(out, mirror.AssessmentRecord{
			ID:        a.ID,
			StudentID: a.StudentID,
			UID:       uids[a.StudentID],
			Subject:   a.Subject,
			Topics:    a.Topics,
			WhenAt:    nullDate(a.WhenAt),
			UpdatedAt: a.UpdatedAt,
		})
	}
	return out, nil
}

func (src *MirrorSource) MirrorGrades(context.Context) ([]mirror.GradeRecord, error) {
	src.db.mu.RLock()
	defer src.db.mu.RUnlock()

	uids := src.uids()
	out := make([]mirror.GradeRecord, 0, len(src.db.grades))
	for _, g := range src.db.grades {
		out = append(out, mirror.GradeRecord{
			ID:           g.ID,
			StudentID:    g.StudentID,
			UID:          uids[g.StudentID],
			AssessmentID: g.AssessmentID,
			Subject:      g.Subject,
			Score:        g.Score,
			MaxScore:     g.MaxScore,
			WhenAt:       nullDate(g.WhenAt),
			CreatedAt:    g.CreatedAt,
		})
	}
	return out, nil
}
