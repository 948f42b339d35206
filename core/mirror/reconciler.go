package mirror

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theoremz/black/core"
)

const (
	jobName    = "mirror"
	sourceName = "black"
)

// Collections under users/{uid}
const (
	ExamsCollection  = "exams"
	GradesCollection = "grades"
)

type (
	// AssessmentRecord is an assessment joined with its student's UID.
	AssessmentRecord struct {
		ID        string
		StudentID string
		UID       null.String
		Subject   null.String
		Topics    null.String
		WhenAt    null.Time
		UpdatedAt time.Time
	}

	// GradeRecord is a grade joined with its student's UID.
	GradeRecord struct {
		ID           string
		StudentID    string
		UID          null.String
		AssessmentID null.String
		Subject      null.String
		Score        float64
		MaxScore     float64
		WhenAt       null.Time
		CreatedAt    time.Time
	}

	Source interface {
		MirrorAssessments(ctx context.Context) ([]AssessmentRecord, error)
		MirrorGrades(ctx context.Context) ([]GradeRecord, error)
	}

	// Writer merges documents into users/{uid}/{collection}/{id}.
	Writer interface {
		Upsert(ctx context.Context, uid, collection, id string, doc map[string]interface{}) error
	}

	Counts struct {
		Total         int `json:"total"`
		Mirrored      int `json:"mirrored"`
		SkippedNoUID  int `json:"skipped_no_uid"`
		SkippedNoDate int `json:"skipped_no_date"`
		Failed        int `json:"failed"`
	}

	Report struct {
		DryRun bool          `json:"dry_run"`
		Exams  Counts        `json:"exams"`
		Grades Counts        `json:"grades"`
		Took   time.Duration `json:"-"`
	}

	// Reconciler backfills the legacy per-user collections from the Black tables.
	// It only ever writes to the mirror.
	Reconciler struct {
		source  Source
		writer  Writer
		logger  core.Logger
		metrics core.Metrics
	}
)

func NewReconciler(source Source, writer Writer, logger core.Logger, metrics core.Metrics) *Reconciler {
	if metrics == nil {
		metrics = core.NopMetrics
	}
	return &Reconciler{source: source, writer: writer, logger: logger, metrics: metrics}
}

// Run mirrors every assessment and grade. Rows without UID or date are skipped;
// write failures are counted and the run goes on. With dryRun nothing is written.
func (r *Reconciler) Run(ctx context.Context, dryRun bool) (Report, error) {
	start := core.NowFunc()
	rep := Report{DryRun: dryRun}

	assessments, err := r.source.MirrorAssessments(ctx)
	if err != nil {
		return rep, errors.Wrap(err, "loading assessments")
	}
	grades, err := r.source.MirrorGrades(ctx)
	if err != nil {
		return rep, errors.Wrap(err, "loading grades")
	}
	syncedAt := start.UTC()

	for _, a := range assessments {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Exams.Total++
		if ok := r.check(&rep.Exams, "assessment", a.ID, a.UID, a.WhenAt); !ok {
			continue
		}
		r.write(ctx, &rep.Exams, dryRun, a.UID.String, ExamsCollection, a.ID, examDoc(a, syncedAt))
	}

	for _, g := range grades {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Grades.Total++
		if ok := r.check(&rep.Grades, "grade", g.ID, g.UID, g.WhenAt); !ok {
			continue
		}
		r.write(ctx, &rep.Grades, dryRun, g.UID.String, GradesCollection, g.ID, gradeDoc(g, syncedAt))
	}

	rep.Took = core.NowFunc().Sub(start)
	r.metrics.JobRun(jobName, ExamsCollection, rep.Exams.Total, rep.Exams.Mirrored, rep.Took)
	r.metrics.JobRun(jobName, GradesCollection, rep.Grades.Total, rep.Grades.Mirrored, rep.Took)
	r.logger.Info(fmt.Sprintf("mirror backfill done: %s", rep.Summary()))
	return rep, nil
}

func (r *Reconciler) check(c *Counts, kind, id string, uid null.String, when null.Time) bool {
	switch {
	case !uid.Valid || uid.String == "":
		c.SkippedNoUID++
		r.metrics.SyncOutcome(jobName, core.OutcomeSkipped)
		r.logger.Debug(fmt.Sprintf("mirror: %s %s skipped, student has no uid", kind, id))
		return false
	case !when.Valid:
		c.SkippedNoDate++
		r.metrics.SyncOutcome(jobName, core.OutcomeSkipped)
		r.logger.Debug(fmt.Sprintf("mirror: %s %s skipped, no date", kind, id))
		return false
	}
	return true
}

func (r *Reconciler) write(ctx context.Context, c *Counts, dryRun bool, uid, collection, id string, doc map[string]interface{}) {
	if dryRun {
		c.Mirrored++
		return
	}
	if err := r.writer.Upsert(ctx, uid, collection, id, doc); err != nil {
		c.Failed++
		r.metrics.SyncOutcome(jobName, core.OutcomeError)
		r.logger.Error(fmt.Sprintf("mirror: writing users/%s/%s/%s: %v", uid, collection, id, err), err)
		return
	}
	c.Mirrored++
	r.metrics.SyncOutcome(jobName, core.OutcomeOK)
}

func dateString(t null.Time) string {
	return civil.DateOf(t.Time).String()
}

func nullable(s null.String) interface{} {
	if !s.Valid {
		return nil
	}
	return s.String
}

func examDoc(a AssessmentRecord, syncedAt time.Time) map[string]interface{} {
	return map[string]interface{}{
		"date":              dateString(a.WhenAt),
		"subject":           nullable(a.Subject),
		"notes":             nullable(a.Topics),
		"blackAssessmentId": a.ID,
		"source":            sourceName,
		"updatedAt":         a.UpdatedAt.UTC(),
		"syncedAt":          syncedAt,
	}
}

func gradeDoc(g GradeRecord, syncedAt time.Time) map[string]interface{} {
	return map[string]interface{}{
		"date":              dateString(g.WhenAt),
		"subject":           nullable(g.Subject),
		"grade":             g.Score,
		"maxScore":          g.MaxScore,
		"blackGradeId":      g.ID,
		"blackAssessmentId": nullable(g.AssessmentID),
		"source":            sourceName,
		"createdAt":         g.CreatedAt.UTC(),
		"syncedAt":          syncedAt,
	}
}

func (c Counts) String() string {
	return fmt.Sprintf(
		"total=%d mirrored=%d skipped_no_uid=%d skipped_no_date=%d failed=%d",
		c.Total, c.Mirrored, c.SkippedNoUID, c.SkippedNoDate, c.Failed,
	)
}

func (rep Report) Summary() string {
	return fmt.Sprintf("dry_run=%t exams[%s] grades[%s]", rep.DryRun, rep.Exams, rep.Grades)
}
