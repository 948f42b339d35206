package assessment

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theoremz/black/core"
	"github.com/theoremz/black/core/student"
)

var (
	// errors
	ErrNotFound  = errors.New("assessment not found")
	ErrNoStudent = errors.New("no black student for this identity")
)

// metrics ops
const (
	opSyncGrade        = "sync_grade"
	opSyncAssessment   = "sync_assessment"
	opDeleteAssessment = "delete_assessment"
)

type (
	Repository interface {
		GetAssessment(ctx context.Context, id string, exec ...core.DBExecutor) (Assessment, error)
		// QueryAssessmentsOn returns the student's assessments on date in store order (created_at, id).
		QueryAssessmentsOn(ctx context.Context, studentID string, date civil.Date, exec ...core.DBExecutor) ([]Assessment, error)
		CreateAssessment(ctx context.Context, a Assessment, exec ...core.DBExecutor) (Assessment, error)
		UpdateAssessment(ctx context.Context, a Assessment, exec ...core.DBExecutor) (Assessment, error)
		// DeleteAssessment deletes the assessment only if it belongs to studentID.
		DeleteAssessment(ctx context.Context, studentID, id string, exec ...core.DBExecutor) (int, error)
		DeleteAssessmentsOn(ctx context.Context, studentID string, date civil.Date, exec ...core.DBExecutor) (int, error)
		// LockStudentDay serializes writers of the student's assessments on date until the transaction ends.
		LockStudentDay(ctx context.Context, studentID string, date civil.Date, exec ...core.DBExecutor) error
		CreateGrade(ctx context.Context, g Grade, exec ...core.DBExecutor) (Grade, error)
		// RefreshBrief recomputes the student's dashboard brief.
		RefreshBrief(ctx context.Context, studentID string, exec ...core.DBExecutor) error
	}

	StudentResolver interface {
		StudentIDForUID(ctx context.Context, uid string) (string, error)
	}

	Service struct {
		repo     Repository
		students StudentResolver
		tx       core.TxRunner
		logger   core.Logger
		metrics  core.Metrics
	}
)

func NewService(
	repo Repository,
	students StudentResolver,
	tx core.TxRunner,
	logger core.Logger,
	metrics core.Metrics,
) *Service {
	if metrics == nil {
		metrics = core.NopMetrics
	}
	return &Service{
		repo:     repo,
		students: students,
		tx:       tx,
		logger:   logger,
		metrics:  metrics,
	}
}

func (svc *Service) resolve(ctx context.Context, id Identity) (string, error) {
	if id.StudentID != "" {
		return id.StudentID, nil
	}
	sid, err := svc.students.StudentIDForUID(ctx, id.UID)
	if err != nil {
		if errors.Is(err, student.ErrNotFound) {
			return "", ErrNoStudent
		}
		return "", errors.Wrap(err, "resolving student")
	}
	return sid, nil
}

func (svc *Service) refreshBrief(ctx context.Context, studentID string) {
	if err := svc.repo.RefreshBrief(ctx, studentID); err != nil {
		svc.logger.Warn(fmt.Sprintf("refreshing brief of student %s: %v", studentID, err), err)
	}
}

func (svc *Service) report(op string, err *error, degraded *bool) {
	switch {
	case *err == nil && *degraded:
		svc.metrics.SyncOutcome(op, core.OutcomeDegraded)
	case *err == nil:
		svc.metrics.SyncOutcome(op, core.OutcomeOK)
	case errors.Is(*err, ErrNoStudent):
		svc.metrics.SyncOutcome(op, core.OutcomeNoStudent)
	default:
		svc.metrics.SyncOutcome(op, core.OutcomeError)
	}
}

// locate finds the assessment a grade belongs to. A hinted id that is unknown or owned by
// someone else falls back to the same-day lookup.
func (svc *Service) locate(ctx context.Context, studentID string, gs GradeSync) (Assessment, bool, error) {
	if gs.AssessmentID != "" {
		a, err := svc.repo.GetAssessment(ctx, gs.AssessmentID)
		switch {
		case err == nil && a.StudentID == studentID:
			return a, true, nil
		case err == nil, errors.Is(err, ErrNotFound):
			svc.logger.Info(fmt.Sprintf("assessment %s not usable for student %s, matching by date", gs.AssessmentID, studentID))
		default:
			return Assessment{}, false, errors.Wrap(err, "getting assessment")
		}
	}

	if isZeroDate(gs.Date) {
		return Assessment{}, false, nil
	}
	candidates, err := svc.repo.QueryAssessmentsOn(ctx, studentID, gs.Date)
	if err != nil {
		return Assessment{}, false, errors.Wrap(err, "querying assessments")
	}
	switch len(candidates) {
	case 0:
		return Assessment{}, false, nil
	case 1:
		return candidates[0], true, nil
	}

	hint := core.CleanString(gs.ExamSubject, true /* lower */)
	if hint == "" {
		hint = core.CleanString(gs.Subject, true /* lower */)
	}
	if hint != "" {
		for _, c := range candidates {
			if strings.ToLower(strings.TrimSpace(c.Subject.String)) == hint {
				return c, true, nil
			}
		}
	}
	svc.logger.Warn(fmt.Sprintf(
		"ambiguous assessment match: %d assessments for student %s on %s, using %s",
		len(candidates), studentID, gs.Date, candidates[0].ID,
	))
	return candidates[0], true, nil
}

// SyncGrade records a grade for a Black student and writes its result line into the matching
// assessment's topics. Returns ErrNoStudent if the identity has no Black student.
// Steps are not transactional: a failed grade insert is only logged.
func (svc *Service) SyncGrade(ctx context.Context, gs GradeSync) (res GradeSyncResult, err error) {
	var degraded bool
	defer svc.report(opSyncGrade, &err, &degraded)

	sid, err := svc.resolve(ctx, gs.Identity)
	if err != nil {
		return res, err
	}
	res.StudentID = sid

	score := ClampGrade(gs.Grade)
	subject := core.CleanString(gs.Subject)
	if subject == "" {
		subject = core.CleanString(gs.ExamSubject)
	}

	target, found, locErr := svc.locate(ctx, sid, gs)

	grade := Grade{
		StudentID: sid,
		Subject:   null.NewString(subject, subject != ""),
		Score:     score,
		MaxScore:  DefaultMaxScore,
		WhenAt:    gs.Date,
	}
	if found {
		grade.AssessmentID = null.StringFrom(target.ID)
	}
	if grade, gErr := svc.repo.CreateGrade(ctx, grade); gErr != nil {
		degraded = true
		svc.logger.Error(fmt.Sprintf("inserting grade for student %s: %v", sid, gErr), gErr)
	} else {
		res.GradeID = grade.ID
	}

	if locErr != nil {
		return res, locErr
	}
	if found {
		target.Topics = null.StringFrom(MergeResultLine(target.Topics.String, ResultLine(subject, score, DefaultMaxScore)))
		target.UpdatedAt = core.NowFunc().UTC()
		if _, err = svc.repo.UpdateAssessment(ctx, target); err != nil {
			return res, errors.Wrap(err, "updating assessment topics")
		}
		res.AssessmentID = target.ID
	}

	svc.refreshBrief(ctx, sid)
	return res, nil
}

// SyncAssessment upserts the student's assessment on date: the first one in store order is updated,
// otherwise one is created. Returns the assessment id, or ErrNoStudent.
func (svc *Service) SyncAssessment(ctx context.Context, uid string, date civil.Date, subject, notes string) (id string, err error) {
	var degraded bool
	defer svc.report(opSyncAssessment, &err, &degraded)

	sid, err := svc.resolve(ctx, Identity{UID: uid})
	if err != nil {
		return "", err
	}
	subject = core.CleanString(subject)
	notes = strings.TrimSpace(notes)

	err = svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.LockStudentDay(ctx, sid, date, exec); err != nil {
			return errors.Wrap(err, "locking student day")
		}
		existing, err := svc.repo.QueryAssessmentsOn(ctx, sid, date, exec)
		if err != nil {
			return errors.Wrap(err, "querying assessments")
		}

		now := core.NowFunc().UTC()
		if len(existing) > 0 {
			a := existing[0]
			a.Subject = null.NewString(subject, subject != "")
			a.Topics = keepResultLine(a.Topics, notes)
			a.UpdatedAt = now
			if _, err := svc.repo.UpdateAssessment(ctx, a, exec); err != nil {
				return errors.Wrap(err, "updating assessment")
			}
			id = a.ID
			return nil
		}

		a, err := svc.repo.CreateAssessment(ctx, Assessment{
			StudentID: sid,
			Subject:   null.NewString(subject, subject != ""),
			Topics:    null.NewString(notes, notes != ""),
			WhenAt:    date,
			CreatedAt: now,
			UpdatedAt: now,
		}, exec)
		if err != nil {
			return errors.Wrap(err, "creating assessment")
		}
		id = a.ID
		return nil
	})
	if err != nil {
		return "", err
	}

	svc.refreshBrief(ctx, sid)
	return id, nil
}

// keepResultLine replaces an assessment's notes, carrying over a previously synced result line.
func keepResultLine(topics null.String, notes string) null.String {
	if line, ok := resultLineOf(topics.String); ok {
		if _, hasOwn := resultLineOf(notes); !hasOwn {
			return null.StringFrom(MergeResultLine(notes, line))
		}
	}
	return null.NewString(notes, notes != "")
}

// DeleteAssessment removes the assessment mirroring a student's exam. Returns ErrNoStudent
// if uid has no Black student.
func (svc *Service) DeleteAssessment(ctx context.Context, uid string, link ExamLink) (err error) {
	var degraded bool
	defer svc.report(opDeleteAssessment, &err, &degraded)

	sid, err := svc.resolve(ctx, Identity{UID: uid})
	if err != nil {
		return err
	}

	var n int
	switch {
	case link.AssessmentID != "":
		n, err = svc.repo.DeleteAssessment(ctx, sid, link.AssessmentID)
	case !isZeroDate(link.Date):
		n, err = svc.repo.DeleteAssessmentsOn(ctx, sid, link.Date)
	}
	if err != nil {
		return errors.Wrap(err, "deleting assessment")
	}
	svc.logger.Debug(fmt.Sprintf("deleted %d assessment(s) of student %s", n, sid))

	svc.refreshBrief(ctx, sid)
	return nil
}
