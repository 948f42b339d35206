package exam

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theoremz/black/core"
	"github.com/theoremz/black/core/assessment"
)

var (
	// errors
	ErrNotFound     = errors.New("exam not found")
	ErrFutureExam   = core.NewCodedValidationError("future_exam")
	ErrInvalidGrade = core.NewCodedValidationError("invalid_grade")
	ErrMissingDate  = core.NewCodedValidationError("missing_date")
)

type (
	Repository interface {
		CreateExam(ctx context.Context, e Exam, exec ...core.DBExecutor) (Exam, error)
		UpdateExam(ctx context.Context, e Exam, exec ...core.DBExecutor) (Exam, error)
		// GetExam returns ErrNotFound unless the exam belongs to userID.
		GetExam(ctx context.Context, userID, id string, exec ...core.DBExecutor) (Exam, error)
		// QueryExams returns the user's exams, newest first.
		QueryExams(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Exam, error)
		// QueryExamsOn returns the user's exams on date, oldest first.
		QueryExamsOn(ctx context.Context, userID string, date civil.Date, exec ...core.DBExecutor) ([]Exam, error)
		DeleteExam(ctx context.Context, userID, id string, exec ...core.DBExecutor) error
		// UpsertExamGrade creates or replaces the grade attached to g.ExamID.
		UpsertExamGrade(ctx context.Context, g Grade, exec ...core.DBExecutor) (Grade, error)
		CreateGrade(ctx context.Context, g Grade, exec ...core.DBExecutor) (Grade, error)
		// QueryGrades returns the user's grades, newest first.
		QueryGrades(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Grade, error)
	}

	// Syncer propagates the exam log to the Black pipeline.
	Syncer interface {
		SyncAssessment(ctx context.Context, uid string, date civil.Date, subject, notes string) (string, error)
		DeleteAssessment(ctx context.Context, uid string, link assessment.ExamLink) error
		SyncGrade(ctx context.Context, gs assessment.GradeSync) (assessment.GradeSyncResult, error)
	}

	Service struct {
		repo   Repository
		tx     core.TxRunner
		syncer Syncer
		logger core.Logger
	}
)

var _ Syncer = (*assessment.Service)(nil)

func NewService(repo Repository, tx core.TxRunner, syncer Syncer, logger core.Logger) *Service {
	return &Service{repo: repo, tx: tx, syncer: syncer, logger: logger}
}

// syncFailed logs a failed downstream sync. Users who are not Black students are expected.
func (svc *Service) syncFailed(op, uid string, err error) {
	if err == nil || errors.Is(err, assessment.ErrNoStudent) {
		return
	}
	svc.logger.Error(fmt.Sprintf("%s for user %s: %v", op, uid, err), err, core.Person{ID: uid})
}

func (svc *Service) ListExams(ctx context.Context, uid string) ([]Exam, error) {
	return svc.repo.QueryExams(ctx, uid)
}

func (svc *Service) ListGrades(ctx context.Context, uid string) ([]Grade, error) {
	return svc.repo.QueryGrades(ctx, uid)
}

// SaveExam creates an exam, or edits the caller's exam when ne.ID is set, then mirrors it
// to the student's Black assessment. ne must be validated.
func (svc *Service) SaveExam(ctx context.Context, uid string, ne NewExam) (Exam, error) {
	date, err := core.ParseDate(ne.Date)
	if err != nil {
		return Exam{}, ErrMissingDate
	}
	now := core.NowFunc().UTC()

	var ex Exam
	var previous assessment.ExamLink
	if ne.ID != "" {
		if ex, err = svc.repo.GetExam(ctx, uid, ne.ID); err != nil {
			return Exam{}, err
		}
		if ex.Date != date {
			previous = assessment.ExamLink{AssessmentID: ex.AssessmentID.String, Date: ex.Date}
			ex.AssessmentID = null.String{}
		}
		ex.Date = date
		ex.Subject = null.NewString(ne.Subject, ne.Subject != "")
		ex.Notes = null.NewString(ne.Notes, ne.Notes != "")
		ex.UpdatedAt = now
		if ex, err = svc.repo.UpdateExam(ctx, ex); err != nil {
			return Exam{}, errors.Wrap(err, "updating exam")
		}
	} else {
		ex, err = svc.repo.CreateExam(ctx, Exam{
			UserID:    uid,
			Date:      date,
			Subject:   null.NewString(ne.Subject, ne.Subject != ""),
			Notes:     null.NewString(ne.Notes, ne.Notes != ""),
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return Exam{}, errors.Wrap(err, "creating exam")
		}
	}

	// the exam moved to another day: its old assessment goes away
	if previous != (assessment.ExamLink{}) {
		svc.syncFailed("deleting moved assessment", uid, svc.syncer.DeleteAssessment(ctx, uid, previous))
	}

	aid, err := svc.syncer.SyncAssessment(ctx, uid, ex.Date, ex.Subject.String, ex.Notes.String)
	if err != nil {
		svc.syncFailed("syncing assessment", uid, err)
		return ex, nil
	}
	if aid != ex.AssessmentID.String {
		ex.AssessmentID = null.StringFrom(aid)
		if _, err = svc.repo.UpdateExam(ctx, ex); err != nil {
			svc.logger.Error(fmt.Sprintf("linking exam %s to assessment %s: %v", ex.ID, aid, err), err)
		}
	}
	return ex, nil
}

// DeleteExam deletes the caller's exam and its Black assessment. The exam's grade stays, unlinked.
func (svc *Service) DeleteExam(ctx context.Context, uid, id string) error {
	ex, err := svc.repo.GetExam(ctx, uid, id)
	if err != nil {
		return err
	}
	if err := svc.repo.DeleteExam(ctx, uid, ex.ID); err != nil {
		return errors.Wrap(err, "deleting exam")
	}

	link := assessment.ExamLink{AssessmentID: ex.AssessmentID.String, Date: ex.Date}
	svc.syncFailed("deleting assessment", uid, svc.syncer.DeleteAssessment(ctx, uid, link))
	return nil
}

// GradeExam grades the caller's exam. Exams dated after today cannot be graded.
func (svc *Service) GradeExam(ctx context.Context, uid, id string, eg ExamGrade) (Exam, error) {
	ex, err := svc.repo.GetExam(ctx, uid, id)
	if err != nil {
		return Exam{}, err
	}
	if ex.Date.After(core.Today()) {
		return Exam{}, ErrFutureExam
	}
	if !eg.Grade.Valid() {
		return Exam{}, ErrInvalidGrade
	}

	score := assessment.ClampGrade(eg.Grade.Float64())
	subject := eg.Subject
	if subject == "" {
		subject = ex.Subject.String
	}
	now := core.NowFunc().UTC()

	err = svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		_, err := svc.repo.UpsertExamGrade(ctx, Grade{
			UserID:    uid,
			ExamID:    null.StringFrom(ex.ID),
			Date:      ex.Date,
			Subject:   null.NewString(subject, subject != ""),
			Grade:     score,
			CreatedAt: now,
			UpdatedAt: now,
		}, exec)
		if err != nil {
			return errors.Wrap(err, "upserting exam grade")
		}

		ex.Grade = null.Float64From(score)
		ex.GradeSubject = null.NewString(eg.Subject, eg.Subject != "")
		ex.UpdatedAt = now
		ex, err = svc.repo.UpdateExam(ctx, ex, exec)
		return errors.Wrap(err, "updating exam")
	})
	if err != nil {
		return Exam{}, err
	}

	_, err = svc.syncer.SyncGrade(ctx, assessment.GradeSync{
		Identity:     assessment.Identity{UID: uid},
		Date:         ex.Date,
		Subject:      eg.Subject,
		Grade:        score,
		AssessmentID: ex.AssessmentID.String,
		ExamSubject:  ex.Subject.String,
	})
	svc.syncFailed("syncing grade", uid, err)
	return ex, nil
}

// matchExam picks the ungraded exam a standalone grade belongs to, preferring a subject match.
func matchExam(exams []Exam, subject string) (Exam, bool) {
	var first *Exam
	for i := range exams {
		ex := &exams[i]
		if ex.IsGraded() {
			continue
		}
		if subject != "" && strings.EqualFold(strings.TrimSpace(ex.Subject.String), subject) {
			return *ex, true
		}
		if first == nil {
			first = ex
		}
	}
	if first == nil {
		return Exam{}, false
	}
	return *first, true
}

// AddGrade records a standalone grade, attached to an ungraded exam of the same day if any.
// ng must be validated.
func (svc *Service) AddGrade(ctx context.Context, uid string, ng NewGrade) (Grade, error) {
	date, err := core.ParseDate(ng.Date)
	if err != nil {
		return Grade{}, ErrMissingDate
	}
	if !ng.Grade.Valid() {
		return Grade{}, ErrInvalidGrade
	}
	score := assessment.ClampGrade(ng.Grade.Float64())
	now := core.NowFunc().UTC()

	exams, err := svc.repo.QueryExamsOn(ctx, uid, date)
	if err != nil {
		return Grade{}, errors.Wrap(err, "querying exams")
	}
	ex, linked := matchExam(exams, ng.Subject)

	var grade Grade
	err = svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		grade = Grade{
			UserID:    uid,
			Date:      date,
			Subject:   null.NewString(ng.Subject, ng.Subject != ""),
			Grade:     score,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if linked {
			grade.ExamID = null.StringFrom(ex.ID)
		}
		if grade, err = svc.repo.CreateGrade(ctx, grade, exec); err != nil {
			return errors.Wrap(err, "creating grade")
		}
		if !linked {
			return nil
		}

		ex.Grade = null.Float64From(score)
		ex.GradeSubject = grade.Subject
		ex.UpdatedAt = now
		_, err = svc.repo.UpdateExam(ctx, ex, exec)
		return errors.Wrap(err, "updating exam")
	})
	if err != nil {
		return Grade{}, err
	}

	gs := assessment.GradeSync{
		Identity: assessment.Identity{UID: uid},
		Date:     date,
		Subject:  ng.Subject,
		Grade:    score,
	}
	if linked {
		gs.AssessmentID = ex.AssessmentID.String
		gs.ExamSubject = ex.Subject.String
	}
	_, err = svc.syncer.SyncGrade(ctx, gs)
	svc.syncFailed("syncing grade", uid, err)
	return grade, nil
}
