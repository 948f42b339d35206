package sqlxrepos

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theoremz/black/core"
	"github.com/theoremz/black/core/assessment"
)

const (
	assessmentColumns = "id, student_id, subject, topics, when_at, readiness_snapshot, created_at, updated_at"
	gradeColumns      = "id, student_id, assessment_id, subject, score, max_score, when_at, created_at"
)

type assessmentRow struct {
	ID                string      `db:"id"`
	StudentID         string      `db:"student_id"`
	Subject           null.String `db:"subject"`
	Topics            null.String `db:"topics"`
	WhenAt            null.Time   `db:"when_at"`
	ReadinessSnapshot null.Int    `db:"readiness_snapshot"`
	CreatedAt         time.Time   `db:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at"`
}

type gradeRow struct {
	ID           string      `db:"id"`
	StudentID    string      `db:"student_id"`
	AssessmentID null.String `db:"assessment_id"`
	Subject      null.String `db:"subject"`
	Score        float64     `db:"score"`
	MaxScore     float64     `db:"max_score"`
	WhenAt       null.Time   `db:"when_at"`
	CreatedAt    time.Time   `db:"created_at"`
}

type assessmentRepository struct {
	repository
}

var _ assessment.Repository = (*assessmentRepository)(nil) // interface compliance check

func NewAssessmentRepository(exec core.DBExecutor) *assessmentRepository {
	return &assessmentRepository{repository{exec: exec}}
}

func (repo assessmentRepository) unboil(row assessmentRow) assessment.Assessment {
	return assessment.Assessment{
		ID:                row.ID,
		StudentID:         row.StudentID,
		Subject:           row.Subject,
		Topics:            row.Topics,
		WhenAt:            unboilDate(row.WhenAt),
		ReadinessSnapshot: row.ReadinessSnapshot,
		CreatedAt:         row.CreatedAt.UTC(),
		UpdatedAt:         row.UpdatedAt.UTC(),
	}
}

func (repo assessmentRepository) unboilSlice(rows []assessmentRow) []assessment.Assessment {
	out := make([]assessment.Assessment, 0, len(rows))
	for _, row := range rows {
		out = append(out, repo.unboil(row))
	}
	return out
}

func (repo assessmentRepository) GetAssessment(ctx context.Context, id string, exec ...core.DBExecutor) (assessment.Assessment, error) {
	if !isUUID(id) {
		return assessment.Assessment{}, assessment.ErrNotFound
	}
	var row assessmentRow
	err := sqlxGet(ctx, repo.getExec(exec), &row, "SELECT "+assessmentColumns+" FROM black_assessments WHERE id = $1", id)
	if err != nil {
		return assessment.Assessment{}, trapNoRowsErr(err, assessment.ErrNotFound, "getting assessment")
	}
	return repo.unboil(row), nil
}

func (repo assessmentRepository) QueryAssessmentsOn(ctx context.Context, studentID string, date civil.Date, exec ...core.DBExecutor) ([]assessment.Assessment, error) {
	var rows []assessmentRow
	err := sqlxSelect(ctx, repo.getExec(exec), &rows, `
		SELECT `+assessmentColumns+` FROM black_assessments
		 WHERE student_id = $1 AND when_at = $2
		 ORDER BY created_at, id`,
		studentID, date.String(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying assessments")
	}
	return repo.unboilSlice(rows), nil
}

// CreateAssessment snapshots the student's current readiness unless a.ReadinessSnapshot is set.
func (repo assessmentRepository) CreateAssessment(ctx context.Context, a assessment.Assessment, exec ...core.DBExecutor) (assessment.Assessment, error) {
	a.ID = uuid.New().String()
	var row assessmentRow
	err := sqlxGet(ctx, repo.getExec(exec), &row, `
		INSERT INTO black_assessments (id, student_id, subject, topics, when_at, readiness_snapshot, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, (SELECT readiness FROM black_students WHERE id = $2)), $7, $8)
		RETURNING `+assessmentColumns,
		a.ID, a.StudentID, a.Subject, a.Topics, boilDate(a.WhenAt), a.ReadinessSnapshot, a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	)
	if err != nil {
		return assessment.Assessment{}, errors.Wrap(err, "inserting assessment")
	}
	return repo.unboil(row), nil
}

func (repo assessmentRepository) UpdateAssessment(ctx context.Context, a assessment.Assessment, exec ...core.DBExecutor) (assessment.Assessment, error) {
	var row assessmentRow
	err := sqlxGet(ctx, repo.getExec(exec), &row, `
		UPDATE black_assessments
		   SET subject = $2, topics = $3, when_at = $4, updated_at = $5
		 WHERE id = $1
		RETURNING `+assessmentColumns,
		a.ID, a.Subject, a.Topics, boilDate(a.WhenAt), a.UpdatedAt.UTC(),
	)
	if err != nil {
		return assessment.Assessment{}, trapNoRowsErr(err, assessment.ErrNotFound, "updating assessment")
	}
	return repo.unboil(row), nil
}

func (repo assessmentRepository) DeleteAssessment(ctx context.Context, studentID, id string, exec ...core.DBExecutor) (int, error) {
	if !isUUID(id) {
		return 0, nil
	}
	res, err := repo.getExec(exec).ExecContext(ctx,
		"DELETE FROM black_assessments WHERE id = $1 AND student_id = $2", id, studentID)
	return rowsAffected(res, err, "deleting assessment")
}

func (repo assessmentRepository) DeleteAssessmentsOn(ctx context.Context, studentID string, date civil.Date, exec ...core.DBExecutor) (int, error) {
	res, err := repo.getExec(exec).ExecContext(ctx,
		"DELETE FROM black_assessments WHERE student_id = $1 AND when_at = $2", studentID, date.String())
	return rowsAffected(res, err, "deleting assessments by date")
}

// LockStudentDay takes a transaction-scoped advisory lock; exec must be a transaction.
func (repo assessmentRepository) LockStudentDay(ctx context.Context, studentID string, date civil.Date, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx,
		"SELECT pg_advisory_xact_lock(hashtext($1))", "black_assessment:"+studentID+":"+date.String())
	return errors.Wrap(err, "acquiring advisory lock")
}

func (repo assessmentRepository) CreateGrade(ctx context.Context, g assessment.Grade, exec ...core.DBExecutor) (assessment.Grade, error) {
	g.ID = uuid.New().String()
	createdAt := g.CreatedAt
	if createdAt.IsZero() {
		createdAt = core.NowFunc()
	}

	var row gradeRow
	err := sqlxGet(ctx, repo.getExec(exec), &row, `
		INSERT INTO black_grades (id, student_id, assessment_id, subject, score, max_score, when_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+gradeColumns,
		g.ID, g.StudentID, g.AssessmentID, g.Subject, g.Score, g.MaxScore, boilDate(g.WhenAt), createdAt.UTC(),
	)
	if err != nil {
		return assessment.Grade{}, errors.Wrap(err, "inserting grade")
	}
	return assessment.Grade{
		ID:           row.ID,
		StudentID:    row.StudentID,
		AssessmentID: row.AssessmentID,
		Subject:      row.Subject,
		Score:        row.Score,
		MaxScore:     row.MaxScore,
		WhenAt:       unboilDate(row.WhenAt),
		CreatedAt:    row.CreatedAt.UTC(),
	}, nil
}

func (repo assessmentRepository) RefreshBrief(ctx context.Context, studentID string, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, "SELECT refresh_black_brief($1)", studentID)
	return errors.Wrap(err, "refreshing brief")
}
