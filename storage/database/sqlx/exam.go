package sqlxrepos

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theoremz/black/core"
	"github.com/theoremz/black/core/exam"
)

const (
	examColumns      = "id, user_id, date, subject, notes, grade, grade_subject, black_assessment_id, created_at, updated_at"
	examGradeColumns = "id, user_id, exam_id, date, subject, grade, created_at, updated_at"
)

type examRow struct {
	ID           string       `db:"id"`
	UserID       string       `db:"user_id"`
	Date         time.Time    `db:"date"`
	Subject      null.String  `db:"subject"`
	Notes        null.String  `db:"notes"`
	Grade        null.Float64 `db:"grade"`
	GradeSubject null.String  `db:"grade_subject"`
	AssessmentID null.String  `db:"black_assessment_id"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

type examGradeRow struct {
	ID        string      `db:"id"`
	UserID    string      `db:"user_id"`
	ExamID    null.String `db:"exam_id"`
	Date      time.Time   `db:"date"`
	Subject   null.String `db:"subject"`
	Grade     float64     `db:"grade"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

type examRepository struct {
	repository
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(exec core.DBExecutor) *examRepository {
	return &examRepository{repository{exec: exec}}
}

func (repo examRepository) unboil(row examRow) exam.Exam {
	return exam.Exam{
		ID:           row.ID,
		UserID:       row.UserID,
		Date:         civil.DateOf(row.Date),
		Subject:      row.Subject,
		Notes:        row.Notes,
		Grade:        row.Grade,
		GradeSubject: row.GradeSubject,
		AssessmentID: row.AssessmentID,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

func (repo examRepository) unboilSlice(rows []examRow) []exam.Exam {
	out := make([]exam.Exam, 0, len(rows))
	for _, row := range rows {
		out = append(out, repo.unboil(row))
	}
	return out
}

func (repo examRepository) unboilGrade(row examGradeRow) exam.Grade {
	return exam.Grade{
		ID:        row.ID,
		UserID:    row.UserID,
		ExamID:    row.ExamID,
		Date:      civil.DateOf(row.Date),
		Subject:   row.Subject,
		Grade:     row.Grade,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func (repo examRepository) CreateExam(ctx context.Context, e exam.Exam, exec ...core.DBExecutor) (exam.Exam, error) {
	e.ID = uuid.New().String()
	var row examRow
	err := sqlxGet(ctx, repo.getExec(exec), &row, `
		INSERT INTO student_exams (id, user_id, date, subject, notes, grade, grade_subject, black_assessment_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+examColumns,
		e.ID, e.UserID, e.Date.String(), e.Subject, e.Notes, e.Grade, e.GradeSubject, e.AssessmentID,
		e.CreatedAt.UTC(), e.UpdatedAt.UTC(),
	)
	if err != nil {
		return exam.Exam{}, errors.Wrap(err, "inserting exam")
	}
	return repo.unboil(row), nil
}

func (repo examRepository) UpdateExam(ctx context.Context, e exam.Exam, exec ...core.DBExecutor) (exam.Exam, error) {
	var row examRow
	err := sqlxGet(ctx, repo.getExec(exec), &row, `
		UPDATE student_exams
		   SET date = $3, subject = $4, notes = $5, grade = $6, grade_subject = $7,
		       black_assessment_id = $8, updated_at = $9
		 WHERE id = $1 AND user_id = $2
		RETURNING `+examColumns,
		e.ID, e.UserID, e.Date.String(), e.Subject, e.Notes, e.Grade, e.GradeSubject, e.AssessmentID, e.UpdatedAt.UTC(),
	)
	if err != nil {
		return exam.Exam{}, trapNoRowsErr(err, exam.ErrNotFound, "updating exam")
	}
	return repo.unboil(row), nil
}

func (repo examRepository) GetExam(ctx context.Context, userID, id string, exec ...core.DBExecutor) (exam.Exam, error) {
	if !isUUID(id) {
		return exam.Exam{}, exam.ErrNotFound
	}
	var row examRow
	err := sqlxGet(ctx, repo.getExec(exec), &row,
		"SELECT "+examColumns+" FROM student_exams WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return exam.Exam{}, trapNoRowsErr(err, exam.ErrNotFound, "getting exam")
	}
	return repo.unboil(row), nil
}

func (repo examRepository) QueryExams(ctx context.Context, userID string, exec ...core.DBExecutor) ([]exam.Exam, error) {
	var rows []examRow
	err := sqlxSelect(ctx, repo.getExec(exec), &rows, `
		SELECT `+examColumns+` FROM student_exams
		 WHERE user_id = $1
		 ORDER BY date DESC, created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying exams")
	}
	return repo.unboilSlice(rows), nil
}

func (repo examRepository) QueryExamsOn(ctx context.Context, userID string, date civil.Date, exec ...core.DBExecutor) ([]exam.Exam, error) {
	var rows []examRow
	err := sqlxSelect(ctx, repo.getExec(exec), &rows, `
		SELECT `+examColumns+` FROM student_exams
		 WHERE user_id = $1 AND date = $2
		 ORDER BY created_at, id`,
		userID, date.String(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying exams by date")
	}
	return repo.unboilSlice(rows), nil
}

func (repo examRepository) DeleteExam(ctx context.Context, userID, id string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx,
		"DELETE FROM student_exams WHERE id = $1 AND user_id = $2", id, userID)
	n, err := rowsAffected(res, err, "deleting exam")
	if err != nil {
		return err
	}
	if n == 0 {
		return exam.ErrNotFound
	}
	return nil
}

func (repo examRepository) UpsertExamGrade(ctx context.Context, g exam.Grade, exec ...core.DBExecutor) (exam.Grade, error) {
	if !g.ExamID.Valid {
		return exam.Grade{}, errors.New("upserting exam grade: missing exam id")
	}
	g.ID = uuid.New().String()
	var row examGradeRow
	err := sqlxGet(ctx, repo.getExec(exec), &row, `
		INSERT INTO student_grades (id, user_id, exam_id, date, subject, grade, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (exam_id) WHERE exam_id IS NOT NULL DO UPDATE SET
		    date = EXCLUDED.date, subject = EXCLUDED.subject, grade = EXCLUDED.grade, updated_at = EXCLUDED.updated_at
		RETURNING `+examGradeColumns,
		g.ID, g.UserID, g.ExamID, g.Date.String(), g.Subject, g.Grade, g.CreatedAt.UTC(), g.UpdatedAt.UTC(),
	)
	if err != nil {
		return exam.Grade{}, errors.Wrap(err, "upserting exam grade")
	}
	return repo.unboilGrade(row), nil
}

func (repo examRepository) CreateGrade(ctx context.Context, g exam.Grade, exec ...core.DBExecutor) (exam.Grade, error) {
	g.ID = uuid.New().String()
	var row examGradeRow
	err := sqlxGet(ctx, repo.getExec(exec), &row, `
		INSERT INTO student_grades (id, user_id, exam_id, date, subject, grade, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+examGradeColumns,
		g.ID, g.UserID, g.ExamID, g.Date.String(), g.Subject, g.Grade, g.CreatedAt.UTC(), g.UpdatedAt.UTC(),
	)
	if err != nil {
		return exam.Grade{}, errors.Wrap(err, "inserting grade")
	}
	return repo.unboilGrade(row), nil
}

func (repo examRepository) QueryGrades(ctx context.Context, userID string, exec ...core.DBExecutor) ([]exam.Grade, error) {
	var rows []examGradeRow
	err := sqlxSelect(ctx, repo.getExec(exec), &rows, `
		SELECT `+examGradeColumns+` FROM student_grades
		 WHERE user_id = $1
		 ORDER BY date DESC, created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	grades := make([]exam.Grade, 0, len(rows))
	for _, row := range rows {
		grades = append(grades, repo.unboilGrade(row))
	}
	return grades, nil
}
