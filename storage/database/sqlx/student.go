package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/theoremz/black/core"
	"github.com/theoremz/black/core/student"
)

const studentColumns = `id, uid, name, email, phone, track, readiness, risk_level,
	readiness_updated_at, created_at, updated_at`

type studentRow struct {
	ID                 string      `db:"id"`
	UID                null.String `db:"uid"`
	Name               string      `db:"name"`
	Email              null.String `db:"email"`
	Phone              null.String `db:"phone"`
	Track              null.String `db:"track"`
	Readiness          int         `db:"readiness"`
	RiskLevel          null.String `db:"risk_level"`
	ReadinessUpdatedAt null.Time   `db:"readiness_updated_at"`
	CreatedAt          time.Time   `db:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at"`
}

type readinessRow struct {
	ID        string `db:"id"`
	Readiness int    `db:"readiness"`
}

type studentRepository struct {
	repository
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(exec core.DBExecutor) *studentRepository {
	return &studentRepository{repository{exec: exec}}
}

func (repo studentRepository) unboil(row studentRow) student.Student {
	return student.Student{
		ID:                 row.ID,
		UID:                row.UID,
		Name:               row.Name,
		Email:              row.Email,
		Phone:              row.Phone,
		Track:              row.Track,
		Readiness:          row.Readiness,
		RiskLevel:          row.RiskLevel,
		ReadinessUpdatedAt: null.NewTime(row.ReadinessUpdatedAt.Time.UTC(), row.ReadinessUpdatedAt.Valid),
		CreatedAt:          row.CreatedAt.UTC(),
		UpdatedAt:          row.UpdatedAt.UTC(),
	}
}

func (repo studentRepository) CreateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	s.ID = uuid.New().String()
	s.Readiness = student.ClampReadiness(s.Readiness)

	var row studentRow
	err := sqlxGet(ctx, repo.getExec(exec), &row, `
		INSERT INTO black_students (id, uid, name, email, phone, track, readiness, risk_level, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+studentColumns,
		s.ID, s.UID, s.Name, s.Email, s.Phone, s.Track, s.Readiness, s.RiskLevel, s.CreatedAt.UTC(), s.UpdatedAt.UTC(),
	)
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return student.Student{}, student.ErrUIDTaken
		}
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return repo.unboil(row), nil
}

func (repo studentRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	if !isUUID(id) {
		return student.Student{}, student.ErrNotFound
	}
	var row studentRow
	err := sqlxGet(ctx, repo.getExec(exec), &row, "SELECT "+studentColumns+" FROM black_students WHERE id = $1", id)
	if err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "getting student")
	}
	return repo.unboil(row), nil
}

func (repo studentRepository) GetStudentByUID(ctx context.Context, uid string, exec ...core.DBExecutor) (student.Student, error) {
	var row studentRow
	err := sqlxGet(ctx, repo.getExec(exec), &row, "SELECT "+studentColumns+" FROM black_students WHERE uid = $1", uid)
	if err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "getting student by uid")
	}
	return repo.unboil(row), nil
}

func (repo studentRepository) ListReadiness(ctx context.Context, exec ...core.DBExecutor) ([]student.Readiness, error) {
	var rows []readinessRow
	if err := sqlxSelect(ctx, repo.getExec(exec), &rows, "SELECT id, readiness FROM black_students ORDER BY id"); err != nil {
		return nil, errors.Wrap(err, "listing readiness")
	}
	out := make([]student.Readiness, 0, len(rows))
	for _, r := range rows {
		out = append(out, student.Readiness{StudentID: r.ID, Value: r.Readiness})
	}
	return out, nil
}

// SetReadiness updates the whole batch in one statement.
func (repo studentRepository) SetReadiness(ctx context.Context, batch []student.Readiness, at time.Time, exec ...core.DBExecutor) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(batch))
	values := make([]int64, 0, len(batch))
	for _, r := range batch {
		ids = append(ids, r.StudentID)
		values = append(values, int64(student.ClampReadiness(r.Value)))
	}

	res, err := repo.getExec(exec).ExecContext(ctx, strings.TrimSpace(`
		UPDATE black_students AS s
		   SET readiness = v.readiness, readiness_updated_at = $3, updated_at = $3
		  FROM unnest($1::uuid[], $2::int[]) AS v(id, readiness)
		 WHERE s.id = v.id`),
		pq.Array(ids), pq.Array(values), at.UTC(),
	)
	return rowsAffected(res, err, "updating readiness")
}
