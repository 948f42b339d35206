// Package shared wires the dependencies common to the api and admin apps.
package shared

import (
	"context"

	"github.com/pkg/errors"

	"github.com/theoremz/black/core"
	"github.com/theoremz/black/core/assessment"
	"github.com/theoremz/black/core/exam"
	"github.com/theoremz/black/core/mirror"
	"github.com/theoremz/black/core/student"
	"github.com/theoremz/black/storage/database"
	inmemdb "github.com/theoremz/black/storage/database/inmem"
	sqlxrepos "github.com/theoremz/black/storage/database/sqlx"
)

// database engines
const (
	EnginePostgres = "postgres"
	EngineMemory   = "memory"
)

// Stores are the repositories of the configured database engine.
type Stores struct {
	Tx          core.TxRunner
	Students    student.Repository
	Assessments assessment.Repository
	Exams       exam.Repository
	Mirror      mirror.Source

	close func() error
}

func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStores opens the configured database. Postgres is created and migrated first
// when conf.Database.AutoMigrate is set.
func OpenStores(ctx context.Context, conf *core.Config, logger core.Logger) (*Stores, error) {
	switch engine := core.CleanString(conf.Database.Engine, true /* lower */); engine {
	case EngineMemory:
		logger.Warn("using the in-memory database: data will be lost on exit")
		db := inmemdb.Open()
		return &Stores{
			Tx:          db,
			Students:    inmemdb.NewStudentRepository(db),
			Assessments: inmemdb.NewAssessmentRepository(db),
			Exams:       inmemdb.NewExamRepository(db),
			Mirror:      inmemdb.NewMirrorSource(db),
		}, nil

	case "", EnginePostgres:
		if conf.Database.AutoMigrate {
			if err := database.CreateIfNotExist(conf); err != nil {
				return nil, errors.Wrap(err, "creating database")
			}
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if conf.Database.AutoMigrate {
			if err = database.Migrate(ctx, db.DB); err != nil {
				_ = db.Close()
				return nil, errors.Wrap(err, "migrating database")
			}
		}
		return &Stores{
			Tx:          database.NewTxRunner(db),
			Students:    sqlxrepos.NewStudentRepository(db),
			Assessments: sqlxrepos.NewAssessmentRepository(db),
			Exams:       sqlxrepos.NewExamRepository(db),
			Mirror:      sqlxrepos.NewMirrorSource(db),
			close:       db.Close,
		}, nil

	default:
		return nil, errors.Errorf("unknown database engine %q", engine)
	}
}
