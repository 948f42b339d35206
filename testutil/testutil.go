// Package testutil holds helpers shared by the tests of the apps and services.
package testutil

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/theoremz/black/apps/shared"
	"github.com/theoremz/black/core"
	"github.com/theoremz/black/core/assessment"
	"github.com/theoremz/black/core/exam"
	"github.com/theoremz/black/core/readiness"
	"github.com/theoremz/black/core/student"
	"github.com/theoremz/black/storage/cache"
	inmemdb "github.com/theoremz/black/storage/database/inmem"
)

// NewConfig returns the config used by tests. Nothing is read from the environment.
func NewConfig() *core.Config {
	return &core.Config{
		Env:      "TEST",
		Build:    "test",
		AppName:  "Theoremz Black",
		TestMode: true,
		Server: core.ServerConfig{
			Host:            "localhost",
			Addr:            ":0",
			BodyLimit:       "1M",
			ShutdownTimeout: time.Second,
		},
		Database: core.DatabaseConfig{Engine: "memory"},
		Cron: core.CronConfig{
			Header:        "X-Cron-Secret",
			QueryParam:    "secret",
			TrustedHeader: "X-Vercel-Cron",
		},
		Cache: core.CacheConfig{
			PositiveTTL: 10 * time.Minute,
			NegativeTTL: 2 * time.Minute,
		},
		Email: core.EmailConfig{
			DefaultFromEmail: "Theoremz <noreply@theoremz.test>",
			FrontendBaseURL:  "http://localhost:3000",
		},
	}
}

// NewValidator returns a validator set up the way the apps set it up.
func NewValidator() (*validator.Validate, ut.Translator) {
	return shared.NewValidator()
}

// Stack is the whole service graph, wired on the in-memory database.
type Stack struct {
	DB          *inmemdb.DB
	Students    *inmemdb.StudentRepository
	Assessments *inmemdb.AssessmentRepository
	Exams       *inmemdb.ExamRepository
	Cache       *cache.Memory
	Directory   *student.Directory

	AssessmentSvc *assessment.Service
	ExamSvc       *exam.Service
	ReadinessSvc  *readiness.Service
}

func NewStack(conf *core.Config, logger core.Logger) *Stack {
	db := inmemdb.Open()
	s := &Stack{
		DB:          db,
		Students:    inmemdb.NewStudentRepository(db),
		Assessments: inmemdb.NewAssessmentRepository(db),
		Exams:       inmemdb.NewExamRepository(db),
		Cache:       cache.NewMemory(),
	}
	svcs := shared.NewServices(&shared.Stores{
		Tx:          db,
		Students:    s.Students,
		Assessments: s.Assessments,
		Exams:       s.Exams,
		Mirror:      inmemdb.NewMirrorSource(db),
	}, s.Cache, conf, logger, nil)
	s.Directory = svcs.Directory
	s.AssessmentSvc = svcs.Assessment
	s.ExamSvc = svcs.Exam
	s.ReadinessSvc = svcs.Readiness
	return s
}

// CreateStudent adds a Black student. uid may be empty for students without an account.
func CreateStudent(t *testing.T, repo student.Repository, name, uid string, readiness int, createdAt ...time.Time) student.Student {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	s, err := repo.CreateStudent(context.Background(), student.Student{
		UID:       null.NewString(uid, uid != ""),
		Name:      name,
		Readiness: readiness,
		RiskLevel: null.StringFrom(student.RiskGreen),
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return s
}

// Date parses a YYYY-MM-DD date or fails the test.
func Date(t *testing.T, s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		t.Fatalf("Date(%q) failed: %v", s, err)
	}
	return d
}
