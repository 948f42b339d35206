package shared

import (
	"context"
	"fmt"

	"github.com/theoremz/black/core"
	"github.com/theoremz/black/core/assessment"
	"github.com/theoremz/black/core/exam"
	"github.com/theoremz/black/core/readiness"
	"github.com/theoremz/black/core/student"
	emailsvc "github.com/theoremz/black/services/email"
	"github.com/theoremz/black/storage/cache"
)

type Services struct {
	Directory  *student.Directory
	Assessment *assessment.Service
	Exam       *exam.Service
	Readiness  *readiness.Service
}

func NewServices(stores *Stores, studentCache student.Cache, conf *core.Config, logger core.Logger, metrics core.Metrics) *Services {
	dir := student.NewDirectory(stores.Students, studentCache, conf.Cache, logger)
	assessmentSvc := assessment.NewService(stores.Assessments, dir, stores.Tx, logger, metrics)
	return &Services{
		Directory:  dir,
		Assessment: assessmentSvc,
		Exam:       exam.NewService(stores.Exams, stores.Tx, assessmentSvc, logger),
		Readiness:  readiness.NewService(stores.Students, stores.Tx, logger, metrics),
	}
}

// NewStudentCache returns the redis cache when configured, an in-process one otherwise.
// An unreachable redis falls back to the in-process cache.
func NewStudentCache(ctx context.Context, conf *core.Config, logger core.Logger) (student.Cache, func() error) {
	noop := func() error { return nil }
	if conf.Cache.RedisAddr == "" {
		return cache.NewMemory(), noop
	}
	client, err := cache.NewRedisClient(ctx, conf.Cache)
	if err != nil {
		logger.Error(fmt.Sprintf("connecting to redis at %s: %v", conf.Cache.RedisAddr, err), err)
		return cache.NewMemory(), noop
	}
	return cache.NewRedis(client), client.Close
}

// NewMailService logs emails in debug mode and sends them through sendgrid otherwise.
func NewMailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.Email.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}
