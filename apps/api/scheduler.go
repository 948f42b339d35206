package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/theoremz/black/core"
	"github.com/theoremz/black/core/readiness"
)

const jobTimeout = 10 * time.Minute

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(fmt.Sprintf("cron: %s %v", msg, keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(fmt.Sprintf("cron: %s %v: %v", msg, keysAndValues, err), err)
}

// newScheduler schedules the readiness decay in-process when conf.Cron.DecaySchedule is set.
// Returns nil otherwise.
func newScheduler(conf *core.Config, svc *readiness.Service, mailSvc core.EmailService, logger core.Logger) (*cron.Cron, error) {
	if conf.Cron.DecaySchedule == "" {
		return nil, nil
	}

	clog := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	_, err := c.AddFunc(conf.Cron.DecaySchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		res, err := svc.Decay(ctx)
		if err != nil {
			return // logged by the service
		}
		if msg := readiness.ReportMessage(res, conf.Email.AdminEmails); msg != nil {
			mailSvc.SendMessages(msg)
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scheduling readiness decay %q", conf.Cron.DecaySchedule)
	}
	return c, nil
}
