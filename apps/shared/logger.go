package shared

import (
	"github.com/theoremz/black/core"
	logsvc "github.com/theoremz/black/services/logger"
)

// NewLogger returns a named logger. Errors are reported to rollbar outside of debug mode.
func NewLogger(name string, conf *core.Config) (*logsvc.RollbarLogger, error) {
	std, err := logsvc.NewStdLogger(name, conf.Env)
	if err != nil {
		return nil, err
	}
	logger := logsvc.NewRollbarLogger(std, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger, nil
}
