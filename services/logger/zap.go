package logsvc

import (
	"strings"

	"github.com/rollbar/rollbar-go"
	"go.uber.org/zap"
)

// NewStdLogger builds the zap logger backing RollbarLogger.
// "PROD" gets JSON output at info level; any other env gets console output at debug level.
func NewStdLogger(name, env string) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	switch strings.ToUpper(env) {
	case "PROD", "QA":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return zl.Named(name).Sugar(), nil
}

// NewNopLogger returns a RollbarLogger that discards everything. It disables rollbar.
func NewNopLogger() *RollbarLogger {
	rollbar.SetEnabled(false)
	return &RollbarLogger{std: zap.NewNop().Sugar()}
}
