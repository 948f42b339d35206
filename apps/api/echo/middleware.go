package echoapi

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"

	"github.com/theoremz/black/core"
)

func secretMatches(given, secret string) bool {
	return given != "" && subtle.ConstantTimeCompare([]byte(given), []byte(secret)) == 1
}

// cronAuthMiddleware lets scheduled jobs in. The caller must either be the trusted scheduler
// or present the shared secret as a bearer token, a header or a query param.
// Without a configured secret, every caller is let in outside of production.
func cronAuthMiddleware(conf *core.Config, logger core.Logger) echo.MiddlewareFunc {
	cron := conf.Cron
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			req := ctx.Request()
			if cron.TrustedHeader != "" && req.Header.Get(cron.TrustedHeader) != "" {
				return next(ctx)
			}

			if cron.Secret == "" {
				if conf.IsProduction() {
					return errUnauthorized
				}
				logger.Warn("cron secret not set: running " + ctx.Path() + " unauthenticated")
				return next(ctx)
			}

			if secretMatches(bearerToken(ctx), cron.Secret) ||
				(cron.Header != "" && secretMatches(req.Header.Get(cron.Header), cron.Secret)) ||
				(cron.QueryParam != "" && secretMatches(ctx.QueryParam(cron.QueryParam), cron.Secret)) {
				return next(ctx)
			}
			return errUnauthorized
		}
	}
}
