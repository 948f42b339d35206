package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	authsvc "github.com/theoremz/black/services/auth"
)

const contextIdentityKey = "identity"

// bearerToken extracts the token of an `Authorization: Bearer <token>` header.
func bearerToken(ctx echo.Context) string {
	auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// firebaseAuthMiddleware authenticates the caller with its Firebase ID token.
func firebaseAuthMiddleware(verifier authsvc.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			token := bearerToken(ctx)
			if token == "" {
				return errUnauthorized
			}
			id, err := verifier.Verify(ctx.Request().Context(), token)
			if err != nil {
				if errors.Is(err, authsvc.ErrInvalidToken) {
					return errUnauthorized
				}
				return errors.Wrap(err, "verifying id token")
			}
			ctx.Set(contextIdentityKey, id)
			return next(ctx)
		}
	}
}

func getContextIdentity(ctx echo.Context) (authsvc.Identity, bool) {
	id, ok := ctx.Get(contextIdentityKey).(authsvc.Identity)
	return id, ok && id.UID != ""
}

func mustGetContextIdentity(ctx echo.Context) (authsvc.Identity, error) {
	if id, ok := getContextIdentity(ctx); ok {
		return id, nil
	}
	return authsvc.Identity{}, errUnauthorized
}
