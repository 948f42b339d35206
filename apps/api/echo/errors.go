package echoapi

import (
	"net/http"
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/theoremz/black/core"
)

const (
	codeBadRequest = "bad_request"
	codeInternal   = "internal_error"
)

var (
	errUnauthorized = echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	errHttpNotFound = echo.NewHTTPError(http.StatusNotFound, "not_found")

	errorCodeRegex = regexp.MustCompile(`^[a-z][a-z_]*$`)
)

// httpErrorCode returns the machine-readable code of an echo.HTTPError, derived from its status
// when its message is free text.
func httpErrorCode(herr *echo.HTTPError) string {
	if msg, ok := herr.Message.(string); ok && errorCodeRegex.MatchString(msg) {
		return msg
	}
	text := http.StatusText(herr.Code)
	if text == "" {
		return codeInternal
	}
	return strings.ToLower(strings.NewReplacer(" ", "_", "-", "_", "'", "").Replace(text))
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// Every error is sent as {"error": "<code>"}, plus "fields" for validation errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		body := echo.Map{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			body["error"] = httpErrorCode(origErr)
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				if translator != nil {
					fldErrs[vErr.Field()] = vErr.Translate(translator)
				} else {
					fldErrs[vErr.Field()] = vErr.Error()
				}
			}
			code = http.StatusBadRequest
			body["error"] = codeBadRequest
			body["fields"] = fldErrs
		case *core.ValidationError:
			code = http.StatusBadRequest
			body["error"] = codeBadRequest
			if origErr.Code != "" {
				body["error"] = origErr.Code
			}
			if len(origErr.Fields) > 0 {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				body["fields"] = fldErrs
			}
		default: // any other error is a server error
			code = http.StatusInternalServerError
			body["error"] = codeInternal

			var person core.Person
			if id, ok := getContextIdentity(ctx); ok {
				person = core.Person{ID: id.UID, Email: id.Email}
			}
			logger.Error(http.StatusText(code), errors.Wrap(err, ctx.Request().Method+" "+ctx.Path()), person)

			if ctx.Echo().Debug {
				body["detail"] = err.Error()
			}

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, body)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
