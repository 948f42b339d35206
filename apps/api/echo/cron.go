package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/theoremz/black/core"
	"github.com/theoremz/black/core/readiness"
)

type (
	cronApi struct {
		service     *readiness.Service
		mailSvc     core.EmailService
		adminEmails []string
		logger      core.Logger
	}

	readinessResponse struct {
		OK        bool   `json:"ok"`
		Action    string `json:"action"`
		Processed int    `json:"processed"`
		Updated   int    `json:"updated"`
	}
)

func registerCronAPI(g *echo.Group, conf *core.Config, svc *readiness.Service, mailSvc core.EmailService, logger core.Logger) {
	api := cronApi{service: svc, mailSvc: mailSvc, adminEmails: conf.Email.AdminEmails, logger: logger}

	auth := cronAuthMiddleware(conf, logger)
	g.GET("/readiness", api.readiness, auth)
	g.POST("/readiness", api.readiness, auth)
}

func (api *cronApi) readiness(ctx echo.Context) error {
	action, err := readiness.ParseAction(ctx.QueryParam("action"))
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "action", Error: "must be one of: reset, decay"})
	}

	res, err := api.service.Run(ctx.Request().Context(), action)
	if err != nil {
		return errors.Wrap(err, "running readiness "+action)
	}
	api.logger.Info(res.Summary())

	if msg := readiness.ReportMessage(res, api.adminEmails); msg != nil && api.mailSvc != nil {
		api.mailSvc.SendMessages(msg)
	}

	return ctx.JSON(http.StatusOK, readinessResponse{
		OK:        true,
		Action:    res.Action,
		Processed: res.Processed,
		Updated:   res.Updated,
	})
}
