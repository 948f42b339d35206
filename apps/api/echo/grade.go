package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/theoremz/black/core/exam"
)

type (
	gradeApi struct {
		service  *exam.Service
		validate *validator.Validate
	}

	gradeListResponse struct {
		OK    bool         `json:"ok"`
		Items []exam.Grade `json:"items"`
	}

	gradeSavedResponse struct {
		OK     bool   `json:"ok"`
		ID     string `json:"id"`
		ExamID string `json:"exam_id,omitempty"`
	}
)

func registerGradeAPI(g *echo.Group, svc *exam.Service, validate *validator.Validate, m ...echo.MiddlewareFunc) {
	api := gradeApi{service: svc, validate: validate}

	grades := g.Group("/grades")
	grades.GET("", api.list, m...)
	grades.POST("", api.create, m...)
}

func (api *gradeApi) list(ctx echo.Context) error {
	id, err := mustGetContextIdentity(ctx)
	if err != nil {
		return err
	}
	grades, err := api.service.ListGrades(ctx.Request().Context(), id.UID)
	if err != nil {
		return errors.Wrap(err, "listing grades")
	}
	if grades == nil {
		grades = []exam.Grade{}
	}
	return ctx.JSON(http.StatusOK, gradeListResponse{OK: true, Items: grades})
}

func (api *gradeApi) create(ctx echo.Context) error {
	id, err := mustGetContextIdentity(ctx)
	if err != nil {
		return err
	}

	var data exam.NewGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	grade, err := api.service.AddGrade(ctx.Request().Context(), id.UID, data)
	if err != nil {
		return errors.Wrap(err, "adding grade")
	}
	return ctx.JSON(http.StatusOK, gradeSavedResponse{OK: true, ID: grade.ID, ExamID: grade.ExamID.String})
}
