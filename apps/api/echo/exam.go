package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/theoremz/black/core/exam"
)

type (
	examApi struct {
		service  *exam.Service
		validate *validator.Validate
	}

	examListResponse struct {
		OK    bool        `json:"ok"`
		Items []exam.Exam `json:"items"`
	}

	examSavedResponse struct {
		OK bool   `json:"ok"`
		ID string `json:"id"`
	}

	examGradedResponse struct {
		OK    bool    `json:"ok"`
		Grade float64 `json:"grade"`
	}
)

// registerExamAPI applies m per route; a group-level Use would answer 404 instead of 405 on a wrong method.
func registerExamAPI(g *echo.Group, svc *exam.Service, validate *validator.Validate, m ...echo.MiddlewareFunc) {
	api := examApi{service: svc, validate: validate}

	exams := g.Group("/exams")
	exams.GET("", api.list, m...)
	exams.POST("", api.save, m...)
	exams.DELETE("/:id", api.delete, m...)
	exams.POST("/:id/grade", api.grade, m...)
}

func examError(err error) error {
	if errors.Is(err, exam.ErrNotFound) {
		return errHttpNotFound
	}
	return err
}

func (api *examApi) list(ctx echo.Context) error {
	id, err := mustGetContextIdentity(ctx)
	if err != nil {
		return err
	}
	exams, err := api.service.ListExams(ctx.Request().Context(), id.UID)
	if err != nil {
		return errors.Wrap(err, "listing exams")
	}
	if exams == nil {
		exams = []exam.Exam{}
	}
	return ctx.JSON(http.StatusOK, examListResponse{OK: true, Items: exams})
}

func (api *examApi) save(ctx echo.Context) error {
	id, err := mustGetContextIdentity(ctx)
	if err != nil {
		return err
	}

	var data exam.NewExam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExam")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ex, err := api.service.SaveExam(ctx.Request().Context(), id.UID, data)
	if err != nil {
		return examError(errors.Wrap(err, "saving exam"))
	}
	return ctx.JSON(http.StatusOK, examSavedResponse{OK: true, ID: ex.ID})
}

func (api *examApi) delete(ctx echo.Context) error {
	id, err := mustGetContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err := api.service.DeleteExam(ctx.Request().Context(), id.UID, ctx.Param("id")); err != nil {
		return examError(errors.Wrap(err, "deleting exam"))
	}
	return ctx.JSON(http.StatusOK, ok)
}

func (api *examApi) grade(ctx echo.Context) error {
	id, err := mustGetContextIdentity(ctx)
	if err != nil {
		return err
	}

	var data exam.ExamGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ExamGrade")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ex, err := api.service.GradeExam(ctx.Request().Context(), id.UID, ctx.Param("id"), data)
	if err != nil {
		return examError(errors.Wrap(err, "grading exam"))
	}
	return ctx.JSON(http.StatusOK, examGradedResponse{OK: true, Grade: ex.Grade.Float64})
}
