package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/somo/core/course"
)

type (
	courseAPI struct {
		svc *course.Service
	}

	markCompleteRequest struct {
		ModuleID string `json:"course_module_id"`
		StepID   string `json:"course_id"`
	}

	markCompleteResponse struct {
		Success     bool `json:"success"`
		CurrentStep int  `json:"current_step"`
		Finished    bool `json:"finished"`
	}
)

func registerCourseAPI(g *echo.Group, svc *course.Service) {
	api := courseAPI{svc: svc}

	g.GET("/modules/:id", api.retrieveModule)
	g.POST("/progress", api.markComplete)
}

// Handlers

func (api *courseAPI) retrieveModule(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	state, err := api.svc.GetModule(ctx.Request().Context(), ctx.Param("id"), lrn.ID)
	if err != nil {
		return errors.Wrap(err, "getting module")
	}
	return ctx.JSON(http.StatusOK, state)
}

func (api *courseAPI) markComplete(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	var data markCompleteRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to markCompleteRequest")
	}

	state, err := api.svc.Complete(ctx.Request().Context(), lrn, data.ModuleID, data.StepID)
	if err != nil {
		return errors.Wrap(err, "marking step complete")
	}
	return ctx.JSON(http.StatusOK, markCompleteResponse{
		Success:     true,
		CurrentStep: state.CurrentStep,
		Finished:    state.Finished,
	})
}
