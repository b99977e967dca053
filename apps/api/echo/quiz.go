package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/somo/core/quiz"
)

type (
	quizAPI struct {
		svc *quiz.Service
	}

	questionFilter struct {
		Type quiz.QuestionType `query:"questionType"`
	}

	gradeRequest struct {
		Answer string `json:"answer"`
	}
)

func registerQuizAPI(g *echo.Group, svc *quiz.Service) {
	api := quizAPI{svc: svc}

	qg := g.Group("/questions")
	qg.POST("", api.createQuestion, authorMiddleware())
	qg.GET("", api.queryQuestions, authorMiddleware())
	qg.GET("/:id", api.retrieveQuestion)
	qg.PUT("/:id", api.updateQuestion, authorMiddleware())
	qg.POST("/:id/grade", api.gradeQuestion)

	ag := g.Group("/attempts")
	ag.POST("", api.startAttempt)
	ag.GET("/:id", api.retrieveAttempt)
	ag.POST("/:id/answers", api.answerQuestion)
	ag.POST("/:id/submit", api.submitAttempt)
	ag.POST("/:id/grade", api.gradeAttempt)
}

// Question handlers

func (api *quizAPI) createQuestion(ctx echo.Context) error {
	var data quiz.NewQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	q, err := api.svc.CreateQuestion(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating question")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *quizAPI) queryQuestions(ctx echo.Context) error {
	var filter questionFilter
	if err := (&echo.DefaultBinder{}).BindQueryParams(ctx, &filter); err != nil {
		return errors.Wrap(err, "binding to questionFilter")
	}
	var ord Ordering
	ord.Bind(ctx)

	qs, err := api.svc.QueryQuestions(ctx.Request().Context(), quiz.QueryFilter{
		Type:      filter.Type,
		Orderings: ord.Orderings,
	})
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}
	return ctx.JSON(http.StatusOK, qs)
}

func (api *quizAPI) retrieveQuestion(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	q, err := api.svc.GetQuestion(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting question")
	}
	if !lrn.IsAuthor() {
		q = q.LearnerView()
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *quizAPI) updateQuestion(ctx echo.Context) error {
	var data quiz.NewQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	q, err := api.svc.UpdateQuestion(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating question")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *quizAPI) gradeQuestion(ctx echo.Context) error {
	var data gradeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to gradeRequest")
	}
	score, err := api.svc.GradeQuestion(ctx.Request().Context(), ctx.Param("id"), data.Answer)
	if err != nil {
		return errors.Wrap(err, "grading question")
	}
	return ctx.JSON(http.StatusOK, score)
}

// Attempt handlers

func (api *quizAPI) startAttempt(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	var data quiz.NewAttempt
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAttempt")
	}
	a, err := api.svc.StartAttempt(ctx.Request().Context(), lrn, data)
	if err != nil {
		return errors.Wrap(err, "starting attempt")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *quizAPI) retrieveAttempt(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	a, err := api.svc.GetAttempt(ctx.Request().Context(), lrn, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting attempt")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *quizAPI) answerQuestion(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	var data quiz.AnswerRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AnswerRequest")
	}
	a, err := api.svc.AnswerQuestion(ctx.Request().Context(), lrn, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "answering question")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *quizAPI) submitAttempt(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	a, err := api.svc.SubmitAttempt(ctx.Request().Context(), lrn, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "submitting attempt")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *quizAPI) gradeAttempt(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	a, err := api.svc.GradeAttempt(ctx.Request().Context(), lrn, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "grading attempt")
	}
	return ctx.JSON(http.StatusOK, a)
}
