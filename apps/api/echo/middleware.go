package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// authorMiddleware restricts a route to question authors: teachers and admins.
func authorMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			lrn, err := getContextLearner(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context learner")
			}
			if lrn.IsAuthor() {
				return next(ctx)
			}
			return errHTTPForbidden
		}
	}
}
