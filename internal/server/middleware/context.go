package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/papergraph/papergraph/pkg/query"
)

// AppContext carries the shared application dependencies into route
// handlers.
type AppContext struct {
	echo.Context
	Query *query.Service
}

func AppContextMiddleware(q *query.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{Context: c, Query: q})
		}
	}
}
