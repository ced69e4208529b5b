package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/papergraph/papergraph/internal/server/middleware"
)

// ListDocumentsHandler returns every document with its processing state.
func ListDocumentsHandler(c echo.Context) error {
	q := c.(*middleware.AppContext).Query

	docs, err := q.ListDocuments(c.Request().Context())
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, docs)
}
