package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/papergraph/papergraph/internal/server/middleware"
	"github.com/papergraph/papergraph/pkg/citation"
	"github.com/papergraph/papergraph/pkg/store"
)

// GetCitationHandler renders a document's citation in the requested
// style (query parameter "style", default APA).
func GetCitationHandler(c echo.Context) error {
	q := c.(*middleware.AppContext).Query
	ctx := c.Request().Context()

	style := c.QueryParam("style")
	if style == "" {
		style = string(citation.StyleAPA)
	}

	formatted, err := q.CitationForDocument(ctx, c.Param("id"), style)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "citation not found"})
	}
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"style":    style,
		"citation": formatted,
	})
}
