package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/papergraph/papergraph/internal/server/middleware"
	"github.com/papergraph/papergraph/pkg/store"
)

// GetDocumentHandler reports the document's processing state, including
// the failed stage when processing stopped early.
func GetDocumentHandler(c echo.Context) error {
	q := c.(*middleware.AppContext).Query
	ctx := c.Request().Context()

	doc, err := q.DocumentStatus(ctx, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "document not found"})
	}
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, doc)
}

// GetEntitiesHandler lists the graph entities evidenced by a document.
func GetEntitiesHandler(c echo.Context) error {
	q := c.(*middleware.AppContext).Query
	ctx := c.Request().Context()

	entities, err := q.EntitiesForDocument(ctx, c.Param("id"))
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entities)
}

// GetRelationshipsHandler lists the graph relationships evidenced by a
// document.
func GetRelationshipsHandler(c echo.Context) error {
	q := c.(*middleware.AppContext).Query
	ctx := c.Request().Context()

	relationships, err := q.RelationshipsForDocument(ctx, c.Param("id"))
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, relationships)
}
