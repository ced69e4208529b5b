package server

import (
	"github.com/labstack/echo/v4"

	"github.com/papergraph/papergraph/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api")

	// Document review routes
	apiRoutes.GET("/documents", routes.ListDocumentsHandler)
	apiRoutes.GET("/documents/:id", routes.GetDocumentHandler)
	apiRoutes.GET("/documents/:id/entities", routes.GetEntitiesHandler)
	apiRoutes.GET("/documents/:id/relationships", routes.GetRelationshipsHandler)
	apiRoutes.GET("/documents/:id/citation", routes.GetCitationHandler)

	// Corpus question answering
	apiRoutes.POST("/ask", routes.AskHandler)
}
