package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/papergraph/papergraph/internal/server/middleware"
)

// AskHandler answers a free-form question over the stored corpus.
func AskHandler(c echo.Context) error {
	type askRequest struct {
		Question string `json:"question" validate:"required"`
		TopK     int    `json:"top_k"`
	}

	req := new(askRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	q := c.(*middleware.AppContext).Query
	answer, err := q.Ask(c.Request().Context(), req.Question, req.TopK)
	if err != nil {
		return c.String(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, answer)
}
