package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/graphlearn/internal/server/middleware"
	"github.com/OFFIS-RIT/graphlearn/pkg/graph"
	"github.com/OFFIS-RIT/graphlearn/pkg/store"

	"github.com/labstack/echo/v4"
)

// GetDocumentHandler reports the status, failure reason and graph of a document.
func GetDocumentHandler(c echo.Context) error {
	type getDocumentParams struct {
		ID string `param:"id" validate:"required"`
	}

	type documentResponse struct {
		ID            string       `json:"id"`
		Status        string       `json:"status"`
		FailureReason string       `json:"failure_reason,omitempty"`
		Graph         *graph.Graph `json:"graph"`
	}

	params := new(getDocumentParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, detailResponse{Detail: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, detailResponse{Detail: "Invalid request params"})
	}

	app := c.(*middleware.AppContext).App
	doc, err := app.Documents.GetDocument(c.Request().Context(), params.ID)
	if err != nil {
		if errors.Is(err, store.ErrDocumentNotFound) {
			return c.JSON(http.StatusNotFound, detailResponse{Detail: "Document not found"})
		}
		return c.JSON(http.StatusInternalServerError, detailResponse{Detail: "Internal server error"})
	}

	return c.JSON(http.StatusOK, documentResponse{
		ID:            doc.ID,
		Status:        string(doc.Status),
		FailureReason: string(doc.FailureReason),
		Graph:         doc.Graph,
	})
}
