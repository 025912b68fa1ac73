package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/graphlearn/internal/pipeline"
	"github.com/OFFIS-RIT/graphlearn/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

type detailResponse struct {
	Detail string `json:"detail"`
}

// ProcessDocumentHandler runs the ingest flow for one document and answers
// once the document reached a terminal status.
func ProcessDocumentHandler(c echo.Context) error {
	type processBody struct {
		DocumentID string `json:"document_id" validate:"required"`
	}

	type processResponse struct {
		Message    string `json:"message"`
		DocumentID string `json:"document_id"`
		Status     string `json:"status"`
		Reason     string `json:"failure_reason,omitempty"`
	}

	data := new(processBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, detailResponse{Detail: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, detailResponse{Detail: "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	res := app.Pipeline.Ingest(c.Request().Context(), data.DocumentID)

	switch res.Outcome {
	case pipeline.OutcomeDocumentNotFound:
		return c.JSON(http.StatusNotFound, detailResponse{Detail: "Document not found"})
	case pipeline.OutcomeCompleted:
		return c.JSON(http.StatusOK, processResponse{
			Message:    "Document processed successfully",
			DocumentID: data.DocumentID,
			Status:     string(res.Status),
		})
	}
	return c.JSON(http.StatusOK, processResponse{
		Message:    "Document processing failed",
		DocumentID: data.DocumentID,
		Status:     string(res.Status),
		Reason:     string(res.Reason),
	})
}
