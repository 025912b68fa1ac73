package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/graphlearn/internal/pipeline"
	"github.com/OFFIS-RIT/graphlearn/internal/server/middleware"
	"github.com/OFFIS-RIT/graphlearn/pkg/graph"
	"github.com/OFFIS-RIT/graphlearn/pkg/logger"
	"github.com/OFFIS-RIT/graphlearn/pkg/store"

	"github.com/labstack/echo/v4"
)

// ScrapeAndExpandHandler grows the graph of a document below node_id with
// concepts found in the reference text for topic.
func ScrapeAndExpandHandler(c echo.Context) error {
	type scrapeBody struct {
		DocumentID string `json:"document_id" validate:"required"`
		NodeID     string `json:"node_id" validate:"required"`
		Topic      string `json:"topic" validate:"required"`
	}

	type scrapeResponse struct {
		Message  string `json:"message"`
		NewNodes int    `json:"new_nodes"`
		NewEdges int    `json:"new_edges"`
	}

	data := new(scrapeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, detailResponse{Detail: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, detailResponse{Detail: "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	res, err := app.Pipeline.Expand(c.Request().Context(), data.DocumentID, data.NodeID, data.Topic)
	if err != nil {
		logger.Warn("[Server] Expand failed", "document_id", data.DocumentID, "topic", data.Topic, "err", err)
		switch {
		case errors.Is(err, store.ErrDocumentNotFound):
			return c.JSON(http.StatusNotFound, detailResponse{Detail: "Document not found"})
		case errors.Is(err, pipeline.ErrNothingScraped):
			return c.JSON(http.StatusInternalServerError, detailResponse{Detail: "No content found for topic"})
		case errors.Is(err, pipeline.ErrExpansionFailed):
			return c.JSON(http.StatusInternalServerError, detailResponse{Detail: "Failed to generate graph from scraped content"})
		case errors.Is(err, graph.ErrMergeConflict):
			return c.JSON(http.StatusConflict, detailResponse{Detail: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, detailResponse{Detail: "Internal server error"})
	}

	return c.JSON(http.StatusOK, scrapeResponse{
		Message:  "Scraping and update completed",
		NewNodes: res.NewNodes,
		NewEdges: res.NewEdges,
	})
}
