package server

import (
	"net/http"

	"github.com/OFFIS-RIT/graphlearn/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	registerGroup(e.Group(""))
	registerGroup(e.Group("/api"))
}

func registerGroup(g *echo.Group) {
	// Health check route
	g.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Pipeline routes
	g.POST("/process", routes.ProcessDocumentHandler)
	g.POST("/scrape", routes.ScrapeAndExpandHandler)

	// Document routes
	g.GET("/documents/:id", routes.GetDocumentHandler)
}
