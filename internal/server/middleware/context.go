package middleware

import (
	"context"

	"github.com/OFFIS-RIT/graphlearn/internal/pipeline"
	"github.com/OFFIS-RIT/graphlearn/pkg/store"

	"github.com/labstack/echo/v4"
)

// Pipeline is the part of pipeline.DocumentPipeline the handlers call.
type Pipeline interface {
	Ingest(ctx context.Context, documentID string) pipeline.IngestResult
	Expand(ctx context.Context, documentID, nodeID, topic string) (pipeline.ExpandResult, error)
}

// DocumentReader reads document metadata for status polling.
type DocumentReader interface {
	GetDocument(ctx context.Context, id string) (*store.Document, error)
}

type App struct {
	Pipeline  Pipeline
	Documents DocumentReader
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
