package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/graphlearn/internal/util"
	"github.com/OFFIS-RIT/graphlearn/pkg/graph"
	"github.com/OFFIS-RIT/graphlearn/pkg/logger"
	"github.com/OFFIS-RIT/graphlearn/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

const (
	getDocumentSQL = `SELECT id, file_path, COALESCE(status, 'pending'), COALESCE(failure_reason, ''), COALESCE(graph_data, 'null'::jsonb), created_at, updated_at
FROM documents WHERE id = $1`

	setStatusSQL = `UPDATE documents SET status = $2, failure_reason = NULLIF($3, ''), updated_at = now() WHERE id = $1`

	saveGraphSQL = `UPDATE documents SET graph_data = $2, updated_at = now() WHERE id = $1`

	saveGraphAndStatusSQL = `UPDATE documents SET graph_data = $2, status = $3, failure_reason = NULL, updated_at = now() WHERE id = $1`
)

// DocumentDBStorage implements store.DocumentStorage on PostgreSQL. The graph
// lives in the graph_data JSONB column.
type DocumentDBStorage struct {
	conn pgxIConn
}

// NewDocumentDBStorageWithConnection wraps a pool, a connection or a transaction.
func NewDocumentDBStorageWithConnection(conn pgxIConn) *DocumentDBStorage {
	return &DocumentDBStorage{conn: conn}
}

func (s *DocumentDBStorage) GetDocument(ctx context.Context, id string) (*store.Document, error) {
	var (
		doc       store.Document
		status    string
		reason    string
		graphData []byte
	)
	err := s.conn.QueryRow(ctx, getDocumentSQL, id).Scan(
		&doc.ID,
		&doc.StoragePath,
		&status,
		&reason,
		&graphData,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, store.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to load document %s: %w", id, err)
	}
	doc.Status = store.Status(status)
	doc.FailureReason = store.FailureReason(reason)

	if len(graphData) > 0 && string(graphData) != "null" {
		var g graph.Graph
		if err := json.Unmarshal(graphData, &g); err != nil {
			return nil, fmt.Errorf("failed to decode graph of document %s: %w", id, err)
		}
		doc.Graph = &g
	}
	return &doc, nil
}

func (s *DocumentDBStorage) SetStatus(ctx context.Context, id string, status store.Status, reason store.FailureReason) error {
	tag, err := s.conn.Exec(ctx, setStatusSQL, id, string(status), string(reason))
	if err != nil {
		return fmt.Errorf("failed to set status of document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrDocumentNotFound
	}
	return nil
}

func (s *DocumentDBStorage) SaveGraph(ctx context.Context, id string, g graph.Graph) error {
	data, err := encodeGraph(id, g)
	if err != nil {
		return err
	}
	tag, err := s.conn.Exec(ctx, saveGraphSQL, id, data)
	if err != nil {
		return fmt.Errorf("failed to save graph of document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrDocumentNotFound
	}
	return nil
}

// SaveGraphAndStatus writes graph and status in one statement so readers never
// see a completed document without its graph.
func (s *DocumentDBStorage) SaveGraphAndStatus(ctx context.Context, id string, g graph.Graph, status store.Status) error {
	data, err := encodeGraph(id, g)
	if err != nil {
		return err
	}
	tag, err := s.conn.Exec(ctx, saveGraphAndStatusSQL, id, data, string(status))
	if err != nil {
		return fmt.Errorf("failed to save graph of document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrDocumentNotFound
	}
	return nil
}

// encodeGraph serialises g for the graph_data column. NUL bytes and invalid
// UTF-8 are dropped from every string since Postgres rejects them; this is
// lossy, so ids that differ only in those bytes collapse into one.
func encodeGraph(id string, g graph.Graph) ([]byte, error) {
	clean, changed := sanitizeGraph(g)
	if changed > 0 {
		logger.Warn("[Store] Stripped NUL or invalid UTF-8 from graph", "document_id", id, "fields", changed)
	}
	data, err := json.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to encode graph: %w", err)
	}
	return data, nil
}

// sanitizeGraph returns a copy of g with every string passed through
// util.SanitizePostgresText and the number of fields that changed.
func sanitizeGraph(g graph.Graph) (graph.Graph, int) {
	changed := 0
	clean := func(v string) string {
		out := util.SanitizePostgresText(v)
		if out != v {
			changed++
		}
		return out
	}

	out := graph.Graph{
		Nodes: make([]graph.Node, len(g.Nodes)),
		Edges: make([]graph.Edge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = graph.Node{
			ID:          clean(n.ID),
			Label:       clean(n.Label),
			Description: clean(n.Description),
			Level:       n.Level,
		}
	}
	for i, e := range g.Edges {
		out.Edges[i] = graph.Edge{
			Source:   clean(e.Source),
			Target:   clean(e.Target),
			Relation: clean(e.Relation),
		}
	}
	return out, changed
}
