package pgx

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/OFFIS-RIT/graphlearn/pkg/graph"
	"github.com/OFFIS-RIT/graphlearn/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
)

var documentColumns = []string{"id", "file_path", "status", "failure_reason", "graph_data", "created_at", "updated_at"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool() error = %v", err)
	}
	t.Cleanup(func() {
		mock.Close()
	})
	return mock
}

func TestGetDocument(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("with graph", func(t *testing.T) {
		mock := newMock(t)
		s := NewDocumentDBStorageWithConnection(mock)

		mock.ExpectQuery(regexp.QuoteMeta(getDocumentSQL)).
			WithArgs("doc-1").
			WillReturnRows(pgxmock.NewRows(documentColumns).AddRow(
				"doc-1", "uploads/doc-1.pdf", "completed", "",
				[]byte(`{"nodes":[{"id":"c1","label":"X","description":"d","level":1}],"edges":[]}`),
				now, now,
			))

		doc, err := s.GetDocument(ctx, "doc-1")
		if err != nil {
			t.Fatalf("GetDocument() error = %v", err)
		}
		if doc.StoragePath != "uploads/doc-1.pdf" || doc.Status != store.StatusCompleted {
			t.Fatalf("unexpected document %+v", doc)
		}
		if doc.Graph == nil || len(doc.Graph.Nodes) != 1 || doc.Graph.Nodes[0].ID != "c1" {
			t.Fatalf("unexpected graph %+v", doc.Graph)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("without graph", func(t *testing.T) {
		mock := newMock(t)
		s := NewDocumentDBStorageWithConnection(mock)

		mock.ExpectQuery(regexp.QuoteMeta(getDocumentSQL)).
			WithArgs("doc-2").
			WillReturnRows(pgxmock.NewRows(documentColumns).AddRow(
				"doc-2", "uploads/doc-2.pdf", "failed", "download_failed", []byte("null"), now, now,
			))

		doc, err := s.GetDocument(ctx, "doc-2")
		if err != nil {
			t.Fatalf("GetDocument() error = %v", err)
		}
		if doc.Graph != nil {
			t.Fatalf("expected nil graph, got %+v", doc.Graph)
		}
		if doc.FailureReason != store.ReasonDownloadFailed {
			t.Fatalf("FailureReason = %q", doc.FailureReason)
		}
	})

	t.Run("missing", func(t *testing.T) {
		mock := newMock(t)
		s := NewDocumentDBStorageWithConnection(mock)

		mock.ExpectQuery(regexp.QuoteMeta(getDocumentSQL)).
			WithArgs("nope").
			WillReturnError(pgxv5.ErrNoRows)

		_, err := s.GetDocument(ctx, "nope")
		if !errors.Is(err, store.ErrDocumentNotFound) {
			t.Fatalf("expected ErrDocumentNotFound, got %v", err)
		}
	})
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		rows    int64
		execErr error
		wantErr error
	}{
		{name: "updated", rows: 1},
		{name: "missing row", rows: 0, wantErr: store.ErrDocumentNotFound},
		{name: "db error", execErr: errors.New("connection reset")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			s := NewDocumentDBStorageWithConnection(mock)

			exp := mock.ExpectExec(regexp.QuoteMeta(setStatusSQL)).
				WithArgs("doc-1", "failed", "extraction_failed")
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(pgxmock.NewResult("UPDATE", tt.rows))
			}

			err := s.SetStatus(ctx, "doc-1", store.StatusFailed, store.ReasonExtractionFailed)
			switch {
			case tt.execErr != nil:
				if !errors.Is(err, tt.execErr) {
					t.Fatalf("expected wrapped db error, got %v", err)
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			default:
				if err != nil {
					t.Fatalf("SetStatus() error = %v", err)
				}
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestSaveGraphAndStatus(t *testing.T) {
	mock := newMock(t)
	s := NewDocumentDBStorageWithConnection(mock)

	g := graph.Graph{Nodes: []graph.Node{{ID: "c1", Label: "X\x00", Description: "d", Level: 1}}}
	want := []byte(`{"nodes":[{"id":"c1","label":"X","description":"d","level":1}],"edges":[]}`)

	mock.ExpectExec(regexp.QuoteMeta(saveGraphAndStatusSQL)).
		WithArgs("doc-1", want, "completed").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := s.SaveGraphAndStatus(context.Background(), "doc-1", g, store.StatusCompleted); err != nil {
		t.Fatalf("SaveGraphAndStatus() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveGraph_MissingDocument(t *testing.T) {
	mock := newMock(t)
	s := NewDocumentDBStorageWithConnection(mock)

	mock.ExpectExec(regexp.QuoteMeta(saveGraphSQL)).
		WithArgs("doc-9", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SaveGraph(context.Background(), "doc-9", graph.Graph{})
	if !errors.Is(err, store.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestSanitizeGraph(t *testing.T) {
	g := graph.Graph{
		Nodes: []graph.Node{
			{ID: "c\x001", Label: "ok", Description: "bad\xff utf8", Level: 2},
			{ID: "c2", Label: "clean", Description: "", Level: 1},
		},
		Edges: []graph.Edge{{Source: "c\x001", Target: "c2", Relation: "rel\x00"}},
	}

	got, changed := sanitizeGraph(g)
	if changed != 4 {
		t.Fatalf("changed = %d, want 4", changed)
	}
	if got.Nodes[0].ID != "c1" || got.Nodes[0].Description != "bad utf8" || got.Nodes[0].Level != 2 {
		t.Fatalf("node = %+v", got.Nodes[0])
	}
	if got.Edges[0].Source != got.Nodes[0].ID {
		t.Fatalf("edge source %q does not match sanitized node id %q", got.Edges[0].Source, got.Nodes[0].ID)
	}
	if got.Edges[0].Relation != "rel" {
		t.Fatalf("relation = %q", got.Edges[0].Relation)
	}
	if g.Nodes[0].ID != "c\x001" {
		t.Fatal("input graph was modified")
	}

	if _, changed := sanitizeGraph(graph.Graph{Nodes: []graph.Node{{ID: "c2", Label: "clean"}}}); changed != 0 {
		t.Fatalf("changed = %d for clean graph, want 0", changed)
	}
}
