package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/OFFIS-RIT/graphlearn/pkg/ai"
	"github.com/OFFIS-RIT/graphlearn/pkg/graph"
	"github.com/OFFIS-RIT/graphlearn/pkg/loader"
	"github.com/OFFIS-RIT/graphlearn/pkg/store"
)

type statusWrite struct {
	status store.Status
	reason store.FailureReason
}

type fakeStore struct {
	mu       sync.Mutex
	docs     map[string]*store.Document
	writes   []statusWrite
	getErr   error
	saveErr  error
	// failedWriteErrs fails that many writes of StatusFailed before succeeding
	failedWriteErrs int
	gets     int
	graphSet int
}

func newFakeStore(docs ...store.Document) *fakeStore {
	s := &fakeStore{docs: map[string]*store.Document{}}
	for i := range docs {
		d := docs[i]
		s.docs[d.ID] = &d
	}
	return s
}

func (s *fakeStore) GetDocument(ctx context.Context, id string) (*store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	d, ok := s.docs[id]
	if !ok {
		return nil, store.ErrDocumentNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *fakeStore) SetStatus(ctx context.Context, id string, status store.Status, reason store.FailureReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, statusWrite{status, reason})
	if status == store.StatusFailed && s.failedWriteErrs > 0 {
		s.failedWriteErrs--
		return errors.New("connection reset")
	}
	d, ok := s.docs[id]
	if !ok {
		return store.ErrDocumentNotFound
	}
	d.Status = status
	d.FailureReason = reason
	return nil
}

func (s *fakeStore) SaveGraph(ctx context.Context, id string, g graph.Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	d, ok := s.docs[id]
	if !ok {
		return store.ErrDocumentNotFound
	}
	s.graphSet++
	d.Graph = &g
	return nil
}

func (s *fakeStore) SaveGraphAndStatus(ctx context.Context, id string, g graph.Graph, status store.Status) error {
	if err := s.SaveGraph(ctx, id, g); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, statusWrite{status, store.ReasonNone})
	s.docs[id].Status = status
	s.docs[id].FailureReason = store.ReasonNone
	return nil
}

func (s *fakeStore) doc(id string) store.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.docs[id]
}

type fakeBlobs struct {
	data      []byte
	err       error
	downloads int
}

func (f *fakeBlobs) Download(ctx context.Context, location string) ([]byte, error) {
	f.downloads++
	return f.data, f.err
}

// fakeText echoes the file contents, so the blob bytes act as the text.
type fakeText struct {
	calls int
	seen  []string
}

func (f *fakeText) ExtractText(ctx context.Context, r io.ReaderAt, size int64) string {
	f.calls++
	buf := make([]byte, size)
	n, _ := r.ReadAt(buf, 0)
	if named, ok := r.(interface{ Name() string }); ok {
		f.seen = append(f.seen, named.Name())
	}
	return string(buf[:n])
}

type fakeScraper struct {
	text   string
	topics []string
}

func (f *fakeScraper) Scrape(ctx context.Context, topic string) string {
	f.topics = append(f.topics, topic)
	return f.text
}

type fakeGraphs struct {
	extract   graph.Extraction
	expand    graph.Extraction
	panicMsg  string
	calls     int
	parentIDs []string
}

func (f *fakeGraphs) ExtractGraph(ctx context.Context, text string) graph.Extraction {
	f.calls++
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.extract
}

func (f *fakeGraphs) ExpandGraph(ctx context.Context, text string, parentID string) graph.Extraction {
	f.calls++
	f.parentIDs = append(f.parentIDs, parentID)
	return f.expand
}

type fakeAI struct {
	ai.MetricsRecorder
	response string
}

func (f *fakeAI) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return f.response, nil
}

type harness struct {
	store   *fakeStore
	blobs   *fakeBlobs
	text    *fakeText
	scraper *fakeScraper
	graphs  GraphExtractor
	tempDir string
}

func (h *harness) pipeline(t *testing.T, strategy graph.MergeStrategy) *DocumentPipeline {
	t.Helper()
	p, err := NewDocumentPipeline(NewDocumentPipelineParams{
		Store:         h.store,
		Blobs:         h.blobs,
		Text:          h.text,
		Scraper:       h.scraper,
		Graphs:        h.graphs,
		MinTextChars:  50,
		MergeStrategy: strategy,
		TempDir:       h.tempDir,
	})
	if err != nil {
		t.Fatalf("NewDocumentPipeline() error = %v", err)
	}
	return p
}

func newHarness(t *testing.T, graphs GraphExtractor, docs ...store.Document) *harness {
	return &harness{
		store:   newFakeStore(docs...),
		blobs:   &fakeBlobs{data: []byte(strings.Repeat("knowledge ", 20))},
		text:    &fakeText{},
		scraper: &fakeScraper{},
		graphs:  graphs,
		tempDir: t.TempDir(),
	}
}

func pendingDoc(id string) store.Document {
	return store.Document{ID: id, StoragePath: id + ".pdf", Status: store.StatusPending}
}

func assertTempDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("temp dir still holds %d entries", len(entries))
	}
}

func TestIngest_EndToEndStoresExactGraph(t *testing.T) {
	const response = "```json\n" +
		`{"nodes":[{"id":"c1","label":"X","description":"d","level":1}],"edges":[]}` +
		"\n```"
	client, err := graph.NewGraphClient(graph.NewGraphClientParams{AIClient: &fakeAI{response: response}})
	if err != nil {
		t.Fatalf("NewGraphClient() error = %v", err)
	}
	h := newHarness(t, client, pendingDoc("doc-1"))

	res := h.pipeline(t, graph.MergeAppend).Ingest(context.Background(), "doc-1")

	if res.Outcome != OutcomeCompleted || res.Status != store.StatusCompleted {
		t.Fatalf("Ingest() = %+v, want completed", res)
	}
	want := graph.Graph{
		Nodes: []graph.Node{{ID: "c1", Label: "X", Description: "d", Level: 1}},
		Edges: []graph.Edge{},
	}
	doc := h.store.doc("doc-1")
	if doc.Graph == nil || !reflect.DeepEqual(*doc.Graph, want) {
		t.Errorf("stored graph = %+v, want %+v", doc.Graph, want)
	}
	if doc.Status != store.StatusCompleted {
		t.Errorf("stored status = %q, want completed", doc.Status)
	}
	wantWrites := []statusWrite{{store.StatusProcessing, store.ReasonNone}, {store.StatusCompleted, store.ReasonNone}}
	if !reflect.DeepEqual(h.store.writes, wantWrites) {
		t.Errorf("status writes = %+v, want %+v", h.store.writes, wantWrites)
	}
	assertTempDirEmpty(t, h.tempDir)
}

func TestIngest_Failures(t *testing.T) {
	okGraph := graph.Extraction{Graph: graph.Graph{Nodes: []graph.Node{{ID: "a", Label: "A", Level: 1}}}}

	tests := []struct {
		name          string
		graphs        *fakeGraphs
		setup         func(h *harness)
		id            string
		wantOutcome   Outcome
		wantReason    store.FailureReason
		wantDownloads int
		wantTextCalls int
		wantModel     int
	}{
		{
			name:        "unknown document",
			graphs:      &fakeGraphs{extract: okGraph},
			id:          "missing",
			wantOutcome: OutcomeDocumentNotFound,
			wantReason:  store.ReasonNotFound,
		},
		{
			name:          "download error",
			graphs:        &fakeGraphs{extract: okGraph},
			setup:         func(h *harness) { h.blobs.err = loader.ErrBlobNotFound },
			id:            "doc-1",
			wantOutcome:   OutcomeFailed,
			wantReason:    store.ReasonDownloadFailed,
			wantDownloads: 1,
		},
		{
			name:          "text too short",
			graphs:        &fakeGraphs{extract: okGraph},
			setup:         func(h *harness) { h.blobs.data = []byte("   short text    ") },
			id:            "doc-1",
			wantOutcome:   OutcomeFailed,
			wantReason:    store.ReasonExtractionFailed,
			wantDownloads: 1,
			wantTextCalls: 1,
		},
		{
			name: "model failure",
			graphs: &fakeGraphs{extract: graph.Extraction{
				Graph:     graph.Graph{Nodes: []graph.Node{}, Edges: []graph.Edge{}},
				ErrorKind: graph.ErrorKindModel,
				Error:     "connection refused",
			}},
			id:            "doc-1",
			wantOutcome:   OutcomeFailed,
			wantReason:    store.ReasonModelFailed,
			wantDownloads: 1,
			wantTextCalls: 1,
			wantModel:     1,
		},
		{
			name: "malformed output",
			graphs: &fakeGraphs{extract: graph.Extraction{
				Graph:     graph.Graph{Nodes: []graph.Node{}, Edges: []graph.Edge{}},
				ErrorKind: graph.ErrorKindMalformed,
				Error:     "not json",
			}},
			id:            "doc-1",
			wantOutcome:   OutcomeFailed,
			wantReason:    store.ReasonMalformedOutput,
			wantDownloads: 1,
			wantTextCalls: 1,
			wantModel:     1,
		},
		{
			name:          "empty graph",
			graphs:        &fakeGraphs{extract: graph.Extraction{Graph: graph.Graph{Nodes: []graph.Node{}, Edges: []graph.Edge{}}}},
			id:            "doc-1",
			wantOutcome:   OutcomeFailed,
			wantReason:    store.ReasonModelFailed,
			wantDownloads: 1,
			wantTextCalls: 1,
			wantModel:     1,
		},
		{
			name:          "extractor panic",
			graphs:        &fakeGraphs{panicMsg: "boom"},
			id:            "doc-1",
			wantOutcome:   OutcomeFailed,
			wantReason:    store.ReasonInternal,
			wantDownloads: 1,
			wantTextCalls: 1,
			wantModel:     1,
		},
		{
			name:          "save error",
			graphs:        &fakeGraphs{extract: okGraph},
			setup:         func(h *harness) { h.store.saveErr = errors.New("db down") },
			id:            "doc-1",
			wantOutcome:   OutcomeFailed,
			wantReason:    store.ReasonInternal,
			wantDownloads: 1,
			wantTextCalls: 1,
			wantModel:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.graphs, pendingDoc("doc-1"))
			if tt.setup != nil {
				tt.setup(h)
			}

			res := h.pipeline(t, graph.MergeAppend).Ingest(context.Background(), tt.id)

			if res.Outcome != tt.wantOutcome || res.Reason != tt.wantReason {
				t.Fatalf("Ingest() = %+v, want outcome %q reason %q", res, tt.wantOutcome, tt.wantReason)
			}
			if res.Status != store.StatusFailed {
				t.Errorf("Status = %q, want failed", res.Status)
			}
			if h.blobs.downloads != tt.wantDownloads {
				t.Errorf("downloads = %d, want %d", h.blobs.downloads, tt.wantDownloads)
			}
			if h.text.calls != tt.wantTextCalls {
				t.Errorf("text extractions = %d, want %d", h.text.calls, tt.wantTextCalls)
			}
			if tt.graphs.calls != tt.wantModel {
				t.Errorf("model calls = %d, want %d", tt.graphs.calls, tt.wantModel)
			}
			if tt.id == "doc-1" {
				doc := h.store.doc("doc-1")
				if doc.Status != store.StatusFailed || doc.FailureReason != tt.wantReason {
					t.Errorf("stored = %q/%q, want failed/%q", doc.Status, doc.FailureReason, tt.wantReason)
				}
				if doc.Graph != nil {
					t.Errorf("graph stored on failure: %+v", doc.Graph)
				}
				last := h.store.writes[len(h.store.writes)-1]
				if last.status != store.StatusFailed {
					t.Errorf("last status write = %+v, want failed", last)
				}
			}
			assertTempDirEmpty(t, h.tempDir)
		})
	}
}

func TestIngest_CancelledContextStillPersistsFailure(t *testing.T) {
	h := newHarness(t, &fakeGraphs{}, pendingDoc("doc-1"))
	h.blobs.err = context.Canceled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := h.pipeline(t, graph.MergeAppend).Ingest(ctx, "doc-1")

	if res.Reason != store.ReasonDownloadFailed {
		t.Fatalf("Reason = %q, want download_failed", res.Reason)
	}
	if got := h.store.doc("doc-1").Status; got != store.StatusFailed {
		t.Errorf("stored status = %q, want failed", got)
	}
}

func TestIngest_RetriesFailedStatusWrite(t *testing.T) {
	h := newHarness(t, &fakeGraphs{}, pendingDoc("doc-1"))
	h.blobs.err = errors.New("timeout")
	h.store.failedWriteErrs = 2

	res := h.pipeline(t, graph.MergeAppend).Ingest(context.Background(), "doc-1")

	if res.Reason != store.ReasonDownloadFailed {
		t.Fatalf("Reason = %q, want download_failed", res.Reason)
	}
	if got := h.store.doc("doc-1").Status; got != store.StatusFailed {
		t.Errorf("stored status = %q, want failed", got)
	}
	if got := len(h.store.writes); got != 4 {
		t.Errorf("status writes = %d, want 1 processing + 3 failed attempts", got)
	}
}

func TestIngest_TempFileNamedAfterDocument(t *testing.T) {
	ok := graph.Extraction{Graph: graph.Graph{Nodes: []graph.Node{{ID: "a", Label: "A", Level: 1}}}}
	h := newHarness(t, &fakeGraphs{extract: ok}, pendingDoc("../evil id"))

	h.pipeline(t, graph.MergeAppend).Ingest(context.Background(), "../evil id")

	if len(h.text.seen) != 1 {
		t.Fatalf("text extractor saw %d files, want 1", len(h.text.seen))
	}
	name := h.text.seen[0]
	if !strings.HasPrefix(name, h.tempDir+string(os.PathSeparator)+"graphlearn-___evil_id-") {
		t.Errorf("temp file = %q, want it inside %q and keyed by the sanitized id", name, h.tempDir)
	}
	assertTempDirEmpty(t, h.tempDir)
}

func TestTerminalStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus store.Status
		wantReason store.FailureReason
	}{
		{"nil", nil, store.StatusCompleted, store.ReasonNone},
		{"stage", failStage("download", store.ReasonDownloadFailed, errors.New("x")), store.StatusFailed, store.ReasonDownloadFailed},
		{"plain", errors.New("x"), store.StatusFailed, store.ReasonInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, reason := terminalStatus(tt.err)
			if status != tt.wantStatus || reason != tt.wantReason {
				t.Errorf("terminalStatus() = %q/%q, want %q/%q", status, reason, tt.wantStatus, tt.wantReason)
			}
		})
	}
}

func rootDoc() store.Document {
	d := pendingDoc("doc-1")
	d.Status = store.StatusCompleted
	d.Graph = &graph.Graph{
		Nodes: []graph.Node{{ID: "root", Label: "Root", Level: 1}},
		Edges: []graph.Edge{},
	}
	return d
}

func TestExpand_MergesSubGraph(t *testing.T) {
	graphs := &fakeGraphs{expand: graph.Extraction{Graph: graph.Graph{
		Nodes: []graph.Node{{ID: "n1", Label: "Child", Level: 2}},
		Edges: []graph.Edge{{Source: "root", Target: "n1", Relation: "has"}},
	}}}
	h := newHarness(t, graphs, rootDoc())
	h.scraper.text = "Reference text about the topic."

	res, err := h.pipeline(t, graph.MergeAppend).Expand(context.Background(), "doc-1", "root", "Go (language)")
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if res.NewNodes != 1 || res.NewEdges != 1 {
		t.Errorf("Expand() = %+v, want 1 new node and 1 new edge", res)
	}
	got := h.store.doc("doc-1").Graph
	if got == nil || len(got.Nodes) != 2 || len(got.Edges) != 1 {
		t.Fatalf("stored graph = %+v, want 2 nodes and 1 edge", got)
	}
	if got.Nodes[0].ID != "root" || got.Nodes[1].ID != "n1" {
		t.Errorf("node order = %s,%s, want root,n1", got.Nodes[0].ID, got.Nodes[1].ID)
	}
	if !reflect.DeepEqual(graphs.parentIDs, []string{"root"}) {
		t.Errorf("parent ids = %v, want [root]", graphs.parentIDs)
	}
	if !reflect.DeepEqual(h.scraper.topics, []string{"Go (language)"}) {
		t.Errorf("topics = %v", h.scraper.topics)
	}
}

func TestExpand_DedupStrategies(t *testing.T) {
	incoming := graph.Graph{
		Nodes: []graph.Node{{ID: "root", Label: "Root v2", Level: 1}, {ID: "n1", Label: "Child", Level: 2}},
		Edges: []graph.Edge{{Source: "root", Target: "n1"}},
	}

	t.Run("last write wins", func(t *testing.T) {
		h := newHarness(t, &fakeGraphs{expand: graph.Extraction{Graph: incoming}}, rootDoc())
		h.scraper.text = "text"

		res, err := h.pipeline(t, graph.MergeDedupLastWriteWins).Expand(context.Background(), "doc-1", "root", "topic")
		if err != nil {
			t.Fatalf("Expand() error = %v", err)
		}
		if res.NewNodes != 1 || res.ReplacedNodes != 1 {
			t.Errorf("Expand() = %+v, want 1 new and 1 replaced", res)
		}
		got := h.store.doc("doc-1").Graph
		if len(got.Nodes) != 2 || got.Nodes[0].Label != "Root v2" {
			t.Errorf("stored nodes = %+v", got.Nodes)
		}
	})

	t.Run("reject conflicts", func(t *testing.T) {
		h := newHarness(t, &fakeGraphs{expand: graph.Extraction{Graph: incoming}}, rootDoc())
		h.scraper.text = "text"

		_, err := h.pipeline(t, graph.MergeDedupRejectConflicts).Expand(context.Background(), "doc-1", "root", "topic")
		if !errors.Is(err, graph.ErrMergeConflict) {
			t.Fatalf("Expand() error = %v, want ErrMergeConflict", err)
		}
		if h.store.graphSet != 0 {
			t.Errorf("graph saved %d times, want 0", h.store.graphSet)
		}
	})
}

func TestExpand_Errors(t *testing.T) {
	okGraph := graph.Extraction{Graph: graph.Graph{Nodes: []graph.Node{{ID: "n1", Label: "N", Level: 2}}}}

	tests := []struct {
		name      string
		scraped   string
		graphs    *fakeGraphs
		id        string
		wantErr   error
		wantModel int
	}{
		{"nothing scraped", "  \n ", &fakeGraphs{expand: okGraph}, "doc-1", ErrNothingScraped, 0},
		{"model failed", "text", &fakeGraphs{expand: graph.Extraction{ErrorKind: graph.ErrorKindMalformed, Error: "bad"}}, "doc-1", ErrExpansionFailed, 1},
		{"unknown document", "text", &fakeGraphs{expand: okGraph}, "missing", store.ErrDocumentNotFound, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.graphs, rootDoc())
			h.scraper.text = tt.scraped

			_, err := h.pipeline(t, graph.MergeAppend).Expand(context.Background(), tt.id, "root", "topic")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expand() error = %v, want %v", err, tt.wantErr)
			}
			if tt.graphs.calls != tt.wantModel {
				t.Errorf("model calls = %d, want %d", tt.graphs.calls, tt.wantModel)
			}
			if h.store.graphSet != 0 {
				t.Errorf("graph saved %d times, want 0", h.store.graphSet)
			}
			if got := len(h.store.doc("doc-1").Graph.Nodes); got != 1 {
				t.Errorf("stored graph has %d nodes, want the original 1", got)
			}
		})
	}
}

func TestExpand_NilStoredGraph(t *testing.T) {
	doc := pendingDoc("doc-1")
	graphs := &fakeGraphs{expand: graph.Extraction{Graph: graph.Graph{Nodes: []graph.Node{{ID: "n1", Label: "N", Level: 2}}}}}
	h := newHarness(t, graphs, doc)
	h.scraper.text = "text"

	res, err := h.pipeline(t, graph.MergeAppend).Expand(context.Background(), "doc-1", "root", "topic")
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if res.NewNodes != 1 {
		t.Errorf("NewNodes = %d, want 1", res.NewNodes)
	}
}

func TestNewDocumentPipeline_RequiresCollaborators(t *testing.T) {
	if _, err := NewDocumentPipeline(NewDocumentPipelineParams{}); err == nil {
		t.Error("NewDocumentPipeline() error = nil, want error")
	}
}

func TestNonGraphModelAnswerIsMalformed(t *testing.T) {
	client, err := graph.NewGraphClient(graph.NewGraphClientParams{AIClient: &fakeAI{response: `{"answer":"sorry"}`}})
	if err != nil {
		t.Fatalf("NewGraphClient() error = %v", err)
	}

	t.Run("ingest", func(t *testing.T) {
		h := newHarness(t, client, pendingDoc("doc-1"))

		res := h.pipeline(t, graph.MergeAppend).Ingest(context.Background(), "doc-1")

		if res.Outcome != OutcomeFailed || res.Reason != store.ReasonMalformedOutput {
			t.Fatalf("Ingest() = %+v, want failed/malformed_output", res)
		}
	})

	t.Run("expand", func(t *testing.T) {
		h := newHarness(t, client, rootDoc())
		h.scraper.text = "Reference text about the topic."

		_, err := h.pipeline(t, graph.MergeAppend).Expand(context.Background(), "doc-1", "root", "topic")
		if !errors.Is(err, ErrExpansionFailed) {
			t.Fatalf("Expand() error = %v, want ErrExpansionFailed", err)
		}
		if h.store.graphSet != 0 {
			t.Errorf("graph saved %d times, want 0", h.store.graphSet)
		}
	})
}
