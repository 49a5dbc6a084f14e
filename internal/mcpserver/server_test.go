package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/kvault/internal/docservice"
	"github.com/starford/kvault/internal/index"
	"github.com/starford/kvault/internal/models"
	"github.com/starford/kvault/internal/search"
	"github.com/starford/kvault/internal/testutil"
)

// noLines is a plain backend that never matches.
type noLines struct{}

func (noLines) Search(context.Context, search.LineQuery) ([]search.RawMatch, error) {
	return nil, nil
}

func testServer(t *testing.T, docs ...testutil.Doc) (*Server, string) {
	t.Helper()
	dir := testutil.NewRoot(t, docs...)
	reg := testutil.Registry(t, dir)
	svc := docservice.NewService(reg, nil)
	disp := search.NewDispatcher(reg, noLines{})
	return New(svc, disp, Options{DefaultLimit: 10, DefaultBackend: models.BackendRanked}), dir
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_knowledge":
		result, err = srv.searchKnowledge(ctx, req)
	case "list_knowledge":
		result, err = srv.listKnowledge(ctx, req)
	case "get_document":
		result, err = srv.getDocument(ctx, req)
	case "add_knowledge":
		result, err = srv.addKnowledge(ctx, req)
	case "build_index":
		result, err = srv.buildIndex(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestToolsRegistered(t *testing.T) {
	srv, _ := testServer(t)
	tools := srv.MCPServer().ListTools()
	for _, name := range []string{"search_knowledge", "list_knowledge", "get_document", "add_knowledge", "build_index"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("tool %s not registered", name)
		}
	}
}

func TestAddAndGetDocument(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "add_knowledge", map[string]any{
		"title":    "Borrow Checker",
		"content":  "# Borrowing\nReferences must not outlive owners.",
		"category": "rust",
		"tags":     "memory, safety",
	})
	if r.IsError {
		t.Fatalf("add failed: %s", resultText(r))
	}
	want := "Added document:\n- **Title:** Borrow Checker\n- **Category:** rust\n- **Path:** rust/borrow-checker.md"
	if got := resultText(r); got != want {
		t.Errorf("add result = %q", got)
	}

	r = callTool(t, srv, "get_document", map[string]any{"path": "rust/borrow-checker.md"})
	if got := resultText(r); got != "# Borrowing\nReferences must not outlive owners." {
		t.Errorf("get result = %q", got)
	}
}

func TestAddKnowledgeValidation(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "add_knowledge", map[string]any{
		"title":    "X",
		"content":  "body",
		"category": "-bad",
	})
	if !r.IsError {
		t.Error("expected error for invalid category")
	}

	r = callTool(t, srv, "add_knowledge", map[string]any{"title": "X", "content": "body"})
	if !r.IsError {
		t.Error("expected error for missing category")
	}
}

func TestGetDocumentMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_document", map[string]any{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing document")
	}
	if !strings.Contains(resultText(r), "not found") {
		t.Errorf("error text = %q", resultText(r))
	}
}

func TestListKnowledge(t *testing.T) {
	srv, _ := testServer(t,
		testutil.Doc{Path: "go/chan.md", Title: "Channels", Category: "go", Tags: []string{"concurrency"}, Content: "c"},
		testutil.Doc{Path: "rust/own.md", Title: "Ownership", Category: "rust", Content: "o"},
	)

	text := resultText(callTool(t, srv, "list_knowledge", map[string]any{}))
	if !strings.Contains(text, "- **go**: Channels [concurrency]\n  `go/chan.md`") {
		t.Errorf("list = %q", text)
	}
	if !strings.Contains(text, "Ownership") {
		t.Errorf("list missing rust doc: %q", text)
	}

	text = resultText(callTool(t, srv, "list_knowledge", map[string]any{"category": "rust"}))
	if strings.Contains(text, "Channels") {
		t.Errorf("category filter ignored: %q", text)
	}

	text = resultText(callTool(t, srv, "list_knowledge", map[string]any{"category": "python"}))
	if text != "No documents found." {
		t.Errorf("empty list = %q", text)
	}
}

func TestSearchRequiresIndex(t *testing.T) {
	srv, _ := testServer(t, testutil.Doc{Path: "go/a.md", Title: "A", Category: "go", Content: "goroutine"})
	r := callTool(t, srv, "search_knowledge", map[string]any{"query": "goroutine"})
	if !r.IsError {
		t.Fatal("expected index missing error")
	}
	if !strings.Contains(resultText(r), "kvault index") {
		t.Errorf("error text = %q", resultText(r))
	}
}

func TestBuildIndexThenSearch(t *testing.T) {
	srv, dir := testServer(t,
		testutil.Doc{Path: "go/a.md", Title: "Goroutines", Category: "go", Content: "goroutine scheduling and goroutine leaks"},
		testutil.Doc{Path: "go/b.md", Title: "Maps", Category: "go", Content: "maps are not safe for a goroutine"},
	)

	r := callTool(t, srv, "build_index", map[string]any{})
	if r.IsError {
		t.Fatalf("build failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), dir+": 2 documents") {
		t.Errorf("build result = %q", resultText(r))
	}
	if !index.Exists(dir + "/.index") {
		t.Fatal("index not written")
	}

	text := resultText(callTool(t, srv, "search_knowledge", map[string]any{"query": "goroutine"}))
	if !strings.HasPrefix(text, "## Goroutines\n**File:** go/a.md\n") {
		t.Errorf("search = %q", text)
	}
	if !strings.HasSuffix(text, "*2 result(s) found*") {
		t.Errorf("search = %q", text)
	}

	text = resultText(callTool(t, srv, "search_knowledge", map[string]any{"query": "gorutine", "fuzzy": 1, "limit": 1}))
	if !strings.HasSuffix(text, "*1 result(s) found*") {
		t.Errorf("fuzzy search = %q", text)
	}

	text = resultText(callTool(t, srv, "search_knowledge", map[string]any{"query": "zebra"}))
	if text != "No matches found for 'zebra'" {
		t.Errorf("empty search = %q", text)
	}
}

func TestSearchInvalidArguments(t *testing.T) {
	srv, _ := testServer(t)
	if r := callTool(t, srv, "search_knowledge", map[string]any{"query": "x", "backend": "lucene"}); !r.IsError {
		t.Error("expected error for unknown backend")
	}
	if r := callTool(t, srv, "search_knowledge", map[string]any{"query": "x", "fuzzy": 3}); !r.IsError {
		t.Error("expected error for fuzzy 3")
	}
	if r := callTool(t, srv, "search_knowledge", map[string]any{}); !r.IsError {
		t.Error("expected error for missing query")
	}
}

func TestSearchPlainBackend(t *testing.T) {
	srv, _ := testServer(t, testutil.Doc{Path: "go/a.md", Title: "A", Category: "go", Content: "x"})
	text := resultText(callTool(t, srv, "search_knowledge", map[string]any{"query": "x", "backend": "plain"}))
	if text != "No matches found for 'x'" {
		t.Errorf("plain search = %q", text)
	}
}
