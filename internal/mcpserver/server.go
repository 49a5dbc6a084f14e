// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes kvault tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/kvault/internal/docservice"
	"github.com/starford/kvault/internal/index"
	"github.com/starford/kvault/internal/models"
	"github.com/starford/kvault/internal/render"
	"github.com/starford/kvault/internal/search"
	"github.com/starford/kvault/internal/sse"
)

const instructions = "kvault is a personal knowledge corpus. " +
	"Use search_knowledge to find documents by content, list_knowledge to browse by category, " +
	"get_document to read a document by its path, and add_knowledge to store new knowledge."

// Options tunes tool defaults.
type Options struct {
	DefaultLimit   int
	DefaultBackend models.Backend
	Logger         *slog.Logger
	Events         *sse.Broker
}

// Server wraps the MCP server with kvault tools.
type Server struct {
	mcp    *server.MCPServer
	docs   *docservice.Service
	disp   *search.Dispatcher
	opts   Options
	logger *slog.Logger
}

// New creates a new MCP server with all kvault tools registered.
func New(docs *docservice.Service, disp *search.Dispatcher, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultBackend == "" {
		opts.DefaultBackend = models.BackendAuto
	}
	s := &Server{docs: docs, disp: disp, opts: opts, logger: opts.Logger}

	s.mcp = server.NewMCPServer(
		"kvault",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithInstructions(instructions),
	)

	s.mcp.AddTool(mcp.NewTool("search_knowledge",
		mcp.WithDescription("Search the knowledge corpus for documents containing the query."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to search for")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (0 for no limit)")),
		mcp.WithString("category", mcp.Description("Only search documents in this category")),
		mcp.WithBoolean("case_sensitive", mcp.Description("Match case exactly (plain backend)")),
		mcp.WithString("backend", mcp.Description("Search backend"), mcp.Enum("auto", "plain", "ranked")),
		mcp.WithNumber("fuzzy", mcp.Description("Edit distance for ranked matching: 0, 1 or 2")),
	), s.searchKnowledge)

	s.mcp.AddTool(mcp.NewTool("list_knowledge",
		mcp.WithDescription("List documents in the knowledge corpus."),
		mcp.WithString("category", mcp.Description("Optional category to list (empty for all)")),
	), s.listKnowledge)

	s.mcp.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Read the full content of a document."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative document path (e.g. rust/ownership.md)")),
	), s.getDocument)

	s.mcp.AddTool(mcp.NewTool("add_knowledge",
		mcp.WithDescription("Add a new document to the primary knowledge root."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Document title")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content")),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category, also used as the directory name")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
	), s.addKnowledge)

	s.mcp.AddTool(mcp.NewTool("build_index",
		mcp.WithDescription("Rebuild the ranked search index of every root."),
	), s.buildIndex)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sr := search.Request{
		Query:         query,
		Limit:         req.GetInt("limit", s.opts.DefaultLimit),
		CaseSensitive: req.GetBool("case_sensitive", false),
		Fuzzy:         req.GetInt("fuzzy", 0),
	}
	if c := req.GetString("category", ""); c != "" {
		sr.Category = &c
	}
	sr.Backend = s.opts.DefaultBackend
	if b := req.GetString("backend", ""); b != "" {
		if sr.Backend, err = models.ParseBackend(b); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	resp, err := s.disp.Search(ctx, sr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(render.MarkdownSearch(query, resp)), nil
}

func (s *Server) listKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var category *string
	if c := req.GetString("category", ""); c != "" {
		category = &c
	}
	entries, err := s.docs.List(ctx, category)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(render.MarkdownList(entries)), nil
}

func (s *Server) getDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := s.docs.Get(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) addKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	doc, err := s.docs.Add(ctx, docservice.AddRequest{
		Title:    title,
		Category: category,
		Tags:     req.GetString("tags", ""),
		Content:  content,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.logger.Info("mcp: document added", slog.String("path", doc.Path))
	if root, err := s.docs.Registry().Primary(); err == nil {
		s.opts.Events.DocumentAdded(root.Path(), doc)
	}
	return mcp.NewToolResultText(render.MarkdownAdded(doc)), nil
}

func (s *Server) buildIndex(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roots := s.docs.Registry().Roots()
	if len(roots) == 0 {
		return mcp.NewToolResultError("no knowledge roots configured"), nil
	}
	var b strings.Builder
	failed := false
	for _, r := range roots {
		st, err := index.Build(ctx, r, s.logger)
		s.opts.Events.IndexBuilt(r.Path(), st, err)
		if err != nil {
			failed = true
			fmt.Fprintf(&b, "- %s: %v\n", r.Path(), err)
			continue
		}
		fmt.Fprintf(&b, "- %s: %d documents, %d terms\n", st.Root, st.Documents, st.Terms)
	}
	if failed {
		return mcp.NewToolResultError("Index build failed:\n" + b.String()), nil
	}
	return mcp.NewToolResultText("Index built:\n" + b.String()), nil
}
