package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/kvault/internal/docservice"
	"github.com/starford/kvault/internal/index"
	"github.com/starford/kvault/internal/models"
	"github.com/starford/kvault/internal/search"
	"github.com/starford/kvault/internal/sse"
)

// HandlerOptions tunes request defaults.
type HandlerOptions struct {
	DefaultLimit   int
	DefaultBackend models.Backend
	Logger         *slog.Logger
	// Events, if set, receives document and index events and is served
	// at GET /events.
	Events *sse.Broker
}

// Handler holds API route handlers.
type Handler struct {
	docs *docservice.Service
	disp *search.Dispatcher
	opts HandlerOptions
}

// NewHandler creates a new Handler.
func NewHandler(docs *docservice.Service, disp *search.Dispatcher, opts HandlerOptions) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultBackend == "" {
		opts.DefaultBackend = models.BackendAuto
	}
	return &Handler{docs: docs, disp: disp, opts: opts}
}

// docPath extracts the document path from the URL (everything after /api/documents/).
// Supports encoded slashes from OpenAPI clients (e.g. rust%2Fownership.md).
func docPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func optionalParam(r *http.Request, name string) *string {
	if !r.URL.Query().Has(name) {
		return nil
	}
	v := r.URL.Query().Get(name)
	return &v
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List documents across all roots
//	@Tags			documents
//	@Produce		json
//	@Param			category	query		string	false	"Exact category filter"
//	@Success		200			{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	entries, err := h.docs.List(r.Context(), optionalParam(r, "category"))
	if err != nil {
		writeError(w, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: entries, Total: len(entries)})
}

// GetDocument handles GET /api/documents/*.
//
//	@Summary		Get a document's content by path
//	@Tags			documents
//	@Produce		json
//	@Param			path	path		string	true	"Document path"
//	@Success		200		{object}	DocumentResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	content, err := h.docs.Get(r.Context(), path)
	if err != nil {
		writeError(w, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentResponse{Path: path, Content: content})
}

// CreateDocument handles POST /api/documents.
//
//	@Summary		Add a document
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateDocumentRequest	true	"Document to add"
//	@Success		201		{object}	models.Document
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [post]
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	doc, err := h.docs.Add(r.Context(), req.toAdd())
	if err != nil {
		writeError(w, "add document", err)
		return
	}
	if root, err := h.docs.Registry().Root(req.Root); err == nil {
		h.opts.Events.DocumentAdded(root.Path(), doc)
	}
	writeJSON(w, http.StatusCreated, doc)
}

// Search handles GET /api/search.
//
//	@Summary		Search documents across all roots
//	@Tags			search
//	@Produce		json
//	@Param			q				query		string	true	"Search query"
//	@Param			limit			query		int		false	"Max results (0 for all)"
//	@Param			category		query		string	false	"Exact category filter"
//	@Param			case_sensitive	query		bool	false	"Case-sensitive plain matching"
//	@Param			backend			query		string	false	"Backend"	Enums(auto, plain, ranked)
//	@Param			fuzzy			query		int		false	"Edit distance for ranked matching"
//	@Success		200				{object}	SearchResponse
//	@Failure		400				{object}	errResponse
//	@Failure		409				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("q") {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	req := search.Request{
		Query:    q.Get("q"),
		Category: optionalParam(r, "category"),
		Limit:    h.opts.DefaultLimit,
		Backend:  h.opts.DefaultBackend,
	}
	var err error
	if v := q.Get("limit"); v != "" {
		if req.Limit, err = strconv.Atoi(v); err != nil || req.Limit < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("limit must be a non-negative integer"))
			return
		}
	}
	if v := q.Get("fuzzy"); v != "" {
		if req.Fuzzy, err = strconv.Atoi(v); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("fuzzy must be an integer"))
			return
		}
	}
	if v := q.Get("case_sensitive"); v != "" {
		if req.CaseSensitive, err = strconv.ParseBool(v); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("case_sensitive must be a boolean"))
			return
		}
	}
	if v := q.Get("backend"); v != "" {
		if req.Backend, err = models.ParseBackend(v); err != nil {
			writeError(w, "search", err)
			return
		}
	}

	resp, err := h.disp.Search(r.Context(), req)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, toSearchResponse(resp))
}

// BuildIndex handles POST /api/index.
//
//	@Summary		Rebuild the ranked index of every root
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	IndexResponse
//	@Failure		500	{object}	IndexResponse
//	@Security		BearerAuth
//	@Router			/index [post]
func (h *Handler) BuildIndex(w http.ResponseWriter, r *http.Request) {
	out := IndexResponse{Roots: []IndexRootResult{}}
	status := http.StatusOK
	for _, root := range h.docs.Registry().Roots() {
		st, err := index.Build(r.Context(), root, h.opts.Logger)
		h.opts.Events.IndexBuilt(root.Path(), st, err)
		if err != nil {
			h.opts.Logger.Error("index build failed",
				slog.String("root", root.Path()),
				slog.String("error", err.Error()))
			out.Roots = append(out.Roots, IndexRootResult{Root: root.Path(), Error: err.Error()})
			status = http.StatusInternalServerError
			continue
		}
		out.Roots = append(out.Roots, IndexRootResult{
			Root:      st.Root,
			Documents: st.Documents,
			Terms:     st.Terms,
			Skipped:   st.Skipped,
		})
	}
	writeJSON(w, status, out)
}
