package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/kvault/internal/apperr"
	"github.com/starford/kvault/internal/corpus"
	"github.com/starford/kvault/internal/index"
	"github.com/starford/kvault/internal/models"
)

// MaxQueryLength is the longest accepted query, in bytes.
const MaxQueryLength = 1000

const maxParallelRoots = 4

// Request is one search across all roots.
type Request struct {
	Query         string
	Category      *string
	Limit         int // 0 means no limit
	CaseSensitive bool
	Backend       models.Backend
	Fuzzy         int // ignored by the plain backend
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithBM25 overrides the ranked scoring parameters.
func WithBM25(p index.BM25Params) Option {
	return func(d *Dispatcher) { d.params = p }
}

// WithLogger sets the logger used for advisories.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithIndexOpener replaces how ranked indexes are opened.
func WithIndexOpener(open func(indexDir string) (index.Ranker, error)) Option {
	return func(d *Dispatcher) { d.openIndex = open }
}

// Dispatcher picks a backend per root, fans the query out and merges the
// results.
type Dispatcher struct {
	reg       *corpus.Registry
	plain     *Plain
	params    index.BM25Params
	logger    *slog.Logger
	openIndex func(indexDir string) (index.Ranker, error)
}

// NewDispatcher creates a dispatcher over reg using lines for plain search.
func NewDispatcher(reg *corpus.Registry, lines LineSearcher, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		reg:    reg,
		plain:  NewPlain(lines),
		params: index.DefaultBM25(),
		logger: slog.Default(),
		openIndex: func(dir string) (index.Ranker, error) {
			return index.Open(dir)
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ValidateQuery rejects queries over MaxQueryLength bytes or containing NUL.
func ValidateQuery(q string) error {
	if n := len(q); n > MaxQueryLength {
		return apperr.Detail(apperr.ErrQueryTooLong, "%d characters (max %d)", n, MaxQueryLength)
	}
	if strings.ContainsRune(q, 0) {
		return apperr.Detail(apperr.ErrInvalidQuery, "query contains a NUL byte")
	}
	return nil
}

// rootOutcome is one root's contribution. err means the root produced
// nothing; partial lists files that failed while the rest were searched.
type rootOutcome struct {
	ranked  []models.SearchResult
	plain   []models.SearchResult
	err     error
	partial []error
}

// Search runs req against every root. A root that fails is reported as an
// advisory and does not stop the others; a file that cannot be read is
// reported the same way while the rest of its root is still searched. Invalid queries and an explicit
// ranked search over a root without an index fail the whole search.
func (d *Dispatcher) Search(ctx context.Context, req Request) (*models.SearchResponse, error) {
	if err := ValidateQuery(req.Query); err != nil {
		return nil, err
	}
	resp := &models.SearchResponse{Results: []models.SearchResult{}, Advisories: []models.Advisory{}}
	if req.Query == "" {
		return resp, nil
	}

	backend := req.Backend
	if backend == "" {
		backend = models.BackendAuto
	}
	roots := d.reg.Roots()
	switch backend {
	case models.BackendPlain:
	case models.BackendRanked:
		if err := index.ValidateFuzzy(req.Fuzzy); err != nil {
			return nil, err
		}
	case models.BackendAuto:
		// Fuzzy only matters once some root resolves to ranked.
		if anyIndexed(roots) {
			if err := index.ValidateFuzzy(req.Fuzzy); err != nil {
				return nil, err
			}
		}
	default:
		return nil, apperr.Detail(apperr.ErrInvalidBackend, "%q", backend)
	}

	if backend == models.BackendRanked {
		for _, r := range roots {
			if !index.Exists(r.IndexPath()) {
				return nil, missingIndex(r)
			}
		}
	}

	outcomes := make([]rootOutcome, len(roots))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelRoots)
	for i, r := range roots {
		g.Go(func() error {
			outcomes[i] = d.searchRoot(gctx, r, backend, req)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ranked, plain []models.SearchResult
	for i, o := range outcomes {
		if o.err != nil {
			if backend == models.BackendRanked && isIndexMissing(o.err) {
				return nil, o.err
			}
			d.logger.Warn("search: root skipped",
				slog.String("root", roots[i].Path()),
				slog.String("error", o.err.Error()))
			resp.Advisories = append(resp.Advisories, models.Advisory{Root: roots[i].Path(), Err: o.err})
			continue
		}
		for _, err := range o.partial {
			d.logger.Warn("search: file skipped",
				slog.String("root", roots[i].Path()),
				slog.String("error", err.Error()))
			resp.Advisories = append(resp.Advisories, models.Advisory{Root: roots[i].Path(), Err: err})
		}
		ranked = append(ranked, o.ranked...)
		plain = append(plain, o.plain...)
	}

	sortRanked(ranked)
	sortPlain(plain)
	resp.Results = append(resp.Results, ranked...)
	resp.Results = append(resp.Results, plain...)
	if req.Limit > 0 && len(resp.Results) > req.Limit {
		resp.Results = resp.Results[:req.Limit]
	}
	return resp, nil
}

func (d *Dispatcher) searchRoot(ctx context.Context, r *corpus.Root, backend models.Backend, req Request) rootOutcome {
	m, err := r.Manifest()
	if err != nil {
		return rootOutcome{err: err}
	}
	docs := m.Filter(req.Category)
	if len(docs) == 0 {
		return rootOutcome{}
	}

	useRanked := backend == models.BackendRanked ||
		(backend == models.BackendAuto && index.Exists(r.IndexPath()))
	if !useRanked {
		matches, err := d.plain.Search(ctx, r, docs, req.Query, req.CaseSensitive)
		var partial *PartialError
		if err != nil && !errors.As(err, &partial) {
			return rootOutcome{err: err}
		}
		out := make([]models.SearchResult, len(matches))
		for i, m := range matches {
			out[i] = models.SearchResult{
				Root:     r.Path(),
				Document: m.Document,
				Line:     m.Line,
				Text:     m.Text,
				Backend:  models.BackendPlain,
			}
		}
		o := rootOutcome{plain: out}
		if partial != nil {
			o.partial = partial.Errs
		}
		return o
	}

	db, err := d.openIndex(r.IndexPath())
	if err != nil {
		return rootOutcome{err: err}
	}
	defer db.Close()

	allowed := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		allowed[doc.Path] = struct{}{}
	}
	scored, err := db.Query(ctx, index.QueryOptions{
		Query:   req.Query,
		Fuzzy:   req.Fuzzy,
		Allowed: allowed,
		Params:  d.params,
	})
	if err != nil {
		return rootOutcome{err: err}
	}
	out := make([]models.SearchResult, len(scored))
	for i, s := range scored {
		score := s.Score
		out[i] = models.SearchResult{
			Root:     r.Path(),
			Document: s.Document,
			Score:    &score,
			Backend:  models.BackendRanked,
		}
	}
	return rootOutcome{ranked: out}
}

// sortRanked orders by descending score then ascending path. The sort is
// stable so equal hits keep root order.
func sortRanked(rs []models.SearchResult) {
	sort.SliceStable(rs, func(i, j int) bool {
		si, sj := *rs[i].Score, *rs[j].Score
		if si != sj {
			return si > sj
		}
		return rs[i].Document.Path < rs[j].Document.Path
	})
}

// sortPlain orders by path then line, keeping root order for equal keys.
func sortPlain(rs []models.SearchResult) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Document.Path != rs[j].Document.Path {
			return rs[i].Document.Path < rs[j].Document.Path
		}
		return rs[i].Line < rs[j].Line
	})
}

func anyIndexed(roots []*corpus.Root) bool {
	for _, r := range roots {
		if index.Exists(r.IndexPath()) {
			return true
		}
	}
	return false
}

func missingIndex(r *corpus.Root) error {
	return apperr.Path("", r.Path(), apperr.ErrIndexMissing,
		fmt.Errorf("run `kvault index` to build it"))
}

func isIndexMissing(err error) bool {
	return errors.Is(err, apperr.ErrIndexMissing)
}
