package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/starford/kvault/internal/models"
)

// BM25Params are the BM25 free parameters.
type BM25Params struct {
	K1 float64
	B  float64
}

// DefaultBM25 returns k1=1.2, b=0.75.
func DefaultBM25() BM25Params {
	return BM25Params{K1: 1.2, B: 0.75}
}

// QueryOptions controls one ranked query.
type QueryOptions struct {
	Query string
	// Fuzzy is the maximum edit distance for term expansion; 0 is exact.
	Fuzzy int
	// Allowed restricts results to these paths when non-nil. Collection
	// statistics still cover the whole index.
	Allowed map[string]struct{}
	Params  BM25Params
}

// IDF is the BM25 inverse document frequency, ln(1 + (N - df + 0.5)/(df + 0.5)).
func IDF(n, df int) float64 {
	return math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
}

type accum struct {
	score float64
	terms []string
}

// Query scores every indexed document containing at least one query term and
// returns them by descending score, ties broken by ascending path. With
// fuzzy > 0 each query term stands for all vocabulary terms within that edit
// distance: their frequencies are summed per document and the document
// frequency is the number of distinct documents containing any of them.
func (db *DB) Query(ctx context.Context, opts QueryOptions) ([]models.ScoredMatch, error) {
	if err := ValidateFuzzy(opts.Fuzzy); err != nil {
		return nil, err
	}
	params := opts.Params
	if params == (BM25Params{}) {
		params = DefaultBM25()
	}
	terms := uniqueTerms(opts.Query)
	n := db.meta.DocCount
	if len(terms) == 0 || n == 0 {
		return []models.ScoredMatch{}, nil
	}
	docs, err := db.documents()
	if err != nil {
		return nil, err
	}
	avgdl := db.meta.AvgLength()

	scores := make(map[string]*accum)
	for _, term := range terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		variants := []string{term}
		if opts.Fuzzy > 0 {
			variants, err = db.expand(term, opts.Fuzzy)
			if err != nil {
				return nil, err
			}
			if len(variants) == 0 {
				continue
			}
		}
		tf, err := db.postings(ctx, variants)
		if err != nil {
			return nil, err
		}
		if len(tf) == 0 {
			continue
		}
		idf := IDF(n, len(tf))
		for path, f := range tf {
			if opts.Allowed != nil {
				if _, ok := opts.Allowed[path]; !ok {
					continue
				}
			}
			row, ok := docs[path]
			if !ok {
				continue
			}
			freq := float64(f)
			norm := 1 - params.B
			if avgdl > 0 {
				norm += params.B * float64(row.length) / avgdl
			}
			a := scores[path]
			if a == nil {
				a = &accum{}
				scores[path] = a
			}
			a.score += idf * freq * (params.K1 + 1) / (freq + params.K1*norm)
			a.terms = append(a.terms, term)
		}
	}

	out := make([]models.ScoredMatch, 0, len(scores))
	for path, a := range scores {
		out = append(out, models.ScoredMatch{
			Document:     docs[path].doc,
			Score:        a.score,
			MatchedTerms: a.terms,
		})
	}
	SortScored(out)
	return out, nil
}

// SortScored orders by descending score, then ascending path.
func SortScored(ms []models.ScoredMatch) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].Score != ms[j].Score {
			return ms[i].Score > ms[j].Score
		}
		return ms[i].Document.Path < ms[j].Document.Path
	})
}

// maxVars keeps IN lists under SQLite's bound-parameter limit.
const maxVars = 500

// postings returns, per document, the summed term frequency of terms.
func (db *DB) postings(ctx context.Context, terms []string) (map[string]int, error) {
	out := make(map[string]int)
	for start := 0; start < len(terms); start += maxVars {
		chunk := terms[start:min(start+maxVars, len(terms))]
		if err := db.sumPostings(ctx, chunk, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (db *DB) sumPostings(ctx context.Context, terms []string, into map[string]int) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(terms)), ",")
	args := make([]any, len(terms))
	for i, t := range terms {
		args[i] = t
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT path, SUM(tf) FROM postings WHERE term IN (`+placeholders+`) GROUP BY path`, args...)
	if err != nil {
		return fmt.Errorf("index: postings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			path string
			tf   int
		)
		if err := rows.Scan(&path, &tf); err != nil {
			return fmt.Errorf("index: postings: %w", err)
		}
		into[path] += tf
	}
	return rows.Err()
}
