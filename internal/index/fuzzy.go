package index

import "github.com/starford/kvault/internal/apperr"

// MaxFuzzy is the largest supported edit distance.
const MaxFuzzy = 2

// ValidateFuzzy accepts distances 0 (exact) through MaxFuzzy.
func ValidateFuzzy(d int) error {
	if d < 0 || d > MaxFuzzy {
		return apperr.Detail(apperr.ErrInvalidFuzzy, "%d (allowed: 0 to %d)", d, MaxFuzzy)
	}
	return nil
}

// withinDistance reports whether the Levenshtein distance between a and b is
// at most max. It stops as soon as every cell in a row exceeds max.
func withinDistance(a, b []rune, max int) bool {
	if abs(len(a)-len(b)) > max {
		return false
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	prev := make([]int, len(a)+1)
	curr := make([]int, len(a)+1)
	for i := range prev {
		prev[i] = i
	}
	for j := 1; j <= len(b); j++ {
		curr[0] = j
		rowMin := curr[0]
		for i := 1; i <= len(a); i++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[i] = min(prev[i]+1, curr[i-1]+1, prev[i-1]+cost)
			rowMin = min(rowMin, curr[i])
		}
		if rowMin > max {
			return false
		}
		prev, curr = curr, prev
	}
	return prev[len(a)] <= max
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

type expansionKey struct {
	term     string
	distance int
}

// expand returns every vocabulary term within distance of term, including
// term itself when it is indexed.
func (db *DB) expand(term string, distance int) ([]string, error) {
	key := expansionKey{term: term, distance: distance}
	if cached, ok := db.expansions.Get(key); ok {
		return cached, nil
	}
	vocab, err := db.vocabulary()
	if err != nil {
		return nil, err
	}
	target := []rune(term)
	var out []string
	for _, v := range vocab {
		if withinDistance(target, []rune(v), distance) {
			out = append(out, v)
		}
	}
	db.expansions.Add(key, out)
	return out, nil
}
