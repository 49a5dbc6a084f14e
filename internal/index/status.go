package index

import (
	"github.com/starford/kvault/internal/checksum"
	"github.com/starford/kvault/internal/corpus"
)

// Status reports whether a root has an index and whether its manifest has
// changed since the index was built. Staleness is informational; queries
// still use the existing index until it is rebuilt.
type Status struct {
	Root  string
	Built bool
	Stale bool
	Meta  Meta
}

// Inspect returns the index status of root.
func Inspect(root *corpus.Root) (*Status, error) {
	st := &Status{Root: root.Path()}
	if !Exists(root.IndexPath()) {
		return st, nil
	}
	db, err := Open(root.IndexPath())
	if err != nil {
		return nil, err
	}
	defer db.Close()

	st.Built = true
	st.Meta = db.Meta()

	raw, _, err := root.Store().LoadRaw()
	if err != nil {
		return nil, err
	}
	st.Stale = !checksum.Matches(raw, st.Meta.ManifestChecksum)
	return st, nil
}
