// Package lockfile provides cross-process advisory locks built on gofrs/flock.
package lockfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const retryDelay = 25 * time.Millisecond

// Lock is an exclusive lock held on a file.
type Lock struct {
	flock *flock.Flock
}

// Acquire blocks until the lock at path is held or ctx is done. The lock file
// and its parent directory are created if needed.
func Acquire(ctx context.Context, path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("lockfile: create lock directory: %w", err)
	}
	fl := flock.New(path)
	ok, err := fl.TryLockContext(ctx, retryDelay)
	if err != nil {
		return nil, fmt.Errorf("lockfile: acquire %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("lockfile: acquire %s: %w", path, ctx.Err())
	}
	return &Lock{flock: fl}, nil
}

// Release unlocks. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || !l.flock.Locked() {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("lockfile: release: %w", err)
	}
	return nil
}
