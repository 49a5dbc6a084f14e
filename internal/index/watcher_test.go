package index

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/starford/kvault/internal/corpus"
	"github.com/starford/kvault/internal/models"
	"github.com/starford/kvault/internal/testutil"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatch_RebuildsOnManifestChange(t *testing.T) {
	root, err := corpus.NewRoot(testutil.NewRoot(t, sample...))
	require.NoError(t, err)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var builds []*BuildStats
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, []*corpus.Root{root}, logger, func(_ string, stats *BuildStats, err error) {
			if err != nil {
				return
			}
			mu.Lock()
			builds = append(builds, stats)
			mu.Unlock()
		})
	}()

	time.Sleep(100 * time.Millisecond)

	testutil.WriteFile(t, root.Path(), "go/late.md", "late arrival")
	require.NoError(t, root.Store().Update(ctx, func(m *models.Manifest) error {
		m.Documents = append(m.Documents, models.Document{Path: "go/late.md", Title: "Late", Category: "go", Tags: []string{}})
		return nil
	}))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(builds) > 0 && builds[len(builds)-1].Documents == 4
	}, "index not rebuilt after manifest change")

	db, err := Open(root.IndexPath())
	require.NoError(t, err)
	defer db.Close()
	res, err := db.Query(ctx, QueryOptions{Query: "arrival"})
	require.NoError(t, err)
	require.Len(t, res, 1)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("watcher did not stop after cancel")
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	root, err := corpus.NewRoot(testutil.NewRoot(t, sample...))
	require.NoError(t, err)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	calls := 0
	go func() {
		_ = Watch(ctx, []*corpus.Root{root}, logger, func(string, *BuildStats, error) {
			mu.Lock()
			calls++
			mu.Unlock()
		})
	}()
	time.Sleep(100 * time.Millisecond)

	testutil.WriteFile(t, root.Path(), "notes.txt", "not the manifest")
	time.Sleep(3 * rebuildDelay)

	mu.Lock()
	defer mu.Unlock()
	require.Zero(t, calls)
}
