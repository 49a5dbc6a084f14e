package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/kvault/internal/corpus"
	"github.com/starford/kvault/internal/manifest"
)

// BuildCallback is called after each watcher-driven rebuild of root. stats
// is nil when err is set.
type BuildCallback func(root string, stats *BuildStats, err error)

const rebuildDelay = 300 * time.Millisecond

// Watch rebuilds a root's index whenever its manifest changes, until ctx is
// cancelled. Changes are debounced so a burst of writes causes one rebuild
// per root. Only the manifest is watched: editing a document without
// touching the manifest does not trigger a rebuild.
func Watch(ctx context.Context, roots []*corpus.Root, logger *slog.Logger, cb BuildCallback) error {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	byManifest := make(map[string]*corpus.Root, len(roots))
	for _, r := range roots {
		if err := w.Add(r.Path()); err != nil {
			return err
		}
		byManifest[filepath.Join(r.Path(), manifest.FileName)] = r
		logger.Info("watcher: started", slog.String("root", r.Path()))
	}

	pending := make(map[string]*corpus.Root)
	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(rebuildDelay)
			timerCh = timer.C
		} else {
			timer.Reset(rebuildDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			for path, r := range pending {
				delete(pending, path)
				stats, err := Build(ctx, r, logger)
				if err != nil {
					logger.Warn("watcher: rebuild failed",
						slog.String("root", r.Path()),
						slog.String("error", err.Error()))
				}
				if cb != nil {
					cb(r.Path(), stats, err)
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			r, watched := byManifest[filepath.Clean(ev.Name)]
			if !watched || ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			logger.Debug("watcher: manifest changed",
				slog.String("root", r.Path()),
				slog.String("op", ev.Op.String()))
			pending[r.Path()] = r
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
