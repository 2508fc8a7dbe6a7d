package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"lc3tools/pkg/utils"
)

// settle is how long a source must be quiet before it is reassembled.
// Editors often write a file in several steps.
const settle = 100 * time.Millisecond

// sourceWatcher reassembles sources when their directories report a write.
// New files that match one of the patterns are picked up too.
type sourceWatcher struct {
	watcher  *fsnotify.Watcher
	sources  map[string]string
	patterns []string
	rep      *reporter
	log      zerolog.Logger
}

func newSourceWatcher(files, args []string, rep *reporter, logger zerolog.Logger) (*sourceWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, eris.Wrap(err, "failed to create file watcher")
	}
	w := &sourceWatcher{
		watcher: fw,
		sources: make(map[string]string),
		rep:     rep,
		log:     logger,
	}

	dirs := make(map[string]bool)
	watchDir := func(dir string) error {
		if dirs[dir] {
			return nil
		}
		dirs[dir] = true
		if err := fw.Add(dir); err != nil {
			return eris.Wrapf(err, "failed to watch %s", dir)
		}
		logger.Debug().Str("dir", dir).Msg("watching")
		return nil
	}

	for _, f := range files {
		full, dir, err := utils.GetPathInfo(f)
		if err != nil {
			fw.Close()
			return nil, err
		}
		w.sources[full] = f
		if err := watchDir(dir); err != nil {
			fw.Close()
			return nil, err
		}
	}
	for _, arg := range args {
		if !isPattern(arg) {
			continue
		}
		full, err := filepath.Abs(arg)
		if err != nil {
			continue
		}
		w.patterns = append(w.patterns, full)
		base, _ := doublestar.SplitPattern(filepath.ToSlash(full))
		if err := watchDir(filepath.FromSlash(base)); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Close stops watching.
func (w *sourceWatcher) Close() error {
	return w.watcher.Close()
}

// Run reassembles changed sources until ctx is cancelled.
func (w *sourceWatcher) Run(ctx context.Context) error {
	pending := make(map[string]bool)
	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	w.log.Info().Int("sources", len(w.sources)).Msg("watching for changes")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			src, ok := w.sourceFor(ev.Name)
			if !ok {
				continue
			}
			pending[src] = true
			timer.Reset(settle)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("file watcher error")
		case <-timer.C:
			for src := range pending {
				assembleOne(src, w.rep, w.log)
				delete(pending, src)
			}
		}
	}
}

func (w *sourceWatcher) sourceFor(name string) (string, bool) {
	full, _, err := utils.GetPathInfo(name)
	if err != nil {
		return "", false
	}
	if src, ok := w.sources[full]; ok {
		return src, true
	}
	if utils.HasExt(full, ".obj") || utils.HasExt(full, ".sym") {
		return "", false
	}
	for _, p := range w.patterns {
		if ok, _ := doublestar.PathMatch(p, full); ok {
			w.sources[full] = full
			return full, true
		}
	}
	return "", false
}
