package gui

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"lc3tools/pkg/utils"
)

// settle is how long a file must be quiet before it counts as changed.
// The assembler writes the object file and then the symbol file.
const settle = 150 * time.Millisecond

// Reloader remembers which watched object files changed on disk.
type Reloader struct {
	watcher *fsnotify.Watcher
	log     zerolog.Logger

	mu      sync.Mutex
	dirs    map[string]bool
	changed map[string]time.Time
}

func NewReloader(logger zerolog.Logger) (*Reloader, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, eris.Wrap(err, "failed to create file watcher")
	}
	r := &Reloader{
		watcher: w,
		log:     logger,
		dirs:    make(map[string]bool),
		changed: make(map[string]time.Time),
	}
	go r.run()
	return r, nil
}

// Watch starts reporting changes to path. The directory is watched so that
// files replaced by rename are still seen.
func (r *Reloader) Watch(path string) error {
	_, dir, err := utils.GetPathInfo(path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dirs[dir] {
		return nil
	}
	if err := r.watcher.Add(dir); err != nil {
		return eris.Wrapf(err, "failed to watch %s", dir)
	}
	r.dirs[dir] = true
	r.log.Debug().Str("dir", dir).Msg("watching for object changes")
	return nil
}

func (r *Reloader) run() {
	for {
		select {
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			full, _, err := utils.GetPathInfo(ev.Name)
			if err != nil {
				continue
			}
			r.mu.Lock()
			r.changed[full] = time.Now()
			r.mu.Unlock()
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.log.Warn().Err(err).Msg("file watcher error")
		}
	}
}

// Take reports whether path changed since the last call and has been quiet
// since, and then forgets the change.
func (r *Reloader) Take(path string) bool {
	full, _, err := utils.GetPathInfo(path)
	if err != nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.changed[full]
	if !ok || time.Since(at) < settle {
		return false
	}
	delete(r.changed, full)
	return true
}

func (r *Reloader) Close() error {
	return r.watcher.Close()
}
