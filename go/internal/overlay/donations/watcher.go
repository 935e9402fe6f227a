package donations

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce is the settle window after the last file event before the
// donation file is reread.
const DefaultDebounce = 500 * time.Millisecond

// Reloader rereads durable state after an external change.
type Reloader interface {
	Reload() error
}

// Watcher reloads the donation file after it has been edited. Bursts of
// events (editors often write a file in several steps) collapse into one
// reload once the file has been quiet for the debounce window.
type Watcher struct {
	path     string
	reloader Reloader
	clock    clockwork.Clock
	debounce time.Duration

	mu      sync.Mutex
	pending clockwork.Timer
}

// NewWatcher creates a watcher that calls reloader.Reload once path has been
// quiet for debounce after a write.
func NewWatcher(path string, reloader Reloader, clock clockwork.Clock, debounce time.Duration) *Watcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		path:     filepath.Clean(path),
		reloader: reloader,
		clock:    clock,
		debounce: debounce,
	}
}

// Run watches until ctx is done. The containing directory is watched rather
// than the file so atomic replacements and late creation are seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	log.Info().Str("path", w.path).Msg("watching donation file")

	for {
		select {
		case <-ctx.Done():
			w.stop()
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("donation file watcher error")
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}

	log.Debug().Str("op", ev.Op.String()).Msg("donation file changed")

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = w.clock.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	if err := w.reloader.Reload(); err != nil {
		log.Warn().Err(err).Msg("failed to reload donation file")
	}
}

func (w *Watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
}
