package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/glsp-mcp/forge/pkg/apperr"
)

// DefaultDebounceWindow is used when no explicit window is configured,
// per internal/config's CatalogConfig.DebounceWindow default.
const DefaultDebounceWindow = 250 * time.Millisecond

// watcher wraps fsnotify with a debounce timer, per spec.md §4.B
// "Filesystem watcher: debounces create/modify/delete events". Bursts of
// events for the same path within the debounce window collapse into a
// single rescan trigger.
type watcher struct {
	fsw    *fsnotify.Watcher
	done   chan struct{}
	stopWg sync.WaitGroup
}

// StartWatch begins watching the catalog's current root for filesystem
// changes, debouncing bursts and triggering a full Scan after each quiet
// period. Missing descriptors are retained across scans (Scan itself
// handles the "exists=false for at least one cycle" rule), so the
// watcher's only job is to decide when to rescan.
func (c *Catalog) StartWatch(debounce ...time.Duration) error {
	window := DefaultDebounceWindow
	if len(debounce) > 0 && debounce[0] > 0 {
		window = debounce[0]
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return apperr.Wrap(apperr.KindLoadFailed, "create filesystem watcher", err)
	}
	if err := fsw.Add(c.WatchPath()); err != nil {
		fsw.Close()
		return apperr.Wrap(apperr.KindLoadFailed, "watch path", err)
	}

	w := &watcher{fsw: fsw, done: make(chan struct{})}
	c.mu.Lock()
	c.watcher = w
	c.mu.Unlock()

	w.stopWg.Add(1)
	go c.debounceLoop(w, window)
	return nil
}

func (c *Catalog) debounceLoop(w *watcher, window time.Duration) {
	defer w.stopWg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time

	resetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(window)
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(window)
		}
		timerC = timer.C
	}

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case _, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			resetTimer()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("catalog: filesystem watcher error", "error", err)

		case <-timerC:
			timerC = nil
			if _, err := c.Scan(context.Background()); err != nil {
				slog.Warn("catalog: debounced rescan failed", "error", err)
			}
		}
	}
}

// StopWatch releases the current watcher, if any. Per spec.md §4.B
// "change_watch_path ... prior watches are released".
func (c *Catalog) StopWatch() {
	c.mu.Lock()
	w := c.watcher
	c.watcher = nil
	c.mu.Unlock()

	if w == nil {
		return
	}
	close(w.done)
	w.fsw.Close()
	w.stopWg.Wait()
}
