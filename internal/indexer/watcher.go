package indexer

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// route binds a set of session directories to the callback that
// refreshes their indexer.
type route struct {
	dirs     []string
	onChange func()
}

// Watcher uses fsnotify to watch per-agent session directories and
// dispatches debounced change notifications to the matching agent's
// callback, coalescing bursts of file-system events into a single
// refresh per agent.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	routes  []route
	pending map[string]time.Time

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewWatcher creates a file watcher. Directories and their callbacks
// are registered with Watch before Start.
func NewWatcher(debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:  fsw,
		debounce: debounce,
		pending:  make(map[string]time.Time),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		now:      time.Now,
	}, nil
}

// Watch registers onChange for changes under dirs and recursively
// adds every existing directory to the watch list. Returns the
// number of directories watched; missing roots are skipped.
func (w *Watcher) Watch(dirs []string, onChange func()) int {
	w.mu.Lock()
	w.routes = append(w.routes, route{dirs: dirs, onChange: onChange})
	w.mu.Unlock()

	watched := 0
	for _, dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		filepath.WalkDir(dir,
			func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return nil // skip inaccessible dirs
				}
				if d.IsDir() {
					if addErr := w.watcher.Add(path); addErr == nil {
						watched++
					}
				}
				return nil
			})
	}
	return watched
}

// Start begins processing file events in a goroutine.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop stops the watcher and waits for it to finish.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		<-w.done
		w.watcher.Close()
	})
}

func (w *Watcher) loop() {
	defer close(w.done)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watcher error: %v", err)

		case <-ticker.C:
			w.flush()
		}
	}
}

// handleEvent records a pending change, auto-watching newly created
// directories so new project/session dirs are picked up.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		w.watchIfDir(event.Name)
	}

	w.mu.Lock()
	w.pending[event.Name] = w.now()
	w.mu.Unlock()
}

func (w *Watcher) watchIfDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	_ = w.watcher.Add(path)
}

// flush dispatches paths that have been quiet for a full debounce
// period. Each matching route fires at most once per flush; a path
// under no registered directory conservatively fires every route.
func (w *Watcher) flush() {
	w.mu.Lock()
	now := w.now()
	var ready []string
	for path, t := range w.pending {
		if now.Sub(t) >= w.debounce {
			ready = append(ready, path)
		}
	}
	for _, path := range ready {
		delete(w.pending, path)
	}
	routes := w.routes
	w.mu.Unlock()

	if len(ready) == 0 {
		return
	}

	fire := make([]bool, len(routes))
	for _, path := range ready {
		matched := false
		for i, rt := range routes {
			for _, dir := range rt.dirs {
				if withinDir(path, dir) {
					fire[i] = true
					matched = true
				}
			}
		}
		if !matched {
			for i := range fire {
				fire[i] = true
			}
			break
		}
	}
	for i, rt := range routes {
		if fire[i] {
			rt.onChange()
		}
	}
}

func withinDir(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." ||
		(rel != ".." &&
			!strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
