// Package watcher turns file system notifications into file-changed checks.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aleister1102/filestatus/internal/checker"
	"github.com/aleister1102/filestatus/internal/config"
	"github.com/aleister1102/filestatus/internal/dispatcher"
	"github.com/aleister1102/filestatus/internal/resource"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const minDebounceTick = 10 * time.Millisecond

// Event is a path that changed and then stayed quiet for the debounce interval.
type Event struct {
	Path      string
	Op        fsnotify.Op
	Timestamp time.Time
}

type pendingEvent struct {
	op   fsnotify.Op
	last time.Time
}

type watchRoot struct {
	path    string
	matcher *IgnoreMatcher
}

// Watcher monitors files and directories for changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	cfg       config.WatcherConfig
	logger    zerolog.Logger

	roots []watchRoot

	pending   map[string]pendingEvent
	pendingMu sync.Mutex

	events chan Event
	errors chan error

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a watcher over cfg.Paths. Nothing is watched until Start.
func New(cfg config.WatcherConfig, logger zerolog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		cfg:       cfg,
		logger:    logger.With().Str("component", "Watcher").Logger(),
		pending:   make(map[string]pendingEvent),
		events:    make(chan Event, 100),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}, nil
}

// Events returns the channel of debounced change events. It is closed by Stop.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of watch errors. It is closed by Stop.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start begins watching all configured paths.
func (w *Watcher) Start() error {
	for _, path := range w.cfg.Paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return err
		}

		info, err := os.Stat(absPath)
		if err != nil {
			return err
		}

		root := absPath
		if !info.IsDir() {
			// Single files are watched through their directory.
			root = filepath.Dir(absPath)
		}

		var matcher *IgnoreMatcher
		if w.cfg.RespectGitignore {
			matcher, err = NewIgnoreMatcher(root)
			if err != nil {
				w.logger.Warn().Err(err).Str("root", root).Msg("Ignoring unreadable .gitignore")
				matcher = nil
			}
		}
		w.roots = append(w.roots, watchRoot{path: root, matcher: matcher})

		if info.IsDir() && w.cfg.Recursive {
			if err := w.addTree(absPath); err != nil {
				return err
			}
		} else if err := w.fsWatcher.Add(root); err != nil {
			return err
		}
	}

	// Longest roots first so nested roots win the lookup.
	sort.Slice(w.roots, func(i, j int) bool { return len(w.roots[i].path) > len(w.roots[j].path) })

	w.logger.Info().Strs("paths", w.cfg.Paths).Bool("recursive", w.cfg.Recursive).Msg("Watcher started")

	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()
	return nil
}

// Stop shuts the watcher down and closes its channels.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		close(w.events)
		close(w.errors)
		err = w.fsWatcher.Close()
	})
	return err
}

// WatchedPaths returns the directories currently watched
func (w *Watcher) WatchedPaths() []string {
	paths := w.fsWatcher.WatchList()
	sort.Strings(paths)
	return paths
}

// addTree watches dir and every non-ignored directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			w.logger.Debug().Err(err).Str("path", path).Msg("Skipping unreadable path")
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.ignored(path, true) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return err
		}
		return nil
	})
}

func (w *Watcher) ignored(path string, isDir bool) bool {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root.path, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		// A nil matcher still skips .git.
		return root.matcher.ShouldIgnore(rel, isDir)
	}
	return false
}

// eventLoop records fsnotify events as pending.
func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			isDir := false
			if info, err := os.Stat(event.Name); err == nil {
				isDir = info.IsDir()
			}
			if w.ignored(event.Name, isDir) {
				continue
			}
			if isDir {
				if event.Has(fsnotify.Create) && w.cfg.Recursive {
					if err := w.addTree(event.Name); err != nil {
						w.reportError(err)
					}
				}
				continue
			}

			w.pendingMu.Lock()
			p := w.pending[event.Name]
			p.op |= event.Op
			p.last = time.Now()
			w.pending[event.Name] = p
			w.pendingMu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.reportError(err)
		}
	}
}

// debounceLoop emits pending paths that stayed quiet for the debounce interval.
func (w *Watcher) debounceLoop() {
	defer w.wg.Done()

	debounce := w.cfg.Debounce()
	tick := debounce / 2
	if tick < minDebounceTick {
		tick = minDebounceTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case now := <-ticker.C:
			w.flush(now, debounce)
		}
	}
}

func (w *Watcher) flush(now time.Time, debounce time.Duration) {
	threshold := now.Add(-debounce)

	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	for path, p := range w.pending {
		if p.last.After(threshold) {
			continue
		}
		select {
		case w.events <- Event{Path: path, Op: p.op, Timestamp: now}:
			delete(w.pending, path)
		default:
			// Event channel full, try again next tick.
		}
	}
}

func (w *Watcher) reportError(err error) {
	w.logger.Warn().Err(err).Msg("Watch error")
	select {
	case w.errors <- err:
	default:
	}
}

// Targets resolves tracked resources by URI
type Targets interface {
	Resource(uri string) (resource.Resource, bool)
}

// Dispatcher runs the registered checkers against a resource
type Dispatcher interface {
	Dispatch(ctx context.Context, res resource.Resource, reason checker.Reason) dispatcher.Result
}

// Forward dispatches a FileChanged check for every event whose path is a
// tracked resource. It returns when ctx is done or the events channel closes.
func Forward(ctx context.Context, events <-chan Event, targets Targets, d Dispatcher, onResult func(dispatcher.Result), logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			res, tracked := targets.Resource(resource.FileURI(ev.Path))
			if !tracked {
				logger.Debug().Str("path", ev.Path).Msg("Change to untracked path ignored")
				continue
			}
			result := d.Dispatch(ctx, res, checker.ReasonFileChanged)
			if onResult != nil {
				onResult(result)
			}
		}
	}
}
