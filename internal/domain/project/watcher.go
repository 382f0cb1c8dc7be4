package project

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce coalesces editor write bursts into one notification
const DefaultDebounce = 150 * time.Millisecond

// Watcher reports which projects under a DiskStore root changed on disk
type Watcher struct {
	root     string
	debounce time.Duration
	logger   *zap.Logger
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	events  chan string
	done    chan struct{}
	once    sync.Once
}

// NewWatcher watches root recursively
func NewWatcher(root string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		debounce: debounce,
		logger:   logger,
		watcher:  fw,
		pending:  make(map[string]*time.Timer),
		events:   make(chan string, 64),
		done:     make(chan struct{}),
	}
	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Events delivers the id of each changed project
func (w *Watcher) Events() <-chan string {
	return w.events
}

// Run processes file system events until ctx is done or Close is called
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Close()
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("Failed to watch directory", zap.String("path", event.Name), zap.Error(err))
			}
		}
	}

	id := w.projectID(event.Name)
	if id == "" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[id]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[id] = time.AfterFunc(w.debounce, func() { w.emit(id) })
}

func (w *Watcher) emit(id string) {
	w.mu.Lock()
	delete(w.pending, id)
	w.mu.Unlock()

	select {
	case w.events <- id:
	case <-w.done:
	default:
		w.logger.Warn("Dropping change notification", zap.String("project_id", id))
	}
}

// projectID maps a path to the first directory below root. Staging
// directories and dotfiles are ignored.
func (w *Watcher) projectID(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	first := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	if strings.HasPrefix(first, ".") {
		return ""
	}
	return first
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules" {
			return filepath.SkipDir
		}
		return w.watcher.Add(p)
	})
}

// Close stops watching
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.mu.Lock()
		for _, t := range w.pending {
			t.Stop()
		}
		w.mu.Unlock()
		err = w.watcher.Close()
	})
	return err
}
