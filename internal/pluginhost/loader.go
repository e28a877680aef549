package pluginhost

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Loader discovers .wasm files under a plugin directory, loads them into a
// Manager, and optionally hot-reloads them as the directory changes on
// disk.
type Loader struct {
	pluginDir string
	manager   *Manager
	logger    *slog.Logger
	loadOpts  []Option

	mu         sync.RWMutex
	discovered map[string]string // name -> path

	watcher     *fsnotify.Watcher
	watchCtx    context.Context
	watchCancel context.CancelFunc
	watchMu     sync.Mutex
	debounce    map[string]*time.Timer
}

// NewLoader returns a Loader that loads plugins found under pluginDir into
// manager, applying loadOpts to every Load call.
func NewLoader(pluginDir string, manager *Manager, logger *slog.Logger, loadOpts ...Option) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		pluginDir:  pluginDir,
		manager:    manager,
		logger:     logger,
		loadOpts:   loadOpts,
		discovered: make(map[string]string),
		debounce:   make(map[string]*time.Timer),
	}
}

// DiscoverAll scans pluginDir for .wasm files without loading them,
// creating the directory if it does not yet exist.
func (l *Loader) DiscoverAll() (int, error) {
	if _, err := os.Stat(l.pluginDir); os.IsNotExist(err) {
		l.logger.Info("plugin directory does not exist, creating", "path", l.pluginDir)
		if err := os.MkdirAll(l.pluginDir, 0o755); err != nil {
			return 0, fmt.Errorf("pluginhost: create plugin dir: %w", err)
		}
		return 0, nil
	}

	count := 0
	err := filepath.WalkDir(l.pluginDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".wasm") {
			return nil
		}
		name := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		l.mu.Lock()
		l.discovered[name] = path
		l.mu.Unlock()
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("pluginhost: walk plugin dir: %w", err)
	}
	return count, nil
}

// Discovered returns the names of every plugin found by DiscoverAll.
func (l *Loader) Discovered() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.discovered))
	for name := range l.discovered {
		out = append(out, name)
	}
	return out
}

func (l *Loader) loadPath(ctx context.Context, path string) error {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("pluginhost: read %s: %w", path, err)
	}
	inst, err := Load(ctx, name, wasmBytes, l.loadOpts...)
	if err != nil {
		return fmt.Errorf("pluginhost: load %s: %w", name, err)
	}
	l.manager.Register(ctx, name, inst)
	l.mu.Lock()
	l.discovered[name] = path
	l.mu.Unlock()
	l.logger.Info("plugin loaded", "name", name, "mode", inst.Mode())
	return nil
}

// LoadAll loads every discovered plugin, continuing past individual
// failures and returning them all.
func (l *Loader) LoadAll(ctx context.Context) (int, []error) {
	l.mu.RLock()
	paths := make(map[string]string, len(l.discovered))
	for name, path := range l.discovered {
		paths[name] = path
	}
	l.mu.RUnlock()

	var errs []error
	loaded := 0
	for _, path := range paths {
		if err := l.loadPath(ctx, path); err != nil {
			errs = append(errs, err)
			continue
		}
		loaded++
	}
	return loaded, errs
}

// Reload re-reads a plugin's .wasm file from disk and atomically replaces
// its registered instance.
func (l *Loader) Reload(ctx context.Context, name string) error {
	l.mu.RLock()
	path, ok := l.discovered[name]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("pluginhost: unknown plugin %q", name)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("pluginhost: plugin file not found: %s", path)
	}
	return l.loadPath(ctx, path)
}

// WatchDir starts an fsnotify watch over pluginDir, hot-reloading plugins
// as their .wasm files are created, modified, or removed.
func (l *Loader) WatchDir(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("pluginhost: create watcher: %w", err)
	}

	l.watchMu.Lock()
	l.watcher = watcher
	l.watchCtx, l.watchCancel = context.WithCancel(ctx)
	l.watchMu.Unlock()

	if err := watcher.Add(l.pluginDir); err != nil {
		watcher.Close()
		return fmt.Errorf("pluginhost: watch plugin dir: %w", err)
	}

	l.logger.Info("hot reload enabled", "path", l.pluginDir)
	go l.watchLoop()
	return nil
}

// StopWatch tears down the fsnotify watch, if any.
func (l *Loader) StopWatch() {
	l.watchMu.Lock()
	defer l.watchMu.Unlock()
	if l.watchCancel != nil {
		l.watchCancel()
	}
	if l.watcher != nil {
		l.watcher.Close()
		l.watcher = nil
	}
}

func (l *Loader) watchLoop() {
	events := l.watcher.Events
	errorsCh := l.watcher.Errors
	for {
		select {
		case <-l.watchCtx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			l.handleFSEvent(event)
		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			l.logger.Error("plugin watcher error", "error", err)
		}
	}
}

// handleFSEvent debounces rapid successive events on the same path (e.g.
// a build tool truncating then rewriting a .wasm file) before dispatching.
func (l *Loader) handleFSEvent(event fsnotify.Event) {
	path := event.Name
	if !strings.HasSuffix(strings.ToLower(path), ".wasm") {
		return
	}

	l.watchMu.Lock()
	if timer, exists := l.debounce[path]; exists {
		timer.Stop()
	}
	l.debounce[path] = time.AfterFunc(500*time.Millisecond, func() {
		l.processFileChange(event)
	})
	l.watchMu.Unlock()
}

func (l *Loader) processFileChange(event fsnotify.Event) {
	path := event.Name
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		l.logger.Info("new plugin detected", "name", name)
		if err := l.loadPath(l.watchCtx, path); err != nil {
			l.logger.Error("failed to load new plugin", "name", name, "error", err)
		}

	case event.Op&fsnotify.Write == fsnotify.Write:
		l.logger.Info("plugin modified, reloading", "name", name)
		if err := l.loadPath(l.watchCtx, path); err != nil {
			l.logger.Error("failed to reload plugin", "name", name, "error", err)
		}

	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		l.logger.Info("plugin removed", "name", name)
		if err := l.manager.Unregister(l.watchCtx, name); err != nil {
			l.logger.Warn("failed to unregister removed plugin", "name", name, "error", err)
		}
		l.mu.Lock()
		delete(l.discovered, name)
		l.mu.Unlock()
	}

	l.watchMu.Lock()
	delete(l.debounce, path)
	l.watchMu.Unlock()
}
