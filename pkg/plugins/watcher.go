package plugins

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/campus/pkg/async"
)

// DefaultRetryInterval is how often installs that hit ErrLifecycleBusy are retried
const DefaultRetryInterval = time.Second

// Watcher installs plugins whose manifests appear in the loader's
// directories while the host is running
type Watcher struct {
	loader  *Loader
	manager *Manager
	log     logrus.FieldLogger
	ready   chan struct{}

	// RetryInterval overrides DefaultRetryInterval when set before Run
	RetryInterval time.Duration

	mu       sync.Mutex
	pending  map[string]bool // registered but not installed because the lifecycle was busy
	retrying atomic.Bool
	retries  sync.WaitGroup
}

// NewWatcher creates a watcher over the loader's plugin directories
func NewWatcher(loader *Loader, m *Manager, log logrus.FieldLogger) *Watcher {
	if log == nil {
		log = logrus.New()
	}
	return &Watcher{
		loader:  loader,
		manager: m,
		log:     log.WithField("component", "plugin-watcher"),
		ready:   make(chan struct{}),
		pending: make(map[string]bool),
	}
}

// Ready is closed once every directory is being watched
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is cancelled. It returns only after any background
// install retry has finished.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	defer w.retries.Wait()

	for _, dir := range w.loader.Dirs() {
		if err := setupWatcher(watcher, dir); err != nil {
			if os.IsNotExist(err) {
				w.log.Debugf("Plugin directory does not exist: %s", dir)
				continue
			}
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.log.Infof("Watching %s for plugin manifests", dir)
	}
	close(w.ready)

	interval := w.RetryInterval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.scheduleRetry(ctx)
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("Watcher error")
		}
	}
}

func (w *Watcher) handle(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := watcher.Add(event.Name); err != nil {
				w.log.WithError(err).Warnf("Failed to watch %s", event.Name)
			}
			// the manifest may have been written before the watch was added
			manifest := filepath.Join(event.Name, ManifestFile)
			if _, err := os.Stat(manifest); err == nil {
				w.install(ctx, manifest)
			}
			return
		}
	}

	if event.Op&(fsnotify.Write|fsnotify.Create) != 0 && filepath.Base(event.Name) == ManifestFile {
		w.install(ctx, event.Name)
	}
}

func (w *Watcher) install(ctx context.Context, path string) {
	manifest, err := w.loader.loadManifest(filepath.Dir(path))
	if err != nil {
		// partial writes show up as parse errors; the next write retries
		w.log.WithError(err).Debugf("Skipping manifest %s", path)
		return
	}

	log := w.log.WithField("plugin", manifest.ID)
	if _, ok := w.manager.Plugin(manifest.ID); ok {
		if w.manager.IsInitialized(manifest.ID) {
			log.Debug("Plugin already installed")
			return
		}
		w.installPlugin(ctx, manifest.ID)
		return
	}

	if err := w.manager.Register(manifest.Descriptor(w.loader.binding(manifest.ID))); err != nil {
		log.WithError(err).Warn("Failed to register plugin manifest")
		return
	}
	w.installPlugin(ctx, manifest.ID)
}

// installPlugin installs a registered plugin, queueing it for a retry when
// another lifecycle operation holds the manager
func (w *Watcher) installPlugin(ctx context.Context, id string) {
	log := w.log.WithField("plugin", id)

	err := w.manager.Install(ctx, id)
	if errors.Is(err, ErrLifecycleBusy) {
		w.mu.Lock()
		w.pending[id] = true
		w.mu.Unlock()
		log.Warn("Lifecycle busy, plugin install queued for retry")
		return
	}

	w.mu.Lock()
	delete(w.pending, id)
	w.mu.Unlock()

	if err != nil {
		log.WithError(err).Error("Failed to install plugin")
		return
	}
	log.Info("Installed plugin from manifest")
}

// Pending returns the plugins waiting for an install retry
func (w *Watcher) Pending() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	ids := make([]string, 0, len(w.pending))
	for id := range w.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// retryPending installs every queued plugin that is still not initialized
func (w *Watcher) retryPending(ctx context.Context) {
	for _, id := range w.Pending() {
		if ctx.Err() != nil {
			return
		}
		if _, ok := w.manager.Plugin(id); !ok || w.manager.IsInitialized(id) {
			w.mu.Lock()
			delete(w.pending, id)
			w.mu.Unlock()
			continue
		}
		w.installPlugin(ctx, id)
	}
}

// scheduleRetry runs retryPending in the background so a slow OnInit does
// not stall event handling. At most one retry runs at a time.
func (w *Watcher) scheduleRetry(ctx context.Context) {
	if len(w.Pending()) == 0 || !w.retrying.CompareAndSwap(false, true) {
		return
	}
	w.retries.Add(1)
	async.SafeGo(ctx, w.log, 0, "plugin install retry", func(ctx context.Context) error {
		defer w.retries.Done()
		defer w.retrying.Store(false)
		w.retryPending(ctx)
		return nil
	})
}

// setupWatcher recursively adds all directories to the watcher
func setupWatcher(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
