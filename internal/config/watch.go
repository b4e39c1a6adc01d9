package config

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay absorbs the burst of events an editor or the Config Store's
// own atomic rename produces for a single logical save.
const debounceDelay = 100 * time.Millisecond

// Watcher watches a configuration file for changes and invokes a callback
// with the freshly loaded Config whenever the file is replaced.
type Watcher struct {
	path    string
	logger  *slog.Logger
	fw      *fsnotify.Watcher
	done    chan struct{}
	closeMu sync.Mutex
	closed  bool
}

// WatchConfig starts watching path's parent directory (so the Config
// Store's temp-file-plus-rename save is observed) and calls onChange with
// every successfully reloaded configuration, whether or not its content
// changed. It runs until Close is called.
func WatchConfig(path string, onChange func(*Config), logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:   path,
		logger: logger,
		fw:     fw,
		done:   make(chan struct{}),
	}

	go w.run(onChange)

	return w, nil
}

func (w *Watcher) run(onChange func(*Config)) {
	target := filepath.Base(w.path)
	var timer *time.Timer
	var mu sync.Mutex

	fire := func() {
		cfg, err := Load(w.path)
		if err != nil {
			w.logger.Error("error loading configuration", "error", err)
			return
		}
		onChange(cfg)
	}

	for {
		select {
		case <-w.done:
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceDelay, fire)
			mu.Unlock()

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("configuration watcher error", "error", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.closeMu.Lock()
	defer w.closeMu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)
	return w.fw.Close()
}
