package config

import (
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches a config.yaml file for changes and invokes onChange with
// the freshly reloaded Config, matching the way the teacher wires viper's
// own fsnotify-backed WatchConfig hook (cmd/bd/config.go) rather than
// hand-rolling file polling.
type Watcher struct {
	watcher *fsnotify.Watcher
	log     *zap.Logger
	done    chan struct{}
}

// Watch starts watching path (a config.yaml file) for writes, calling
// onChange with the reloaded Config on every write event. Parse errors are
// logged and skipped rather than propagated, since a transient partial
// write (editor save) shouldn't tear down the watch loop.
func Watch(path string, log *zap.Logger, onChange func(Config)) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{watcher: fw, log: log, done: make(chan struct{})}
	go w.run(path, onChange)
	return w, nil
}

func (w *Watcher) run(path string, onChange func(Config)) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := LoadYAML(path)
			if err != nil {
				w.log.Warn("config reload failed", zap.String("path", path), zap.Error(err))
				continue
			}
			onChange(ApplyEnvOverrides(cfg))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watch error", zap.Error(err))
		case <-w.done:
			return
		}
	}
}

// Close stops the watch loop and releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
