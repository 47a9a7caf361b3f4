package config

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/codefionn/hackerai-desktop/internal/logger"
)

// Watcher reloads the config file whenever it changes on disk.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(*Config)
	done     chan struct{}
}

// Watch starts watching path and calls onChange with every successfully
// reloaded config. The parent directory is watched so editors that replace the
// file via rename are still picked up. Reload failures are logged and the
// previous config stays in effect.
func Watch(path string, onChange func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		path:     filepath.Clean(path),
		watcher:  fw,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				logger.Warn("config: reload of %s failed: %v", w.path, err)
				continue
			}
			logger.Info("config: reloaded %s", w.path)
			if w.onChange != nil {
				w.onChange(cfg)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("config: watcher error: %v", err)
		}
	}
}
