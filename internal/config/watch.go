package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads path into cfg (via ReplaceFrom) whenever the file changes
// on disk, until stop is closed. Editors that replace-then-rename (most
// of them) emit Remove/Create rather than Write, so both are handled.
func Watch(path string, cfg *Config, stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				reloaded, err := Load(path)
				if err != nil {
					slog.Warn("config.reload.failed", "path", path, "error", err)
					continue
				}
				cfg.ReplaceFrom(reloaded)
				slog.Info("config.reload.applied", "path", path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("config.watch.error", "error", err)
			}
		}
	}()

	return nil
}
