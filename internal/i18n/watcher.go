package i18n

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch starts an fsnotify watcher on the locale directory and reloads the
// catalog when a *.yaml file changes, until ctx is cancelled. Reloads are
// debounced so editors that write in multiple events trigger one reload.
func Watch(ctx context.Context, c *Catalog, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(c.dir); err != nil {
		return err
	}

	logger.Info("i18n watcher: started", slog.String("dir", c.dir))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(200 * time.Millisecond)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("i18n watcher: stopped")
			return nil

		case <-reloadCh:
			if err := c.Reload(); err != nil {
				logger.Warn("i18n watcher: reload failed", slog.String("error", err.Error()))
			} else {
				logger.Debug("i18n watcher: catalogs reloaded")
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(ev.Name, ".yaml") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("i18n watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
