// Package watcher applies per-module size-limit changes from the daemon's
// config file while it runs. It watches the file's parent directory (many
// editors replace the file on save, which drops a watch on the file itself),
// debounces bursts of events, and pushes changed limits through EditSetting.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/stratoflight/telemlog/internal/cliconfig"
	"github.com/stratoflight/telemlog/pkg/log"
	"github.com/stratoflight/telemlog/pkg/telemlog"
)

const defaultDebounce = 100 * time.Millisecond

// Watcher reloads per-module size limits when the config file changes.
type Watcher struct {
	path     string
	debounce time.Duration
	store    *telemlog.Store
	logger   log.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher for the config file at path.
func New(path string, store *telemlog.Store, logger log.Logger) *Watcher {
	return &Watcher{
		path:     path,
		debounce: defaultDebounce,
		store:    store,
		logger:   logger,
	}
}

// Start begins watching. The watcher runs until Stop or context
// cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.logger.Info("settings watcher started", log.String("path", w.path))
	w.wg.Add(1)
	go w.loop(ctx, fsw)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	defer fsw.Close()

	debounce := time.NewTimer(w.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	base := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(w.debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("settings watcher error", log.Err(err))
		case <-debounce.C:
			w.applyOnce()
		}
	}
}

// applyOnce re-reads the config file and applies changed limits to every
// module that is registered. A module declared in the file but not yet
// registered is skipped; registration picks the persisted values up later.
func (w *Watcher) applyOnce() {
	cfg, err := cliconfig.LoadFile(w.path)
	if err != nil {
		w.logger.Warn("settings reload failed", log.String("path", w.path), log.Err(err))
		return
	}

	for _, mc := range cfg.Modules {
		m, err := w.store.Lookup(mc.Name)
		if err != nil {
			continue
		}
		curFile, curDir := m.Settings()
		if mc.MaxFileSize > 0 && mc.MaxFileSize != curFile {
			if err := m.EditSetting(telemlog.MaxFileSize, mc.MaxFileSize); err != nil {
				w.logger.Warn("rejected max_file_size", log.String("module", mc.Name), log.Err(err))
			}
		}
		if mc.MaxDirSize > 0 && mc.MaxDirSize != curDir {
			if err := m.EditSetting(telemlog.MaxDirSize, mc.MaxDirSize); err != nil {
				w.logger.Warn("rejected max_dir_size", log.String("module", mc.Name), log.Err(err))
			}
		}
	}
}
