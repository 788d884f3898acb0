package session

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher turns changes of a session file made by other processes into Store events.
type Watcher struct {
	store *Store
	path  string
	fw    *fsnotify.Watcher
}

// Watch starts watching the session file at path. The directory is watched rather than the
// file because writers replace the file by rename.
func (s *Store) Watch(ctx context.Context, path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		_ = fw.Close()
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, err
	}
	s.prime(ctx)
	s.log.Debug("watching session file", zap.String("path", path))
	return &Watcher{store: s, path: path, fw: fw}, nil
}

// Run delivers events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			t, err := w.store.Tokens(ctx)
			if err != nil {
				w.store.log.Warn("session reload failed", zap.String("path", w.path), zap.Error(err))
				continue
			}
			w.store.observe(t)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.store.log.Error("session watcher error", zap.Error(err))
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error { return w.fw.Close() }
