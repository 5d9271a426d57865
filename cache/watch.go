package cache

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultSettle is how long the tree must stay quiet before a watch triggered reload
const DefaultSettle = 500 * time.Millisecond

// Watch reloads the cache whenever files under its root change, until ctx
// is done. Bursts of events are collapsed into one reload once the tree has
// been quiet for settle. A failed reload is logged and the live generation
// is kept.
func (c *Cache) Watch(ctx context.Context, settle time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}
	defer w.Close()

	if err := watchTree(w, c.root); err != nil {
		return err
	}
	log.Infof("watching %s for changes", c.root)

	timer := time.NewTimer(settle)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if strings.HasPrefix(filepath.Base(ev.Name), ".") {
				continue
			}
			log.Debugf("content change: %s", ev)
			if ev.Has(fsnotify.Create) {
				// new directories need their own watch
				if err := watchTree(w, ev.Name); err != nil {
					log.Debugf("not watching %s: %s", ev.Name, err)
				}
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(settle)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Errorf("watcher error: %s", err)
		case <-timer.C:
			if _, err := c.Load(); err != nil {
				log.Errorf("reload after content change failed, keeping current generation: %s", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// watchTree adds root and every directory below it to w, skipping dot directories
func watchTree(w *fsnotify.Watcher, root string) error {
	root, err := resolveRoot(root)
	if err != nil {
		return err
	}
	return filepath.WalkDir(root, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.Wrapf(err, "failed to walk %s", name)
		}
		if !d.IsDir() {
			return nil
		}
		if name != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(name); err != nil {
			return errors.Wrapf(err, "failed to watch %s", name)
		}
		return nil
	})
}
