package cache

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// loadTree reads every regular file under root into memory, skipping dot
// files and dot directories. Any file that cannot be read fails the whole
// load. More than max files fails with ErrTooManyEntries.
func loadTree(root string, max int) ([]*Entry, error) {
	configured := root
	root, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat content root")
	}
	if !info.IsDir() {
		return nil, errors.Errorf("content root %s is not a directory", configured)
	}

	entries := []*Entry{}
	err = filepath.WalkDir(root, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.Wrapf(err, "failed to walk %s", name)
		}
		if name == root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			log.Tracef("skipping dot file %s", name)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			target, err := os.Stat(name)
			if err != nil {
				return errors.Wrapf(err, "failed to stat link %s", name)
			}
			if target.IsDir() {
				log.Debugf("not following directory link %s", name)
				return nil
			}
		} else if !d.Type().IsRegular() {
			log.Debugf("skipping irregular file %s", name)
			return nil
		}

		if len(entries) == max {
			return errors.Wrapf(ErrTooManyEntries, "more than %d files under %s", max, configured)
		}
		e, err := readEntry(root, name)
		if err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// readEntry reads the file at name into an entry keyed by its path relative to root
func readEntry(root, name string) (*Entry, error) {
	rel, err := filepath.Rel(root, name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", name)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}
	e := newEntry("/"+filepath.ToSlash(rel), data)
	log.Tracef("read %s as %s (%d bytes, %s)", name, e.Path, e.Len(), e.MIME)
	return e, nil
}

// resolveRoot follows symlinks in root, the walk would otherwise stop at a
// linked root without descending
func resolveRoot(root string) (string, error) {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve content root %s", root)
	}
	return resolved, nil
}
