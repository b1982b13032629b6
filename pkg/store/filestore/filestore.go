// Package filestore is an example FSMStore implementation (spec §6) backed
// by a directory of `<id>.v<version>.yaml` files. Every call re-lists the
// directory, so a definition edited on disk shows up in List()/Latest()
// without a restart; Watch adds an fsnotify watcher that reports changes.
// This is a supplemental adapter that no test or the demo uses — the core
// itself only ever depends on the store.FSMStore interface, never on this
// package.
package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fla/fsmforge/pkg/store"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var filenamePattern = regexp.MustCompile(`^(.+)\.v(\d+)\.(yaml|yml|json)$`)

// Store is a directory-backed store.FSMStore. Each call re-lists the
// directory rather than trusting a cache, so external edits are always
// visible; Watch additionally starts an fsnotify watcher that logs change
// events for callers who want to react to hot reloads instead of polling.
type Store struct {
	dir string
	log *zap.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// New returns a Store rooted at dir. dir must already exist.
func New(dir string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "filestore: stat %q", dir)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("filestore: %q is not a directory", dir)
	}
	return &Store{dir: dir, log: log}, nil
}

// Watch starts an fsnotify watcher on the store's directory; onChange is
// called (with the changed path) whenever a definition file is written,
// created, or removed. Watch returns a stop function.
func (s *Store) Watch(onChange func(path string)) (func() error, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "filestore: new watcher")
	}
	if err := w.Add(s.dir); err != nil {
		_ = w.Close()
		return nil, errors.Wrapf(err, "filestore: watch %q", s.dir)
	}
	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					s.log.Debug("filestore: change detected", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
					if onChange != nil {
						onChange(ev.Name)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn("filestore: watcher error", zap.Error(err))
			}
		}
	}()

	return w.Close, nil
}

func (s *Store) versionsFor(id string) (map[int]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "filestore: read dir %q", s.dir)
	}
	versions := map[int]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := filenamePattern.FindStringSubmatch(e.Name())
		if m == nil || m[1] != id {
			continue
		}
		v, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		versions[v] = filepath.Join(s.dir, e.Name())
	}
	return versions, nil
}

// Latest implements store.FSMStore.
func (s *Store) Latest(id string) (store.Document, error) {
	versions, err := s.versionsFor(id)
	if err != nil {
		return store.Document{}, err
	}
	if len(versions) == 0 {
		return store.Document{}, errors.Errorf("filestore: no versions found for %q", id)
	}
	max := 0
	for v := range versions {
		if v > max {
			max = v
		}
	}
	return s.readVersion(id, max, versions[max])
}

// Load implements store.FSMStore. version == 0 means "latest".
func (s *Store) Load(id string, version int) (store.Document, error) {
	if version == 0 {
		return s.Latest(id)
	}
	versions, err := s.versionsFor(id)
	if err != nil {
		return store.Document{}, err
	}
	path, ok := versions[version]
	if !ok {
		return store.Document{}, errors.Errorf("filestore: %q has no version %d", id, version)
	}
	return s.readVersion(id, version, path)
}

func (s *Store) readVersion(id string, version int, path string) (store.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return store.Document{}, errors.Wrapf(err, "filestore: read %q", path)
	}
	return store.Document{ID: id, Version: version, Raw: raw}, nil
}

// Store implements store.FSMStore: it writes raw as the next version.
func (s *Store) Store(id string, raw []byte) (store.Document, error) {
	versions, err := s.versionsFor(id)
	if err != nil {
		return store.Document{}, err
	}
	next := 1
	for v := range versions {
		if v >= next {
			next = v + 1
		}
	}
	path := filepath.Join(s.dir, fmt.Sprintf("%s.v%d.yaml", id, next))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return store.Document{}, errors.Wrapf(err, "filestore: write %q", path)
	}
	return store.Document{ID: id, Version: next, Raw: raw}, nil
}

// List implements store.FSMStore.
func (s *Store) List() ([]store.Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "filestore: read dir %q", s.dir)
	}
	latest := map[string]int{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := filenamePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		if v > latest[m[1]] {
			latest[m[1]] = v
		}
	}
	ids := make([]string, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]store.Summary, 0, len(ids))
	for _, id := range ids {
		out = append(out, store.Summary{ID: id, Version: latest[id]})
	}
	return out, nil
}

// Refresh implements store.Refresher: it loads via the caller's loader,
// and stores a new version only if the bytes differ from the current
// latest (with no normalization beyond trimming surrounding whitespace,
// since $version lives in the filename here, not in the document body).
func (s *Store) Refresh(id string, load func() ([]byte, error)) (store.Document, bool, error) {
	raw, err := load()
	if err != nil {
		return store.Document{}, false, err
	}
	current, err := s.Latest(id)
	if err == nil && strings.TrimSpace(string(current.Raw)) == strings.TrimSpace(string(raw)) {
		return current, false, nil
	}
	doc, err := s.Store(id, raw)
	if err != nil {
		return store.Document{}, false, err
	}
	return doc, true, nil
}
