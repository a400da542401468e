package fixtures

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/trezcool/classcue/core"
	"github.com/trezcool/classcue/core/tasks"
	"github.com/trezcool/classcue/core/timetable"
)

const reloadDelay = 200 * time.Millisecond

// Store serves the read-only fixtures (timetable, tasks, weekly summary) and reloads them when their directory changes.
type Store struct {
	mu     sync.RWMutex
	data   *Data
	dir    string
	fsys   fs.FS
	logger core.Logger
}

// NewStore loads the fixtures found in `dir`, or the embedded ones when `dir` is empty.
func NewStore(ctx context.Context, dir string, logger core.Logger) (*Store, error) {
	fsys, err := Source(dir)
	if err != nil {
		return nil, err
	}
	st := &Store{dir: dir, fsys: fsys, logger: logger}
	if err = st.Reload(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

// NewStaticStore returns a store serving `data` that never reloads.
func NewStaticStore(data *Data) *Store {
	if data == nil {
		data = Empty()
	}
	return &Store{data: data}
}

// Reload parses the fixture files again and swaps them in.
func (st *Store) Reload(ctx context.Context) error {
	if st.fsys == nil {
		return nil
	}
	data, err := Load(ctx, st.fsys, st.logger)
	if err != nil {
		return errors.Wrap(err, "loading fixtures")
	}
	st.mu.Lock()
	st.data = data
	st.mu.Unlock()
	return nil
}

// Data returns the current fixtures. Callers must not modify them.
func (st *Store) Data() *Data {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.data
}

func (st *Store) Timetable() timetable.Week {
	return st.Data().Timetable
}

func (st *Store) Tasks() tasks.Board {
	return st.Data().Tasks
}

// Weekly returns a copy of the weekly attendance summary.
func (st *Store) Weekly() map[string]float64 {
	src := st.Data().Weekly
	weekly := make(map[string]float64, len(src))
	for day, pct := range src {
		weekly[day] = pct
	}
	return weekly
}

// Watch reloads the fixtures whenever a JSON file of the fixture directory changes, until ctx is done.
// Bursts of events are coalesced. Embedded fixtures never change: Watch then only waits for ctx.
// A directory that cannot be watched is logged and the fixtures stay as loaded.
func (st *Store) Watch(ctx context.Context) error {
	if st.dir == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return st.unwatched(ctx, errors.Wrap(err, "creating fixtures watcher"))
	}
	defer func() { _ = watcher.Close() }()

	if err = watcher.Add(st.dir); err != nil {
		return st.unwatched(ctx, errors.Wrapf(err, "watching %s", st.dir))
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".json") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if pending == nil {
				pending = time.After(reloadDelay)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			st.logger.Error(fmt.Sprintf("watching fixtures: %v", err), err)

		case <-pending:
			pending = nil
			if err := st.Reload(ctx); err != nil {
				st.logger.Error(fmt.Sprintf("reloading fixtures: %v", err), err)
				continue
			}
			st.logger.Info("fixtures reloaded", map[string]interface{}{"dir": st.dir})
		}
	}
}

// unwatched logs why the fixtures will not be reloaded and waits for ctx.
func (st *Store) unwatched(ctx context.Context, err error) error {
	if st.logger != nil {
		st.logger.Warn("fixtures.Store.Watch: reloading disabled: "+err.Error(), err)
	}
	<-ctx.Done()
	return nil
}
