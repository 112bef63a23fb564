// Package watch reports changes below a workspace directory so a scan can be
// repeated whenever files are created, written or removed.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op is the kind of a file change
type Op int

const (
	// Created indicates a new file or directory
	Created Op = iota
	// Written indicates a file was written to
	Written
	// Removed indicates a file was removed or renamed away
	Removed
)

// String returns a human-readable representation of the operation
func (op Op) String() string {
	switch op {
	case Created:
		return "created"
	case Written:
		return "written"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is a single change below the watched root
type Event struct {
	Path string
	Op   Op
}

// DefaultDebounce is used when Options.Debounce is zero
const DefaultDebounce = 500 * time.Millisecond

// Options configures a Watcher
type Options struct {
	// Debounce is the quiet period after the last event before a batch is delivered
	Debounce time.Duration
	// ExcludeDirs are directory names that are never watched
	ExcludeDirs []string
	// Ignore drops events for matching absolute paths
	Ignore func(path string) bool
	// OnError receives watcher errors; nil discards them
	OnError func(err error)
}

// Watcher delivers debounced batches of change events for a directory tree
type Watcher struct {
	fsw     *fsnotify.Watcher
	root    string
	opts    Options
	exclude map[string]bool
}

// New watches root and every directory below it
func New(root string, opts Options) (*Watcher, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if opts.Debounce == 0 {
		opts.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:     fsw,
		root:    root,
		opts:    opts,
		exclude: make(map[string]bool, len(opts.ExcludeDirs)),
	}
	for _, name := range opts.ExcludeDirs {
		w.exclude[name] = true
	}

	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}

	return w, nil
}

// Root returns the absolute path of the watched directory
func (w *Watcher) Root() string {
	return w.root
}

// WatchedDirs returns the directories currently registered, sorted
func (w *Watcher) WatchedDirs() []string {
	dirs := w.fsw.WatchList()
	sort.Strings(dirs)
	return dirs
}

// addRecursive registers dir and its subdirectories, skipping excluded names
func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Vanished or unreadable directories are not fatal
			if os.IsNotExist(err) || os.IsPermission(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != w.root && w.exclude[info.Name()] {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			if os.IsPermission(err) {
				return nil
			}
			return err
		}
		return nil
	})
}

// Run blocks until ctx is done, calling onChange with each debounced batch of
// events. Events that arrive while onChange runs are delivered in the next batch.
// Run returns nil on cancellation and the first error returned by onChange otherwise.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, events []Event) error) error {
	var (
		pending []Event
		timer   *time.Timer
		fire    <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			e, keep := w.translate(event)
			if !keep {
				continue
			}
			pending = append(pending, e)
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				timer.Stop()
				timer.Reset(w.opts.Debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if w.opts.OnError != nil {
				w.opts.OnError(err)
			}

		case <-fire:
			fire = nil
			batch := pending
			pending = nil
			if err := onChange(ctx, batch); err != nil {
				return err
			}
		}
	}
}

// translate maps an fsnotify event to an Event and reports whether it should be delivered
func (w *Watcher) translate(event fsnotify.Event) (Event, bool) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if w.exclude[info.Name()] {
				return Event{}, false
			}
			if err := w.addRecursive(path); err != nil && w.opts.OnError != nil {
				w.opts.OnError(err)
			}
		}
	}

	if w.opts.Ignore != nil && w.opts.Ignore(path) {
		return Event{}, false
	}

	switch {
	case event.Has(fsnotify.Create):
		return Event{Path: path, Op: Created}, true
	case event.Has(fsnotify.Write):
		return Event{Path: path, Op: Written}, true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return Event{Path: path, Op: Removed}, true
	default:
		// chmod
		return Event{}, false
	}
}

// Close stops watching
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
