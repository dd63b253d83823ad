package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/treescope/pkg/debug"
)

// DefaultPollInterval is the default polling interval for fallback mode.
const DefaultPollInterval = 2 * time.Second

// ForcePollEnvVar forces polling when set to a true value.
const ForcePollEnvVar = "TREESCOPE_FORCE_POLL"

// Common errors.
var (
	ErrRemoved        = errors.New("watched path was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already running")
)

// Change describes one debounced change.
type Change struct {
	Path string // the watched root
	At   time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceDuration sets the debounce duration.
func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		w.pollInterval = d
	}
}

// WithOnChange sets a callback run for every debounced change, in addition
// to the Changes channel.
func WithOnChange(fn func(Change)) Option {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithOnError sets the callback invoked on errors.
func WithOnError(fn func(error)) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) Option {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

// WithFilter restricts which files count as changes when a directory is
// watched. Directory events always count.
func WithFilter(fn func(path string) bool) Option {
	return func(w *Watcher) {
		w.filter = fn
	}
}

// Watcher monitors a payload file or a directory tree. It prefers fsnotify
// and falls back to polling stat fingerprints.
type Watcher struct {
	path         string
	dir          bool
	debounce     time.Duration
	pollInterval time.Duration
	onChange     func(Change)
	onError      func(error)
	forcePoll    bool
	filter       func(string) bool

	debouncer *Debouncer
	running   atomic.Bool
	polling   atomic.Bool
	changes   chan Change

	mu   sync.Mutex
	last fingerprint
}

// New creates a watcher for path, which may be a file or a directory. A
// file that does not exist yet is watched for creation.
func New(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:         abs,
		debounce:     DefaultDebounceDuration,
		pollInterval: DefaultPollInterval,
		onChange:     func(Change) {},
		onError:      func(error) {},
		changes:      make(chan Change, 1),
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		w.dir = true
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debouncer = NewDebouncer(w.debounce)
	return w, nil
}

// Run watches until ctx is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer w.running.Store(false)
	defer w.debouncer.Cancel()

	fp, err := w.fingerprint()
	if errors.Is(err, fs.ErrPermission) {
		return ErrPermission
	}
	w.mu.Lock()
	w.last = fp
	w.mu.Unlock()

	if !w.forcePoll && !envBool(ForcePollEnvVar) {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			if err = w.addAll(fsw); err == nil {
				defer fsw.Close()
				w.polling.Store(false)
				return w.watchFsnotify(ctx, fsw)
			}
			fsw.Close()
		}
		debug.Log("watcher: fsnotify unavailable for %s, polling: %v", w.path, err)
	}
	debug.LogIf(w.forcePoll, "watcher: polling %s every %v", w.path, w.pollInterval)
	w.polling.Store(true)
	return w.watchPolling(ctx)
}

// Changes delivers debounced changes. A change not yet received is merged
// with the next one.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// IsRunning reports whether Run is active.
func (w *Watcher) IsRunning() bool { return w.running.Load() }

// IsPolling reports whether the running watcher fell back to polling.
func (w *Watcher) IsPolling() bool { return w.polling.Load() }

// Path returns the absolute watched path.
func (w *Watcher) Path() string { return w.path }

// IsDir reports whether a directory tree is watched.
func (w *Watcher) IsDir() bool { return w.dir }

// PollInterval returns the polling interval used in polling mode.
func (w *Watcher) PollInterval() time.Duration { return w.pollInterval }

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

// addAll registers the directories fsnotify must watch. A file is watched
// through its parent so atomic rename-over writes are seen.
func (w *Watcher) addAll(fsw *fsnotify.Watcher) error {
	if !w.dir {
		return fsw.Add(filepath.Dir(w.path))
	}
	return filepath.WalkDir(w.path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(p)
		}
		return nil
	})
}

// relevant reports whether an event on name concerns the watched source.
func (w *Watcher) relevant(name string) bool {
	if !w.dir {
		return filepath.Clean(name) == w.path
	}
	if info, err := os.Stat(name); err == nil && info.IsDir() {
		return true
	}
	return w.filter == nil || w.filter(name)
}

func (w *Watcher) watchFsnotify(ctx context.Context, fsw *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event.Name) {
				continue
			}
			if w.dir && event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := fsw.Add(event.Name); err != nil {
						w.onError(err)
					}
				}
			}
			if event.Op&fsnotify.Remove != 0 && filepath.Clean(event.Name) == w.path {
				w.onError(ErrRemoved)
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				w.debouncer.Trigger(w.notify)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) watchPolling(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			fp, err := w.fingerprint()
			if err != nil {
				switch {
				case errors.Is(err, fs.ErrNotExist):
					w.mu.Lock()
					existed := w.last.exists
					w.last = fingerprint{}
					w.mu.Unlock()
					if existed {
						w.onError(ErrRemoved)
					}
				case errors.Is(err, fs.ErrPermission):
					w.onError(ErrPermission)
				default:
					w.onError(err)
				}
				continue
			}

			w.mu.Lock()
			changed := fp != w.last
			w.last = fp
			w.mu.Unlock()
			if changed {
				w.debouncer.Trigger(w.notify)
			}
		}
	}
}

// fingerprint summarizes the watched source: for a file its size and mtime,
// for a directory the entry count plus total size and newest mtime of the
// files that pass the filter.
type fingerprint struct {
	exists bool
	count  int
	size   int64
	mtime  time.Time
}

func (w *Watcher) fingerprint() (fingerprint, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return fingerprint{}, err
	}
	if !w.dir {
		return fingerprint{exists: true, count: 1, size: info.Size(), mtime: info.ModTime()}, nil
	}
	fp := fingerprint{exists: true}
	err = filepath.WalkDir(w.path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && w.filter != nil && !w.filter(p) {
			return nil
		}
		fp.count++
		if d.IsDir() {
			// Directory mtimes move with every filtered-out file.
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		fp.size += info.Size()
		if info.ModTime().After(fp.mtime) {
			fp.mtime = info.ModTime()
		}
		return nil
	})
	return fp, err
}

func (w *Watcher) notify() {
	if !w.running.Load() {
		return
	}
	c := Change{Path: w.path, At: time.Now()}
	debug.Log("watcher: change in %s", w.path)
	w.onChange(c)

	select {
	case w.changes <- c:
	default:
	}
}
