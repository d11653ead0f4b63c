// ABOUTME: Reference-counted directory watches dispatching file change callbacks
// ABOUTME: One fsnotify watcher and goroutine per directory, stopped with a bounded wait

package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/Pomelo32141/MaiBot/internal/dedupe"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

var (
	ErrPathNotExist  = errors.New("watch path does not exist")
	ErrNotRegistered = errors.New("callback not registered")
	ErrClosed        = errors.New("watcher closed")
)

// ChangeType is the kind of change reported to a callback.
type ChangeType int

const (
	Created ChangeType = iota + 1
	Modified
	Deleted
)

func (c ChangeType) String() string {
	switch c {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	}
	return fmt.Sprintf("ChangeType(%d)", int(c))
}

// Callback handles one change. A returned error is logged; it does not stop
// the watch.
type Callback func(ctx context.Context, path string, change ChangeType) error

const (
	DefaultStopTimeout  = 2 * time.Second
	DefaultDedupeWindow = 50 * time.Millisecond
)

// Option configures a Watcher.
type Option func(*Watcher)

func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithStopTimeout bounds how long removing a directory watch waits for its
// goroutine.
func WithStopTimeout(d time.Duration) Option {
	return func(w *Watcher) { w.stopTimeout = d }
}

// WithDedupeWindow sets how long a (path, change) pair must stay quiet before
// its callback runs. Repeats inside the window restart it, so the callback
// sees the file after the last write. Zero delivers every event immediately.
func WithDedupeWindow(d time.Duration) Option {
	return func(w *Watcher) { w.dedupeWindow = d }
}

type target struct {
	path  string
	dir   string
	isDir bool
}

func (t target) matches(path string) bool {
	if path == t.path {
		return true
	}
	return t.isDir && filepath.Dir(path) == t.path
}

type registration struct {
	id       uuid.UUID
	name     string
	callback Callback
	targets  []target
}

// dirs returns the distinct directories the registration needs watched.
func (r *registration) dirs() []string {
	var out []string
	for _, t := range r.targets {
		if !slices.Contains(out, t.dir) {
			out = append(out, t.dir)
		}
	}
	return out
}

type dirTask struct {
	dir    string
	refs   int
	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	done   chan struct{}
	settle chan eventKey // keys whose dedupe window has elapsed
}

type eventKey struct {
	path   string
	change ChangeType
}

// Watcher dispatches filesystem changes to registered callbacks.
type Watcher struct {
	logger       *slog.Logger
	stopTimeout  time.Duration
	dedupeWindow time.Duration
	recent       *dedupe.Cache[eventKey]

	mu     sync.Mutex
	regs   map[uuid.UUID]*registration
	order  []uuid.UUID
	tasks  map[string]*dirTask
	closed bool
}

// New creates a Watcher with no registrations.
func New(opts ...Option) *Watcher {
	w := &Watcher{
		logger:       slog.Default(),
		stopTimeout:  DefaultStopTimeout,
		dedupeWindow: DefaultDedupeWindow,
		regs:         make(map[uuid.UUID]*registration),
		tasks:        make(map[string]*dirTask),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "watcher")
	if w.dedupeWindow > 0 {
		w.recent = dedupe.New[eventKey](w.dedupeWindow, 4096, dedupe.WithCleanupInterval(time.Minute))
	}
	return w
}

// Register starts delivering changes under paths to callback. Every path must
// exist. name identifies the callback in logs.
func (w *Watcher) Register(name string, callback Callback, paths ...string) (uuid.UUID, error) {
	if len(paths) == 0 {
		return uuid.Nil, fmt.Errorf("registering %s: no paths given", name)
	}
	reg := &registration{id: uuid.New(), name: name, callback: callback}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return uuid.Nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if errors.Is(err, os.ErrNotExist) {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrPathNotExist, abs)
		}
		if err != nil {
			return uuid.Nil, fmt.Errorf("checking %s: %w", abs, err)
		}
		t := target{path: abs, dir: filepath.Dir(abs), isDir: info.IsDir()}
		if t.isDir {
			t.dir = abs
		}
		reg.targets = append(reg.targets, t)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return uuid.Nil, ErrClosed
	}

	var acquired []string
	for _, dir := range reg.dirs() {
		if err := w.acquireLocked(dir); err != nil {
			for _, d := range acquired {
				if t := w.releaseLocked(d); t != nil {
					go w.stop(t)
				}
			}
			return uuid.Nil, err
		}
		acquired = append(acquired, dir)
	}

	w.regs[reg.id] = reg
	w.order = append(w.order, reg.id)
	w.logger.Debug("callback registered", "name", name, "id", reg.id, "paths", paths)
	return reg.id, nil
}

// Unregister removes a registration. Directory watches no longer needed are
// stopped before it returns.
func (w *Watcher) Unregister(id uuid.UUID) error {
	w.mu.Lock()
	reg, ok := w.regs[id]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	stopping := w.removeLocked(reg)
	w.mu.Unlock()

	for _, t := range stopping {
		w.stop(t)
	}
	w.logger.Debug("callback unregistered", "name", reg.name, "id", id)
	return nil
}

// Dirs returns the directories currently watched.
func (w *Watcher) Dirs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	dirs := make([]string, 0, len(w.tasks))
	for d := range w.tasks {
		dirs = append(dirs, d)
	}
	slices.Sort(dirs)
	return dirs
}

// Close removes every registration and stops all directory watches.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	var stopping []*dirTask
	for _, id := range slices.Clone(w.order) {
		stopping = append(stopping, w.removeLocked(w.regs[id])...)
	}
	w.mu.Unlock()

	for _, t := range stopping {
		w.stop(t)
	}
	if w.recent != nil {
		w.recent.Close()
	}
	return nil
}

// removeLocked drops reg and returns the tasks that lost their last reference.
func (w *Watcher) removeLocked(reg *registration) []*dirTask {
	delete(w.regs, reg.id)
	w.order = slices.DeleteFunc(w.order, func(id uuid.UUID) bool { return id == reg.id })

	var stopping []*dirTask
	for _, dir := range reg.dirs() {
		if t := w.releaseLocked(dir); t != nil {
			stopping = append(stopping, t)
		}
	}
	return stopping
}

func (w *Watcher) acquireLocked(dir string) error {
	if t, ok := w.tasks[dir]; ok {
		t.refs++
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &dirTask{
		dir:    dir,
		refs:   1,
		fsw:    fsw,
		cancel: cancel,
		done:   make(chan struct{}),
		settle: make(chan eventKey, 64),
	}
	w.tasks[dir] = t
	go w.run(ctx, t)
	w.logger.Debug("directory watch started", "dir", dir)
	return nil
}

// releaseLocked drops one reference to dir and returns its task when the
// count reaches zero.
func (w *Watcher) releaseLocked(dir string) *dirTask {
	t, ok := w.tasks[dir]
	if !ok {
		return nil
	}
	t.refs--
	if t.refs > 0 {
		return nil
	}
	delete(w.tasks, dir)
	return t
}

func (w *Watcher) stop(t *dirTask) {
	t.cancel()
	if err := t.fsw.Close(); err != nil {
		w.logger.Warn("closing fsnotify watcher", "dir", t.dir, "error", err)
	}
	select {
	case <-t.done:
		w.logger.Debug("directory watch stopped", "dir", t.dir)
	case <-time.After(w.stopTimeout):
		w.logger.Warn("directory watch did not stop in time", "dir", t.dir, "timeout", w.stopTimeout)
	}
}

func (w *Watcher) run(ctx context.Context, t *dirTask) {
	defer close(t.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-t.fsw.Events:
			if !ok {
				return
			}
			w.dispatch(ctx, t, ev)
		case key := <-t.settle:
			if w.recent.Check(key) {
				// a later identical event restarted the window
				continue
			}
			w.deliver(ctx, key.path, key.change)
		case err, ok := <-t.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fsnotify error", "dir", t.dir, "error", err)
		}
	}
}

func classify(op fsnotify.Op) (ChangeType, bool) {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return Deleted, true
	case op.Has(fsnotify.Create):
		return Created, true
	case op.Has(fsnotify.Write):
		return Modified, true
	}
	return 0, false
}

// dispatch delivers ev right away without a dedupe window. Otherwise it
// marks the event and hands it back to t's goroutine once the window passes.
func (w *Watcher) dispatch(ctx context.Context, t *dirTask, ev fsnotify.Event) {
	change, ok := classify(ev.Op)
	if !ok {
		return
	}
	key := eventKey{path: filepath.Clean(ev.Name), change: change}
	if w.recent == nil {
		w.deliver(ctx, key.path, key.change)
		return
	}

	w.recent.Mark(key)
	time.AfterFunc(w.dedupeWindow, func() {
		select {
		case t.settle <- key:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) deliver(ctx context.Context, path string, change ChangeType) {
	w.mu.Lock()
	var targets []*registration
	for _, id := range w.order {
		reg := w.regs[id]
		if slices.ContainsFunc(reg.targets, func(t target) bool { return t.matches(path) }) {
			targets = append(targets, reg)
		}
	}
	w.mu.Unlock()

	for _, reg := range targets {
		if ctx.Err() != nil {
			return
		}
		w.invoke(ctx, reg, path, change)
	}
}

func (w *Watcher) invoke(ctx context.Context, reg *registration, path string, change ChangeType) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("watch callback panicked", "name", reg.name, "path", path, "panic", r)
		}
	}()
	if err := reg.callback(ctx, path, change); err != nil {
		w.logger.Error("watch callback failed", "name", reg.name, "path", path, "change", change.String(), "error", err)
	}
}
