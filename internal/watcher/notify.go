package watcher

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	apperrors "github.com/conneroisu/wasmreload/internal/errors"
	"github.com/conneroisu/wasmreload/internal/logging"
)

// Notifier forwards filesystem events under a root as wake-ups for a
// Poller. Wake-ups are coalesced: at most one is pending at a time.
type Notifier struct {
	watcher *fsnotify.Watcher
	root    string
	exclude map[string]struct{}
	wake    chan struct{}
	logger  logging.Logger
}

// NewNotifier watches root and every directory below it whose name is not in
// exclude. A symlinked root is resolved first. Symlinked directories below
// the root are not watched; the poller still scans them.
func NewNotifier(root string, exclude []string, logger logging.Logger) (*Notifier, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, apperrors.ErrInvalidPath(root, err.Error())
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, apperrors.NewInternalError(apperrors.ErrCodeInternalError, "failed to create filesystem watcher", err)
	}

	n := &Notifier{
		watcher: w,
		root:    filepath.Clean(resolved),
		exclude: make(map[string]struct{}, len(exclude)),
		wake:    make(chan struct{}, 1),
		logger:  logger.WithComponent("notifier"),
	}
	for _, name := range exclude {
		n.exclude[name] = struct{}{}
	}

	if err := n.addRecursive(n.root); err != nil {
		_ = w.Close()
		return nil, err
	}

	return n, nil
}

// Wake returns the channel a Poller should select on.
func (n *Notifier) Wake() <-chan struct{} {
	return n.wake
}

// Run forwards events until ctx is done, then closes the watcher.
func (n *Notifier) Run(ctx context.Context) error {
	defer func() { _ = n.watcher.Close() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-n.watcher.Events:
			if !ok {
				return nil
			}
			n.handle(ctx, event)
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return nil
			}
			n.logger.Warn(ctx, err, "Filesystem watcher error")
		}
	}
}

func (n *Notifier) handle(ctx context.Context, event fsnotify.Event) {
	if n.underExcluded(event.Name) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := n.addRecursive(event.Name); err != nil {
				n.logger.Warn(ctx, err, "Failed to watch new directory", "path", event.Name)
			}
		}
	}

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *Notifier) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return apperrors.ErrScanFailed(path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != n.root && n.excludedName(d.Name()) {
			return filepath.SkipDir
		}

		return n.watcher.Add(path)
	})
}

func (n *Notifier) excludedName(name string) bool {
	_, ok := n.exclude[name]
	return ok
}

// underExcluded reports whether any segment of path below the root is
// excluded.
func (n *Notifier) underExcluded(path string) bool {
	rel, err := filepath.Rel(n.root, path)
	if err != nil {
		return false
	}
	for {
		dir, file := filepath.Split(rel)
		if n.excludedName(file) {
			return true
		}
		dir = filepath.Clean(dir)
		if dir == "." || dir == string(filepath.Separator) || dir == rel {
			return false
		}
		rel = dir
	}
}
