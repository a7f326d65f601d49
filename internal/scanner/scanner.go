// Package scanner walks a project tree and feeds every regular file into a
// fingerprint.Store.
//
// Subtrees whose final path segment is in the exclusion set (by default the
// cargo build output "target" and ".git") are never entered. Scan stops at
// the first file it finds changed: callers only need to know that something
// changed, and stopping early keeps the common "one file edited" poll cheap.
// The files after the first change are picked up by the following scans.
//
// Symlinks are followed. Files in a linked directory are keyed by their path
// through the link, and each resolved directory is entered at most once per
// walk.
package scanner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	apperrors "github.com/conneroisu/wasmreload/internal/errors"
	"github.com/conneroisu/wasmreload/internal/fingerprint"
)

// errStop ends a walk early once a change has been seen.
var errStop = errors.New("scan stopped")

// DefaultExclude lists the directory names skipped when none are configured.
var DefaultExclude = []string{"target", ".git"}

// TreeScanner fingerprints one project tree.
type TreeScanner struct {
	root    string
	exclude map[string]struct{}
	store   *fingerprint.Store
}

// New creates a scanner for root. The root is made absolute and resolved so
// store keys are absolute paths.
func New(root string, exclude []string, store *fingerprint.Store) (*TreeScanner, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, apperrors.ErrInvalidPath(root, err.Error())
	}

	// WalkDir does not follow a symlinked root.
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, apperrors.ErrInvalidPath(root, err.Error())
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, apperrors.ErrInvalidPath(absRoot, err.Error())
	}
	if !info.IsDir() {
		return nil, apperrors.ErrInvalidPath(absRoot, "not a directory")
	}

	excludeSet := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		excludeSet[name] = struct{}{}
	}

	return &TreeScanner{
		root:    absRoot,
		exclude: excludeSet,
		store:   store,
	}, nil
}

// Root returns the absolute path being scanned.
func (s *TreeScanner) Root() string {
	return s.root
}

// Store returns the fingerprint store the scanner feeds.
func (s *TreeScanner) Store() *fingerprint.Store {
	return s.store
}

// Baseline records every file under the root without reporting changes and
// returns how many files were recorded.
func (s *TreeScanner) Baseline(ctx context.Context) (int, error) {
	count := 0
	err := s.walk(ctx, func(rec fingerprint.FileRecord) bool {
		s.store.Record(rec)
		count++
		return false
	})

	return count, err
}

// Scan rescans the tree and reports whether any file is new or has a
// different checksum than on the previous scan. It returns as soon as one
// change is found.
func (s *TreeScanner) Scan(ctx context.Context) (bool, error) {
	changed := false
	err := s.walk(ctx, func(rec fingerprint.FileRecord) bool {
		changed = s.store.Observe(rec)
		return changed
	})

	return changed, err
}

// walk hashes each regular file and hands it to visit. visit returns true to
// stop the walk.
func (s *TreeScanner) walk(ctx context.Context, visit func(fingerprint.FileRecord) bool) error {
	visited := map[string]struct{}{s.root: {}}

	err := s.walkDir(ctx, s.root, s.root, visited, visit)
	if errors.Is(err, errStop) {
		return nil
	}

	return err
}

// walkDir walks the directory dir, reporting its files under the path shown.
// The two differ when dir was reached through a symlink. visited holds the
// resolved directories already entered through a link, which stops loops.
func (s *TreeScanner) walkDir(
	ctx context.Context,
	dir, shown string,
	visited map[string]struct{},
	visit func(fingerprint.FileRecord) bool,
) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return apperrors.ErrScanFailed(path, err)
		}

		display := shown
		if path != dir {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return apperrors.ErrScanFailed(path, err)
			}
			display = filepath.Join(shown, rel)
		}

		if d.IsDir() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if path != dir && s.excluded(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				// Dangling links are not files we can build from.
				if os.IsNotExist(err) {
					return nil
				}
				return apperrors.ErrScanFailed(path, err)
			}

			if info.IsDir() {
				if s.excluded(d.Name()) {
					return nil
				}
				target, err := filepath.EvalSymlinks(path)
				if err != nil {
					return apperrors.ErrScanFailed(path, err)
				}
				if _, seen := visited[target]; seen {
					return nil
				}
				visited[target] = struct{}{}

				return s.walkDir(ctx, target, display, visited, visit)
			}

			if !info.Mode().IsRegular() {
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}

		rec, err := s.store.HashFile(display)
		if err != nil {
			return apperrors.ErrScanFailed(display, err)
		}

		if visit(rec) {
			return errStop
		}

		return nil
	})
}

func (s *TreeScanner) excluded(name string) bool {
	_, ok := s.exclude[name]
	return ok
}
