package walk

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/treedoc/internal/ignore"
)

// defaultSkipDirs are never entered, whatever the ignore policy says.
var defaultSkipDirs = map[string]bool{
	".git": true,
	".svn": true,
	".hg":  true,
}

// File is one regular file found under the walked root.
type File struct {
	Path string // absolute
	Rel  string // slash-separated, relative to the root
	Name string
	Size int64
}

// Counts is the result of the counting pass.
type Counts struct {
	Files   int
	Folders int
}

// Walker visits the non-ignored part of a tree.
type Walker struct {
	root    string
	matcher ignore.Matcher
	skip    map[string]bool
}

// New returns a Walker rooted at root. Paths in skip (typically the output
// root) are never entered.
func New(root string, matcher ignore.Matcher, skip ...string) (*Walker, error) {
	cleanRoot, err := validateRoot(root)
	if err != nil {
		return nil, fmt.Errorf("invalid root: %w", err)
	}
	if matcher == nil {
		matcher = ignore.None{}
	}
	w := &Walker{root: cleanRoot, matcher: matcher, skip: make(map[string]bool, len(skip))}
	for _, s := range skip {
		if abs, err := filepath.Abs(s); err == nil {
			w.skip[abs] = true
		}
	}
	return w, nil
}

// Root returns the absolute root of the walk.
func (w *Walker) Root() string { return w.root }

// Files calls fn for every non-ignored regular file, in lexical pre-order.
// An error from fn stops the walk.
func (w *Walker) Files(ctx context.Context, fn func(File) error) error {
	return w.walk(ctx, func(path, rel string, d fs.DirEntry) error {
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", rel, err)
		}
		return fn(File{Path: path, Rel: rel, Name: d.Name(), Size: info.Size()})
	})
}

// Dirs calls fn for every non-ignored directory, the root included.
func (w *Walker) Dirs(ctx context.Context, fn func(path, rel string) error) error {
	return w.walk(ctx, func(path, rel string, d fs.DirEntry) error {
		if !d.IsDir() {
			return nil
		}
		return fn(path, rel)
	})
}

// Count counts files and folders in two concurrent walks. It has no side
// effects.
func (w *Walker) Count(ctx context.Context) (Counts, error) {
	var files, folders atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Files(gctx, func(File) error {
			files.Add(1)
			return nil
		})
	})
	g.Go(func() error {
		return w.Dirs(gctx, func(string, string) error {
			folders.Add(1)
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return Counts{}, fmt.Errorf("counting pass: %w", err)
	}
	return Counts{Files: int(files.Load()), Folders: int(folders.Load())}, nil
}

func (w *Walker) walk(ctx context.Context, fn func(path, rel string, d fs.DirEntry) error) error {
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() && path != w.root {
			if defaultSkipDirs[d.Name()] || w.skip[path] || w.matcher.Match(rel, true) {
				return filepath.SkipDir
			}
		} else if !d.IsDir() && w.matcher.Match(rel, false) {
			return nil
		}
		return fn(path, rel, d)
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", w.root, err)
	}
	return nil
}

// validateRoot cleans root and checks that it is an existing directory.
func validateRoot(root string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("path does not exist: %s", abs)
		}
		return "", fmt.Errorf("stat path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path must be a directory: %s", abs)
	}
	return abs, nil
}
