package walk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/treedoc/internal/ignore"
)

// Node is one directory of a Tree.
type Node struct {
	Path     string // absolute
	Rel      string // slash-separated, "." for the root
	Name     string
	Parent   *Node
	Children []*Node
}

// Tree is a directory DAG. Nodes lists every node in pre-order, so the
// root comes first and every parent precedes its children.
type Tree struct {
	Root  *Node
	Nodes []*Node
}

// BuildTree reads the directory structure below root. Directories matched
// by matcher are left out together with their subtrees.
func BuildTree(root string, matcher ignore.Matcher) (*Tree, error) {
	cleanRoot, err := validateRoot(root)
	if err != nil {
		return nil, fmt.Errorf("invalid root: %w", err)
	}
	if matcher == nil {
		matcher = ignore.None{}
	}

	t := &Tree{Root: &Node{Path: cleanRoot, Rel: ".", Name: filepath.Base(cleanRoot)}}
	t.Nodes = append(t.Nodes, t.Root)
	if err := t.grow(t.Root, matcher); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) grow(n *Node, matcher ignore.Matcher) error {
	entries, err := os.ReadDir(n.Path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", n.Path, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if !e.IsDir() || defaultSkipDirs[e.Name()] {
			continue
		}
		rel := e.Name()
		if n.Rel != "." {
			rel = n.Rel + "/" + e.Name()
		}
		if matcher.Match(rel, true) {
			continue
		}
		child := &Node{Path: filepath.Join(n.Path, e.Name()), Rel: rel, Name: e.Name(), Parent: n}
		n.Children = append(n.Children, child)
		t.Nodes = append(t.Nodes, child)
		if err := t.grow(child, matcher); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of directories in the tree.
func (t *Tree) Len() int { return len(t.Nodes) }

// PostOrder calls visit for every node of t, at most workers at a time. A
// node is dispatched only after visit has returned for all of its children;
// siblings run concurrently. The first error returned by visit cancels the
// context passed to the remaining visits and is returned.
func PostOrder(ctx context.Context, t *Tree, workers int, visit func(context.Context, *Node) error) error {
	if t == nil || len(t.Nodes) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = 1
	}

	var mu sync.Mutex
	pending := make(map[*Node]int, len(t.Nodes))
	// Buffered for every node so workers never block on hand-off.
	ready := make(chan *Node, len(t.Nodes))
	for _, n := range t.Nodes {
		pending[n] = len(n.Children)
		if len(n.Children) == 0 {
			ready <- n
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for dispatched := 0; dispatched < len(t.Nodes); dispatched++ {
		var n *Node
		select {
		case n = <-ready:
		case <-gctx.Done():
			if err := g.Wait(); err != nil {
				return err
			}
			return ctx.Err()
		}

		g.Go(func() error {
			if err := visit(gctx, n); err != nil {
				return fmt.Errorf("visit %s: %w", n.Rel, err)
			}
			if p := n.Parent; p != nil {
				mu.Lock()
				pending[p]--
				done := pending[p] == 0
				mu.Unlock()
				if done {
					ready <- p
				}
			}
			return nil
		})
	}
	return g.Wait()
}
