package walk

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/treedoc/internal/ignore"
)

// writeTree creates files (and their parent directories) under root.
func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
}

func TestWalker_Files(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"main.go",
		"pkg/a.go",
		"pkg/b.lock",
		"node_modules/dep/index.js",
		".git/HEAD",
		".treedoc/docs/json/main.json",
	)

	rules, err := ignore.Compile([]string{"*.lock", "node_modules"})
	require.NoError(t, err)
	w, err := New(root, rules, filepath.Join(root, ".treedoc", "docs", "json"))
	require.NoError(t, err)

	var rels []string
	err = w.Files(context.Background(), func(f File) error {
		rels = append(rels, f.Rel)
		assert.Equal(t, filepath.Join(root, filepath.FromSlash(f.Rel)), f.Path)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go", "pkg/a.go"}, rels)
}

func TestWalker_Count(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.go", "x/b.go", "x/y/c.go", "x/y/d.go")

	w, err := New(root, nil)
	require.NoError(t, err)
	counts, err := w.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Counts{Files: 4, Folders: 3}, counts)
}

func TestWalker_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.go")
	w, err := New(root, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = w.Files(ctx, func(File) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_InvalidRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = New(file, nil)
	assert.Error(t, err)
}

func TestBuildTree(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a/b/f.json", "a/c/f.json", "d/f.json", "skip/f.json")
	rules, err := ignore.Compile([]string{"skip"})
	require.NoError(t, err)

	tree, err := BuildTree(root, rules)
	require.NoError(t, err)

	var rels []string
	for _, n := range tree.Nodes {
		rels = append(rels, n.Rel)
	}
	assert.Equal(t, []string{".", "a", "a/b", "a/c", "d"}, rels)
	assert.Equal(t, 5, tree.Len())
	assert.Nil(t, tree.Root.Parent)
	assert.Len(t, tree.Root.Children, 2)
}

func TestPostOrder_ChildrenBeforeParent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"a/b/c/f", "a/b/d/f", "a/e/f", "g/f", "h/i/j/k/f",
	)
	tree, err := BuildTree(root, nil)
	require.NoError(t, err)

	var mu sync.Mutex
	done := map[string]bool{}
	var order []string
	err = PostOrder(context.Background(), tree, 4, func(_ context.Context, n *Node) error {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range n.Children {
			assert.True(t, done[c.Rel], "%s visited before child %s", n.Rel, c.Rel)
		}
		done[n.Rel] = true
		order = append(order, n.Rel)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, order, tree.Len())
	assert.Equal(t, ".", order[len(order)-1])
}

func TestPostOrder_SlowChildHoldsParent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "fast/f", "slow/f")
	tree, err := BuildTree(root, nil)
	require.NoError(t, err)

	release := make(chan struct{})
	rootVisited := make(chan struct{})
	var mu sync.Mutex
	var seen []string

	go func() {
		err := PostOrder(context.Background(), tree, 8, func(_ context.Context, n *Node) error {
			if n.Rel == "slow" {
				<-release
			}
			mu.Lock()
			seen = append(seen, n.Rel)
			mu.Unlock()
			if n.Rel == "." {
				close(rootVisited)
			}
			return nil
		})
		assert.NoError(t, err)
	}()

	select {
	case <-rootVisited:
		t.Fatal("root aggregated before its slow child finished")
	default:
	}
	close(release)
	<-rootVisited

	mu.Lock()
	defer mu.Unlock()
	sorted := append([]string(nil), seen...)
	sort.Strings(sorted)
	assert.Equal(t, []string{".", "fast", "slow"}, sorted)
	assert.Equal(t, ".", seen[len(seen)-1])
}

func TestPostOrder_BoundedWorkers(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"a", "b", "c", "d", "e", "f"} {
		writeTree(t, root, d+"/f")
	}
	tree, err := BuildTree(root, nil)
	require.NoError(t, err)

	var mu sync.Mutex
	inFlight, peak := 0, 0
	err = PostOrder(context.Background(), tree, 2, func(context.Context, *Node) error {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, 2)
}

func TestPostOrder_ErrorStops(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a/f")
	tree, err := BuildTree(root, nil)
	require.NoError(t, err)

	var visitedRoot bool
	err = PostOrder(context.Background(), tree, 1, func(_ context.Context, n *Node) error {
		if n.Rel == "a" {
			return assert.AnError
		}
		visitedRoot = true
		return nil
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, visitedRoot)
}
