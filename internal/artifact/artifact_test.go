package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilePath(t *testing.T) {
	out := filepath.FromSlash("/out")
	tests := map[string]string{
		"main.go":          "/out/main.json",
		"pkg/util.test.ts": "/out/pkg/util.test.json",
		"Makefile":         "/out/Makefile.json",
		".env":             "/out/.env.json",
		"summary.go":       "/out/summary.go.json",
		"a/summary.json":   "/out/a/summary.json.json",
		"data.json":        "/out/data.json",
	}
	for rel, want := range tests {
		assert.Equal(t, filepath.FromSlash(want), FilePath(out, rel), rel)
	}
}

func TestWriteReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "a.json")
	in := &FileSummary{
		FileName:  "a.go",
		FilePath:  "nested/a.go",
		Summary:   "does things",
		Questions: "why?",
		Checksum:  Checksum([]byte("package a")),
	}
	require.NoError(t, WriteFile(path, in))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, in, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.json", entries[0].Name())
}

func TestWriteFile_ConcurrentSameStem(t *testing.T) {
	root := t.TempDir()
	path := FilePath(root, "pkg/a.go")
	require.Equal(t, path, FilePath(root, "pkg/a.ts"))

	long := &FileSummary{FileName: "a.go", FilePath: "pkg/a.go", Summary: strings.Repeat("go ", 20000), Questions: "q"}
	short := &FileSummary{FileName: "a.ts", FilePath: "pkg/a.ts", Summary: "ts", Questions: "q"}

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- WriteFile(path, long)
		}()
		go func() {
			defer wg.Done()
			errs <- WriteFile(path, short)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, []string{"a.go", "a.ts"}, got.FileName)
	if got.FileName == "a.go" {
		assert.Equal(t, long, got)
	} else {
		assert.Equal(t, short, got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no staging files left behind")
}

func TestWriteFile_EmptySummaryIsEmptyPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.json")
	require.NoError(t, WriteFile(path, &FileSummary{FileName: "a.go", Questions: "q"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	_, err = ReadFile(path)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestReadFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := ReadFile(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmpty)
}

func TestWriteReadFolder(t *testing.T) {
	dir := t.TempDir()
	child := FolderSummary{
		FolderName: "sub", FolderPath: "sub", Summary: "child",
		Files: []FileSummary{{FileName: "x.go", Summary: "x"}},
	}
	in := &FolderSummary{
		FolderName: "root",
		FolderPath: ".",
		Folders:    []FolderSummary{child.Shallow()},
		Summary:    "root summary",
	}
	require.NoError(t, WriteFolder(dir, in))

	got, err := ReadFolder(dir)
	require.NoError(t, err)
	assert.Equal(t, "root summary", got.Summary)
	assert.Empty(t, got.Files)
	require.Len(t, got.Folders, 1)
	assert.Equal(t, "sub", got.Folders[0].FolderPath)
	assert.Nil(t, got.Folders[0].Files)

	raw, err := os.ReadFile(filepath.Join(dir, FolderFileName))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"files": []`)
}

func TestReadFolder_Missing(t *testing.T) {
	_, err := ReadFolder(t.TempDir())
	assert.True(t, os.IsNotExist(err))
}

func TestChecksum_Stable(t *testing.T) {
	assert.Equal(t, Checksum([]byte("abc")), Checksum([]byte("abc")))
	assert.NotEqual(t, Checksum([]byte("abc")), Checksum([]byte("abd")))
	assert.Len(t, Checksum(nil), 64)
}
