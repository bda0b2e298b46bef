package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() Settings {
	return Settings{
		ProjectName:    "demo",
		ContentType:    "code",
		TargetAudience: "smart developer",
		FilePrompt:     "Explain it.",
		FolderPrompt:   "Explain the folder.",
	}
}

func TestFileSummary(t *testing.T) {
	b := New(testSettings())
	out, err := b.FileSummary("pkg/a.go", "package a")
	require.NoError(t, err)

	assert.Contains(t, out, "a project called demo")
	assert.Contains(t, out, "`pkg/a.go`")
	assert.Contains(t, out, "Explain it.")
	assert.Contains(t, out, "package a")
}

func TestFileQuestions(t *testing.T) {
	b := New(testSettings())
	out, err := b.FileQuestions("pkg/a.go", "package a")
	require.NoError(t, err)

	assert.Contains(t, out, "3 questions that a smart developer")
	assert.Contains(t, out, "package a")
	assert.NotContains(t, out, "Explain it.")
}

func TestFolderSummary(t *testing.T) {
	b := New(testSettings())
	out, err := b.FolderSummary("pkg",
		[]Entry{{Name: "a.go", Summary: "does a"}, {Name: "b.go", Summary: "does b"}},
		[]Entry{{Name: "inner", Summary: "inner stuff"}},
	)
	require.NoError(t, err)

	assert.Contains(t, out, "folder located at `pkg`")
	assert.Contains(t, out, "Name: a.go\nSummary: does a")
	assert.Contains(t, out, "Name: inner\nSummary: inner stuff")
	assert.Less(t, strings.Index(out, "a.go"), strings.Index(out, "b.go"))
	assert.Contains(t, out, "Explain the folder.")
}

func TestFolderSummary_Empty(t *testing.T) {
	out, err := New(testSettings()).FolderSummary("pkg", nil, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "(no documented files)")
	assert.Contains(t, out, "(no documented subfolders)")
}

func TestDeterministic(t *testing.T) {
	b := New(testSettings())
	files := []Entry{{Name: "a.go", Summary: "a"}}
	first, err := b.FolderSummary("x", files, nil)
	require.NoError(t, err)
	second, err := b.FolderSummary("x", files, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

