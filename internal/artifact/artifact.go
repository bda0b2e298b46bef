// Package artifact defines the JSON documents written for documented files
// and folders and maps source paths to their locations under the output
// root.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FolderFileName is the reserved name of a folder's artifact.
const FolderFileName = "summary.json"

// ErrEmpty is returned when reading an artifact that was written with an
// empty payload.
var ErrEmpty = errors.New("artifact is empty")

// FileSummary documents one source file.
type FileSummary struct {
	FileName  string `json:"fileName"`
	FilePath  string `json:"filePath"`
	URL       string `json:"url"`
	Summary   string `json:"summary"`
	Questions string `json:"questions"`
	Checksum  string `json:"checksum,omitempty"`
}

// FolderSummary documents one directory. Folders holds the direct
// sub-directories without their own nested lists.
type FolderSummary struct {
	FolderName string          `json:"folderName"`
	FolderPath string          `json:"folderPath"`
	URL        string          `json:"url"`
	Files      []FileSummary   `json:"files"`
	Folders    []FolderSummary `json:"folders"`
	Summary    string          `json:"summary"`
	Questions  string          `json:"questions"`
	Checksum   string          `json:"checksum,omitempty"`
}

// Shallow returns s without its Files and Folders lists.
func (s FolderSummary) Shallow() FolderSummary {
	s.Files = nil
	s.Folders = nil
	return s
}

// FilePath returns where the artifact for the source file at rel (slash
// separated, relative to the input root) is stored under outputRoot. The
// extension is replaced with ".json"; a file that would map onto the
// reserved folder artifact keeps its extension instead.
func FilePath(outputRoot, rel string) string {
	dir, name := filepath.Split(filepath.FromSlash(rel))
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if stem == "" {
		stem = name
	}
	out := stem + ".json"
	if out == FolderFileName {
		out = name + ".json"
	}
	return filepath.Join(outputRoot, dir, out)
}

// FolderPath returns the artifact location for the output directory dir.
func FolderPath(dir string) string {
	return filepath.Join(dir, FolderFileName)
}

// Checksum is the hex sha256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// WriteFile persists s at path, creating parent directories. A summary
// with empty Summary text is written as an empty payload.
func WriteFile(path string, s *FileSummary) error {
	var data []byte
	if s != nil && s.Summary != "" {
		var err error
		if data, err = json.MarshalIndent(s, "", "  "); err != nil {
			return fmt.Errorf("marshal file summary: %w", err)
		}
	}
	return write(path, data)
}

// WriteFolder persists s as dir/summary.json, replacing prior content.
func WriteFolder(dir string, s *FolderSummary) error {
	out := *s
	if out.Files == nil {
		out.Files = []FileSummary{}
	}
	if out.Folders == nil {
		out.Folders = []FolderSummary{}
	}
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal folder summary: %w", err)
	}
	return write(FolderPath(dir), data)
}

// ReadFile loads a FileSummary. Empty payloads yield ErrEmpty.
func ReadFile(path string) (*FileSummary, error) {
	var s FileSummary
	if err := read(path, &s); err != nil {
		return nil, err
	}
	if s.Summary == "" {
		return nil, ErrEmpty
	}
	return &s, nil
}

// ReadFolder loads dir/summary.json.
func ReadFolder(dir string) (*FolderSummary, error) {
	var s FolderSummary
	if err := read(FolderPath(dir), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func read(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return ErrEmpty
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// write replaces path atomically. The temporary file does not end in
// ".json", so a concurrent folder listing never mistakes it for an artifact.
func write(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	// Sources sharing a stem (a.go, a.ts) map to the same artifact, so
	// each writer stages into its own temp file.
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", filepath.Base(path), err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
