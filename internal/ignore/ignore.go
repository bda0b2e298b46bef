// Package ignore decides which paths of a project are left out of
// documentation, using gitignore-style patterns.
package ignore

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultIgnoreFiles are read from the project root when present.
var DefaultIgnoreFiles = []string{".gitignore", ".treedocignore"}

// Parser reads gitignore-style files.
type Parser struct {
	// IgnoreFiles is the list of ignore file names to look for.
	IgnoreFiles []string
}

// NewParser creates a parser for the given ignore file names.
func NewParser(ignoreFiles ...string) *Parser {
	if len(ignoreFiles) == 0 {
		ignoreFiles = DefaultIgnoreFiles
	}
	return &Parser{IgnoreFiles: ignoreFiles}
}

// ParseProject reads every ignore file present in projectRoot and returns
// their patterns in file order. Repeats are kept because a later copy of a
// pattern can override an earlier negation. Missing files are skipped.
func (p *Parser) ParseProject(projectRoot string) ([]string, error) {
	var patterns []string
	for _, name := range p.IgnoreFiles {
		filePatterns, err := parseFile(filepath.Join(projectRoot, name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		patterns = append(patterns, filePatterns...)
	}
	return patterns, nil
}

func parseFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if pattern := parseLine(scanner.Text()); pattern != "" {
			patterns = append(patterns, pattern)
		}
	}
	return patterns, scanner.Err()
}

// parseLine returns the pattern on line, or "" for blanks and comments.
// Negations keep their leading "!" and escapes such as `\#` are left for
// the matcher.
func parseLine(line string) string {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return ""
	}
	return line
}
