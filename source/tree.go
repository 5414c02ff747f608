// Package source discovers and reads documentation sources.
package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/semreq/source/parser"
)

// Tree is a documentation source tree selected by doublestar globs.
type Tree struct {
	// Root is the source directory.
	Root string

	// Include and Exclude are slash-separated globs relative to Root.
	Include []string
	Exclude []string

	fsys fs.FS
}

// File is a source document read from a tree.
type File struct {
	// Path is the slash-separated path relative to the tree root.
	Path string `json:"path"`

	// Document is the document identity derived from Path.
	Document string `json:"document"`

	// Hash is the SHA-256 of Content.
	Hash string `json:"hash"`

	Content []byte `json:"-"`
}

// NewTree creates a tree rooted at root.
func NewTree(root string, include, exclude []string) (*Tree, error) {
	for _, p := range append(append([]string(nil), include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve source root: %w", err)
	}
	return &Tree{Root: abs, Include: include, Exclude: exclude, fsys: os.DirFS(abs)}, nil
}

// FS returns the tree as a file system rooted at Root.
func (t *Tree) FS() fs.FS {
	return t.fsys
}

// Match reports whether a root-relative path is part of the tree.
func (t *Tree) Match(rel string) bool {
	rel = filepath.ToSlash(rel)
	included := false
	for _, p := range t.Include {
		if ok, _ := doublestar.Match(p, rel); ok {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, p := range t.Exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	return true
}

// Discover returns the root-relative paths of all documents in the tree,
// sorted.
func (t *Tree) Discover() ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	for _, pattern := range t.Include {
		matches, err := doublestar.Glob(t.fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			if seen[m] || !t.Match(m) {
				continue
			}
			seen[m] = true
			paths = append(paths, m)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Read reads one document of the tree.
func (t *Tree) Read(rel string) (*File, error) {
	rel = filepath.ToSlash(rel)
	content, err := fs.ReadFile(t.fsys, rel)
	if err != nil {
		return nil, err
	}
	return &File{
		Path:     rel,
		Document: parser.DocumentName(rel),
		Hash:     ContentHash(content),
		Content:  content,
	}, nil
}

// Rel converts an absolute path below Root into a root-relative path.
func (t *Tree) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(t.Root, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside %s", abs, t.Root)
	}
	return rel, nil
}

// ContentHash computes a SHA256 hash of the content.
func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}
