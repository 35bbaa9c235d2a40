// Package site handles the filesystem edges of a generation run: walking the
// source tree for Markdown documents and assets, and writing output files
// atomically under the public directory.
package site

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/ansuz/internal/parser"
)

// Tree is a read-only view of the Markdown source tree.
type Tree struct {
	root string // absolute path to the source directory
}

// NewTree opens a source tree rooted at the given directory, which must
// already exist.
func NewTree(root string) (*Tree, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("site: resolve source root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("site: stat source root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("site: source root is not a directory: %s", abs)
	}
	return &Tree{root: abs}, nil
}

// Root returns the absolute source root.
func (t *Tree) Root() string { return t.root }

// Abs resolves a relative document path against the source root.
func (t *Tree) Abs(rel string) string {
	return filepath.Join(t.root, filepath.FromSlash(rel))
}

// Documents walks the tree and parses every Markdown file. Paths are
// slash-separated and relative to the root; hidden files and directories are
// skipped. The walk order is deterministic (lexical, per filepath.WalkDir).
func (t *Tree) Documents() ([]*parser.Document, error) {
	var docs []*parser.Document
	err := filepath.WalkDir(t.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if hidden(d.Name()) && p != t.root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(t.root, p)
		if err != nil {
			return err
		}
		docs = append(docs, parser.Parse(filepath.ToSlash(rel), data))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("site: walk documents: %w", err)
	}
	return docs, nil
}

// Assets returns the relative paths of every non-Markdown, non-hidden file
// in the tree. These are copied verbatim into the output directory.
func (t *Tree) Assets() ([]string, error) {
	var out []string
	err := filepath.WalkDir(t.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if hidden(d.Name()) && p != t.root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		rel, err := filepath.Rel(t.root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("site: walk assets: %w", err)
	}
	return out, nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Output writes generated artifacts under the public directory.
type Output struct {
	root string
}

// NewOutput creates (if needed) and opens the output directory.
func NewOutput(root string) (*Output, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("site: resolve output root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("site: create output root: %w", err)
	}
	return &Output{root: abs}, nil
}

// Root returns the absolute output root.
func (o *Output) Root() string { return o.root }

// Abs resolves a relative output path against the output root.
func (o *Output) Abs(rel string) string {
	return filepath.Join(o.root, filepath.FromSlash(rel))
}

// PagePath maps a source document path to its rendered page path: the same
// relative location with the .md extension swapped for .html.
func (o *Output) PagePath(docPath string) string {
	rel := strings.TrimSuffix(docPath, ".md") + ".html"
	return o.Abs(rel)
}

// WriteFile atomically writes data to rel: tmp file, fsync, rename.
func (o *Output) WriteFile(rel string, data []byte) error {
	abs := o.Abs(rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("site: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(abs), ".ansuz-tmp-*")
	if err != nil {
		return fmt.Errorf("site: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("site: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("site: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("site: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("site: rename: %w", err)
	}
	success = true
	return nil
}

// CopyAsset copies one asset file from the tree into the same relative
// location under the output root.
func (o *Output) CopyAsset(tree *Tree, rel string) error {
	src, err := os.Open(tree.Abs(rel))
	if err != nil {
		return fmt.Errorf("site: open asset: %w", err)
	}
	defer src.Close()

	abs := o.Abs(rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("site: mkdir for asset: %w", err)
	}
	dst, err := os.Create(abs)
	if err != nil {
		return fmt.Errorf("site: create asset: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("site: copy asset %s: %w", rel, err)
	}
	return nil
}
