// Package testutil provides shared test helpers for setting up entry stores
// and Markdown source trees.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/starford/ansuz/internal/store"
)

// TestStore creates a temporary SQLite entry store that is automatically
// cleaned up.
func TestStore(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// WriteDoc writes a source document under root, creating directories as
// needed, and returns its absolute path.
func WriteDoc(t *testing.T, root, rel, content string) string {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return abs
}

// StaticConverter is a convert.Converter test double returning a fixed
// fragment and recording every call.
type StaticConverter struct {
	Fragment string
	Err      error

	mu        sync.Mutex
	Renders   []string
	PageCalls []string
}

// Render returns the configured fragment (or error) and records sourcePath.
func (c *StaticConverter) Render(_ context.Context, sourcePath string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Renders = append(c.Renders, sourcePath)
	if c.Err != nil {
		return "", c.Err
	}
	return c.Fragment, nil
}

// RenderPage writes the configured fragment to destPath and records the call.
// Like the pandoc engine, it expects the destination directory to exist.
func (c *StaticConverter) RenderPage(_ context.Context, sourcePath, destPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PageCalls = append(c.PageCalls, sourcePath)
	if c.Err != nil {
		return c.Err
	}
	return os.WriteFile(destPath, []byte(c.Fragment), 0o644)
}
