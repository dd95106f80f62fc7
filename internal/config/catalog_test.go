package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeToolsetFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadCatalogDir(t *testing.T) {
	dir := t.TempDir()
	writeToolsetFile(t, dir, "search.yaml", `
key: search
name: Search
description: Web search tools
server:
  url: http://localhost:9001/mcp
  headers:
    Authorization: Bearer abc
`)
	writeToolsetFile(t, dir, "docs.yml", `
key: docs
server:
  url: http://localhost:9002/mcp
`)
	writeToolsetFile(t, dir, "readme.txt", "not yaml, ignored")

	files, errs := LoadCatalogDir(dir)
	require.Empty(t, errs)
	require.Len(t, files, 2)

	// Sorted by file name.
	assert.Equal(t, "docs", files[0].Key)
	assert.Equal(t, "search", files[1].Key)
	assert.Equal(t, "http://localhost:9001/mcp", files[1].Server.URL)
	assert.Equal(t, "Bearer abc", files[1].Server.Headers["Authorization"])
}

func TestLoadCatalogDirSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	writeToolsetFile(t, dir, "good.yaml", `
key: good
server:
  url: http://localhost:9001/mcp
`)
	writeToolsetFile(t, dir, "broken.yaml", "key: [oops")
	writeToolsetFile(t, dir, "nokey.yaml", `
server:
  url: http://localhost:9002/mcp
`)
	writeToolsetFile(t, dir, "nourl.yaml", "key: nourl")

	files, errs := LoadCatalogDir(dir)
	require.Len(t, files, 1)
	assert.Equal(t, "good", files[0].Key)

	require.Len(t, errs, 3)
	types := make(map[string]int)
	for _, e := range errs {
		types[e.ErrorType]++
	}
	assert.Equal(t, 1, types["parse"])
	assert.Equal(t, 2, types["validation"])
}

func TestLoadCatalogDirDuplicateKey(t *testing.T) {
	dir := t.TempDir()
	writeToolsetFile(t, dir, "a.yaml", `
key: search
server:
  url: http://localhost:9001/mcp
`)
	writeToolsetFile(t, dir, "b.yaml", `
key: search
server:
  url: http://localhost:9002/mcp
`)

	files, errs := LoadCatalogDir(dir)
	require.Len(t, files, 1)
	assert.Equal(t, "http://localhost:9001/mcp", files[0].Server.URL)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "already defined")
}

func TestLoadCatalogDirMissing(t *testing.T) {
	files, errs := LoadCatalogDir(filepath.Join(t.TempDir(), "nope"))
	assert.Empty(t, files)
	require.Len(t, errs, 1)
	assert.Equal(t, "io", errs[0].ErrorType)
}

func TestCatalogWatcherDebounce(t *testing.T) {
	dir := t.TempDir()
	w := NewCatalogWatcher(dir, 50*time.Millisecond)
	defer w.Stop()

	changed := make(chan struct{}, 10)
	require.NoError(t, w.Start(context.Background(), func() {
		changed <- struct{}{}
	}))

	// A burst of writes should collapse into one callback.
	writeToolsetFile(t, dir, "x.yaml", "key: x\nserver:\n  url: http://a\n")
	writeToolsetFile(t, dir, "x.yaml", "key: x\nserver:\n  url: http://b\n")
	writeToolsetFile(t, dir, "y.yaml", "key: y\nserver:\n  url: http://c\n")

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected change notification")
	}

	select {
	case <-changed:
		t.Fatal("expected burst to be debounced into a single callback")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCatalogWatcherIgnoresNonYAML(t *testing.T) {
	dir := t.TempDir()
	w := NewCatalogWatcher(dir, 50*time.Millisecond)
	defer w.Stop()

	changed := make(chan struct{}, 1)
	require.NoError(t, w.Start(context.Background(), func() {
		changed <- struct{}{}
	}))

	writeToolsetFile(t, dir, "notes.txt", "ignored")

	select {
	case <-changed:
		t.Fatal("expected non-YAML writes to be ignored")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCatalogWatcherStartTwice(t *testing.T) {
	dir := t.TempDir()
	w := NewCatalogWatcher(dir, 50*time.Millisecond)
	defer w.Stop()

	require.NoError(t, w.Start(context.Background(), func() {}))
	assert.NoError(t, w.Start(context.Background(), func() {}))
}

func TestCatalogWatcherStopDuringEvents(t *testing.T) {
	dir := t.TempDir()
	w := NewCatalogWatcher(dir, 10*time.Millisecond)

	require.NoError(t, w.Start(context.Background(), func() {}))

	// Keep events flowing while Stop runs so an in-flight event races the
	// shutdown; the event loop must never touch the cleared watcher field.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_ = os.WriteFile(filepath.Join(dir, "churn.yaml"), []byte("key: churn\nserver:\n  url: http://a\n"), 0644)
		}
	}()

	time.Sleep(5 * time.Millisecond)
	w.Stop()
	<-done

	// Stop again is a no-op.
	w.Stop()
}
