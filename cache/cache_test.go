package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestNewValidates(t *testing.T) {
	_, err := New("", 10)
	assert.Error(t, err)
	_, err = New(t.TempDir(), 0)
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	assert := assert.New(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"index.html":            "<h1>home</h1>",
		"style.css":             "body{}",
		"js/app.js":             "alert(1)",
		"docs/guide/index.html": "guide",
		"error/404/index.html":  "not here",
		".secret":               "hidden",
		".git/config":           "hidden",
		"docs/.draft.md":        "hidden",
	})

	c, err := New(root, DefaultMaxEntries)
	require.NoError(t, err)
	assert.Nil(c.Current())
	_, ok := c.Find("/index.html")
	assert.False(ok)

	g, err := c.Load()
	require.NoError(t, err)
	assert.Equal(uint64(1), g.ID)
	assert.Same(g, c.Current())
	assert.Equal(5, g.Len())
	assert.Equal(8, g.Capacity())

	e, ok := c.Find("/style.css")
	require.True(t, ok)
	assert.Equal([]byte("body{}"), e.Data)
	assert.Equal("text/css", e.MIME)

	e, ok = c.Find("/docs/guide/index.html")
	require.True(t, ok)
	assert.Equal("guide", string(e.Data))

	for _, hidden := range []string{"/.secret", "/.git/config", "/docs/.draft.md"} {
		_, ok := c.Find(hidden)
		assert.False(ok, hidden)
	}
	_, ok = c.Find("style.css")
	assert.False(ok, "keys carry a leading slash")
}

func TestLoadEmptyTree(t *testing.T) {
	c, err := New(t.TempDir(), 10)
	require.NoError(t, err)
	g, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, g.Len())
	_, ok := g.Find("/index.html")
	assert.False(t, ok)
}

func TestLoadTooManyEntries(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a": "1", "b": "2", "c": "3"})

	c, err := New(root, 2)
	require.NoError(t, err)
	_, err = c.Load()
	assert.Error(t, err)
	assert.Equal(t, ErrTooManyEntries, errors.Cause(err))
	assert.Nil(t, c.Current())
}

func TestLoadMissingRoot(t *testing.T) {
	c, err := New(filepath.Join(t.TempDir(), "nope"), 10)
	require.NoError(t, err)
	_, err = c.Load()
	assert.Error(t, err)

	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o644))
	c, err = New(f, 10)
	require.NoError(t, err)
	_, err = c.Load()
	assert.Error(t, err)
}

func TestLoadSymlinkedRoot(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	site := filepath.Join(dir, "site")
	writeTree(t, site, map[string]string{
		"index.html": "<h1>home</h1>",
		"css/a.css":  "a{}",
	})
	link := filepath.Join(dir, "current")
	require.NoError(t, os.Symlink(site, link))

	c, err := New(link, 10)
	require.NoError(t, err)
	g, err := c.Load()
	require.NoError(t, err)
	assert.Equal(2, g.Len())
	e, ok := g.Find("/index.html")
	require.True(t, ok)
	assert.Equal("<h1>home</h1>", string(e.Data))
	_, ok = g.Find("/css/a.css")
	assert.True(ok)
	assert.Equal(link, c.Root())
}

func TestLoadDanglingRootLink(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "current")
	require.NoError(t, os.Symlink(filepath.Join(dir, "gone"), link))

	c, err := New(link, 10)
	require.NoError(t, err)
	_, err = c.Load()
	assert.Error(t, err)
	assert.Nil(t, c.Current())
}

func TestWatchSymlinkedRoot(t *testing.T) {
	dir := t.TempDir()
	site := filepath.Join(dir, "site")
	writeTree(t, site, map[string]string{"a.txt": "a"})
	link := filepath.Join(dir, "current")
	require.NoError(t, os.Symlink(site, link))

	c, err := New(link, 10)
	require.NoError(t, err)
	_, err = c.Load()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx, 20*time.Millisecond) }()

	require.Eventually(t, func() bool {
		writeTree(t, site, map[string]string{"b.txt": "b"})
		_, ok := c.Find("/b.txt")
		return ok
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestReloadFailureKeepsGeneration(t *testing.T) {
	assert := assert.New(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "old"})

	c, err := New(root, 1)
	require.NoError(t, err)
	first, err := c.Load()
	require.NoError(t, err)

	writeTree(t, root, map[string]string{"b.txt": "new"})
	_, err = c.Load()
	assert.Error(err)
	assert.Same(first, c.Current())

	e, ok := c.Find("/a.txt")
	assert.True(ok)
	assert.Equal("old", string(e.Data))
}

func TestReloadSwapsGeneration(t *testing.T) {
	assert := assert.New(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "old"})

	c, err := New(root, 10)
	require.NoError(t, err)
	first, err := c.Load()
	require.NoError(t, err)

	writeTree(t, root, map[string]string{"a.txt": "new", "b.txt": "b"})
	second, err := c.Load()
	require.NoError(t, err)
	assert.Equal(uint64(2), second.ID)

	// the old generation is untouched and still usable by whoever holds it
	e, ok := first.Find("/a.txt")
	assert.True(ok)
	assert.Equal("old", string(e.Data))
	_, ok = first.Find("/b.txt")
	assert.False(ok)

	e, ok = c.Find("/a.txt")
	assert.True(ok)
	assert.Equal("new", string(e.Data))
}

// Every lookup during concurrent reloads must see one whole generation:
// each generation's files all carry that generation's marker.
func TestReloadAtomicity(t *testing.T) {
	root := t.TempDir()
	const files = 20
	write := func(marker int) {
		m := map[string]string{}
		for i := 0; i < files; i++ {
			m[fmt.Sprintf("f%d.txt", i)] = fmt.Sprint(marker)
		}
		writeTree(t, root, m)
	}
	write(0)

	c, err := New(root, 100)
	require.NoError(t, err)
	_, err = c.Load()
	require.NoError(t, err)

	var stop atomic.Bool
	var wg sync.WaitGroup
	var torn atomic.Int64
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !stop.Load() {
				g := c.Current()
				first, ok := g.Find("/f0.txt")
				if !ok {
					torn.Add(1)
					continue
				}
				for i := 1; i < files; i++ {
					e, ok := g.Find(fmt.Sprintf("/f%d.txt", i))
					if !ok || string(e.Data) != string(first.Data) {
						torn.Add(1)
					}
				}
			}
		}()
	}

	for marker := 1; marker <= 20; marker++ {
		write(marker)
		_, err := c.Load()
		require.NoError(t, err)
	}
	stop.Store(true)
	wg.Wait()
	assert.Zero(t, torn.Load())
}

func TestConcurrentLoadsShareWork(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a": "a"})
	c, err := New(root, 10)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Load()
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Current().ID, uint64(8))
	assert.Equal(t, 1, c.Current().Len())
}

func TestWatchReloadsOnChange(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "a"})
	c, err := New(root, 10)
	require.NoError(t, err)
	_, err = c.Load()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx, 20*time.Millisecond) }()

	// the watch is registered asynchronously, keep touching until it notices
	require.Eventually(t, func() bool {
		writeTree(t, root, map[string]string{"sub/b.txt": "b"})
		_, ok := c.Find("/sub/b.txt")
		return ok
	}, 5*time.Second, 50*time.Millisecond)
	assert.Greater(t, c.Current().ID, uint64(1))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestOnLoad(t *testing.T) {
	assert := assert.New(t)
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a": "a"})
	c, err := New(root, 1)
	require.NoError(t, err)

	var results []error
	c.OnLoad(func(g *Generation, err error) {
		if err == nil {
			assert.Equal(uint64(1), g.ID)
		}
		results = append(results, err)
	})
	_, err = c.Load()
	require.NoError(t, err)

	writeTree(t, root, map[string]string{"b": "b"})
	_, err = c.Load()
	require.Error(t, err)

	require.Len(t, results, 2)
	assert.NoError(results[0])
	assert.Equal(ErrTooManyEntries, errors.Cause(results[1]))
}
