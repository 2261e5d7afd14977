package nload

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelevant(t *testing.T) {
	t.Parallel()
	assert.True(t, relevant(fsnotify.Event{Name: "a/types.go", Op: fsnotify.Write}))
	assert.True(t, relevant(fsnotify.Event{Name: "a/types.go", Op: fsnotify.Remove}))
	assert.False(t, relevant(fsnotify.Event{Name: "a/types.go", Op: fsnotify.Chmod}))
	assert.False(t, relevant(fsnotify.Event{Name: "a/notes.txt", Op: fsnotify.Write}))
}

func TestPackageDirs(t *testing.T) {
	t.Parallel()
	dirs := packageDirs([]*Package{{Dir: "/b"}, {Dir: "/a"}, {Dir: "/b"}, {}})
	assert.Equal(t, []string{"/a", "/b"}, dirs)
}

func TestWatch(t *testing.T) {
	r, _ := newTestRunner(t, map[string]string{
		"types.go":  sensorTypes,
		"config.go": sensorConfig,
	})
	r.Config.Watch.Debounce = 20 * time.Millisecond
	results := make(chan *Result, 10)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, r, func(result *Result, err error) {
			assert.NoError(t, err)
			select {
			case results <- result:
			default:
			}
		})
	}()

	next := func() *Result {
		select {
		case result := <-results:
			return result
		case <-time.After(10 * time.Second):
			require.FailNow(t, "no run")
			return nil
		}
	}
	first := next()
	require.NotNil(t, first)
	assert.False(t, first.Reused)

	// the watcher may be installed just after the first run reports
	changes := 0
	require.Eventually(t, func() bool {
		changes++
		src := "package app\n\ntype Extra" + strconv.Itoa(changes) + " struct{}\n"
		assert.NoError(t, os.WriteFile(filepath.Join(r.Config.Dir, "extra.go"), []byte(src), 0o644))
		select {
		case second := <-results:
			if assert.NotNil(t, second) {
				assert.False(t, second.Reused)
				assert.Len(t, second.Graphs, 1)
			}
			return true
		case <-time.After(500 * time.Millisecond):
			return false
		}
	}, 10*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		require.FailNow(t, "watch did not stop")
	}
}
