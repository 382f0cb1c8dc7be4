package project

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReportsProjectChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "alpha", "src"), 0o755))

	w, err := NewWatcher(root, 20*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// A burst of writes is reported once
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(root, "alpha", "src", "App.tsx"), []byte("v"), 0o644))
	}

	select {
	case id := <-w.Events():
		assert.Equal(t, "alpha", id)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	select {
	case id := <-w.Events():
		t.Fatalf("unexpected second notification for %s", id)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher(root, 20*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	store, err := NewDiskStore(root, nil)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), sample("beta")))

	select {
	case id := <-w.Events():
		assert.Equal(t, "beta", id)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcherProjectID(t *testing.T) {
	w := &Watcher{root: "/data/projects"}
	assert.Equal(t, "demo", w.projectID("/data/projects/demo/src/App.tsx"))
	assert.Equal(t, "demo", w.projectID("/data/projects/demo"))
	assert.Equal(t, "", w.projectID("/data/projects"))
	assert.Equal(t, "", w.projectID("/data/projects/.staging-123/x"))
	assert.Equal(t, "", w.projectID("/elsewhere/x"))
}
