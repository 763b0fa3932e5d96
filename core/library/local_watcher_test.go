package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LyraFM/model"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))
}

func TestScanRegistersAudioFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.mp3"))
	writeFile(t, filepath.Join(dir, "b.ogg"))
	writeFile(t, filepath.Join(dir, "sub", "c.oga"))
	writeFile(t, filepath.Join(dir, "cover.jpg"))
	writeFile(t, filepath.Join(dir, "notes.txt"))

	items, err := NewWatcher(dir).Scan()
	require.NoError(t, err)
	require.Len(t, items, 3)

	// 每个 id 都能解析回原路径
	for _, id := range items {
		assert.Equal(t, model.ItemIdTypeLocal, id.Type)
		path, err := model.ResolveLocal(id)
		require.NoError(t, err)
		assert.True(t, isAudioFile(path))
	}
}

func TestScanEmptyDir(t *testing.T) {
	items, err := NewWatcher(t.TempDir()).Scan()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestScanMissingDir(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing")).Scan()
	assert.Error(t, err)
}

func TestScanIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.mp3"))

	w := NewWatcher(dir)
	first, err := w.Scan()
	require.NoError(t, err)
	second, err := w.Scan()
	require.NoError(t, err)
	assert.Equal(t, first, second, "重复扫描同一目录应得到相同的 id")
}

func TestIsAudioFile(t *testing.T) {
	assert.True(t, isAudioFile("/music/song.mp3"))
	assert.True(t, isAudioFile("/music/song.OGG"))
	assert.True(t, isAudioFile("/music/song.oga"))
	assert.False(t, isAudioFile("/music/cover.png"))
	assert.False(t, isAudioFile("/music/song"))
}

func TestWatchTreeCoversSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "albums", "2024")
	writeFile(t, filepath.Join(sub, "a.mp3"))

	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()

	require.NoError(t, watchTree(watcher, dir))

	// 根目录和每一层子目录都必须在监听列表里
	list := watcher.WatchList()
	assert.Contains(t, list, dir)
	assert.Contains(t, list, filepath.Join(dir, "albums"))
	assert.Contains(t, list, sub)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	dir := t.TempDir()

	done := make(chan error, 1)
	go func() {
		done <- NewWatcher(dir).Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("取消后 Run 未退出")
	}
}
