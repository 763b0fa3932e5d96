package cache

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LyraFM/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestNewStoreCreatesDirectoryStructure(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nonexistent")
	_, err := NewStore(root)
	require.NoError(t, err)

	for _, k := range kinds {
		assert.DirExists(t, filepath.Join(root, string(k)))
	}
}

func TestPutGetRoundtrip(t *testing.T) {
	store := newTestStore(t)
	id := model.NewItemId(123456, model.ItemIdTypeTrack)
	data := []byte("some serialized metadata")

	require.NoError(t, store.Put(id, KindMetadata, data))

	got, ok := store.Get(id, KindMetadata)
	require.True(t, ok)
	assert.Equal(t, data, got)
}

func TestGetMissOnUnknownKey(t *testing.T) {
	store := newTestStore(t)
	_, ok := store.Get(model.NewItemId(999999, model.ItemIdTypeTrack), KindMetadata)
	assert.False(t, ok)
}

func TestPutOverwritesExisting(t *testing.T) {
	store := newTestStore(t)
	id := model.NewItemId(123456, model.ItemIdTypeTrack)

	require.NoError(t, store.Put(id, KindMetadata, []byte("first")))
	require.NoError(t, store.Put(id, KindMetadata, []byte("second")))

	got, ok := store.Get(id, KindMetadata)
	require.True(t, ok)
	assert.Equal(t, []byte("second"), got)
}

func TestPutIdempotent(t *testing.T) {
	store := newTestStore(t)
	id := model.NewItemId(7, model.ItemIdTypeTrack)
	data := []byte("same bytes twice")

	require.NoError(t, store.Put(id, KindAudioFile, data))
	require.NoError(t, store.Put(id, KindAudioFile, data))

	got, ok := store.Get(id, KindAudioFile)
	require.True(t, ok)
	assert.Equal(t, data, got)
}

func TestDifferentIdsDontCollide(t *testing.T) {
	store := newTestStore(t)
	id1 := model.NewItemId(123, model.ItemIdTypeTrack)
	id2 := model.NewItemId(456, model.ItemIdTypeTrack)

	require.NoError(t, store.Put(id1, KindMetadata, []byte("track 1")))
	require.NoError(t, store.Put(id2, KindMetadata, []byte("track 2")))

	got1, ok := store.Get(id1, KindMetadata)
	require.True(t, ok)
	got2, ok := store.Get(id2, KindMetadata)
	require.True(t, ok)
	assert.Equal(t, []byte("track 1"), got1)
	assert.Equal(t, []byte("track 2"), got2)
}

func TestKindsAreIndependent(t *testing.T) {
	store := newTestStore(t)
	id := model.NewItemId(42, model.ItemIdTypeTrack)

	require.NoError(t, store.Put(id, KindMetadata, []byte("meta")))
	require.NoError(t, store.Put(id, KindAudioFile, []byte("audio")))

	meta, ok := store.Get(id, KindMetadata)
	require.True(t, ok)
	audio, ok := store.Get(id, KindAudioFile)
	require.True(t, ok)
	assert.Equal(t, []byte("meta"), meta)
	assert.Equal(t, []byte("audio"), audio)
}

func TestClearRemovesAllEntries(t *testing.T) {
	store := newTestStore(t)
	id := model.NewItemId(123456, model.ItemIdTypeTrack)
	require.NoError(t, store.Put(id, KindMetadata, []byte("data")))

	require.NoError(t, store.Clear())

	_, ok := store.Get(id, KindMetadata)
	assert.False(t, ok)

	// 目录结构被重建，清空后可以直接继续写入
	for _, k := range kinds {
		assert.DirExists(t, filepath.Join(store.Root(), string(k)))
	}
	require.NoError(t, store.Put(id, KindMetadata, []byte("again")))
}

func TestTruncatedEntryIsMissAndRemoved(t *testing.T) {
	store := newTestStore(t)
	id := model.NewItemId(123456, model.ItemIdTypeTrack)
	require.NoError(t, store.Put(id, KindAudioFile, []byte("a complete audio blob")))

	path := store.entryPath(id, KindAudioFile)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw[:len(raw)-6], 0644))

	_, ok := store.Get(id, KindAudioFile)
	assert.False(t, ok)
	assert.NoFileExists(t, path)
}

func TestCorruptChecksumIsMissAndRemoved(t *testing.T) {
	store := newTestStore(t)
	id := model.NewItemId(98765, model.ItemIdTypeTrack)
	require.NoError(t, store.Put(id, KindMetadata, []byte("payload")))

	path := store.entryPath(id, KindMetadata)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[headerSize] ^= 0xff // 翻转负载首字节，长度不变但校验和失配
	require.NoError(t, os.WriteFile(path, raw, 0644))

	_, ok := store.Get(id, KindMetadata)
	assert.False(t, ok)
	assert.NoFileExists(t, path)
}

func TestGarbageFileIsMiss(t *testing.T) {
	store := newTestStore(t)
	id := model.NewItemId(5555, model.ItemIdTypeTrack)

	path := store.entryPath(id, KindMetadata)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("xx"), 0644))

	_, ok := store.Get(id, KindMetadata)
	assert.False(t, ok)
}

func TestEntryPathIsDeterministic(t *testing.T) {
	store := newTestStore(t)
	id := model.NewItemId(31337, model.ItemIdTypeTrack)
	assert.Equal(t, store.entryPath(id, KindAudioFile), store.entryPath(id, KindAudioFile))

	name := id.ToBase16()
	assert.Equal(t,
		filepath.Join(store.Root(), string(KindAudioFile), name[:2], name),
		store.entryPath(id, KindAudioFile))
}

func TestConcurrentPutsSameKey(t *testing.T) {
	store := newTestStore(t)
	id := model.NewItemId(2024, model.ItemIdTypeTrack)
	data := []byte("racing writers, identical bytes")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Put(id, KindAudioFile, data))
		}()
	}
	wg.Wait()

	got, ok := store.Get(id, KindAudioFile)
	require.True(t, ok)
	assert.Equal(t, data, got)
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Put(model.NewItemId(1, model.ItemIdTypeTrack), KindMetadata, []byte("a")))
	require.NoError(t, store.Put(model.NewItemId(2, model.ItemIdTypeTrack), KindMetadata, []byte("bb")))
	require.NoError(t, store.Put(model.NewItemId(3, model.ItemIdTypeTrack), KindAudioFile, []byte("ccc")))

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats[KindMetadata].Entries)
	assert.Equal(t, 1, stats[KindAudioFile].Entries)
	assert.Equal(t, 0, stats[KindAudioKey].Entries)
}
