package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LyraFM/model"
)

func TestResolvePlayArgLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.mp3")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))

	item, err := resolvePlayArg(path)
	require.NoError(t, err)
	assert.Equal(t, model.ItemIdTypeLocal, item.Type)

	resolved, err := model.ResolveLocal(item)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
}

func TestResolvePlayArgURI(t *testing.T) {
	want := model.NewItemId(123456, model.ItemIdTypeTrack)
	uri, ok := want.ToURI()
	require.True(t, ok)

	item, err := resolvePlayArg(uri)
	require.NoError(t, err)
	assert.Equal(t, want, item)
}

func TestResolvePlayArgRejectsGarbage(t *testing.T) {
	_, err := resolvePlayArg("not-a-uri-and-not-a-file")
	assert.ErrorIs(t, err, model.ErrInvalidFormat)

	// 目录不是可播放的本地曲目
	_, err = resolvePlayArg(t.TempDir())
	assert.ErrorIs(t, err, model.ErrInvalidFormat)
}
