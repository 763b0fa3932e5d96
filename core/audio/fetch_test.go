package audio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LyraFM/model"
)

func TestFetchEncrypted(t *testing.T) {
	var file model.FileId
	file[0] = 0xab
	body := []byte("encrypted audio bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/"+file.ToBase16(), r.URL.Path)
		w.Write(body)
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL)
	got, err := f.FetchEncrypted(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestFetchEncryptedNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL)
	_, err := f.FetchEncrypted(context.Background(), model.FileId{})
	assert.Error(t, err)
}

func TestFetchEncryptedCancelled(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFetcher(srv.URL)
	_, err := f.FetchEncrypted(ctx, model.FileId{})
	assert.Error(t, err)
}
