package audio

import (
	"crypto/aes"
	"crypto/cipher"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LyraFM/core/session"
)

func encryptForTest(t *testing.T, key session.AudioKey, plain []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key[:])
	require.NoError(t, err)
	out := make([]byte, len(plain))
	cipher.NewCTR(block, audioIV[:]).XORKeyStream(out, plain)
	return out
}

func TestDecryptAudioRoundtrip(t *testing.T) {
	var key session.AudioKey
	for i := range key {
		key[i] = byte(i * 7)
	}
	plain := []byte("OggS fake vorbis container bytes for the decrypt roundtrip")

	encrypted := encryptForTest(t, key, plain)
	assert.NotEqual(t, plain, encrypted)

	got, err := decryptAudio(key, encrypted)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestDecryptAudioPreservesLength(t *testing.T) {
	var key session.AudioKey
	for _, n := range []int{0, 1, 15, 16, 17, 4096} {
		got, err := decryptAudio(key, make([]byte, n))
		require.NoError(t, err)
		assert.Len(t, got, n)
	}
}

func TestDecryptAudioKeyMatters(t *testing.T) {
	var key1, key2 session.AudioKey
	key2[0] = 0x01
	plain := []byte("same ciphertext, different keys")

	encrypted := encryptForTest(t, key1, plain)
	wrong, err := decryptAudio(key2, encrypted)
	require.NoError(t, err)
	assert.NotEqual(t, plain, wrong)
}
