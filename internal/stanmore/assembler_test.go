package stanmore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemblerCompleteMessage(t *testing.T) {
	var a mediaAssembler

	chunks := [][]byte{
		{0x00, 0x00, 0x00, 0x01, 0x00, 0x6A, 0x00, 0x05, 'h', 'e', 'l', 'l', 'o'},
		{0x00, 0x00, 0x00, 0x02, 0x00, 0x6A, 0x00, 0x06, 'a', 'r', 't', 'i', 's', 't'},
		{0x00, 0x00, 0x00, 0xFF, 0x00, 0x00, 0x00, 0x00},
	}

	for i, chunk := range chunks[:len(chunks)-1] {
		_, complete := a.Push(chunk)
		assert.False(t, complete, "chunk %d must not complete the message", i)
	}

	info, complete := a.Push(chunks[len(chunks)-1])
	require.True(t, complete)
	require.NotNil(t, info.Title)
	assert.Equal(t, "hello", *info.Title)
	require.NotNil(t, info.Artist)
	assert.Equal(t, "artist", *info.Artist)
	assert.Nil(t, info.Album)

	assert.Zero(t, a.Len(), "buffer must be empty after a completed message")
}

func TestAssemblerNoSentinelNoDispatch(t *testing.T) {
	var a mediaAssembler

	for i := 0; i < 50; i++ {
		_, complete := a.Push([]byte{0x01, 0x02, 0x03, 0x04})
		assert.False(t, complete)
	}
	assert.Equal(t, 200, a.Len())
}

func TestAssemblerResetsBetweenMessages(t *testing.T) {
	var a mediaAssembler

	first := append([]byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x6A, 0x00, 0x03, 'o', 'n', 'e'}, mediaSentinel...)
	info, complete := a.Push(first)
	require.True(t, complete)
	require.NotNil(t, info.Title)
	assert.Equal(t, "one", *info.Title)

	// The next message starts from a fresh buffer: the previous title must
	// not leak into it.
	second := append([]byte{0x00, 0x00, 0x00, 0x02, 0x00, 0x6A, 0x00, 0x03, 't', 'w', 'o'}, mediaSentinel...)
	info, complete = a.Push(second)
	require.True(t, complete)
	assert.Nil(t, info.Title)
	require.NotNil(t, info.Artist)
	assert.Equal(t, "two", *info.Artist)
}

func TestAssemblerSentinelSplitAcrossChunks(t *testing.T) {
	var a mediaAssembler

	_, complete := a.Push([]byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x6A, 0x00, 0x02, 'h', 'i', 0x00, 0x00})
	assert.False(t, complete)

	// The sentinel test runs against the whole buffer, so a sentinel whose
	// first bytes arrived in the previous chunk is still detected.
	info, complete := a.Push([]byte{0x00, 0x00, 0x00, 0xFF, 0x00, 0x00, 0x00, 0x00})
	require.True(t, complete)
	require.NotNil(t, info.Title)
	assert.Equal(t, "hi", *info.Title)
}
