package pool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByteBufferWrite(t *testing.T) {
	bb := NewByteBuffer(4)

	n, err := bb.Write([]byte("block"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, []byte("block"), bb.B)
	require.Equal(t, 5, bb.Len())

	var out bytes.Buffer
	written, err := bb.WriteTo(&out)
	require.NoError(t, err)
	require.Equal(t, int64(5), written)
	require.Equal(t, "block", out.String())

	bb.Reset()
	require.Equal(t, 0, bb.Len())
	require.GreaterOrEqual(t, cap(bb.B), 5)
}

func TestByteBufferGrow(t *testing.T) {
	t.Run("enough capacity", func(t *testing.T) {
		bb := NewByteBuffer(64)
		before := cap(bb.B)
		bb.Grow(32)
		require.Equal(t, before, cap(bb.B))
	})

	t.Run("small buffer grows by default size", func(t *testing.T) {
		bb := NewByteBuffer(16)
		_, _ = bb.Write([]byte("abcd"))
		bb.Grow(100)
		require.Equal(t, 4+BlockBufferDefaultSize, cap(bb.B))
		require.Equal(t, []byte("abcd"), bb.B)
	})

	t.Run("large buffer grows by a quarter", func(t *testing.T) {
		size := 8 * BlockBufferDefaultSize
		bb := NewByteBuffer(size)
		bb.B = bb.B[:size]
		bb.Grow(1)
		require.Equal(t, size+size/4, cap(bb.B))
	})

	t.Run("request larger than step", func(t *testing.T) {
		bb := NewByteBuffer(0)
		bb.Grow(3 * BlockBufferDefaultSize)
		require.Equal(t, 3*BlockBufferDefaultSize, cap(bb.B))
	})
}

func TestByteBufferPool(t *testing.T) {
	p := NewByteBufferPool(32, 128)

	bb := p.Get()
	require.NotNil(t, bb)
	require.Equal(t, 0, bb.Len())

	_, _ = bb.Write([]byte("data"))
	p.Put(bb)
	p.Put(nil)

	bb = p.Get()
	require.Equal(t, 0, bb.Len())

	// oversized buffers are not retained, but Put must not fail
	bb.Grow(1024)
	p.Put(bb)
}

func TestBlockBuffer(t *testing.T) {
	bb := GetBlockBuffer()
	require.Equal(t, 0, bb.Len())
	require.GreaterOrEqual(t, cap(bb.B), BlockBufferDefaultSize)
	PutBlockBuffer(bb)
}
