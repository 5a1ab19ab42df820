package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBuffer_WrapAround(t *testing.T) {
	rb := NewRingBuffer(8, "test")

	assert.True(t, rb.AddData([]byte{1, 2, 3, 4, 5, 6}))
	assert.Equal(t, 4, rb.Discard(4))
	assert.True(t, rb.AddData([]byte{7, 8, 9, 10, 11, 12}))
	assert.Equal(t, 8, rb.DataSize())
	assert.False(t, rb.AddData([]byte{13}), "full buffer accepts nothing")

	out := make([]byte, 8)
	assert.True(t, rb.GetData(out))
	assert.Equal(t, []byte{5, 6, 7, 8, 9, 10, 11, 12}, out)
	assert.True(t, rb.IsEmpty())
}

func TestRingBuffer_PeekAt(t *testing.T) {
	rb := NewRingBuffer(4, "test")
	rb.AddData([]byte{0xAA, 0x55, 0x01})

	b := make([]byte, 2)
	assert.True(t, rb.PeekAt(1, b))
	assert.Equal(t, []byte{0x55, 0x01}, b)
	assert.False(t, rb.PeekAt(2, b))
	assert.Equal(t, 3, rb.DataSize(), "peek must not consume")

	assert.False(t, rb.GetData(make([]byte, 4)))
	assert.Equal(t, 3, rb.Discard(10))
	rb.Clear()
	assert.Equal(t, 4, rb.FreeSpace())
}
