package network

import "fmt"

// RingBuffer is a fixed-capacity byte FIFO used to reassemble framed serial streams
type RingBuffer struct {
	buffer []byte
	head   int
	tail   int
	size   int
	name   string
}

// NewRingBuffer creates a ring buffer holding up to capacity bytes
func NewRingBuffer(capacity int, name string) *RingBuffer {
	return &RingBuffer{
		buffer: make([]byte, capacity),
		name:   name,
	}
}

// AddData appends data. It returns false, adding nothing, if data does not fit.
func (rb *RingBuffer) AddData(data []byte) bool {
	if len(data) > rb.FreeSpace() {
		return false
	}
	for _, b := range data {
		rb.buffer[rb.head] = b
		rb.head = (rb.head + 1) % len(rb.buffer)
	}
	rb.size += len(data)
	return true
}

// GetData removes len(data) bytes into data. It returns false if fewer are buffered.
func (rb *RingBuffer) GetData(data []byte) bool {
	if !rb.Peek(data) {
		return false
	}
	rb.Discard(len(data))
	return true
}

// Peek copies len(data) bytes without removing them
func (rb *RingBuffer) Peek(data []byte) bool {
	return rb.PeekAt(0, data)
}

// PeekAt copies len(data) bytes starting offset bytes past the read position
func (rb *RingBuffer) PeekAt(offset int, data []byte) bool {
	if offset < 0 || offset+len(data) > rb.size {
		return false
	}
	pos := (rb.tail + offset) % len(rb.buffer)
	for i := range data {
		data[i] = rb.buffer[pos]
		pos = (pos + 1) % len(rb.buffer)
	}
	return true
}

// Discard drops up to n bytes and returns how many were dropped
func (rb *RingBuffer) Discard(n int) int {
	n = min(n, rb.size)
	if n <= 0 {
		return 0
	}
	rb.tail = (rb.tail + n) % len(rb.buffer)
	rb.size -= n
	return n
}

// Clear empties the buffer
func (rb *RingBuffer) Clear() {
	rb.head = 0
	rb.tail = 0
	rb.size = 0
}

// FreeSpace returns available space in bytes
func (rb *RingBuffer) FreeSpace() int {
	return len(rb.buffer) - rb.size
}

// DataSize returns the number of buffered bytes
func (rb *RingBuffer) DataSize() int {
	return rb.size
}

// IsEmpty returns true if nothing is buffered
func (rb *RingBuffer) IsEmpty() bool {
	return rb.size == 0
}

func (rb *RingBuffer) String() string {
	return fmt.Sprintf("RingBuffer[%s]: size=%d, capacity=%d, head=%d, tail=%d",
		rb.name, rb.size, len(rb.buffer), rb.head, rb.tail)
}
