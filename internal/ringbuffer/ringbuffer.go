// Package ringbuffer implements a lock-free single-producer/single-consumer
// ring buffer of int16 PCM samples, used to bridge the blocking network
// decode path to the real-time audio callback.
package ringbuffer

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrInsufficientSpace indicates the ring buffer has no room for a write.
	ErrInsufficientSpace = errors.New("ringbuffer: insufficient space")
	// ErrInsufficientData indicates the ring buffer has nothing to read.
	ErrInsufficientData = errors.New("ringbuffer: insufficient data")
)

// RingBuffer is a wait-free SPSC ring buffer of int16 samples.
//
// Write must only be called by the producer (the network decode
// goroutine); Read must only be called by the consumer (the audio
// callback). Neither side takes a lock.
type RingBuffer struct {
	buffer   []int16
	size     uint64 // power of 2
	mask     uint64
	writePos atomic.Uint64
	readPos  atomic.Uint64
}

// New creates a ring buffer able to hold at least capacity samples,
// rounded up to the next power of 2.
func New(capacity uint64) *RingBuffer {
	size := nextPowerOf2(capacity)
	return &RingBuffer{
		buffer: make([]int16, size),
		size:   size,
		mask:   size - 1,
	}
}

// Write copies all of samples into the buffer, or fails without writing
// any of them if there isn't enough room. Partial writes never happen.
func (rb *RingBuffer) Write(samples []int16) error {
	n := uint64(len(samples))
	if n == 0 {
		return nil
	}
	if n > rb.AvailableWrite() {
		return ErrInsufficientSpace
	}

	writePos := rb.writePos.Load()
	start := writePos & rb.mask
	end := (writePos + n) & rb.mask

	if end > start || n == 0 {
		copy(rb.buffer[start:start+n], samples)
	} else {
		first := rb.size - start
		copy(rb.buffer[start:], samples[:first])
		copy(rb.buffer[:end], samples[first:])
	}

	rb.writePos.Store(writePos + n)
	return nil
}

// Read fills dst with up to len(dst) samples, returning how many were
// copied. If the buffer is empty, returns (0, ErrInsufficientData).
func (rb *RingBuffer) Read(dst []int16) (int, error) {
	want := uint64(len(dst))
	if want == 0 {
		return 0, nil
	}

	available := rb.AvailableRead()
	if available == 0 {
		return 0, ErrInsufficientData
	}

	toRead := min(want, available)
	readPos := rb.readPos.Load()
	start := readPos & rb.mask
	end := (readPos + toRead) & rb.mask

	if end > start {
		copy(dst[:toRead], rb.buffer[start:end])
	} else {
		first := rb.size - start
		copy(dst[:first], rb.buffer[start:])
		copy(dst[first:toRead], rb.buffer[:end])
	}

	rb.readPos.Store(readPos + toRead)
	return int(toRead), nil
}

// AvailableWrite returns the number of samples that can currently be written.
func (rb *RingBuffer) AvailableWrite() uint64 {
	return rb.size - (rb.writePos.Load() - rb.readPos.Load())
}

// AvailableRead returns the number of samples currently available to read.
func (rb *RingBuffer) AvailableRead() uint64 {
	return rb.writePos.Load() - rb.readPos.Load()
}

// Size returns the buffer's total capacity in samples.
func (rb *RingBuffer) Size() uint64 {
	return rb.size
}

func nextPowerOf2(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}
