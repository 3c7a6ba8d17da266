package capture

import (
	"fmt"
	"sync"

	"EnigmaNetz/Enigma-Packet-Viewer/internal/capture/common"
)

// DefaultBufferCapacity is the number of frames kept when no capacity is configured
const DefaultBufferCapacity = 10000

// Buffer is a bounded, mutex-guarded ring of captured frames. Once full,
// every append evicts the oldest frame.
type Buffer struct {
	mu     sync.Mutex
	frames []common.Frame
	head   int // index of the oldest frame
	count  int
}

// NewBuffer creates a buffer holding at most capacity frames. Non-positive
// capacities fall back to DefaultBufferCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &Buffer{frames: make([]common.Frame, capacity)}
}

// Append adds f at the tail, evicting the head when the buffer is full
func (b *Buffer) Append(f common.Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := len(b.frames)
	if b.count < size {
		b.frames[(b.head+b.count)%size] = f
		b.count++
		return
	}
	b.frames[b.head] = f
	b.head = (b.head + 1) % size
}

// Clear drops every frame
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.frames {
		b.frames[i] = common.Frame{}
	}
	b.head, b.count = 0, 0
}

// Snapshot copies the current contents in capture order. The lock is only
// held for the copy, so callers can iterate without blocking capture.
func (b *Buffer) Snapshot() []common.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]common.Frame, b.count)
	size := len(b.frames)
	for i := 0; i < b.count; i++ {
		out[i] = b.frames[(b.head+i)%size]
	}
	return out
}

// Get returns the frame at position i, counted from the oldest
func (b *Buffer) Get(i int) (common.Frame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i < 0 || i >= b.count {
		return common.Frame{}, fmt.Errorf("index %d of %d: %w", i, b.count, common.ErrNotFound)
	}
	return b.frames[(b.head+i)%len(b.frames)], nil
}

// Len returns the number of frames held
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the capacity bound
func (b *Buffer) Cap() int {
	return len(b.frames)
}
