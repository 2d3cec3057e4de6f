package orchestrator

import (
	"sync"
	"time"
)

// CaptureSource yields the current still frame, or nil when none is available.
// It must not block.
type CaptureSource interface {
	CaptureFrame() []byte
}

// FrameBuffer keeps the most recent camera frame pushed by the client and
// serves it while it is fresher than ttl.
type FrameBuffer struct {
	mu    sync.RWMutex
	frame []byte
	taken time.Time
	ttl   time.Duration
	now   func() time.Time
}

func NewFrameBuffer(ttl time.Duration) *FrameBuffer {
	return &FrameBuffer{ttl: ttl, now: time.Now}
}

// Push replaces the buffered frame.
func (b *FrameBuffer) Push(frame []byte) {
	b.mu.Lock()
	b.frame = frame
	b.taken = b.now()
	b.mu.Unlock()
}

func (b *FrameBuffer) CaptureFrame() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.frame) == 0 {
		return nil
	}
	if b.ttl > 0 && b.now().Sub(b.taken) > b.ttl {
		return nil
	}
	return b.frame
}
