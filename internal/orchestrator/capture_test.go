package orchestrator

import (
	"testing"
	"time"
)

func TestFrameBuffer_EmptyIsUnavailable(t *testing.T) {
	b := NewFrameBuffer(time.Second)
	if b.CaptureFrame() != nil {
		t.Fatalf("expected nil frame before any push")
	}
}

func TestFrameBuffer_StaleFrameIsUnavailable(t *testing.T) {
	now := time.Date(2025, 10, 4, 9, 0, 0, 0, time.UTC)
	b := NewFrameBuffer(5 * time.Second)
	b.now = func() time.Time { return now }

	b.Push([]byte("jpeg"))
	if string(b.CaptureFrame()) != "jpeg" {
		t.Fatalf("expected fresh frame to be served")
	}

	now = now.Add(6 * time.Second)
	if b.CaptureFrame() != nil {
		t.Fatalf("expected stale frame to be withheld")
	}
}
