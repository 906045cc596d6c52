package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSlotSharedHoldersCoexist(t *testing.T) {
	s := NewSlot()
	ctx := context.Background()

	if err := s.AcquireShared(ctx, 0); err != nil {
		t.Fatalf("Failed to acquire shared: %v", err)
	}
	if err := s.AcquireShared(ctx, 0); err != nil {
		t.Fatalf("Failed to acquire second shared: %v", err)
	}
	err := s.AcquireExclusive(ctx, 10*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected exclusive to time out while shared held, got %v", err)
	}

	s.ReleaseShared()
	s.ReleaseShared()
	if err := s.AcquireExclusive(ctx, 10*time.Millisecond); err != nil {
		t.Errorf("Expected exclusive once shared released, got %v", err)
	}
	s.ReleaseExclusive()
}

func TestSlotExclusiveBlocksShared(t *testing.T) {
	s := NewSlot()
	if err := s.AcquireExclusive(context.Background(), 0); err != nil {
		t.Fatalf("Failed to acquire exclusive: %v", err)
	}

	err := s.AcquireShared(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		if err := s.AcquireShared(context.Background(), 0); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("shared acquired while exclusive held")
	case <-time.After(20 * time.Millisecond):
	}

	s.ReleaseExclusive()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("shared not granted after exclusive release")
	}
	s.ReleaseShared()
}

func TestSlotCancelledContext(t *testing.T) {
	s := NewSlot()
	if err := s.AcquireShared(context.Background(), 0); err != nil {
		t.Fatalf("Failed to acquire shared: %v", err)
	}
	defer s.ReleaseShared()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.AcquireExclusive(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
