package storage

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// slotWeight is the size of the slot. A shared holder takes one unit and an
// exclusive holder takes all of them.
const slotWeight = 1 << 30

// Slot is the whole-graph single-writer, multi-reader lock. Waiters are
// served in arrival order, so a waiting exclusive request holds back shared
// requests that arrive after it.
type Slot struct {
	sem *semaphore.Weighted
}

// NewSlot creates an unheld slot.
func NewSlot() *Slot {
	return &Slot{sem: semaphore.NewWeighted(slotWeight)}
}

// AcquireShared blocks until a shared unit is available, ctx is done, or
// timeout elapses. A zero timeout waits as long as ctx allows.
func (s *Slot) AcquireShared(ctx context.Context, timeout time.Duration) error {
	return s.acquire(ctx, timeout, 1)
}

// AcquireExclusive blocks until the whole slot is free, ctx is done, or
// timeout elapses. A zero timeout waits as long as ctx allows.
func (s *Slot) AcquireExclusive(ctx context.Context, timeout time.Duration) error {
	return s.acquire(ctx, timeout, slotWeight)
}

func (s *Slot) acquire(ctx context.Context, timeout time.Duration, n int64) error {
	if s.sem.TryAcquire(n) {
		return nil
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.sem.Acquire(ctx, n)
}

// ReleaseShared gives back a shared unit.
func (s *Slot) ReleaseShared() { s.sem.Release(1) }

// ReleaseExclusive gives back the whole slot.
func (s *Slot) ReleaseExclusive() { s.sem.Release(slotWeight) }
