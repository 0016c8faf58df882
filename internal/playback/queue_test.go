package playback

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestSinkQueue_BasicOperations(t *testing.T) {
	q := NewSinkQueue("S", 0)

	if q.Sink() != "S" {
		t.Errorf("Expected sink S, got %s", q.Sink())
	}
	if q.State() != StateIdle {
		t.Errorf("Expected new queue to be idle, got %s", q.State())
	}
	if _, ok := q.TryStartNext(); ok {
		t.Error("TryStartNext on empty queue should report false")
	}

	a := mustItem(t, "S", "A")
	b := mustItem(t, "S", "B")
	if err := q.Enqueue(a); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := q.Enqueue(b); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if q.State() != StateIdle {
		t.Error("Enqueue must not start playback")
	}
	if q.Size() != 2 {
		t.Errorf("Expected size 2, got %d", q.Size())
	}

	item, ok := q.TryStartNext()
	if !ok || item.ID != a.ID {
		t.Fatalf("Expected A to start, got %v %v", item.Label, ok)
	}
	if q.State() != StatePlaying {
		t.Errorf("Expected playing, got %s", q.State())
	}
	if cur, ok := q.Current(); !ok || cur.ID != a.ID {
		t.Errorf("Expected current A, got %v", cur.Label)
	}

	// Busy: nothing else may start
	if _, ok := q.TryStartNext(); ok {
		t.Error("TryStartNext while playing should report false")
	}

	q.MarkIdle()
	item, ok = q.TryStartNext()
	if !ok || item.ID != b.ID {
		t.Errorf("Expected B to start, got %v %v", item.Label, ok)
	}
	q.MarkIdle()

	if _, ok := q.Current(); ok {
		t.Error("Idle queue should have no current item")
	}

	stats := q.Stats()
	if stats.TotalEnqueued != 2 || stats.TotalStarted != 2 || stats.PeakSize != 2 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestSinkQueue_Finish(t *testing.T) {
	q := NewSinkQueue("S", 0)
	a := mustItem(t, "S", "A")
	_ = q.Enqueue(a)

	if q.finish(a.ID) {
		t.Error("finish on idle queue should be stale")
	}

	_, _ = q.TryStartNext()
	if q.finish("someone-else") {
		t.Error("finish with foreign id should be stale")
	}
	if !q.finish(a.ID) {
		t.Error("finish for current item should succeed")
	}
	if q.finish(a.ID) {
		t.Error("duplicate finish should be stale")
	}
}

func TestSinkQueue_Clear(t *testing.T) {
	q := NewSinkQueue("S", 0)
	for _, label := range []string{"A", "B", "C"} {
		_ = q.Enqueue(mustItem(t, "S", label))
	}
	a, _ := q.TryStartNext()

	dropped := q.Clear()
	if len(dropped) != 2 || dropped[0].Label != "B" || dropped[1].Label != "C" {
		t.Errorf("Expected B and C to be dropped, got %v", dropped)
	}
	if q.State() != StateIdle || q.Size() != 0 {
		t.Errorf("Expected empty idle queue, got %s with %d", q.State(), q.Size())
	}
	if q.finish(a.ID) {
		t.Error("completion of item in flight before Clear should be stale")
	}
	if got := q.Stats().TotalCleared; got != 2 {
		t.Errorf("Expected 2 cleared, got %d", got)
	}
}

func TestSinkQueue_Bounded(t *testing.T) {
	q := NewSinkQueue("S", 2)

	_ = q.Enqueue(mustItem(t, "S", "A"))
	_ = q.Enqueue(mustItem(t, "S", "B"))
	if err := q.Enqueue(mustItem(t, "S", "C")); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}

	// Starting an item frees a slot
	_, _ = q.TryStartNext()
	if err := q.Enqueue(mustItem(t, "S", "C")); err != nil {
		t.Errorf("Expected room after start, got %v", err)
	}
}

func TestSinkQueue_RejectsOtherSink(t *testing.T) {
	q := NewSinkQueue("S", 0)

	if err := q.Enqueue(mustItem(t, "T", "A")); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("Expected ErrInvalidItem, got %v", err)
	}
	if q.Size() != 0 {
		t.Errorf("Rejected item was queued, size %d", q.Size())
	}
	if q.Stats().TotalEnqueued != 0 {
		t.Error("Rejected item was counted")
	}
}

func TestSinkQueue_ConcurrentTryStartNext(t *testing.T) {
	q := NewSinkQueue("S", 0)
	for i := 0; i < 10; i++ {
		_ = q.Enqueue(mustItem(t, "S", "x"))
	}

	var started atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := q.TryStartNext(); ok {
				started.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := started.Load(); got != 1 {
		t.Errorf("Expected exactly one start, got %d", got)
	}
	if q.Size() != 9 {
		t.Errorf("Expected 9 pending, got %d", q.Size())
	}
}

func TestSinkQueue_Snapshot(t *testing.T) {
	q := NewSinkQueue("S", 0)
	if snap := q.Snapshot(); snap == nil || len(snap) != 0 {
		t.Errorf("Expected empty non-nil snapshot, got %v", snap)
	}

	_ = q.Enqueue(mustItem(t, "S", "A"))
	_ = q.Enqueue(mustItem(t, "S", "B"))

	snap := q.Snapshot()
	if len(snap) != 2 || snap[0].Label != "A" || snap[1].Label != "B" {
		t.Fatalf("Unexpected snapshot: %v", snap)
	}
	if snap[0].KindName != "stream" {
		t.Errorf("Expected kind stream, got %s", snap[0].KindName)
	}
}
