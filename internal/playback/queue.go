package playback

import (
	"fmt"
	"sync"
	"time"
)

// State is the busy flag of a sink queue.
type State int

const (
	// StateIdle means nothing is dispatched to the sink.
	StateIdle State = iota
	// StatePlaying means exactly one item is dispatched and its completion
	// has not been processed yet.
	StatePlaying
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// SinkQueue holds the pending items of one sink and decides whether the next
// item may be dispatched. All operations are safe for concurrent use.
type SinkQueue struct {
	sink SinkID

	pending []Item
	state   State
	current *Item // dispatched item while Playing

	// maxSize bounds pending; 0 means unbounded
	maxSize int

	mu    sync.Mutex
	stats QueueStats
}

// QueueStats tracks per-sink queue activity.
type QueueStats struct {
	TotalEnqueued int64
	TotalStarted  int64
	TotalCleared  int64
	CurrentSize   int
	PeakSize      int
	LastEnqueue   time.Time
	LastStart     time.Time
}

// NewSinkQueue creates an idle queue for sink. maxSize of 0 leaves the queue
// unbounded.
func NewSinkQueue(sink SinkID, maxSize int) *SinkQueue {
	return &SinkQueue{
		sink:    sink,
		maxSize: maxSize,
	}
}

// Sink returns the sink this queue feeds.
func (q *SinkQueue) Sink() SinkID {
	return q.sink
}

// Enqueue appends item to the pending list. It never starts playback. Items
// addressed to another sink are rejected with ErrInvalidItem.
func (q *SinkQueue) Enqueue(item Item) error {
	if item.Sink != q.sink {
		return fmt.Errorf("%w: item for sink %q enqueued on %q", ErrInvalidItem, item.Sink, q.sink)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.maxSize > 0 && len(q.pending) >= q.maxSize {
		return ErrQueueFull
	}

	q.pending = append(q.pending, item)

	q.stats.TotalEnqueued++
	q.stats.LastEnqueue = time.Now()
	q.stats.CurrentSize = len(q.pending)
	if q.stats.CurrentSize > q.stats.PeakSize {
		q.stats.PeakSize = q.stats.CurrentSize
	}

	return nil
}

// TryStartNext pops the front item and marks the queue Playing, but only when
// the queue is Idle and not empty. Otherwise it reports false and changes
// nothing.
func (q *SinkQueue) TryStartNext() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state == StatePlaying || len(q.pending) == 0 {
		return Item{}, false
	}

	item := q.pending[0]
	q.pending[0] = Item{} // drop payload reference
	q.pending = q.pending[1:]

	q.state = StatePlaying
	q.current = &item

	q.stats.TotalStarted++
	q.stats.LastStart = time.Now()
	q.stats.CurrentSize = len(q.pending)

	return item, true
}

// MarkIdle sets the queue Idle unconditionally.
func (q *SinkQueue) MarkIdle() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.markIdleLocked()
}

// finish marks the queue Idle only if itemID is the dispatched item. A
// completion that arrives after Clear, or for an item that already finished,
// is reported as stale.
func (q *SinkQueue) finish(itemID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.state != StatePlaying || q.current == nil || q.current.ID != itemID {
		return false
	}
	q.markIdleLocked()
	return true
}

func (q *SinkQueue) markIdleLocked() {
	q.state = StateIdle
	q.current = nil
}

// Clear drops every pending item and forces the queue Idle. The dropped
// items are returned so their payloads can be released.
func (q *SinkQueue) Clear() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := q.pending
	q.pending = nil
	q.markIdleLocked()

	q.stats.TotalCleared += int64(len(dropped))
	q.stats.CurrentSize = 0

	return dropped
}

// State returns the current busy flag.
func (q *SinkQueue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.state
}

// Current returns the dispatched item while the queue is Playing.
func (q *SinkQueue) Current() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current == nil {
		return Item{}, false
	}
	return *q.current, true
}

// Size returns the number of pending items.
func (q *SinkQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.pending)
}

// Snapshot returns descriptors of the pending items in playback order.
func (q *SinkQueue) Snapshot() []Descriptor {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Descriptor, 0, len(q.pending))
	for _, item := range q.pending {
		out = append(out, item.Describe())
	}
	return out
}

// Stats returns a copy of the queue statistics.
func (q *SinkQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := q.stats
	stats.CurrentSize = len(q.pending)
	return stats
}
