package playback

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultCompletionBuffer is the capacity of the completion channel.
const DefaultCompletionBuffer = 64

// completion is a finished playback handed back by a sink.
type completion struct {
	sink    SinkID
	itemID  string
	payload Payload
	started time.Time
	err     error
}

// Scheduler routes items to per-sink queues and drives the
// start/complete/advance protocol against a Sink.
//
// Enqueue may be called from any goroutine. Completion callbacks handed to
// the Sink are never run on the sink's goroutine: they are posted to the
// scheduler's dispatch loop, which processes them one at a time.
type Scheduler struct {
	sink   Sink
	logger *log.Logger

	// Per-sink queues, created lazily
	queues map[SinkID]*SinkQueue
	mu     sync.RWMutex

	maxPending int

	// Dispatch loop
	completions chan completion
	done        chan struct{}
	wg          sync.WaitGroup
	closed      atomic.Bool
	closeOnce   sync.Once
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used for warnings raised outside Enqueue.
func WithLogger(logger *log.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithMaxPending bounds every sink queue. Zero keeps queues unbounded.
func WithMaxPending(n int) Option {
	return func(s *Scheduler) { s.maxPending = n }
}

// WithCompletionBuffer sets the capacity of the completion channel.
func WithCompletionBuffer(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.completions = make(chan completion, n)
		}
	}
}

// New creates a scheduler playing through sink and starts its dispatch loop.
// Call Close to stop it.
func New(sink Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		sink:        sink,
		logger:      log.WithPrefix("playback"),
		queues:      make(map[SinkID]*SinkQueue),
		completions: make(chan completion, DefaultCompletionBuffer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.loop()

	return s
}

// Enqueue appends item to the queue of sink and starts it if the sink is
// idle. It does not wait for playback.
//
// A nil error means the item was accepted. ErrInvalidItem, ErrQueueFull and
// ErrSchedulerClosed mean it was rejected. Any other error is a warning made
// of *PlaybackError values: one or more items (possibly this one) could not
// be started and were dropped; the queue is idle again and the remaining
// items were attempted.
func (s *Scheduler) Enqueue(sink SinkID, item Item) error {
	if s.closed.Load() {
		return ErrSchedulerClosed
	}
	if item.Sink != sink {
		return fmt.Errorf("%w: item for sink %q enqueued on %q", ErrInvalidItem, item.Sink, sink)
	}
	if err := item.Payload.Validate(); err != nil {
		return err
	}

	q := s.queue(sink)
	if err := q.Enqueue(item); err != nil {
		itemsDropped.WithLabelValues(string(sink), "queue_full").Inc()
		return err
	}

	itemsEnqueued.WithLabelValues(string(sink)).Inc()
	pendingItems.WithLabelValues(string(sink)).Set(float64(q.Size()))

	s.logger.Debug("Item enqueued", "sink", sink, "item", item.ID, "label", item.Label, "pending", q.Size())

	return s.AdvanceIfIdle(sink)
}

// AdvanceIfIdle starts the next pending item of sink when nothing is playing.
// Items whose playback cannot be started are dropped and the next one is
// tried; the returned error joins a *PlaybackError for each of them.
func (s *Scheduler) AdvanceIfIdle(sink SinkID) error {
	q := s.lookup(sink)
	if q == nil {
		return nil
	}

	var warnings []error
	for {
		item, ok := q.TryStartNext()
		if !ok {
			break
		}
		pendingItems.WithLabelValues(string(sink)).Set(float64(q.Size()))

		err := s.start(item)
		if err == nil {
			break
		}

		// Nothing is playing: free the slot, drop the item, try the next one.
		q.finish(item.ID)
		item.Payload.Release()

		reason := "start_failed"
		if errors.Is(err, ErrSinkNotConnected) {
			reason = "not_connected"
		}
		itemsDropped.WithLabelValues(string(sink), reason).Inc()

		warnings = append(warnings, &PlaybackError{
			Sink:   sink,
			ItemID: item.ID,
			Label:  item.Label,
			Err:    err,
		})
	}

	return errors.Join(warnings...)
}

// start dispatches item to the sink.
func (s *Scheduler) start(item Item) error {
	if !s.sink.IsConnected(item.Sink) {
		return ErrSinkNotConnected
	}

	started := time.Now()
	c := completion{
		sink:    item.Sink,
		itemID:  item.ID,
		payload: item.Payload,
		started: started,
	}

	var once sync.Once
	err := s.sink.Play(item.Sink, item.Payload, func(err error) {
		once.Do(func() {
			c.err = err
			s.post(c)
		})
	})
	if err != nil {
		return err
	}

	itemsStarted.WithLabelValues(string(item.Sink)).Inc()
	s.logger.Debug("Playback started", "sink", item.Sink, "item", item.ID, "label", item.Label)

	return nil
}

// post hands a completion to the dispatch loop.
func (s *Scheduler) post(c completion) {
	select {
	case s.completions <- c:
	case <-s.done:
		c.payload.Release()
	}
}

// OnPlaybackComplete signals that the current playback on sink ended. It is
// the entry point for sinks driven from outside the Sink interface; the
// signal is processed on the dispatch loop like any other completion. It is a
// no-op when nothing is playing on sink.
func (s *Scheduler) OnPlaybackComplete(sink SinkID) {
	q := s.lookup(sink)
	if q == nil {
		return
	}
	item, ok := q.Current()
	if !ok {
		return
	}
	// The payload is released by whoever holds the original done callback.
	s.post(completion{sink: sink, itemID: item.ID})
}

// loop processes completions until Close.
func (s *Scheduler) loop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case c := <-s.completions:
			s.complete(c)
		}
	}
}

// complete marks the sink idle and chains to the next item.
func (s *Scheduler) complete(c completion) {
	c.payload.Release()

	q := s.lookup(c.sink)
	if q == nil || !q.finish(c.itemID) {
		// Completion for an item dropped by DisconnectSink, or a duplicate.
		s.logger.Debug("Ignoring stale completion", "sink", c.sink, "item", c.itemID)
		return
	}

	result := "ok"
	if c.err != nil {
		result = "error"
		s.logger.Warn("Playback ended with error", "sink", c.sink, "item", c.itemID, "error", c.err)
	}
	itemsCompleted.WithLabelValues(string(c.sink), result).Inc()
	if !c.started.IsZero() {
		playbackSeconds.Observe(time.Since(c.started).Seconds())
	}

	if err := s.AdvanceIfIdle(c.sink); err != nil {
		s.logger.Warn("Dropped queued audio", "sink", c.sink, "error", err)
	}
}

// DisconnectSink drops every pending item of sink and forces it idle. A
// playback already in flight is not interrupted; its completion is ignored.
// The queue entry itself is kept.
func (s *Scheduler) DisconnectSink(sink SinkID) {
	q := s.lookup(sink)
	if q == nil {
		return
	}

	dropped := q.Clear()
	for _, item := range dropped {
		item.Payload.Release()
	}

	if len(dropped) > 0 {
		itemsDropped.WithLabelValues(string(sink), "disconnected").Add(float64(len(dropped)))
	}
	pendingItems.WithLabelValues(string(sink)).Set(0)

	s.logger.Debug("Sink disconnected", "sink", sink, "dropped", len(dropped))
}

// Inspect returns the pending items of sink in playback order. The item
// currently playing is not included.
func (s *Scheduler) Inspect(sink SinkID) []Descriptor {
	q := s.lookup(sink)
	if q == nil {
		return []Descriptor{}
	}
	return q.Snapshot()
}

// Status describes one sink queue.
type Status struct {
	Sink    SinkID       `json:"sink"`
	State   string       `json:"state"`
	Current *Descriptor  `json:"current,omitempty"`
	Pending []Descriptor `json:"pending"`
	Stats   QueueStats   `json:"-"`
}

// Status returns the state, current item and pending items of sink.
func (s *Scheduler) Status(sink SinkID) Status {
	st := Status{
		Sink:    sink,
		State:   StateIdle.String(),
		Pending: []Descriptor{},
	}

	q := s.lookup(sink)
	if q == nil {
		return st
	}

	st.State = q.State().String()
	if item, ok := q.Current(); ok {
		d := item.Describe()
		st.Current = &d
	}
	st.Pending = q.Snapshot()
	st.Stats = q.Stats()

	return st
}

// Sinks returns the ids of every sink that has a queue, sorted.
func (s *Scheduler) Sinks() []SinkID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]SinkID, 0, len(s.queues))
	for id := range s.queues {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// WaitIdle blocks until sink has nothing playing and nothing pending, or ctx
// is done.
func (s *Scheduler) WaitIdle(ctx context.Context, sink SinkID) error {
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()

	for {
		q := s.lookup(sink)
		if q == nil || (q.State() == StateIdle && q.Size() == 0) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return ErrSchedulerClosed
		case <-ticker.C:
		}
	}
}

// Close stops the dispatch loop and drops every pending item. Playback that
// is already running is left to finish on its own.
func (s *Scheduler) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		s.wg.Wait()

		for _, id := range s.Sinks() {
			s.DisconnectSink(id)
		}
	})
	return nil
}

// queue returns the queue of sink, creating it on first use.
func (s *Scheduler) queue(sink SinkID) *SinkQueue {
	if q := s.lookup(sink); q != nil {
		return q
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have created it meanwhile
	if q, ok := s.queues[sink]; ok {
		return q
	}
	q := NewSinkQueue(sink, s.maxPending)
	s.queues[sink] = q
	return q
}

// lookup returns the queue of sink or nil.
func (s *Scheduler) lookup(sink SinkID) *SinkQueue {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queues[sink]
}
