package audio

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/herald/internal/playback"
)

// mockBitrate approximates the bitrate of gTTS output (32 kbps MP3), used to
// derive a simulated duration from payload size.
const mockBitrate = 32000

// MockSink implements playback.Sink without producing sound. Each Play is
// recorded and completes after a simulated duration, or when the test calls
// Complete in manual mode.
type MockSink struct {
	mu           sync.Mutex
	disconnected map[playback.SinkID]bool
	active       map[playback.SinkID][]*mockPlayback
	plays        []MockPlay

	// Test configuration
	duration    time.Duration // fixed duration; 0 derives it from size
	delayFactor float64       // speeds up simulated playback
	manual      bool
	failWith    error
	callbacks   MockCallbacks

	// Metrics for testing
	playCount     atomic.Int64
	completeCount atomic.Int64
	overlapCount  atomic.Int64

	wg sync.WaitGroup
}

// MockPlay records one Play call.
type MockPlay struct {
	Sink     playback.SinkID
	Kind     playback.PayloadKind
	Size     int
	Path     string
	Data     []byte
	Duration time.Duration
	At       time.Time
}

// MockCallbacks provides hooks for testing. OnPlay runs while the sink is
// locked and must not call back into it.
type MockCallbacks struct {
	OnPlay     func(play MockPlay)
	OnComplete func(sink playback.SinkID, err error)
}

type mockPlayback struct {
	done  func(err error)
	stop  chan struct{}
	fired sync.Once
}

// MockOption configures a MockSink.
type MockOption func(*MockSink)

// WithDuration makes every playback last d.
func WithDuration(d time.Duration) MockOption {
	return func(m *MockSink) { m.duration = d }
}

// WithDelayFactor scales simulated durations. 0.5 plays twice as fast.
func WithDelayFactor(factor float64) MockOption {
	return func(m *MockSink) {
		if factor > 0 {
			m.delayFactor = factor
		}
	}
}

// WithManualCompletion disables timers; playback ends only through Complete.
func WithManualCompletion() MockOption {
	return func(m *MockSink) { m.manual = true }
}

// WithCallbacks installs test hooks.
func WithCallbacks(cb MockCallbacks) MockOption {
	return func(m *MockSink) { m.callbacks = cb }
}

// NewMockSink creates a mock sink where every sink id is connected.
func NewMockSink(opts ...MockOption) *MockSink {
	m := &MockSink{
		disconnected: make(map[playback.SinkID]bool),
		active:       make(map[playback.SinkID][]*mockPlayback),
		delayFactor:  1.0,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsConnected reports whether sink has not been disconnected.
func (m *MockSink) IsConnected(sink playback.SinkID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.disconnected[sink]
}

// SetConnected marks sink connected or disconnected.
func (m *MockSink) SetConnected(sink playback.SinkID, connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnected[sink] = !connected
}

// SetFailure makes subsequent Play calls fail with err. nil clears it.
func (m *MockSink) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// Play records payload and schedules its completion.
func (m *MockSink) Play(sink playback.SinkID, payload playback.Payload, done func(err error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return m.failWith
	}
	if m.disconnected[sink] {
		return playback.ErrSinkNotConnected
	}

	play := MockPlay{
		Sink: sink,
		Kind: payload.Kind(),
		Path: payload.Path(),
		At:   time.Now(),
	}
	switch payload.Kind() {
	case playback.PayloadBytes:
		play.Data = append([]byte(nil), payload.Bytes()...)
		play.Size = len(play.Data)
	case playback.PayloadFile:
		data, err := os.ReadFile(payload.Path())
		if err != nil {
			return err
		}
		play.Data = data
		play.Size = len(data)
	default:
		return ErrEmptyAudio
	}

	play.Duration = m.duration
	if play.Duration == 0 {
		play.Duration = EstimateDuration(play.Size)
	}
	play.Duration = time.Duration(float64(play.Duration) * m.delayFactor)

	if len(m.active[sink]) > 0 {
		m.overlapCount.Add(1)
	}

	pb := &mockPlayback{done: done, stop: make(chan struct{})}
	m.active[sink] = append(m.active[sink], pb)
	m.plays = append(m.plays, play)
	m.playCount.Add(1)

	if !m.manual {
		m.wg.Add(1)
		go m.simulate(sink, pb, play.Duration)
	}

	if m.callbacks.OnPlay != nil {
		m.callbacks.OnPlay(play)
	}

	return nil
}

// simulate ends pb after d unless it is completed earlier.
func (m *MockSink) simulate(sink playback.SinkID, pb *mockPlayback, d time.Duration) {
	defer m.wg.Done()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		m.finish(sink, pb, nil)
	case <-pb.stop:
	}
}

// finish removes pb from the active set and reports err.
func (m *MockSink) finish(sink playback.SinkID, pb *mockPlayback, err error) {
	pb.fired.Do(func() {
		m.mu.Lock()
		list := m.active[sink]
		for i, p := range list {
			if p == pb {
				m.active[sink] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		onComplete := m.callbacks.OnComplete
		m.mu.Unlock()

		close(pb.stop)
		m.completeCount.Add(1)
		if onComplete != nil {
			onComplete(sink, err)
		}
		pb.done(err)
	})
}

// Complete ends the oldest playback on sink with err. It reports false when
// nothing is playing there.
func (m *MockSink) Complete(sink playback.SinkID, err error) bool {
	m.mu.Lock()
	list := m.active[sink]
	if len(list) == 0 {
		m.mu.Unlock()
		return false
	}
	pb := list[0]
	m.mu.Unlock()

	m.finish(sink, pb, err)
	return true
}

// Active returns the number of unfinished playbacks on sink.
func (m *MockSink) Active(sink playback.SinkID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active[sink])
}

// Plays returns every recorded Play call in order.
func (m *MockSink) Plays() []MockPlay {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockPlay(nil), m.plays...)
}

// GetMetrics returns playback metrics for testing.
func (m *MockSink) GetMetrics() MockSinkMetrics {
	return MockSinkMetrics{
		PlayCount:     m.playCount.Load(),
		CompleteCount: m.completeCount.Load(),
		OverlapCount:  m.overlapCount.Load(),
	}
}

// MockSinkMetrics contains playback metrics for testing.
type MockSinkMetrics struct {
	PlayCount     int64
	CompleteCount int64
	OverlapCount  int64 // Play calls issued while the sink was busy
}

// Close completes every unfinished playback and waits for timers to stop.
func (m *MockSink) Close() error {
	type entry struct {
		sink playback.SinkID
		pb   *mockPlayback
	}

	m.mu.Lock()
	var pending []entry
	for sink, list := range m.active {
		for _, pb := range list {
			pending = append(pending, entry{sink, pb})
		}
	}
	m.mu.Unlock()

	for _, p := range pending {
		m.finish(p.sink, p.pb, ErrSinkClosed)
	}
	m.wg.Wait()
	return nil
}

// EstimateDuration approximates the length of an MP3 of size bytes.
func EstimateDuration(size int) time.Duration {
	return time.Duration(size) * 8 * time.Second / mockBitrate
}

var (
	_ playback.Sink = (*MockSink)(nil)
	_ playback.Sink = (*Speaker)(nil)
)
