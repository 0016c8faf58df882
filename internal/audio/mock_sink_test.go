package audio

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/herald/internal/playback"
)

func TestMockSink_NaturalCompletion(t *testing.T) {
	m := NewMockSink(WithDuration(20 * time.Millisecond))
	defer m.Close()

	done := make(chan error, 1)
	if err := m.Play("g1", playback.BytesPayload([]byte("mp3")), func(err error) { done <- err }); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if m.Active("g1") != 1 {
		t.Errorf("Expected 1 active playback, got %d", m.Active("g1"))
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean completion, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Playback did not complete")
	}

	if m.Active("g1") != 0 {
		t.Errorf("Expected no active playback, got %d", m.Active("g1"))
	}
	metrics := m.GetMetrics()
	if metrics.PlayCount != 1 || metrics.CompleteCount != 1 {
		t.Errorf("Unexpected metrics: %+v", metrics)
	}
}

func TestMockSink_ManualCompletion(t *testing.T) {
	m := NewMockSink(WithManualCompletion())

	var mu sync.Mutex
	var results []error
	done := func(err error) {
		mu.Lock()
		results = append(results, err)
		mu.Unlock()
	}

	_ = m.Play("g1", playback.BytesPayload([]byte("a")), done)
	_ = m.Play("g1", playback.BytesPayload([]byte("b")), done)

	if got := m.GetMetrics().OverlapCount; got != 1 {
		t.Errorf("Expected overlap to be recorded, got %d", got)
	}

	boom := errors.New("boom")
	if !m.Complete("g1", boom) {
		t.Fatal("Complete reported nothing playing")
	}
	if !m.Complete("g1", nil) {
		t.Fatal("Complete reported nothing playing")
	}
	if m.Complete("g1", nil) {
		t.Error("Complete on idle sink should report false")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 2 || results[0] != boom || results[1] != nil {
		t.Errorf("Unexpected completion results: %v", results)
	}
}

func TestMockSink_Connectivity(t *testing.T) {
	m := NewMockSink(WithManualCompletion())

	if !m.IsConnected("g1") {
		t.Error("Sinks should start connected")
	}
	m.SetConnected("g1", false)
	if m.IsConnected("g1") {
		t.Error("Expected g1 to be disconnected")
	}

	err := m.Play("g1", playback.BytesPayload([]byte("a")), func(error) {})
	if !errors.Is(err, playback.ErrSinkNotConnected) {
		t.Errorf("Expected ErrSinkNotConnected, got %v", err)
	}

	m.SetFailure(errors.New("device busy"))
	m.SetConnected("g1", true)
	if err := m.Play("g1", playback.BytesPayload([]byte("a")), func(error) {}); err == nil {
		t.Error("Expected configured failure")
	}
	if n := len(m.Plays()); n != 0 {
		t.Errorf("Failed plays should not be recorded, got %d", n)
	}
}

func TestMockSink_FilePayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.mp3")
	if err := os.WriteFile(path, make([]byte, 4000), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewMockSink(WithManualCompletion())
	if err := m.Play("g1", playback.FilePayload(path), func(error) {}); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	plays := m.Plays()
	if len(plays) != 1 {
		t.Fatalf("Expected 1 play, got %d", len(plays))
	}
	if plays[0].Size != 4000 || plays[0].Path != path || plays[0].Kind != playback.PayloadFile {
		t.Errorf("Unexpected play record: %+v", plays[0])
	}
	// 4000 bytes at 32 kbps
	if plays[0].Duration != time.Second {
		t.Errorf("Expected 1s estimated duration, got %v", plays[0].Duration)
	}

	if err := m.Play("g1", playback.FilePayload(filepath.Join(t.TempDir(), "missing.mp3")), func(error) {}); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestMockSink_DelayFactor(t *testing.T) {
	m := NewMockSink(WithDuration(time.Second), WithDelayFactor(0.01), WithManualCompletion())
	_ = m.Play("g1", playback.BytesPayload([]byte("a")), func(error) {})

	if d := m.Plays()[0].Duration; d != 10*time.Millisecond {
		t.Errorf("Expected 10ms, got %v", d)
	}
}

func TestMockSink_Callbacks(t *testing.T) {
	var played []playback.SinkID
	var completed []playback.SinkID

	m := NewMockSink(WithManualCompletion(), WithCallbacks(MockCallbacks{
		OnPlay:     func(p MockPlay) { played = append(played, p.Sink) },
		OnComplete: func(sink playback.SinkID, err error) { completed = append(completed, sink) },
	}))

	_ = m.Play("g1", playback.BytesPayload([]byte("a")), func(error) {})
	m.Complete("g1", nil)

	if len(played) != 1 || len(completed) != 1 {
		t.Errorf("Expected one play and one completion, got %v and %v", played, completed)
	}
}

func TestMockSink_CloseCompletesPending(t *testing.T) {
	m := NewMockSink(WithManualCompletion())

	got := make(chan error, 1)
	_ = m.Play("g1", playback.BytesPayload([]byte("a")), func(err error) { got <- err })

	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := <-got; !errors.Is(err, ErrSinkClosed) {
		t.Errorf("Expected ErrSinkClosed, got %v", err)
	}
}

// TestMockSink_DrivesScheduler plays a queue end to end.
func TestMockSink_DrivesScheduler(t *testing.T) {
	m := NewMockSink(WithDuration(5 * time.Millisecond))
	defer m.Close()

	s := playback.New(m)
	defer s.Close()

	for _, text := range []string{"A", "B", "C"} {
		item, err := playback.NewItem("g1", playback.BytesPayload([]byte(text)))
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Enqueue("g1", item); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for m.GetMetrics().CompleteCount < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	plays := m.Plays()
	if len(plays) != 3 {
		t.Fatalf("Expected 3 plays, got %d", len(plays))
	}
	for i, want := range []string{"A", "B", "C"} {
		if string(plays[i].Data) != want {
			t.Errorf("Play %d: expected %s, got %s", i, want, plays[i].Data)
		}
	}
	if n := m.GetMetrics().OverlapCount; n != 0 {
		t.Errorf("Expected no overlapping playback, got %d", n)
	}
}
