package playback

// Sink is a connected destination that plays one audio stream at a time and
// reports when it ends.
type Sink interface {
	// IsConnected reports whether sink can start playback right now.
	IsConnected(sink SinkID) bool

	// Play begins asynchronous playback of payload on sink. It returns an
	// error only when playback could not be started. Otherwise done must be
	// called exactly once when the stream ends, with the playback error if
	// any, and never before Play has returned.
	Play(sink SinkID, payload Payload, done func(err error)) error
}

// SinkFunc adapts a plain function to the Play half of Sink for sinks that
// are always connected.
type SinkFunc func(sink SinkID, payload Payload, done func(err error)) error

// IsConnected always reports true.
func (f SinkFunc) IsConnected(SinkID) bool { return true }

// Play calls f.
func (f SinkFunc) Play(sink SinkID, payload Payload, done func(err error)) error {
	return f(sink, payload, done)
}
