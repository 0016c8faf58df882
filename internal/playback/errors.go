package playback

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidItem is returned when an item is built without a sink or
	// without exactly one payload variant.
	ErrInvalidItem = errors.New("invalid audio item")

	// ErrSinkNotConnected is returned when playback is attempted on a sink
	// that is not connected.
	ErrSinkNotConnected = errors.New("sink not connected")

	// ErrQueueFull is returned when a bounded queue is at capacity.
	ErrQueueFull = errors.New("queue is full")

	// ErrSchedulerClosed is returned when operations are attempted on a
	// closed scheduler.
	ErrSchedulerClosed = errors.New("scheduler is closed")
)

// PlaybackError reports an item that was dropped because its playback could
// not be started. It is a warning: the scheduler stays consistent and keeps
// serving the rest of the queue.
type PlaybackError struct {
	Sink   SinkID
	ItemID string
	Label  string
	Err    error
}

// Error implements the error interface.
func (e *PlaybackError) Error() string {
	return fmt.Sprintf("sink %s: dropped item %s (%s): %v", e.Sink, e.ItemID, e.Label, e.Err)
}

// Unwrap returns the underlying error.
func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// IsWarning reports whether err returned by Enqueue or AdvanceIfIdle only
// reports dropped items, as opposed to a rejected submission.
func IsWarning(err error) bool {
	var pe *PlaybackError
	return errors.As(err, &pe)
}

// Dropped reports whether err holds a *PlaybackError for the item with id
// itemID, searching every error joined into it.
func Dropped(err error, itemID string) bool {
	switch e := err.(type) {
	case nil:
		return false
	case *PlaybackError:
		if e.ItemID == itemID {
			return true
		}
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if Dropped(inner, itemID) {
				return true
			}
		}
		return false
	}
	return Dropped(errors.Unwrap(err), itemID)
}
