// Package playback serializes audio items onto output sinks.
// Each sink owns a FIFO queue and a busy flag; the Scheduler starts at most
// one playback per sink and advances to the next item when the sink reports
// completion.
package playback
