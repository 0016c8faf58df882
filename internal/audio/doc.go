// Package audio turns encoded speech into sound. It decodes MP3 payloads to
// PCM, converts sample rates and channel layouts, and provides playback
// sinks: a local speaker built on oto/v3 and a mock sink for tests and dry
// runs.
package audio
