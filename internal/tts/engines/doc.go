// Package engines contains the TTS engines behind tts.Renderer: gTTS, which
// shells out to gtts-cli, and a deterministic mock for tests and dry runs.
package engines
