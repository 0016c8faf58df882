// Package tts renders announcement text to speech. Engines live in the
// engines subpackage; this package holds the Renderer contract, language
// handling, chat-markdown cleanup and a caching decorator.
package tts
