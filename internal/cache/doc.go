// Package cache stores rendered speech so repeated phrases ("X joined the
// channel") skip the TTS round trip. It has two levels: an LRU memory cache
// and a zstd-compressed disk cache that survives restarts.
package cache
