// Package buffer provides fixed-capacity buffers for streaming audio.
//
// The central type is Ring, a byte ring buffer that keeps a sliding
// window of the most recent data. When the buffer is full, new writes
// overwrite the oldest bytes. The gateway uses it to retain pre-roll
// audio ahead of a voice-activity start boundary.
package buffer
