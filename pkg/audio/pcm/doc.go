// Package pcm provides types and utilities for working with PCM (Pulse Code Modulation) audio data.
//
// The package defines audio formats for common configurations (16-bit mono at
// various sample rates) and conversion math between byte counts, sample counts,
// and wall-clock durations.
//
// Example usage:
//
//	// The gateway's wire format
//	format := pcm.L16Mono16K
//
//	// Bytes carried by one 128ms frame
//	n := format.BytesInDuration(128 * time.Millisecond) // 4096
//
//	// Bytes per millisecond, used for VAD offset arithmetic
//	perMs := format.BytesInMillis(1) // 32
package pcm
