// Package audio provides audio processing utilities.
//
// This package serves as an umbrella for audio-related sub-packages:
//
//   - pcm: PCM (Pulse Code Modulation) format math (rates, byte/time conversion)
//   - wav: RIFF/WAVE container assembly for raw PCM
package audio
